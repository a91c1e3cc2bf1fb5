package redis

import (
	"context"
	"fmt"
	"time"

	"arith-live-service/internal/app"
	"arith-live-service/internal/domain"
	"arith-live-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

// releaseCode deletes a code reservation only if it still belongs to this session.
var releaseCode = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in a local in-memory index; state is never shared
//     across processes.
//   - Join codes are reserved in Redis with SET NX and the retention TTL, so several
//     instances behind one Redis never hand out the same code.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	local  *memory.SessionStore
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		local:  memory.NewSessionStore(),
	}
}

func (s *SessionStore) Insert(session *app.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ok, err := s.client.SetNX(ctx, s.key(session.Code()), session.ID(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve join code: %w", err)
	}
	if !ok {
		return domain.ErrCodeTaken
	}
	if err := s.local.Insert(session); err != nil {
		_ = releaseCode.Run(ctx, s.client, []string{s.key(session.Code())}, session.ID()).Err()
		return err
	}
	return nil
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	return s.local.Get(id)
}

func (s *SessionStore) GetByCode(code string) (*app.Session, bool) {
	return s.local.GetByCode(code)
}

func (s *SessionStore) Delete(id string) {
	session, ok := s.local.Get(id)
	if !ok {
		return
	}
	s.local.Delete(id)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	// best-effort; the TTL releases the code anyway
	_ = releaseCode.Run(ctx, s.client, []string{s.key(session.Code())}, id).Err()
}

func (s *SessionStore) CreatedBefore(cutoff time.Time) []*app.Session {
	return s.local.CreatedBefore(cutoff)
}

func (s *SessionStore) key(code string) string {
	return "live:code:" + code
}
