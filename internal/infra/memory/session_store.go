package memory

import (
	"sync"
	"time"

	"arith-live-service/internal/app"
	"arith-live-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository. Both
// indexes are guarded by one mutex so they never disagree.
type SessionStore struct {
	mu     sync.RWMutex
	byID   map[string]*app.Session
	byCode map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:   make(map[string]*app.Session),
		byCode: make(map[string]string),
	}
}

func (s *SessionStore) Insert(session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[session.Code()]; ok {
		return domain.ErrCodeTaken
	}
	s.byID[session.ID()] = session
	s.byCode[session.Code()] = session.ID()
	return nil
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[id]
	return session, ok
}

func (s *SessionStore) GetByCode(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	session, ok := s.byID[id]
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byCode, session.Code())
}

func (s *SessionStore) CreatedBefore(cutoff time.Time) []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*app.Session
	for _, session := range s.byID {
		if session.CreatedAt().Before(cutoff) {
			out = append(out, session)
		}
	}
	return out
}

// Len reports how many sessions are indexed.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
