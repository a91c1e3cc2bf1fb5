package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"arith-live-service/internal/codes"
	"arith-live-service/internal/domain"
	"github.com/google/uuid"
)

const (
	// DefaultRetention is how long a session lives regardless of status.
	DefaultRetention = 2 * time.Hour
	// DefaultSweepInterval is how often expired sessions are removed.
	DefaultSweepInterval = 30 * time.Minute

	maxNameLength     = 40
	maxCodeAttempts   = 16
	resultSaveTimeout = 30 * time.Second
)

var errAccessCodeExhausted = errors.New("could not allocate a unique participant code")

// SessionRepository indexes live sessions by id and by join code. Implementations
// must keep both indexes consistent under concurrent use.
type SessionRepository interface {
	// Insert adds a session; it returns domain.ErrCodeTaken if the join code is in use.
	Insert(session *Session) error
	Get(id string) (*Session, bool)
	GetByCode(code string) (*Session, bool)
	Delete(id string)
	CreatedBefore(cutoff time.Time) []*Session
}

// ProblemGenerator builds the problem set for new sessions.
type ProblemGenerator interface {
	Generate(settings domain.Settings) []domain.Problem
}

// ResultSink persists finished-session results for participants with an external identity.
type ResultSink interface {
	SaveResults(ctx context.Context, results []domain.SessionResult) error
}

// SubmitResult is returned to the submitter of an answer.
type SubmitResult struct {
	Answer      domain.Answer      `json:"answer"`
	Session     domain.SessionView `json:"session"`
	AllComplete bool               `json:"allComplete"`
	Ranking     []domain.RankEntry `json:"ranking,omitempty"`
}

// Option customizes a LiveService.
type Option func(*LiveService)

// WithClock replaces time.Now; used for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *LiveService) { s.now = now }
}

// WithScheduler replaces time.AfterFunc for the countdown transition.
func WithScheduler(afterFunc func(time.Duration, func()) Timer) Option {
	return func(s *LiveService) { s.afterFunc = afterFunc }
}

// WithRetention overrides how long sessions are kept before the sweep removes them.
func WithRetention(d time.Duration) Option {
	return func(s *LiveService) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithResultSink sets where finished results are persisted.
func WithResultSink(sink ResultSink) Option {
	return func(s *LiveService) { s.results = sink }
}

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *LiveService) { s.log = logger }
}

// LiveService is the session store: it owns the registry and every mutating operation.
type LiveService struct {
	sessions  SessionRepository
	problems  ProblemGenerator
	results   ResultSink
	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
	retention time.Duration
	log       *slog.Logger
	pending   sync.WaitGroup
}

func NewLiveService(store SessionRepository, problems ProblemGenerator, opts ...Option) *LiveService {
	s := &LiveService{
		sessions:  store,
		problems:  problems,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		retention: DefaultRetention,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates settings, generates problems and a unique join code, and stores a
// new session in the lobby. If priorSessionID names a live session, its rematch code
// is pointed at the new session.
func (s *LiveService) Create(_ context.Context, settings domain.Settings, priorSessionID string) (domain.SessionView, error) {
	if err := settings.Validate(); err != nil {
		return domain.SessionView{}, err
	}
	settings.Operations = append([]domain.Operation(nil), settings.Operations...)
	settings.Series = append([]int(nil), settings.Series...)
	problems := s.problems.Generate(settings)

	var session *Session
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return domain.SessionView{}, fmt.Errorf("allocate join code: %w", domain.ErrCodeTaken)
		}
		code, err := codes.JoinCode()
		if err != nil {
			return domain.SessionView{}, err
		}
		session = NewSession(uuid.NewString(), code, settings, problems, s.now)
		err = s.sessions.Insert(session)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return domain.SessionView{}, fmt.Errorf("insert session: %w", err)
		}
	}

	if priorSessionID != "" {
		if prior, ok := s.sessions.Get(priorSessionID); ok {
			prior.setRematch(session.Code())
		}
	}

	s.log.Info("session created", "session_id", session.ID(), "code", session.Code(), "problems", len(problems))
	return session.view(), nil
}

// Get returns a snapshot of the session with the given id.
func (s *LiveService) Get(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return session.view(), nil
}

// GetByCode returns a snapshot of the session with the given join code.
func (s *LiveService) GetByCode(_ context.Context, code string) (domain.SessionView, error) {
	session, ok := s.sessions.GetByCode(codes.Normalize(code))
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return session.view(), nil
}

// Participant returns one participant including their answer log, for reconnecting clients.
func (s *LiveService) Participant(_ context.Context, sessionID, participantID string) (domain.Participant, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Participant{}, domain.ErrSessionNotFound
	}
	p, ok := session.participant(participantID)
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

// Join adds a participant to a session in the lobby.
func (s *LiveService) Join(_ context.Context, sessionID, name, externalIdentity string) (domain.Participant, domain.SessionView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Participant{}, domain.SessionView{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return domain.Participant{}, domain.SessionView{}, fmt.Errorf("%w: name longer than %d characters", domain.ErrInvalidInput, maxNameLength)
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Participant{}, domain.SessionView{}, domain.ErrSessionNotFound
	}
	p, view, err := session.join(name, externalIdentity)
	if err != nil {
		return domain.Participant{}, domain.SessionView{}, err
	}
	s.log.Info("participant joined", "session_id", sessionID, "participant_id", p.ID)
	return p, view, nil
}

// Start moves the session into the countdown; it becomes running after CountdownDelay.
func (s *LiveService) Start(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	view, started := session.start(s.afterFunc)
	if started {
		s.log.Info("session countdown started", "session_id", sessionID, "participants", len(view.Participants))
	}
	return view, nil
}

// SubmitAnswer records one answer. When it completes the last outstanding answer log,
// the session finishes and the ranking is attached to the result.
func (s *LiveService) SubmitAnswer(_ context.Context, sessionID, participantID, problemID string, value float64, elapsedMs int64) (SubmitResult, error) {
	if elapsedMs < 0 {
		return SubmitResult{}, fmt.Errorf("%w: elapsedMs must not be negative", domain.ErrInvalidInput)
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SubmitResult{}, domain.ErrSessionNotFound
	}
	sub, err := session.submit(participantID, problemID, value, elapsedMs)
	if err != nil {
		return SubmitResult{}, err
	}
	if sub.finished {
		s.log.Info("session finished", "session_id", sessionID, "reason", "complete")
		s.publish(sub.results)
	}
	return SubmitResult{
		Answer:      sub.answer,
		Session:     sub.view,
		AllComplete: sub.finished,
		Ranking:     sub.ranking,
	}, nil
}

// Abort finishes the session from any state using whatever answers exist. It only
// fails when the session does not exist.
func (s *LiveService) Abort(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	view, results, finished := session.abort()
	if finished {
		s.log.Info("session finished", "session_id", sessionID, "reason", "aborted")
		s.publish(results)
	}
	return view, nil
}

// Leave removes a participant from the lobby, or announces their departure later on.
// Unknown sessions and participants are ignored.
func (s *LiveService) Leave(_ context.Context, sessionID, participantID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if session.leave(participantID) {
		s.log.Debug("participant left", "session_id", sessionID, "participant_id", participantID)
	}
}

// Subscribe returns a channel that receives every event of a session, starting with a
// snapshot. The caller must invoke the returned cancel function to avoid leaks.
func (s *LiveService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Sweep removes every session created before the retention window, whatever its status.
func (s *LiveService) Sweep(_ context.Context) int {
	cutoff := s.now().Add(-s.retention)
	expired := s.sessions.CreatedBefore(cutoff)
	for _, session := range expired {
		s.sessions.Delete(session.ID())
		session.close()
	}
	if len(expired) > 0 {
		s.log.Info("expired sessions swept", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *LiveService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Wait blocks until background result publishing has drained.
func (s *LiveService) Wait() {
	s.pending.Wait()
}

// publish hands results to the sink off the request path. Sink failures are logged and
// never affect session state.
func (s *LiveService) publish(results []domain.SessionResult) {
	if s.results == nil || len(results) == 0 {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), resultSaveTimeout)
		defer cancel()
		if err := s.results.SaveResults(ctx, results); err != nil {
			s.log.Error("persist session results", "session_id", results[0].SessionID, "count", len(results), "error", err)
		}
	}()
}
