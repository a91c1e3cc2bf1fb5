package app

import (
	"math"
	"sync"
	"time"

	"arith-live-service/internal/codes"
	"arith-live-service/internal/domain"
	"arith-live-service/internal/ranking"
)

const (
	// CountdownDelay is the shared "ready" window between start and running.
	CountdownDelay = 10 * time.Second
	// AnswerTolerance absorbs floating rounding when checking submitted values.
	AnswerTolerance = 0.01

	subscriberBuffer  = 16
	maxAccessAttempts = 8
)

// Timer is the handle of a scheduled callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Session is the in-memory record of one live session. Every mutation happens
// under mu, and events are fanned out while mu is held so subscribers observe them
// in the order the mutations completed.
type Session struct {
	id        string
	code      string
	createdAt time.Time
	now       func() time.Time
	settings  domain.Settings
	problems  []domain.Problem
	byProblem map[string]int

	mu           sync.Mutex
	status       domain.Status
	startedAt    time.Time
	finishedAt   time.Time
	participants []*domain.Participant
	ranking      []domain.RankEntry
	rematchCode  string
	countdown    Timer
	subscribers  map[chan domain.Event]struct{}
	closed       bool
}

// NewSession is exported for infrastructure layers and tests that need to seed sessions.
func NewSession(id, code string, settings domain.Settings, problems []domain.Problem, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	byProblem := make(map[string]int, len(problems))
	for i, p := range problems {
		byProblem[p.ID] = i
	}
	return &Session{
		id:          id,
		code:        code,
		createdAt:   now(),
		now:         now,
		settings:    settings,
		problems:    problems,
		byProblem:   byProblem,
		status:      domain.StatusLobby,
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// ID returns the internal session id.
func (s *Session) ID() string { return s.id }

// Code returns the public join code.
func (s *Session) Code() string { return s.code }

// CreatedAt returns the creation timestamp used by the retention sweep.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Status returns the current state.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) view() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) join(name, externalIdentity string) (domain.Participant, domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusLobby {
		return domain.Participant{}, domain.SessionView{}, domain.ErrNotJoinable
	}

	id, err := s.accessCodeLocked()
	if err != nil {
		return domain.Participant{}, domain.SessionView{}, err
	}
	p := &domain.Participant{
		ID:               id,
		Name:             name,
		ExternalIdentity: externalIdentity,
		JoinedAt:         s.now(),
	}
	s.participants = append(s.participants, p)

	view := s.broadcastLocked(domain.Event{Type: domain.EventJoined, ParticipantID: id})
	return copyParticipant(p), view, nil
}

// accessCodeLocked draws a participant id that is unique within the session.
func (s *Session) accessCodeLocked() (string, error) {
	for attempt := 0; attempt < maxAccessAttempts; attempt++ {
		code, err := codes.AccessCode()
		if err != nil {
			return "", err
		}
		if s.participantLocked(code) == nil {
			return code, nil
		}
	}
	return "", errAccessCodeExhausted
}

// start moves lobby to countdown and schedules the running transition. Starting a
// session that already left the lobby is a no-op.
func (s *Session) start(afterFunc func(time.Duration, func()) Timer) (domain.SessionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusLobby {
		return s.viewLocked(), false
	}
	s.status = domain.StatusCountdown
	s.countdown = afterFunc(CountdownDelay, s.run)
	return s.broadcastLocked(domain.Event{
		Type:        domain.EventCountdownStarted,
		CountdownMs: CountdownDelay.Milliseconds(),
	}), true
}

// run is the countdown callback. It is a no-op if the session moved on meanwhile.
func (s *Session) run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusCountdown {
		return
	}
	s.countdown = nil
	s.status = domain.StatusRunning
	s.startedAt = s.now()
	s.broadcastLocked(domain.Event{Type: domain.EventStarted})
}

type submission struct {
	answer   domain.Answer
	view     domain.SessionView
	finished bool
	ranking  []domain.RankEntry
	results  []domain.SessionResult
}

// submit appends an answer and, in the same critical section, checks whether every
// participant is complete. Only the submission that flips the status finishes.
func (s *Session) submit(participantID, problemID string, value float64, elapsedMs int64) (submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.participantLocked(participantID)
	if p == nil {
		return submission{}, domain.ErrParticipantNotFound
	}
	idx, ok := s.byProblem[problemID]
	if !ok {
		return submission{}, domain.ErrProblemNotFound
	}
	if s.status != domain.StatusRunning {
		return submission{}, domain.ErrNotActive
	}
	for _, a := range p.Answers {
		if a.ProblemID == problemID {
			return submission{}, domain.ErrDuplicateAnswer
		}
	}

	answer := domain.Answer{
		ProblemID: problemID,
		Value:     value,
		Correct:   math.Abs(value-s.problems[idx].Result) < AnswerTolerance,
		ElapsedMs: elapsedMs,
	}
	p.Answers = append(p.Answers, answer)
	p.TotalTimeMs += elapsedMs
	p.AverageTimeMs = float64(p.TotalTimeMs) / float64(len(p.Answers))

	out := submission{answer: answer}
	if !s.allCompleteLocked() {
		out.view = s.broadcastLocked(domain.Event{Type: domain.EventProgress, ParticipantID: participantID})
		return out, nil
	}

	s.broadcastLocked(domain.Event{Type: domain.EventProgress, ParticipantID: participantID})
	out.view, out.results = s.finishLocked()
	out.finished = true
	out.ranking = append([]domain.RankEntry(nil), ranking.Top(s.ranking, s.settings.LeaderboardSize)...)
	return out, nil
}

// abort finishes the session from any state. It reports whether this call did the finishing.
func (s *Session) abort() (domain.SessionView, []domain.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return s.viewLocked(), nil, false
	}
	view, results := s.finishLocked()
	return view, results, true
}

func (s *Session) finishLocked() (domain.SessionView, []domain.SessionResult) {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	s.status = domain.StatusFinished
	s.finishedAt = s.now()

	participants := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, *p)
	}
	s.ranking = ranking.Rank(participants)

	view := s.broadcastLocked(domain.Event{Type: domain.EventFinished})
	return view, s.resultsLocked()
}

func (s *Session) resultsLocked() []domain.SessionResult {
	var results []domain.SessionResult
	for _, p := range s.participants {
		if p.ExternalIdentity == "" {
			continue
		}
		results = append(results, domain.SessionResult{
			SessionID:        s.id,
			ExternalIdentity: p.ExternalIdentity,
			Name:             p.Name,
			Score:            p.Score(),
			TotalTimeMs:      p.TotalTimeMs,
			AverageTimeMs:    p.AverageTimeMs,
			Answers:          append([]domain.Answer(nil), p.Answers...),
			Problems:         append([]domain.Problem(nil), s.problems...),
			FinishedAt:       s.finishedAt,
		})
	}
	return results
}

// leave drops a participant from the lobby. After the lobby the participant stays
// so their answers still rank; only the left event goes out.
func (s *Session) leave(participantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.participantLocked(participantID) == nil {
		return false
	}
	if s.status == domain.StatusLobby {
		kept := s.participants[:0]
		for _, p := range s.participants {
			if p.ID != participantID {
				kept = append(kept, p)
			}
		}
		s.participants = kept
	}
	s.broadcastLocked(domain.Event{Type: domain.EventLeft, ParticipantID: participantID})
	return true
}

// setRematch records the follow-up session code. It is the only field that may
// change once the session has finished.
func (s *Session) setRematch(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rematchCode = code
	s.broadcastLocked(domain.Event{Type: domain.EventRematch, RematchCode: code})
}

func (s *Session) participant(participantID string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.participantLocked(participantID)
	if p == nil {
		return domain.Participant{}, false
	}
	return copyParticipant(p), true
}

func (s *Session) participantLocked(id string) *domain.Participant {
	for _, p := range s.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) allCompleteLocked() bool {
	if len(s.participants) == 0 {
		return false
	}
	for _, p := range s.participants {
		if len(p.Answers) < len(s.problems) {
			return false
		}
	}
	return true
}

func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	s.mu.Lock()
	ch <- domain.Event{Type: domain.EventSnapshot, Session: s.viewLocked()}
	if s.closed {
		// Swept: the viewer gets the last snapshot and an end of stream.
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// close stops the countdown and closes every subscriber channel. Used by the sweep;
// later subscriptions receive a closed channel.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked(event domain.Event) domain.SessionView {
	event.Session = s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Slow viewer: drop its oldest queued event. Viewers recover full state by re-querying.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return event.Session
}

func (s *Session) viewLocked() domain.SessionView {
	view := domain.SessionView{
		ID:           s.id,
		Code:         s.code,
		Status:       s.status,
		Settings:     s.settings,
		Problems:     append([]domain.Problem(nil), s.problems...),
		Participants: make([]domain.ParticipantView, 0, len(s.participants)),
		CreatedAt:    s.createdAt,
		RematchCode:  s.rematchCode,
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		view.StartedAt = &started
	}
	for _, p := range s.participants {
		view.Participants = append(view.Participants, domain.ParticipantView{
			ID:       p.ID,
			Name:     p.Name,
			Answered: len(p.Answers),
			Complete: len(p.Answers) == len(s.problems),
		})
	}
	if s.ranking != nil {
		view.Ranking = append([]domain.RankEntry(nil), ranking.Top(s.ranking, s.settings.LeaderboardSize)...)
	}
	return view
}

func copyParticipant(p *domain.Participant) domain.Participant {
	out := *p
	out.Answers = append([]domain.Answer(nil), p.Answers...)
	return out
}
