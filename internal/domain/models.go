package domain

import "time"

// Operation is one of the four arithmetic operations a problem can use.
type Operation string

const (
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
	OpMultiply Operation = "multiply"
	OpDivide   Operation = "divide"
)

// Status is the live session state. It only ever moves forward.
type Status string

const (
	StatusLobby     Status = "lobby"
	StatusCountdown Status = "countdown"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
)

// Problem is one generated arithmetic question with its precomputed result.
type Problem struct {
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	Left      float64   `json:"left"`
	Right     float64   `json:"right"`
	Result    float64   `json:"result"`
	Index     int       `json:"index"`
	Series    int       `json:"series,omitempty"` // set for multiply/divide only
}

// Answer is a single submission recorded against a problem.
type Answer struct {
	ProblemID string  `json:"problemId"`
	Value     float64 `json:"value"`
	Correct   bool    `json:"correct"`
	ElapsedMs int64   `json:"elapsedMs"`
}

// Participant is one quiz-taker inside a session.
type Participant struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ExternalIdentity string    `json:"-"`
	Answers          []Answer  `json:"answers"`
	TotalTimeMs      int64     `json:"totalTimeMs"`
	AverageTimeMs    float64   `json:"averageTimeMs"`
	JoinedAt         time.Time `json:"joinedAt"`
}

// Score counts correct answers.
func (p Participant) Score() int {
	score := 0
	for _, a := range p.Answers {
		if a.Correct {
			score++
		}
	}
	return score
}

// RankEntry is one row of a leaderboard.
type RankEntry struct {
	Rank          int     `json:"rank"`
	ParticipantID string  `json:"participantId"`
	Name          string  `json:"name"`
	Score         int     `json:"score"`
	Answered      int     `json:"answered"`
	TotalTimeMs   int64   `json:"totalTimeMs"`
	AverageTimeMs float64 `json:"averageTimeMs"`
}

// ParticipantView is the public, answer-count-only view of a participant.
type ParticipantView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Answered int    `json:"answered"`
	Complete bool   `json:"complete"`
}

// SessionView is a point-in-time copy of a session safe to hand to transports.
type SessionView struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Status       Status            `json:"status"`
	Settings     Settings          `json:"settings"`
	Problems     []Problem         `json:"problems"`
	Participants []ParticipantView `json:"participants"`
	Ranking      []RankEntry       `json:"ranking,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	RematchCode  string            `json:"rematchCode,omitempty"`
}

// EventType names the push events fanned out to a session's viewers.
type EventType string

const (
	EventSnapshot         EventType = "snapshot"
	EventJoined           EventType = "joined"
	EventCountdownStarted EventType = "countdown-started"
	EventStarted          EventType = "started"
	EventProgress         EventType = "progress"
	EventFinished         EventType = "finished"
	EventLeft             EventType = "left"
	EventRematch          EventType = "rematch"
)

// Event is delivered to every subscriber of a session.
type Event struct {
	Type          EventType   `json:"type"`
	Session       SessionView `json:"session"`
	ParticipantID string      `json:"participantId,omitempty"`
	CountdownMs   int64       `json:"countdownMs,omitempty"`
	RematchCode   string      `json:"rematchCode,omitempty"`
}

// SessionResult is handed to the persistence collaborator for each participant that
// carries an external identity once a session finishes.
type SessionResult struct {
	SessionID        string    `json:"sessionId"`
	ExternalIdentity string    `json:"externalIdentity"`
	Name             string    `json:"name"`
	Score            int       `json:"score"`
	TotalTimeMs      int64     `json:"totalTimeMs"`
	AverageTimeMs    float64   `json:"averageTimeMs"`
	Answers          []Answer  `json:"answers"`
	Problems         []Problem `json:"problems"`
	FinishedAt       time.Time `json:"finishedAt"`
}
