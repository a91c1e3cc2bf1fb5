package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the umbrella for unknown session, participant or problem references.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound is returned when no live session matches an id or join code.
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	// ErrParticipantNotFound is returned when a participant id is not part of the session.
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	// ErrProblemNotFound indicates a submitted problem id is not part of the session.
	ErrProblemNotFound = fmt.Errorf("problem %w", ErrNotFound)
	// ErrNotJoinable is returned when a join is attempted outside the lobby.
	ErrNotJoinable = errors.New("session is not joinable")
	// ErrNotActive is returned when answers arrive while the session is not running.
	ErrNotActive = errors.New("session is not active")
	// ErrDuplicateAnswer is returned when a participant answers the same problem twice.
	ErrDuplicateAnswer = errors.New("problem already answered")
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCodeTaken is returned by registries when a join code is already reserved.
	ErrCodeTaken = errors.New("join code already in use")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
