package memory

import (
	"context"
	"sync"

	"arith-live-service/internal/domain"
)

const defaultResultCapacity = 1000

// ResultSink keeps the most recent session results in memory (useful for tests/demos).
type ResultSink struct {
	mu       sync.Mutex
	capacity int
	results  []domain.SessionResult
}

// NewResultSink keeps at most capacity results; zero or less uses a default.
func NewResultSink(capacity int) *ResultSink {
	if capacity <= 0 {
		capacity = defaultResultCapacity
	}
	return &ResultSink{capacity: capacity}
}

func (r *ResultSink) SaveResults(_ context.Context, results []domain.SessionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
	if over := len(r.results) - r.capacity; over > 0 {
		r.results = append([]domain.SessionResult(nil), r.results[over:]...)
	}
	return nil
}

// Results returns a copy of the stored results, oldest first.
func (r *ResultSink) Results() []domain.SessionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SessionResult(nil), r.results...)
}
