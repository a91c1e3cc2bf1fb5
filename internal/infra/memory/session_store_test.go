package memory

import (
	"errors"
	"testing"
	"time"

	"arith-live-service/internal/app"
	"arith-live-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	session := app.NewSession("s1", "ABC234", domain.Settings{}, nil, nil)

	if err := store.Insert(session); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("expected session by id")
	}
	if got, ok := store.GetByCode("ABC234"); !ok || got.ID() != "s1" {
		t.Fatalf("expected session by code")
	}

	store.Delete("s1")
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected id index cleared")
	}
	if _, ok := store.GetByCode("ABC234"); ok {
		t.Fatalf("expected code index cleared")
	}
}

func TestSessionStoreRejectsDuplicateCode(t *testing.T) {
	store := NewSessionStore()
	if err := store.Insert(app.NewSession("s1", "ABC234", domain.Settings{}, nil, nil)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.Insert(app.NewSession("s2", "ABC234", domain.Settings{}, nil, nil))
	if !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}
}

func TestSessionStoreCreatedBefore(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore()
	old := app.NewSession("old", "OLD234", domain.Settings{}, nil, func() time.Time { return base })
	fresh := app.NewSession("new", "NEW234", domain.Settings{}, nil, func() time.Time { return base.Add(time.Hour) })
	_ = store.Insert(old)
	_ = store.Insert(fresh)

	expired := store.CreatedBefore(base.Add(30 * time.Minute))
	if len(expired) != 1 || expired[0].ID() != "old" {
		t.Fatalf("expected only old session, got %d", len(expired))
	}
}
