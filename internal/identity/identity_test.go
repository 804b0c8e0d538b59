package identity_test

import (
	"errors"
	"testing"

	"github.com/jonesrussell/feedguard/internal/identity"
	"github.com/jonesrussell/feedguard/internal/logger"
)

type fakeStore struct {
	values map[string]string
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (s *fakeStore) GetValue(key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[key], nil
}

func (s *fakeStore) SetValue(key, value string) error {
	if s.err != nil {
		return s.err
	}
	s.values[key] = value
	return nil
}

func TestLoad_MintsOnFirstRun(t *testing.T) {
	t.Helper()

	store := newFakeStore()

	id, err := identity.Load(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty user id")
	}
	if store.values["user_id"] != id {
		t.Error("expected the minted id to be persisted")
	}
}

func TestLoad_ReturnsPersistedID(t *testing.T) {
	t.Helper()

	store := newFakeStore()
	store.values["user_id"] = "existing-id"

	id, err := identity.Load(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "existing-id" {
		t.Errorf("expected persisted id, got %q", id)
	}
}

func TestLoad_StableAcrossCalls(t *testing.T) {
	t.Helper()

	store := newFakeStore()

	first, err := identity.Load(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := identity.Load(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected stable id, got %q then %q", first, second)
	}
}

func TestLoad_PropagatesStoreError(t *testing.T) {
	t.Helper()

	store := newFakeStore()
	store.err = errors.New("disk full")

	if _, err := identity.Load(store); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestLoadOrTransient_UsesPersistedID(t *testing.T) {
	t.Helper()

	store := newFakeStore()
	store.values["user_id"] = "existing-id"

	id := identity.LoadOrTransient(store, logger.NewNop())
	if id != "existing-id" {
		t.Errorf("expected persisted id, got %q", id)
	}
}

func TestLoadOrTransient_FailingStoreMintsTransientID(t *testing.T) {
	t.Helper()

	store := newFakeStore()
	store.err = errors.New("disk full")

	id := identity.LoadOrTransient(store, logger.NewNop())
	if id == "" {
		t.Fatal("expected a transient id despite the failing store")
	}
}
