package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
)

type stubSessionRepo struct {
	sessions map[string]*model.Session
	getErr   error
	saveErr  error
	saves    int
}

func (r *stubSessionRepo) Get(_ context.Context, userID string) (*model.Session, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	session, ok := r.sessions[userID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *stubSessionRepo) Save(_ context.Context, session *model.Session) error {
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.sessions == nil {
		r.sessions = make(map[string]*model.Session)
	}
	copied := *session
	r.sessions[session.UserID] = &copied
	return nil
}

func newTestStore(repo *stubSessionRepo) *Store {
	return NewStore(repo, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestStoreGetCreatesFresh(t *testing.T) {
	store := newTestStore(&stubSessionRepo{})

	session, err := store.Get(context.Background(), "255700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.State != model.StateStart {
		t.Fatalf("expected START, got %s", session.State)
	}
	if session.UserID != "255700000001" {
		t.Fatalf("unexpected user id: %s", session.UserID)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	repo := &stubSessionRepo{}
	store := newTestStore(repo)

	session := model.NewSession("255700000001")
	session.SetState(model.StateEnterQty)
	session.Data.Platform = "Instagram"
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := store.Get(context.Background(), "255700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.State != model.StateEnterQty || loaded.Data.Platform != "Instagram" {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}

func TestStoreFallbackOnSaveFailure(t *testing.T) {
	repo := &stubSessionRepo{saveErr: errors.New("db down"), getErr: errors.New("db down")}
	store := newTestStore(repo)

	session := model.NewSession("255700000001")
	session.SetState(model.StatePaymentPhone)
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("save should not surface db errors: %v", err)
	}

	loaded, err := store.Get(context.Background(), "255700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.State != model.StatePaymentPhone {
		t.Fatalf("fallback lost state, got %s", loaded.State)
	}
}

func TestStoreFallbackClearedAfterDurableSave(t *testing.T) {
	repo := &stubSessionRepo{saveErr: errors.New("db down")}
	store := newTestStore(repo)

	session := model.NewSession("255700000001")
	session.SetState(model.StateAwaitingPay)
	_ = store.Save(context.Background(), session)

	// database recovers
	repo.saveErr = nil
	session.SetState(model.StateOrderPlaced)
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.Lock()
	_, cached := store.fallback["255700000001"]
	store.mu.Unlock()
	if cached {
		t.Fatal("fallback entry should be cleared after durable save")
	}

	loaded, err := store.Get(context.Background(), "255700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.State != model.StateOrderPlaced {
		t.Fatalf("expected durable state, got %s", loaded.State)
	}
}

func TestStoreGetFallbackOnLoadFailure(t *testing.T) {
	repo := &stubSessionRepo{getErr: errors.New("db down")}
	store := newTestStore(repo)

	loaded, err := store.Get(context.Background(), "255700000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.State != model.StateStart {
		t.Fatalf("expected fresh session, got %s", loaded.State)
	}
}
