package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
)

// Store keeps conversation sessions durable while shielding the dialog from
// database outages. Reads and writes go to the backing repository first and
// fall back to a process local map when it fails, so a user mid-dialog is
// never dropped because the database blipped.
type Store struct {
	durable repository.SessionRepository
	logger  *slog.Logger

	mu       sync.Mutex
	fallback map[string]*model.Session
}

// NewStore creates a session store over a durable repository.
func NewStore(durable repository.SessionRepository, logger *slog.Logger) *Store {
	return &Store{
		durable:  durable,
		logger:   logger,
		fallback: make(map[string]*model.Session),
	}
}

// Get loads the session for a user, creating a fresh one when none exists.
func (s *Store) Get(ctx context.Context, userID string) (*model.Session, error) {
	session, err := s.durable.Get(ctx, userID)
	if err == nil {
		return session, nil
	}
	if errors.Is(err, domainErrors.ErrNotFound) {
		return model.NewSession(userID), nil
	}

	s.logger.Warn("session load failed, using fallback",
		slog.String("user_id", userID), slog.String("error", err.Error()))

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.fallback[userID]; ok {
		copied := *cached
		return &copied, nil
	}
	return model.NewSession(userID), nil
}

// Save persists the session, keeping a fallback copy when the database fails.
func (s *Store) Save(ctx context.Context, session *model.Session) error {
	if err := s.durable.Save(ctx, session); err != nil {
		s.logger.Warn("session save failed, caching in memory",
			slog.String("user_id", session.UserID), slog.String("error", err.Error()))

		s.mu.Lock()
		copied := *session
		s.fallback[session.UserID] = &copied
		s.mu.Unlock()
		return nil
	}

	// durable write succeeded, the cached copy is stale
	s.mu.Lock()
	delete(s.fallback, session.UserID)
	s.mu.Unlock()
	return nil
}
