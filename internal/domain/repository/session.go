package repository

import (
	"context"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// SessionRepository persists conversation sessions.
type SessionRepository interface {
	Get(ctx context.Context, userID string) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
}
