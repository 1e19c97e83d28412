package repository

import (
	"context"

	"userstore/internal/domain"
)

// UserRepository defines persistence operations for User records.
// Create and Update return an error matching domain.ErrDuplicateEmail when
// the email column collides; Update, Delete and GetByID return
// domain.ErrNotFound for a missing id.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	Update(ctx context.Context, id int64, update domain.UserUpdate) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
