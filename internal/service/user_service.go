package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"userstore/internal/domain"
	"userstore/internal/password"
	"userstore/internal/repository"
)

// UserService describes user lifecycle operations.
type UserService interface {
	Create(ctx context.Context, in domain.NewUser) (*domain.User, error)
	Update(ctx context.Context, existing *domain.User, changes domain.UserChanges) (*domain.User, error)
	VerifyPassword(candidate string, user *domain.User) bool
	Get(ctx context.Context, id int64) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}

type userService struct {
	users  repository.UserRepository
	hasher password.Hasher
	logger logrus.FieldLogger
}

func NewUserService(users repository.UserRepository, hasher password.Hasher, logger logrus.FieldLogger) UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &userService{
		users:  users,
		hasher: hasher,
		logger: logger,
	}
}

// Create validates the payload, hashes the password and writes the row, in that order.
func (s *userService) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	if err := domain.ValidateNewUser(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("user created")
	return user, nil
}

// Update validates the changed fields and re-hashes the password only when
// it is part of the change set.
func (s *userService) Update(ctx context.Context, existing *domain.User, changes domain.UserChanges) (*domain.User, error) {
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	if changes.IsEmpty() {
		current := *existing
		return &current, nil
	}
	if err := domain.ValidateChanges(changes); err != nil {
		return nil, err
	}

	update := domain.UserUpdate{
		Username: changes.Username,
		Email:    changes.Email,
	}
	if changes.Password != nil {
		hash, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
	}

	if err := s.users.Update(ctx, existing.ID, update); err != nil {
		return nil, err
	}

	updated := update.Apply(*existing)
	s.logger.WithFields(logrus.Fields{
		"user_id":          updated.ID,
		"password_changed": update.PasswordHash != nil,
	}).Info("user updated")
	return &updated, nil
}

// VerifyPassword never returns an error: any mismatch, including a nil
// user or a malformed stored hash, is reported as false.
func (s *userService) VerifyPassword(candidate string, user *domain.User) bool {
	if user == nil {
		return false
	}
	return s.hasher.Compare(user.PasswordHash, candidate)
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.WithField("user_id", id).Info("user deleted")
	return nil
}
