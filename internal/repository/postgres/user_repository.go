// Package postgres stores users in PostgreSQL through GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"userstore/internal/domain"
	"userstore/internal/repository"
)

const uniqueViolation = "23505"

// userRow maps to the singular "user" table with snake_case columns and no timestamps.
type userRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"not null"`
	Email        string `gorm:"not null;uniqueIndex:idx_user_email_lower,expression:lower(email)"`
	PasswordHash string `gorm:"not null"`
}

func (userRow) TableName() string { return "user" }

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
	}
}

// Config returns the GORM settings the repository relies on.
func Config() *gorm.Config {
	return &gorm.Config{
		NamingStrategy:         schema.NamingStrategy{SingularTable: true},
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// Open connects to PostgreSQL using a pgx DSN.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&userRow{}); err != nil {
		return fmt.Errorf("migrate user table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	row := userRow{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", domain.ErrDuplicateEmail)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	user.ID = row.ID
	return row.ID, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, update domain.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	cols := make(map[string]any, 3)
	if update.Username != nil {
		cols["username"] = *update.Username
	}
	if update.Email != nil {
		cols["email"] = *update.Email
	}
	if update.PasswordHash != nil {
		cols["password_hash"] = *update.PasswordHash
	}

	result := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("update user %d: %w", id, domain.ErrDuplicateEmail)
		}
		return fmt.Errorf("update user %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&userRow{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return row.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
