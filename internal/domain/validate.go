package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the minimum plaintext password length, in characters.
const MinPasswordLength = 4

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// Field names reported in FieldError.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldPassword = "password"
)

var validate = validator.New()

// CheckUsername returns a FieldError when username is missing.
func CheckUsername(username string) *FieldError {
	if strings.TrimSpace(username) == "" {
		return &FieldError{Field: FieldUsername, Message: "is required"}
	}
	return nil
}

// CheckEmail returns a FieldError when email is missing or not an address.
func CheckEmail(email string) *FieldError {
	if strings.TrimSpace(email) == "" {
		return &FieldError{Field: FieldEmail, Message: "is required"}
	}
	if err := validate.Var(email, "email"); err != nil {
		return &FieldError{Field: FieldEmail, Message: "must be a valid email address"}
	}
	return nil
}

// CheckPassword checks the plaintext password, before it is hashed.
func CheckPassword(password string) *FieldError {
	if password == "" {
		return &FieldError{Field: FieldPassword, Message: "is required"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &FieldError{Field: FieldPassword, Message: "must be at least 4 characters long"}
	}
	if len(password) > MaxPasswordBytes {
		return &FieldError{Field: FieldPassword, Message: "must be at most 72 bytes long"}
	}
	return nil
}

// ValidateNewUser runs every guard on a create payload and returns a
// *ValidationError listing all failures, or nil.
func ValidateNewUser(u NewUser) error {
	return collect(
		CheckUsername(u.Username),
		CheckEmail(u.Email),
		CheckPassword(u.Password),
	)
}

// ValidateChanges runs the guards of the fields present in c.
func ValidateChanges(c UserChanges) error {
	var checks []*FieldError
	if c.Username != nil {
		checks = append(checks, CheckUsername(*c.Username))
	}
	if c.Email != nil {
		checks = append(checks, CheckEmail(*c.Email))
	}
	if c.Password != nil {
		checks = append(checks, CheckPassword(*c.Password))
	}
	return collect(checks...)
}

func collect(checks ...*FieldError) error {
	var fields []FieldError
	for _, fe := range checks {
		if fe != nil {
			fields = append(fields, *fe)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
