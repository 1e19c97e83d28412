package domain

// User represents one row of the user table.
// PasswordHash only ever holds the bcrypt hash, never the plaintext.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

// NewUser is the payload accepted when creating a user.
type NewUser struct {
	Username string
	Email    string
	Password string
}

// UserChanges is a partial update. Nil fields are left untouched.
type UserChanges struct {
	Username *string
	Email    *string
	Password *string
}

// IsEmpty reports whether no field is being changed.
func (c UserChanges) IsEmpty() bool {
	return c.Username == nil && c.Email == nil && c.Password == nil
}

// UserUpdate is the column set handed to a repository on update.
// It carries the already hashed password.
type UserUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// IsEmpty reports whether the update writes no column.
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil
}

// Apply returns a copy of user with the update applied.
func (u UserUpdate) Apply(user User) User {
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	return user
}
