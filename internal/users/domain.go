package users

import (
	"errors"
	"regexp"
	"time"
)

// User is a registered account. Anonymous posters never get a row here;
// they act through the anonymous role instead.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrNotFound indicates the user does not exist.
var ErrNotFound = errors.New("users: not found")

// ErrUsernameTaken indicates the username is already registered.
var ErrUsernameTaken = errors.New("users: username already taken")

// ErrUsernameInvalid indicates the username fails shape validation.
var ErrUsernameInvalid = errors.New("users: username must be 3-64 word characters")

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,64}$`)

// ValidUsername reports whether the username satisfies the naming rules.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}
