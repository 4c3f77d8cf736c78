package boards

import (
	"errors"
	"regexp"
	"time"
)

// Board is a tenant namespace with its own configuration, roles and
// content. Settings holds the board-scope option overrides as stored.
type Board struct {
	URI         string
	Title       string
	Description string
	CreatedBy   int64
	OperatedBy  int64
	IsIndexed   bool
	IsWorksafe  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Settings    map[string]string
}

// ErrNotFound indicates the board does not exist.
var ErrNotFound = errors.New("boards: not found")

// ErrURITaken indicates the board URI is already in use.
var ErrURITaken = errors.New("boards: uri already taken")

// ErrURIInvalid indicates the board URI fails shape validation.
var ErrURIInvalid = errors.New("boards: uri must be 1-32 lowercase letters or digits")

// ErrURIBanned indicates the board URI is on the reserved list.
var ErrURIBanned = errors.New("boards: uri is reserved")

var uriPattern = regexp.MustCompile(`^[a-z0-9]{1,32}$`)

// ValidURI reports whether the URI satisfies the board naming rules.
func ValidURI(uri string) bool {
	return uriPattern.MatchString(uri)
}
