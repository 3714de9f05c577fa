package mailbox

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the requested message does not exist.
var ErrNotFound = errors.New("message not found")

// AuthError indicates that the provider rejected the credentials. The
// session's tokens have already been cleared when it is returned.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("unauthorized (%s): %s", e.Provider, e.Message)
}

// IsUnauthorized reports whether err (or any error in its chain) is an
// AuthError.
func IsUnauthorized(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ValidationError reports draft fields that were empty or unsafe.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s (%s)", e.Reason, strings.Join(e.Fields, ", "))
}
