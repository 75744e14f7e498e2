package api

import (
	"errors"
	"fmt"
)

// AuthError indicates the bearer credential was missing, expired, or
// rejected. It is the only condition that forces navigation back to the
// login flow; callers must route it through the session invalidation
// path rather than handling it locally.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates the operation referenced an id the server
// does not know. Non-fatal; surfaced as a user message.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IsNotFound reports whether err chains to a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// RemoteError is any other REST failure. Message carries the server
// envelope's user-facing error string when the server provided one.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// UserMessage returns the text suitable for a user-visible notification:
// the server-reported reason if present, else a generic failure message.
func UserMessage(err error) string {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		return remoteErr.Message
	}
	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return nfErr.Error()
	}
	return "operation failed, please try again"
}
