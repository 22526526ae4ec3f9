package authclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tvshows/authclient/permission"
	"github.com/tvshows/authclient/refresh"
)

var (
	// ErrUnauthenticated is returned by gated operations when nobody is signed in.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrUnauthorized matches API responses with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshFailed is returned when credential renewal fails; the session
	// has been cleared by the time a dispatched request returns it.
	ErrRefreshFailed = refresh.ErrRefreshFailed
	// ErrNoSession is returned by Refresh when there is nothing to refresh.
	ErrNoSession = refresh.ErrNoSession
	// ErrForbidden is returned when the signed-in tier lacks a capability, and
	// matches API responses with status 403.
	ErrForbidden = errors.New("forbidden")
	// ErrTransport wraps network failures other than timeouts.
	ErrTransport = errors.New("transport failure")
	// ErrTimeout wraps requests that exceeded the request timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrInvalidCredentials is returned by Login when the server rejects the
	// username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrClientNotReady is returned by every operation after Close.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrUnknownCapability is returned for capability names missing from the
	// tier table.
	ErrUnknownCapability = permission.ErrUnknownCapability
	// ErrAlreadyPremium is returned by UpgradeMembership for PREMIUM and ADMIN
	// sessions.
	ErrAlreadyPremium = errors.New("already a premium member")
)

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Is maps HTTP statuses onto the client's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}
