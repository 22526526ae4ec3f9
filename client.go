package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tvshows/authclient/guard"
	"github.com/tvshows/authclient/internal/audit"
	"github.com/tvshows/authclient/internal/authapi"
	"github.com/tvshows/authclient/permission"
	"github.com/tvshows/authclient/refresh"
	"github.com/tvshows/authclient/session"
)

// Client is the authenticated entry point to the catalog API. It owns the
// session store, the refresh protocol, the request dispatcher and the route
// guards.
//
// A Client is safe for concurrent use once built.
type Client struct {
	cfg Config
	log zerolog.Logger

	store      *session.Store
	refresher  *refresh.Protocol
	api        *authapi.Client
	roles      *permission.RoleManager
	navigator  *guard.Navigator
	dispatcher *dispatcher
	httpClient *http.Client

	metrics *Metrics
	audit   *audit.Dispatcher

	closers []func() error
	closed  atomic.Bool
	now     func() time.Time
}

// SignUp is the registration form.
type SignUp = authapi.SignUp

// User is an account as reported by the auth service.
type User struct {
	ID         string
	Username   string
	FirstName  string
	LastName   string
	Email      string
	Role       session.Role
	Membership session.Membership
}

func userFrom(u authapi.User) User {
	role := u.Tier()
	membership := session.Membership(strings.ToUpper(strings.TrimSpace(u.Membership)))
	if membership != session.MembershipFree && membership != session.MembershipPremium {
		membership = session.MembershipFor(role)
	}
	return User{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Role:       role,
		Membership: membership,
	}
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// Session returns the current session, if any.
func (c *Client) Session() (session.Session, bool) {
	return c.store.Current()
}

// Subscribe registers l for session changes. l is called immediately with the
// current value.
func (c *Client) Subscribe(l session.Listener) (unsubscribe func()) {
	return c.store.Subscribe(l)
}

// Restore loads the persisted session. Unreadable or missing records leave the
// client logged out.
func (c *Client) Restore(ctx context.Context) (session.Session, bool) {
	if c.closed.Load() {
		return session.Session{}, false
	}
	s, ok := c.store.Restore(ctx)
	if !ok {
		c.metrics.Inc(MetricRestoreEmpty)
		return s, false
	}
	c.metrics.Inc(MetricRestoreSuccess)
	c.audit.Emit(ctx, audit.Event{
		EventType: audit.EventRestore,
		Identity:  s.Identity,
		Role:      string(s.Role),
		Success:   true,
	})
	return s, true
}

// Login exchanges a username and password for a session and stores it.
// Rejected credentials return [ErrInvalidCredentials].
func (c *Client) Login(ctx context.Context, username, password string) (session.Session, error) {
	if c.closed.Load() {
		return session.Session{}, ErrClientNotReady
	}

	payload, err := c.api.Login(ctx, authapi.Credentials{Username: username, Password: password})
	if err == nil {
		next := payload.Session()
		if err = c.store.Set(ctx, next); err == nil {
			c.metrics.Inc(MetricLoginSuccess)
			c.audit.Emit(ctx, audit.Event{
				EventType: audit.EventLogin,
				Identity:  next.Identity,
				Role:      string(next.Role),
				Success:   true,
			})
			c.log.Info().Str("identity", next.Identity).Str("role", string(next.Role)).Msg("login succeeded")
			return next, nil
		}
		err = fmt.Errorf("login: %w", err)
	} else {
		err = c.loginError(ctx, err)
	}

	c.metrics.Inc(MetricLoginFailure)
	c.audit.Emit(ctx, audit.Event{
		EventType: audit.EventLogin,
		Identity:  username,
		Error:     err.Error(),
	})
	return session.Session{}, err
}

func (c *Client) loginError(ctx context.Context, err error) error {
	switch authapi.StatusOf(err) {
	case 0:
		return c.dispatcher.classify(ctx, err)
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusBadGateway:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return c.apiError(http.MethodPost, c.cfg.Endpoints.Login, err)
}

// Logout clears the session locally. The server is not contacted.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientNotReady
	}
	prev, ok := c.store.Current()
	c.store.Clear(ctx)
	if !ok {
		return nil
	}
	c.metrics.Inc(MetricLogout)
	c.audit.Emit(ctx, audit.Event{
		EventType: audit.EventLogout,
		Identity:  prev.Identity,
		Role:      string(prev.Role),
		Success:   true,
	})
	return nil
}

// Refresh renews the session's credentials. Unlike a refresh triggered by a
// 401, a failure here leaves the session in place.
func (c *Client) Refresh(ctx context.Context) (session.Session, error) {
	if c.closed.Load() {
		return session.Session{}, ErrClientNotReady
	}
	return c.refresher.Refresh(ctx)
}

// Register creates an account. The new user is not signed in.
func (c *Client) Register(ctx context.Context, in SignUp) (User, error) {
	if c.closed.Load() {
		return User{}, ErrClientNotReady
	}
	u, err := c.api.Register(ctx, in)
	if err != nil {
		if authapi.StatusOf(err) == 0 {
			return User{}, c.dispatcher.classify(ctx, err)
		}
		return User{}, c.apiError(http.MethodPost, c.cfg.Endpoints.Register, err)
	}
	return userFrom(u), nil
}

// GetUser fetches an account through the dispatcher.
func (c *Client) GetUser(ctx context.Context, username string) (User, error) {
	var out authapi.User
	if err := c.Do(ctx, http.MethodGet, expandPath(c.cfg.Endpoints.User, username), nil, &out); err != nil {
		return User{}, err
	}
	return userFrom(out), nil
}

// Promote grants ADMIN to username. The current session must hold
// [permission.AccountPromote].
func (c *Client) Promote(ctx context.Context, username string) (User, error) {
	if err := c.Require(permission.AccountPromote); err != nil {
		return User{}, err
	}
	var out authapi.User
	err := c.Do(ctx, http.MethodPost, expandPath(c.cfg.Endpoints.Promote, username), nil, &out)

	actor, _ := c.store.Current()
	event := audit.Event{
		EventType: audit.EventPromote,
		Identity:  actor.Identity,
		Role:      string(actor.Role),
		Success:   err == nil,
		Metadata:  map[string]string{"target": username},
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.audit.Emit(ctx, event)

	if err != nil {
		return User{}, err
	}
	return userFrom(out), nil
}

// ListUsers returns every account except the caller's. The current session
// must hold [permission.AccountList].
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	if err := c.Require(permission.AccountList); err != nil {
		return nil, err
	}
	var out []authapi.User
	if err := c.Do(ctx, http.MethodGet, c.cfg.Endpoints.Users, nil, &out); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(out))
	for _, u := range out {
		users = append(users, userFrom(u))
	}
	return users, nil
}

// Navigator returns the route guard evaluator bound to this client's session.
func (c *Client) Navigator() *guard.Navigator {
	return c.navigator
}

// Admit evaluates the guard for path against the current session.
func (c *Client) Admit(path string) guard.Decision {
	return c.navigator.Admit(path)
}

// HTTPClient returns an http.Client whose transport is the dispatcher.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Transport returns the dispatcher for use in caller-built http.Clients.
func (c *Client) Transport() http.RoundTripper {
	return c.dispatcher
}

// Metrics returns the client's counters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events discarded on a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes audit events and releases owned resources. The session is
// left in durable storage.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.audit.Close()
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) exchange(ctx context.Context, refreshCredential string) (session.Session, error) {
	payload, err := c.api.Refresh(ctx, refreshCredential)
	if err != nil {
		if status := authapi.StatusOf(err); status >= 400 && status < 500 {
			return session.Session{}, fmt.Errorf("%w: %w", refresh.ErrRejected, err)
		}
		if authapi.StatusOf(err) == 0 {
			return session.Session{}, c.dispatcher.classify(ctx, err)
		}
		return session.Session{}, c.apiError(http.MethodPost, c.cfg.Endpoints.Refresh, err)
	}
	return payload.Session(), nil
}

func (c *Client) observeRefresh(res refresh.Result) {
	if res.Failure == refresh.FailureNone {
		c.metrics.Inc(MetricRefreshSuccess)
		if res.Shared {
			c.metrics.Inc(MetricRefreshShared)
			return
		}
	} else {
		c.metrics.Inc(MetricRefreshFailure)
		if res.Shared {
			return
		}
	}

	event := audit.Event{
		EventType: audit.EventRefresh,
		Identity:  res.Identity,
		Role:      string(res.Session.Role),
		Success:   res.Failure == refresh.FailureNone,
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
		event.Metadata = map[string]string{"failure": res.Failure.String()}
	} else if res.Previous != "" && res.Previous != res.Session.Role {
		event.Metadata = map[string]string{"previous_role": string(res.Previous)}
	}
	c.audit.Emit(context.Background(), event)
}

func (c *Client) apiError(method, path string, err error) error {
	var se *authapi.StatusError
	if !errors.As(err, &se) {
		return err
	}
	return &APIError{Method: method, Path: path, Status: se.Status, Message: se.Message}
}

// expandPath substitutes the escaped username into a {username} template.
func expandPath(template, username string) string {
	return strings.ReplaceAll(template, "{username}", url.PathEscape(username))
}
