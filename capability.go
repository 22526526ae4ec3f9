package authclient

import (
	"fmt"

	"github.com/tvshows/authclient/session"
)

// Can reports whether the current session's tier grants capability. It
// reports false without error when nobody is signed in, and fails for
// capabilities missing from the tier table.
func (c *Client) Can(capability string) (bool, error) {
	if _, ok := c.roles.Registry().Bit(capability); !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}
	s, ok := c.store.Current()
	if !ok {
		return false, nil
	}
	return c.roles.Allows(s.Role, capability)
}

// Require returns nil when the current session grants capability,
// [ErrUnauthenticated] without a session, and an error wrapping
// [ErrForbidden] otherwise.
func (c *Client) Require(capability string) error {
	if c.closed.Load() {
		return ErrClientNotReady
	}
	allowed, err := c.Can(capability)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	c.metrics.Inc(MetricCapabilityDenied)
	s, ok := c.store.Current()
	if !ok {
		return ErrUnauthenticated
	}
	return fmt.Errorf("%w: %s lacks %s", ErrForbidden, s.Role, capability)
}

// WatchlistLimit returns the watchlist cap for the current session, 0 meaning
// unlimited.
func (c *Client) WatchlistLimit() (int, error) {
	s, ok := c.store.Current()
	if !ok {
		return 0, ErrUnauthenticated
	}
	return session.WatchlistLimit(s.Role), nil
}
