package authclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tvshows/authclient/internal/audit"
	"github.com/tvshows/authclient/session"
)

// UpgradeMembership moves a FREE member to PREMIUM. It records the upgrade
// with the user service, flips the account's membership with the auth service
// and then refreshes so the session carries the new tier.
func (c *Client) UpgradeMembership(ctx context.Context) (session.Session, error) {
	if c.closed.Load() {
		return session.Session{}, ErrClientNotReady
	}
	cur, ok := c.store.Current()
	if !ok {
		return session.Session{}, ErrUnauthenticated
	}
	if cur.Role.AtLeast(session.RolePremium) {
		return session.Session{}, ErrAlreadyPremium
	}

	next, err := c.upgrade(ctx, cur)
	event := audit.Event{
		EventType: audit.EventUpgrade,
		Identity:  cur.Identity,
		Role:      string(cur.Role),
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	} else {
		event.Metadata = map[string]string{"new_role": string(next.Role)}
		c.metrics.Inc(MetricMembershipUpgrade)
	}
	c.audit.Emit(ctx, event)
	return next, err
}

func (c *Client) upgrade(ctx context.Context, cur session.Session) (session.Session, error) {
	if err := c.Do(ctx, http.MethodPost, c.cfg.Endpoints.UpgradeProfile, nil, nil); err != nil {
		return session.Session{}, fmt.Errorf("upgrade membership: %w", err)
	}
	if err := c.Do(ctx, http.MethodPost, expandPath(c.cfg.Endpoints.UpgradeAccount, cur.Identity), nil, nil); err != nil {
		return session.Session{}, fmt.Errorf("upgrade membership: %w", err)
	}
	next, err := c.refresher.Refresh(ctx)
	if err != nil {
		return session.Session{}, fmt.Errorf("upgrade membership: %w", err)
	}
	return next, nil
}
