package session

import (
	"errors"
	"strings"
)

// ErrIncompleteSession is returned when a session is missing identity, role or
// either credential.
var ErrIncompleteSession = errors.New("incomplete session")

// ErrSuperseded is returned by [Store.Replace] when the session it was meant to
// replace is no longer current.
var ErrSuperseded = errors.New("session superseded")

// Role is the membership tier that gates client capabilities.
type Role string

const (
	// RoleFree is the default tier with a capped watchlist.
	RoleFree Role = "FREE"
	// RolePremium adds review authoring and an unlimited watchlist.
	RolePremium Role = "PREMIUM"
	// RoleAdmin adds moderation on top of everything PREMIUM can do.
	RoleAdmin Role = "ADMIN"
)

// Membership is the paid-plan flag reported by the server alongside the role.
type Membership string

const (
	MembershipFree    Membership = "FREE"
	MembershipPremium Membership = "PREMIUM"
)

// FreeWatchlistLimit caps the number of watchlist entries for FREE members.
const FreeWatchlistLimit = 10

// Valid reports whether r is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleFree, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// AtLeast reports whether r ranks at or above min (FREE < PREMIUM < ADMIN).
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.Valid()
}

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RolePremium:
		return 2
	case RoleFree:
		return 1
	}
	return 0
}

// ParseRole normalizes a role string. Unknown values report false.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// ResolveRole maps the server's role and membership pair onto a tier.
// The auth service reports ADMIN/USER roles and FREE/PREMIUM memberships;
// newer payloads may already carry the tier in the role field.
func ResolveRole(role, membership string) Role {
	if r, ok := ParseRole(role); ok {
		return r
	}
	if strings.EqualFold(strings.TrimSpace(membership), string(MembershipPremium)) {
		return RolePremium
	}
	return RoleFree
}

// MembershipFor derives the membership echoed for a role when the server did not
// report one.
func MembershipFor(r Role) Membership {
	if r == RolePremium {
		return MembershipPremium
	}
	return MembershipFree
}

// WatchlistLimit returns the maximum number of watchlist entries for r, or 0 for
// unlimited.
func WatchlistLimit(r Role) int {
	if r.AtLeast(RolePremium) {
		return 0
	}
	return FreeWatchlistLimit
}

// Session is the authenticated identity plus its two credentials.
//
// Session values are immutable once accepted by a [Store]; a refresh replaces
// the whole value.
type Session struct {
	Identity          string
	Role              Role
	Membership        Membership
	AccessCredential  string
	RefreshCredential string

	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// Validate checks that every required field is populated.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Identity) == "" {
		return errors.Join(ErrIncompleteSession, errors.New("identity empty"))
	}
	if !s.Role.Valid() {
		return errors.Join(ErrIncompleteSession, errors.New("role invalid"))
	}
	if s.AccessCredential == "" {
		return errors.Join(ErrIncompleteSession, errors.New("access credential empty"))
	}
	if s.RefreshCredential == "" {
		return errors.Join(ErrIncompleteSession, errors.New("refresh credential empty"))
	}
	return nil
}

// EffectiveMembership returns the reported membership, falling back to the
// role-derived value.
func (s Session) EffectiveMembership() Membership {
	if s.Membership != "" {
		return s.Membership
	}
	return MembershipFor(s.Role)
}

// String renders the session without credentials.
func (s Session) String() string {
	return "session{identity=" + s.Identity + " role=" + string(s.Role) + " membership=" + string(s.EffectiveMembership()) + "}"
}
