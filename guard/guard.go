package guard

import (
	"fmt"

	"github.com/tvshows/authclient/permission"
	"github.com/tvshows/authclient/session"
)

// Reason explains a [Decision].
type Reason int

const (
	ReasonAdmitted Reason = iota
	ReasonNoSession
	ReasonInsufficientRole
	ReasonUnknownRoute
)

func (r Reason) String() string {
	switch r {
	case ReasonAdmitted:
		return "admitted"
	case ReasonNoSession:
		return "no_session"
	case ReasonInsufficientRole:
		return "insufficient_role"
	case ReasonUnknownRoute:
		return "unknown_route"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Decision is the outcome of evaluating a guard. Redirect is set when
// Admitted is false.
type Decision struct {
	Admitted bool
	Redirect string
	Reason   Reason
}

func admit() Decision {
	return Decision{Admitted: true, Reason: ReasonAdmitted}
}

func redirect(to string, reason Reason) Decision {
	return Decision{Redirect: to, Reason: reason}
}

// Guard evaluates a session snapshot; nil means signed out.
type Guard func(s *session.Session) Decision

// Public admits everyone.
func Public() Guard {
	return func(*session.Session) Decision { return admit() }
}

// Presence admits any signed-in user and sends everyone else to loginPath.
func Presence(loginPath string) Guard {
	return func(s *session.Session) Decision {
		if s == nil {
			return redirect(loginPath, ReasonNoSession)
		}
		return admit()
	}
}

// Roles admits signed-in users whose tier is one of roles. Signed-out users go
// to loginPath, others to deniedPath.
func Roles(roles []session.Role, deniedPath, loginPath string) Guard {
	allowed := make(map[session.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(s *session.Session) Decision {
		if s == nil {
			return redirect(loginPath, ReasonNoSession)
		}
		if _, ok := allowed[s.Role]; !ok {
			return redirect(deniedPath, ReasonInsufficientRole)
		}
		return admit()
	}
}

// Capability admits signed-in users whose tier holds capability in rm.
func Capability(rm *permission.RoleManager, capability, deniedPath, loginPath string) (Guard, error) {
	bit, ok := rm.Registry().Bit(capability)
	if !ok {
		return nil, fmt.Errorf("%w: %q", permission.ErrUnknownCapability, capability)
	}
	return func(s *session.Session) Decision {
		if s == nil {
			return redirect(loginPath, ReasonNoSession)
		}
		mask, _ := rm.Mask(s.Role)
		if !mask.Has(bit) {
			return redirect(deniedPath, ReasonInsufficientRole)
		}
		return admit()
	}, nil
}
