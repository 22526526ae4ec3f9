package guard

import (
	"fmt"

	"github.com/tvshows/authclient/permission"
	"github.com/tvshows/authclient/session"
)

// maxHops bounds redirect chains followed by [Navigator.Navigate].
const maxHops = 4

// Source is the part of the session store a navigator reads.
type Source interface {
	Current() (session.Session, bool)
	Subscribe(l session.Listener) (unsubscribe func())
}

// Navigator evaluates a compiled route table against a session source.
type Navigator struct {
	source   Source
	routes   map[string]Guard
	login    string
	fallback string
}

// NewNavigator compiles table. Capabilities are resolved through rm, or the
// default tier table when rm is nil.
func NewNavigator(source Source, rm *permission.RoleManager, table Table) (*Navigator, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if rm == nil {
		rm = permission.Defaults()
	}
	n := &Navigator{
		source:   source,
		routes:   make(map[string]Guard, len(table.Routes)),
		login:    normalize(table.Login),
		fallback: normalize(table.Fallback),
	}
	for _, r := range table.Routes {
		denied := r.Denied
		if denied == "" {
			denied = table.Denied
		}
		var g Guard
		switch r.Access {
		case AccessPublic:
			g = Public()
		case AccessSession:
			g = Presence(n.login)
		case AccessRoles:
			roles := make([]session.Role, 0, len(r.Roles))
			for _, raw := range r.Roles {
				role, _ := session.ParseRole(raw)
				roles = append(roles, role)
			}
			g = Roles(roles, denied, n.login)
		case AccessCapability:
			var err error
			if g, err = Capability(rm, r.Capability, denied, n.login); err != nil {
				return nil, fmt.Errorf("route %q: %w", r.Path, err)
			}
		}
		n.routes[normalize(r.Path)] = g
	}
	return n, nil
}

// LoginPath returns the path signed-out users are sent to.
func (n *Navigator) LoginPath() string {
	return n.login
}

// Admit evaluates path against the current session.
func (n *Navigator) Admit(path string) Decision {
	cur, ok := n.source.Current()
	if !ok {
		return n.evaluate(path, nil)
	}
	return n.evaluate(path, &cur)
}

func (n *Navigator) evaluate(path string, s *session.Session) Decision {
	g, ok := n.routes[normalize(path)]
	if !ok {
		return redirect(n.fallback, ReasonUnknownRoute)
	}
	return g(s)
}

// Navigate follows redirects from path and returns where the user lands,
// together with the first decision taken.
func (n *Navigator) Navigate(path string) (string, Decision) {
	cur, ok := n.source.Current()
	var s *session.Session
	if ok {
		s = &cur
	}

	first := n.evaluate(path, s)
	d := first
	target := normalize(path)
	for hop := 0; !d.Admitted && hop < maxHops; hop++ {
		target = d.Redirect
		d = n.evaluate(target, s)
	}
	return target, first
}

// Watch calls fn with the decision for path now and after every session
// change, until the returned function is called. fn must not change the
// session or start another watch synchronously.
func (n *Navigator) Watch(path string, fn func(Decision)) (unsubscribe func()) {
	return n.source.Subscribe(func(s *session.Session) {
		fn(n.evaluate(path, s))
	})
}
