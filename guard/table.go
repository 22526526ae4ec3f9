package guard

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tvshows/authclient/session"
)

// Access kinds accepted in route tables.
const (
	AccessPublic     = "public"
	AccessSession    = "session"
	AccessRoles      = "roles"
	AccessCapability = "capability"
)

// ErrInvalidTable is returned for malformed route tables.
var ErrInvalidTable = errors.New("invalid route table")

// Route is one entry of a route table.
type Route struct {
	Path       string   `yaml:"path" toml:"path"`
	Access     string   `yaml:"access" toml:"access"`
	Roles      []string `yaml:"roles,omitempty" toml:"roles,omitempty"`
	Capability string   `yaml:"capability,omitempty" toml:"capability,omitempty"`
	// Denied overrides the table's denied path for this route.
	Denied string `yaml:"denied,omitempty" toml:"denied,omitempty"`
}

// Table is a navigation route table.
type Table struct {
	Login    string  `yaml:"login" toml:"login"`
	Fallback string  `yaml:"fallback" toml:"fallback"`
	Denied   string  `yaml:"denied" toml:"denied"`
	Routes   []Route `yaml:"routes" toml:"routes"`
}

// DefaultTable returns the catalog web app's routes.
func DefaultTable() Table {
	return Table{
		Login:    "/login",
		Fallback: "/dashboard",
		Denied:   "/upgrade",
		Routes: []Route{
			{Path: "/login", Access: AccessPublic},
			{Path: "/register", Access: AccessPublic},
			{Path: "/dashboard", Access: AccessSession},
			{Path: "/reviews", Access: AccessSession},
			{Path: "/reviews/new", Access: AccessCapability, Capability: "review.author"},
			{Path: "/upgrade", Access: AccessSession},
			{Path: "/watchlist", Access: AccessSession},
			{Path: "/admin", Access: AccessRoles, Roles: []string{string(session.RoleAdmin)}, Denied: "/upgrade"},
		},
	}
}

// LoadTable reads a route table from a .yaml, .yml or .toml file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read route table: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return Table{}, fmt.Errorf("%w: unsupported extension %q", ErrInvalidTable, filepath.Ext(path))
	}
}

// ParseYAML decodes a YAML route table. Unknown keys are rejected.
func ParseYAML(data []byte) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return t, t.Validate()
}

// ParseTOML decodes a TOML route table. Unknown keys are rejected.
func ParseTOML(data []byte) (Table, error) {
	var t Table
	md, err := toml.Decode(string(data), &t)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Table{}, fmt.Errorf("%w: unknown key %q", ErrInvalidTable, undecoded[0].String())
	}
	return t, t.Validate()
}

// Validate checks the table's structure. Capability names are checked when
// the table is compiled by [NewNavigator].
func (t Table) Validate() error {
	if !strings.HasPrefix(t.Login, "/") || !strings.HasPrefix(t.Fallback, "/") {
		return fmt.Errorf("%w: login and fallback must be absolute paths", ErrInvalidTable)
	}
	seen := make(map[string]struct{}, len(t.Routes))
	for _, r := range t.Routes {
		p := normalize(r.Path)
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: route path %q must be absolute", ErrInvalidTable, r.Path)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: duplicate route %q", ErrInvalidTable, p)
		}
		seen[p] = struct{}{}

		switch r.Access {
		case AccessPublic, AccessSession:
		case AccessRoles:
			if len(r.Roles) == 0 {
				return fmt.Errorf("%w: route %q needs roles", ErrInvalidTable, p)
			}
			for _, role := range r.Roles {
				if _, ok := session.ParseRole(role); !ok {
					return fmt.Errorf("%w: route %q has unknown role %q", ErrInvalidTable, p, role)
				}
			}
		case AccessCapability:
			if r.Capability == "" {
				return fmt.Errorf("%w: route %q needs a capability", ErrInvalidTable, p)
			}
		default:
			return fmt.Errorf("%w: route %q has unknown access %q", ErrInvalidTable, p, r.Access)
		}

		if r.Access != AccessPublic && r.Access != AccessSession && r.Denied == "" && t.Denied == "" {
			return fmt.Errorf("%w: route %q needs a denied path", ErrInvalidTable, p)
		}
	}
	if _, ok := seen[normalize(t.Fallback)]; !ok {
		return fmt.Errorf("%w: fallback %q is not a route", ErrInvalidTable, t.Fallback)
	}
	if _, ok := seen[normalize(t.Login)]; !ok {
		return fmt.Errorf("%w: login %q is not a route", ErrInvalidTable, t.Login)
	}
	return nil
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
