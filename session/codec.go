package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	schemaVersionCurrent = 1
	schemaVersionLegacy  = 0
)

// CurrentSchemaVersion is the schema written by [Encode].
const CurrentSchemaVersion = schemaVersionCurrent

// ErrUnsupportedSchema is returned by [Decode] for records written by a newer
// client.
var ErrUnsupportedSchema = errors.New("unsupported session schema version")

type record struct {
	Version           int    `json:"v"`
	Identity          string `json:"identity"`
	Role              string `json:"role"`
	Membership        string `json:"membership,omitempty"`
	AccessCredential  string `json:"access"`
	RefreshCredential string `json:"refresh"`
	UserID            string `json:"user_id,omitempty"`
	Email             string `json:"email,omitempty"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
}

// legacyRecord is the login payload the web client kept verbatim under the same
// key before records were versioned.
type legacyRecord struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	Membership   string `json:"membership"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Encode serializes a complete session using the current schema.
func Encode(s Session) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(record{
		Version:           schemaVersionCurrent,
		Identity:          s.Identity,
		Role:              string(s.Role),
		Membership:        string(s.Membership),
		AccessCredential:  s.AccessCredential,
		RefreshCredential: s.RefreshCredential,
		UserID:            s.UserID,
		Email:             s.Email,
		FirstName:         s.FirstName,
		LastName:          s.LastName,
	})
}

// Decode parses a stored record, migrating legacy payloads forward. The result
// is always a complete session or an error.
func Decode(data []byte) (Session, error) {
	s, _, err := decodeVersioned(data)
	return s, err
}

func decodeVersioned(data []byte) (Session, int, error) {
	var probe struct {
		Version *int `json:"v"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Session{}, 0, fmt.Errorf("decode session: %w", err)
	}

	version := schemaVersionLegacy
	if probe.Version != nil {
		version = *probe.Version
	}

	var s Session
	switch version {
	case schemaVersionCurrent:
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return Session{}, 0, fmt.Errorf("decode session: %w", err)
		}
		role, ok := ParseRole(rec.Role)
		if !ok {
			return Session{}, 0, errors.Join(ErrIncompleteSession, fmt.Errorf("unknown role %q", rec.Role))
		}
		s = Session{
			Identity:          rec.Identity,
			Role:              role,
			Membership:        Membership(rec.Membership),
			AccessCredential:  rec.AccessCredential,
			RefreshCredential: rec.RefreshCredential,
			UserID:            rec.UserID,
			Email:             rec.Email,
			FirstName:         rec.FirstName,
			LastName:          rec.LastName,
		}
	case schemaVersionLegacy:
		var rec legacyRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return Session{}, 0, fmt.Errorf("decode legacy session: %w", err)
		}
		s = Session{
			Identity:          rec.Username,
			Role:              ResolveRole(rec.Role, rec.Membership),
			Membership:        Membership(rec.Membership),
			AccessCredential:  rec.Token,
			RefreshCredential: rec.RefreshToken,
			UserID:            rec.ID,
			Email:             rec.Email,
			FirstName:         rec.FirstName,
			LastName:          rec.LastName,
		}
	default:
		return Session{}, 0, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	if err := s.Validate(); err != nil {
		return Session{}, 0, err
	}
	return s, version, nil
}
