package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config configures a [Manager].
type Config struct {
	AccessTTL time.Duration
	Secret    []byte
	Issuer    string
	Leeway    time.Duration
}

// AccessClaims are the claims carried by an access token. The subject is the
// username.
type AccessClaims struct {
	Role       string `json:"role"`
	Membership string `json:"membership,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens with a shared HS256 secret.
//
// Manager instances are configured during initialization and then treated as
// immutable.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Secret) < 16 {
		return nil, errors.New("hs256 secret must be at least 16 bytes")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	return &Manager{config: cfg, now: time.Now}, nil
}

// AccessTTL returns the configured token lifetime.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// CreateAccess signs an access token for username valid for the configured TTL.
func (j *Manager) CreateAccess(username, role, membership string) (string, error) {
	return j.CreateAccessWithTTL(username, role, membership, j.config.AccessTTL)
}

// CreateAccessWithTTL signs an access token with an explicit lifetime. Every
// token carries a unique ID. A non-positive ttl yields an already-expired token.
func (j *Manager) CreateAccessWithTTL(username, role, membership string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", errors.New("username required")
	}
	now := j.now()
	claims := AccessClaims{
		Role:       role,
		Membership: membership,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.config.Secret)
}

// ParseAccess verifies tokenStr and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
