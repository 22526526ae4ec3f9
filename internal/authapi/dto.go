package authapi

import (
	"strings"

	"github.com/tvshows/authclient/session"
)

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SignUp is the registration request body.
type SignUp struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Login is the payload returned by login and refresh.
type Login struct {
	ID           string `json:"id,omitempty"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role"`
	Membership   string `json:"membership,omitempty"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// User is the account payload returned by register, lookup and promotion.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Membership string `json:"membership,omitempty"`
}

// Tier resolves the account's role and membership to a tier.
func (u User) Tier() session.Role {
	return session.ResolveRole(u.Role, u.Membership)
}

// ErrorBody is the server's error envelope.
type ErrorBody struct {
	Message string `json:"message"`
}

// Session converts a login payload into a client session. The result is not
// validated here.
func (l Login) Session() session.Session {
	role := session.ResolveRole(l.Role, l.Membership)
	membership := session.Membership(strings.ToUpper(strings.TrimSpace(l.Membership)))
	if membership != session.MembershipFree && membership != session.MembershipPremium {
		membership = session.MembershipFor(role)
	}
	return session.Session{
		Identity:          l.Username,
		Role:              role,
		Membership:        membership,
		AccessCredential:  l.Token,
		RefreshCredential: l.RefreshToken,
		UserID:            l.ID,
		Email:             l.Email,
		FirstName:         l.FirstName,
		LastName:          l.LastName,
	}
}
