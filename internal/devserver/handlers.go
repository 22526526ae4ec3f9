package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tvshows/authclient/internal/rate"
)

const supportedVersion = "v1"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signUp struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userDTO struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Membership string `json:"membership"`
}

type loginDTO struct {
	userDTO
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type watchlistDTO struct {
	Items []string `json:"items"`
	Limit int      `json:"limit,omitempty"`
}

type watchlistAdd struct {
	ShowID string `json:"showId"`
}

func (a *account) dto() userDTO {
	return userDTO{
		ID:         a.id,
		Username:   a.username,
		FirstName:  a.firstName,
		LastName:   a.lastName,
		Email:      a.email,
		Role:       a.role,
		Membership: a.membership,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.count(RouteLogin)
	if !checkVersion(w, r) {
		return
	}
	var in credentials
	if !decode(w, r, &in) {
		return
	}

	ctx := r.Context()
	ip := clientIP(r)
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, in.Username, ip); errors.Is(err, rate.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "Too many failed login attempts")
			return
		} else if err != nil {
			s.log.Warn().Err(err).Msg("devserver: login limiter unavailable")
		}
	}

	s.mu.Lock()
	acct, ok := s.users[in.Username]
	var hash string
	if ok {
		hash = acct.hash
	}
	s.mu.Unlock()

	if !ok {
		s.loginFailed(ctx, in.Username, ip)
		writeError(w, http.StatusNotFound, "Unknown user")
		return
	}
	if match, err := s.hasher.Verify(in.Password, hash); err != nil || !match {
		s.loginFailed(ctx, in.Username, ip)
		writeError(w, http.StatusBadGateway, "Invalid password")
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, in.Username, ip); err != nil {
			s.log.Warn().Err(err).Msg("devserver: login limiter reset failed")
		}
	}

	out, err := s.issue(in.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loginFailed(ctx context.Context, username, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Fail(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		s.log.Warn().Err(err).Msg("devserver: login limiter unavailable")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.count(RouteRegister)
	if !checkVersion(w, r) {
		return
	}
	var in signUp
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Username) == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	s.mu.Lock()
	_, exists := s.users[in.Username]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}

	err := s.AddUser(Seed{
		Username:   in.Username,
		Password:   in.Password,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Role:       RoleUser,
		Membership: MembershipFree,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	out := s.users[in.Username].dto()
	s.mu.Unlock()
	w.Header().Set("Location", "/users/"+out.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.count(RouteRefresh)
	var in refreshRequest
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	delay := s.delay
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusServiceUnavailable, "Auth service unavailable")
		return
	}

	s.mu.Lock()
	grant, ok := s.grants[in.RefreshToken]
	if ok {
		delete(s.grants, in.RefreshToken)
	}
	s.mu.Unlock()

	if !ok || s.now().After(grant.expires) {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	out, err := s.issue(grant.username)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// issue mints an access token and a single-use refresh token for username.
func (s *Server) issue(username string) (loginDTO, error) {
	s.mu.Lock()
	acct, ok := s.users[username]
	if !ok {
		s.mu.Unlock()
		return loginDTO{}, errors.New("unknown user")
	}
	dto := acct.dto()
	s.mu.Unlock()

	access, err := s.tokens.CreateAccess(dto.Username, dto.Role, dto.Membership)
	if err != nil {
		return loginDTO{}, err
	}
	refreshToken := uuid.NewString()

	s.mu.Lock()
	s.live[access] = dto.Username
	s.grants[refreshToken] = refreshGrant{username: dto.Username, expires: s.now().Add(s.cfg.RefreshTTL)}
	s.mu.Unlock()

	return loginDTO{userDTO: dto, Token: access, RefreshToken: refreshToken}, nil
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.count(RouteUser)
	s.mu.Lock()
	acct, ok := s.users[chi.URLParam(r, "username")]
	var out userDTO
	if ok {
		out = acct.dto()
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown user")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.count(RouteUsers)
	if r.Header.Get("X-Auth-Role") != RoleAdmin {
		writeError(w, http.StatusForbidden, "Insufficient permissions: ADMIN role required to view all users")
		return
	}
	caller := principalFrom(r.Context())

	s.mu.Lock()
	out := make([]userDTO, 0, len(s.users))
	for name, acct := range s.users {
		if name != caller {
			out = append(out, acct.dto())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	s.count(RoutePromote)
	if r.Header.Get("X-Auth-Role") != RoleAdmin {
		writeError(w, http.StatusForbidden, "Insufficient permissions: ADMIN role required to promote users")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[chi.URLParam(r, "username")]
	var out userDTO
	if ok {
		acct.role = RoleAdmin
		out = acct.dto()
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown user")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpgradeAccount(w http.ResponseWriter, r *http.Request) {
	s.count(RouteUpgradeAccount)
	target := chi.URLParam(r, "username")
	if caller := principalFrom(r.Context()); caller != target && r.Header.Get("X-Auth-Role") != RoleAdmin {
		writeError(w, http.StatusForbidden, "Cannot upgrade another user")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[target]
	if ok {
		acct.membership = MembershipPremium
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpgradeProfile(w http.ResponseWriter, r *http.Request) {
	s.count(RouteUpgradeProfile)
	s.mu.Lock()
	if acct, ok := s.users[principalFrom(r.Context())]; ok {
		acct.profileUpgraded = true
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	s.count(RouteWatchlist)
	s.mu.Lock()
	out := watchlistOf(s.users[principalFrom(r.Context())])
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	s.count(RouteWatchlist)
	var in watchlistAdd
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.ShowID) == "" {
		writeError(w, http.StatusBadRequest, "showId is required")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[principalFrom(r.Context())]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Unknown user")
		return
	}
	if limit := watchlistLimit(acct); limit > 0 && len(acct.watchlist) >= limit {
		s.mu.Unlock()
		writeError(w, http.StatusForbidden, "Watchlist limit reached")
		return
	}
	acct.watchlist = append(acct.watchlist, in.ShowID)
	out := watchlistOf(acct)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func watchlistLimit(a *account) int {
	if a.role == RoleAdmin || a.membership == MembershipPremium {
		return 0
	}
	return FreeWatchlistLimit
}

func watchlistOf(a *account) watchlistDTO {
	if a == nil {
		return watchlistDTO{Items: []string{}}
	}
	items := append([]string{}, a.watchlist...)
	return watchlistDTO{Items: items, Limit: watchlistLimit(a)}
}

func checkVersion(w http.ResponseWriter, r *http.Request) bool {
	v := r.Header.Get("X-API-Version")
	if v == "" || v == supportedVersion {
		return true
	}
	writeError(w, http.StatusBadRequest, "Unsupported API version: "+v)
	return false
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
