package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tvshows/authclient/internal/password"
	"github.com/tvshows/authclient/internal/rate"
	"github.com/tvshows/authclient/jwt"
)

// Account roles and memberships as the auth service reports them.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	MembershipFree    = "FREE"
	MembershipPremium = "PREMIUM"
)

// FreeWatchlistLimit caps FREE members' watchlists.
const FreeWatchlistLimit = 10

// Route names accepted by [Server.Calls].
const (
	RouteLogin          = "login"
	RouteRegister       = "register"
	RouteRefresh        = "refresh"
	RouteUser           = "user"
	RouteUsers          = "users"
	RoutePromote        = "promote"
	RouteUpgradeAccount = "upgrade_account"
	RouteUpgradeProfile = "upgrade_profile"
	RouteWatchlist      = "watchlist"
)

var routeNames = []string{
	RouteLogin, RouteRegister, RouteRefresh, RouteUser, RouteUsers,
	RoutePromote, RouteUpgradeAccount, RouteUpgradeProfile, RouteWatchlist,
}

// Seed describes an account created at start-up.
type Seed struct {
	Username   string
	Password   string
	FirstName  string
	LastName   string
	Email      string
	Role       string
	Membership string
}

// DefaultSeeds returns one account per tier.
func DefaultSeeds() []Seed {
	return []Seed{
		{Username: "admin", Password: "admin-password", FirstName: "Ada", LastName: "Admin", Email: "admin@tvshows.local", Role: RoleAdmin, Membership: MembershipPremium},
		{Username: "premium", Password: "premium-password", FirstName: "Pat", LastName: "Premium", Email: "premium@tvshows.local", Role: RoleUser, Membership: MembershipPremium},
		{Username: "free", Password: "free-password", FirstName: "Fran", LastName: "Free", Email: "free@tvshows.local", Role: RoleUser, Membership: MembershipFree},
	}
}

// Config configures a [Server].
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Redis enables the failed-login lockout when set.
	Redis            redis.UniversalClient
	MaxLoginAttempts int
	LoginWindow      time.Duration

	// RequestsPerMinute throttles each client IP. Zero disables throttling.
	RequestsPerMinute int

	Seeds  []Seed
	Logger zerolog.Logger
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() Config {
	return Config{
		Secret:     []byte("tvshows-development-secret"),
		Issuer:     "tvshows-dev",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Seeds:      DefaultSeeds(),
		Logger:     zerolog.Nop(),
	}
}

type account struct {
	id              string
	username        string
	firstName       string
	lastName        string
	email           string
	hash            string
	role            string
	membership      string
	profileUpgraded bool
	watchlist       []string
}

type refreshGrant struct {
	username string
	expires  time.Time
}

// Server is the in-memory auth and user service.
type Server struct {
	cfg     Config
	log     zerolog.Logger
	tokens  *jwt.Manager
	hasher  *password.Hasher
	limiter *rate.Limiter
	router  chi.Router
	now     func() time.Time

	mu       sync.Mutex
	users    map[string]*account
	grants   map[string]refreshGrant
	live     map[string]string
	nextID   int
	delay    time.Duration
	failNext int

	calls map[string]*atomic.Int64
}

// New builds a server and hashes its seed accounts.
func New(cfg Config) (*Server, error) {
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("devserver: RefreshTTL must be > 0")
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL: cfg.AccessTTL,
		Secret:    cfg.Secret,
		Issuer:    cfg.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("devserver: %w", err)
	}
	hasher, err := password.NewHasher(password.DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("devserver: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		tokens: tokens,
		hasher: hasher,
		now:    time.Now,
		users:  make(map[string]*account),
		grants: make(map[string]refreshGrant),
		live:   make(map[string]string),
		calls:  make(map[string]*atomic.Int64, len(routeNames)),
	}
	for _, name := range routeNames {
		s.calls[name] = &atomic.Int64{}
	}
	if cfg.Redis != nil {
		s.limiter = rate.New(cfg.Redis, rate.Config{
			MaxAttempts: cfg.MaxLoginAttempts,
			Window:      cfg.LoginWindow,
		})
	}
	for _, seed := range cfg.Seeds {
		if err := s.AddUser(seed); err != nil {
			return nil, err
		}
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.cfg.RequestsPerMinute > 0 {
		r.Use(httprate.Limit(s.cfg.RequestsPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "Too many requests")
			}),
		))
	}

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/auth/users", s.handleListUsers)
		r.Post("/api/auth/users/{username}/upgrade", s.handleUpgradeAccount)
		r.Post("/api/auth/promote/{username}", s.handlePromote)
		r.Get("/api/auth/{username}", s.handleGetUser)
		r.Post("/api/users/upgrade", s.handleUpgradeProfile)
		r.Get("/api/watchlist", s.handleGetWatchlist)
		r.Post("/api/watchlist", s.handleAddToWatchlist)
	})
	return r
}

// AddUser creates an account. Usernames are unique.
func (s *Server) AddUser(seed Seed) error {
	if strings.TrimSpace(seed.Username) == "" {
		return errors.New("devserver: username required")
	}
	hash, err := s.hasher.Hash(seed.Password)
	if err != nil {
		return fmt.Errorf("devserver: %s: %w", seed.Username, err)
	}
	role := strings.ToUpper(seed.Role)
	if role != RoleAdmin {
		role = RoleUser
	}
	membership := strings.ToUpper(seed.Membership)
	if membership != MembershipPremium {
		membership = MembershipFree
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[seed.Username]; exists {
		return fmt.Errorf("devserver: user %q already exists", seed.Username)
	}
	s.nextID++
	s.users[seed.Username] = &account{
		id:         strconv.Itoa(s.nextID),
		username:   seed.Username,
		firstName:  seed.FirstName,
		lastName:   seed.LastName,
		email:      seed.Email,
		hash:       hash,
		role:       role,
		membership: membership,
	}
	return nil
}

// RevokeRefresh invalidates every outstanding refresh token for username.
func (s *Server) RevokeRefresh(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, grant := range s.grants {
		if grant.username == username {
			delete(s.grants, token)
		}
	}
}

// ExpireAccess invalidates every outstanding access token for username, so
// the next request with one is answered with 401.
func (s *Server) ExpireAccess(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.live {
		if owner == username {
			delete(s.live, token)
		}
	}
}

// SetRefreshDelay makes every refresh exchange wait d before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// FailRefreshes makes the next n refresh exchanges answer 503.
func (s *Server) FailRefreshes(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// RouteNames lists every route name in registration order.
func RouteNames() []string {
	out := make([]string, len(routeNames))
	copy(out, routeNames)
	return out
}

// Calls returns how many requests reached the named route.
func (s *Server) Calls(route string) int64 {
	c, ok := s.calls[route]
	if !ok {
		return 0
	}
	return c.Load()
}

func (s *Server) count(route string) {
	if c, ok := s.calls[route]; ok {
		c.Add(1)
	}
}
