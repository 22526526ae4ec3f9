package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tvshows/authclient/session"
)

// Exchanger trades a refresh credential for a new session.
//
// Implementations return an error wrapping [ErrRejected] when the server
// refused the credential; any other error is treated as a transport failure.
type Exchanger interface {
	Refresh(ctx context.Context, refreshCredential string) (session.Session, error)
}

// ExchangerFunc adapts a function to [Exchanger].
type ExchangerFunc func(ctx context.Context, refreshCredential string) (session.Session, error)

func (f ExchangerFunc) Refresh(ctx context.Context, refreshCredential string) (session.Session, error) {
	return f(ctx, refreshCredential)
}

// Store is the part of [session.Store] the protocol needs.
type Store interface {
	Current() (session.Session, bool)
	Replace(ctx context.Context, next session.Session, match func(current session.Session) bool) error
}

// Result describes one completed refresh, successful or not. It is passed to
// the observer registered with [WithObserver].
type Result struct {
	Failure  FailureKind
	Err      error
	Identity string
	Previous session.Role
	Session  session.Session
	Shared   bool
	Duration time.Duration
}

// Option configures a [Protocol].
type Option func(*Protocol)

// WithDeduplication toggles sharing of concurrent exchanges. Enabled by default.
func WithDeduplication(enabled bool) Option {
	return func(p *Protocol) {
		p.dedup = enabled
	}
}

// WithLogger sets the logger for refresh outcomes.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Protocol) {
		p.log = logger
	}
}

// WithObserver registers fn to receive every refresh outcome. Shared outcomes
// are reported once per caller.
func WithObserver(fn func(Result)) Option {
	return func(p *Protocol) {
		p.observe = fn
	}
}

// Protocol runs the refresh exchange against an [Exchanger] and writes the
// rotated session back to the store.
type Protocol struct {
	store     Store
	exchanger Exchanger
	dedup     bool
	log       zerolog.Logger
	observe   func(Result)
	group     singleflight.Group
	now       func() time.Time
}

// New creates a protocol over store and exchanger.
func New(store Store, exchanger Exchanger, opts ...Option) *Protocol {
	p := &Protocol{
		store:     store,
		exchanger: exchanger,
		dedup:     true,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deduplicating reports whether concurrent exchanges are shared.
func (p *Protocol) Deduplicating() bool {
	return p.dedup
}

// Refresh exchanges the current refresh credential for a new session and
// stores it. On failure the store is left untouched. A session that was
// replaced by another identity, or by a new login while deduplicating, before
// the exchange finished is never overwritten; the caller gets a
// [FailureNoSession] error wrapping [session.ErrSuperseded].
func (p *Protocol) Refresh(ctx context.Context) (session.Session, error) {
	return p.refresh(ctx, nil)
}

// Renew replaces stale, the session a request was rejected with. When
// deduplicating and the store already holds newer credentials for the same
// identity, those are returned without another exchange. A different identity
// in the store fails with [session.ErrSuperseded].
func (p *Protocol) Renew(ctx context.Context, stale session.Session) (session.Session, error) {
	return p.refresh(ctx, &stale)
}

func (p *Protocol) refresh(ctx context.Context, stale *session.Session) (session.Session, error) {
	current, ok := p.store.Current()
	if !ok || current.RefreshCredential == "" {
		res := Result{Failure: FailureNoSession, Err: &Error{Kind: FailureNoSession, Err: ErrNoSession}}
		p.report(res)
		return session.Session{}, res.Err
	}

	if stale != nil && stale.Identity != current.Identity {
		res := Result{
			Failure:  FailureNoSession,
			Err:      &Error{Kind: FailureNoSession, Err: session.ErrSuperseded},
			Identity: stale.Identity,
			Previous: stale.Role,
		}
		p.report(res)
		return session.Session{}, res.Err
	}

	if !p.dedup {
		res := p.run(ctx, current)
		p.report(res)
		return res.Session, res.Err
	}

	if stale != nil {
		if current.AccessCredential != stale.AccessCredential {
			return current, nil
		}
		current = *stale
	}

	// The shared exchange must not die with whichever caller started it.
	ch := p.group.DoChan(current.RefreshCredential, func() (any, error) {
		return p.run(context.WithoutCancel(ctx), current), nil
	})
	select {
	case <-ctx.Done():
		err := &Error{Kind: FailureTransport, Err: ctx.Err()}
		p.report(Result{Failure: FailureTransport, Err: err, Identity: current.Identity, Previous: current.Role})
		return session.Session{}, err
	case out := <-ch:
		res := out.Val.(Result)
		res.Shared = res.Shared || out.Shared
		p.report(res)
		return res.Session, res.Err
	}
}

func (p *Protocol) run(ctx context.Context, current session.Session) Result {
	start := p.now()
	res := Result{Identity: current.Identity, Previous: current.Role}
	finish := func(kind FailureKind, err error) Result {
		res.Failure = kind
		if err != nil {
			res.Err = &Error{Kind: kind, Err: err}
			res.Session = session.Session{}
		}
		res.Duration = p.now().Sub(start)
		return res
	}

	latest, ok := p.store.Current()
	switch {
	case !ok:
		return finish(FailureNoSession, ErrNoSession)
	case latest.Identity != current.Identity:
		return finish(FailureNoSession, session.ErrSuperseded)
	case p.dedup && latest.AccessCredential != current.AccessCredential:
		// Another exchange already rotated these credentials.
		res.Session = latest
		res.Shared = true
		return finish(FailureNone, nil)
	}

	next, err := p.exchanger.Refresh(ctx, current.RefreshCredential)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return finish(FailureRejected, err)
		}
		return finish(FailureTransport, err)
	}
	if err := next.Validate(); err != nil {
		return finish(FailureInvalidSession, err)
	}

	// A logout or login that raced the exchange wins.
	err = p.store.Replace(ctx, next, func(latest session.Session) bool {
		if latest.Identity != current.Identity {
			return false
		}
		return !p.dedup || latest.RefreshCredential == current.RefreshCredential
	})
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return finish(FailureNoSession, err)
	case err != nil:
		return finish(FailureInvalidSession, err)
	}
	res.Session = next
	return finish(FailureNone, nil)
}

func (p *Protocol) report(res Result) {
	if res.Err != nil {
		p.log.Warn().
			Str("identity", res.Identity).
			Str("failure", res.Failure.String()).
			Err(res.Err).
			Msg("refresh: exchange failed")
	} else {
		ev := p.log.Debug().
			Str("identity", res.Identity).
			Str("role", string(res.Session.Role)).
			Bool("shared", res.Shared).
			Dur("took", res.Duration)
		if res.Previous != res.Session.Role {
			ev = ev.Str("previous_role", string(res.Previous))
		}
		ev.Msg("refresh: credentials rotated")
	}
	if p.observe != nil {
		p.observe(res)
	}
}
