package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tvshows/authclient/session"
)

func signedIn(t *testing.T, role session.Role) *session.Store {
	t.Helper()
	store := session.NewStore(nil)
	err := store.Set(context.Background(), session.Session{
		Identity:          "alice",
		Role:              role,
		Membership:        session.MembershipFor(role),
		AccessCredential:  "access-0",
		RefreshCredential: "refresh-0",
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	return store
}

type countingExchanger struct {
	calls   atomic.Int32
	role    session.Role
	err     error
	release chan struct{}
}

func (c *countingExchanger) Refresh(ctx context.Context, refreshCredential string) (session.Session, error) {
	n := c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return session.Session{}, c.err
	}
	role := c.role
	if role == "" {
		role = session.RoleFree
	}
	return session.Session{
		Identity:          "alice",
		Role:              role,
		Membership:        session.MembershipFor(role),
		AccessCredential:  fmt.Sprintf("access-%d", n),
		RefreshCredential: fmt.Sprintf("refresh-%d", n),
	}, nil
}

func TestRefreshWithoutSessionSkipsExchange(t *testing.T) {
	ex := &countingExchanger{}
	p := New(session.NewStore(nil), ex)

	_, err := p.Refresh(context.Background())
	if !errors.Is(err, ErrNoSession) || !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrNoSession wrapped in ErrRefreshFailed, got %v", err)
	}
	if KindOf(err) != FailureNoSession {
		t.Fatalf("expected FailureNoSession, got %s", KindOf(err))
	}
	if ex.calls.Load() != 0 {
		t.Fatal("exchange must not run without a session")
	}
}

func TestRefreshReplacesSessionWholesale(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	ex := &countingExchanger{role: session.RolePremium}
	p := New(store, ex)

	next, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cur, _ := store.Current()
	if cur != next {
		t.Fatalf("store not updated: %+v vs %+v", cur, next)
	}
	if cur.Role != session.RolePremium || cur.Membership != session.MembershipPremium {
		t.Fatalf("expected role and membership from the new session, got %+v", cur)
	}
	if cur.AccessCredential == "access-0" || cur.RefreshCredential == "refresh-0" {
		t.Fatalf("expected both credentials rotated, got %+v", cur)
	}
}

func TestRefreshFailureLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{name: "rejected", err: fmt.Errorf("status 401: %w", ErrRejected), kind: FailureRejected},
		{name: "transport", err: errors.New("connection reset"), kind: FailureTransport},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := signedIn(t, session.RoleFree)
			before, _ := store.Current()
			var observed []Result
			p := New(store, &countingExchanger{err: tc.err}, WithObserver(func(r Result) { observed = append(observed, r) }))

			_, err := p.Refresh(context.Background())
			if !errors.Is(err, ErrRefreshFailed) {
				t.Fatalf("expected ErrRefreshFailed, got %v", err)
			}
			if KindOf(err) != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, KindOf(err))
			}
			if after, ok := store.Current(); !ok || after != before {
				t.Fatalf("store mutated on failure: %+v", after)
			}
			if len(observed) != 1 || observed[0].Failure != tc.kind {
				t.Fatalf("unexpected observations %+v", observed)
			}
		})
	}
}

func TestRefreshRejectsIncompleteServerSession(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	p := New(store, ExchangerFunc(func(context.Context, string) (session.Session, error) {
		return session.Session{Identity: "alice", Role: session.RoleFree, AccessCredential: "a"}, nil
	}))

	_, err := p.Refresh(context.Background())
	if KindOf(err) != FailureInvalidSession || !errors.Is(err, session.ErrIncompleteSession) {
		t.Fatalf("expected invalid session failure, got %v", err)
	}
	if cur, _ := store.Current(); cur.AccessCredential != "access-0" {
		t.Fatal("store mutated on invalid session")
	}
}

func TestRefreshAfterConcurrentLogoutDoesNotResurrect(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	p := New(store, ExchangerFunc(func(ctx context.Context, _ string) (session.Session, error) {
		store.Clear(ctx)
		return session.Session{Identity: "alice", Role: session.RoleFree, AccessCredential: "a", RefreshCredential: "r"}, nil
	}))

	if _, err := p.Refresh(context.Background()); KindOf(err) != FailureNoSession {
		t.Fatalf("expected FailureNoSession, got %v", err)
	}
	if _, ok := store.Current(); ok {
		t.Fatal("logout must win over a racing refresh")
	}
}

func TestRefreshDoesNotOverwriteAnotherIdentity(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	bob := session.Session{
		Identity:          "bob",
		Role:              session.RoleAdmin,
		Membership:        session.MembershipFor(session.RoleAdmin),
		AccessCredential:  "bob-access",
		RefreshCredential: "bob-refresh",
	}
	p := New(store, ExchangerFunc(func(ctx context.Context, _ string) (session.Session, error) {
		store.Clear(ctx)
		if err := store.Set(ctx, bob); err != nil {
			t.Errorf("set bob: %v", err)
		}
		return session.Session{Identity: "alice", Role: session.RoleFree, AccessCredential: "access-1", RefreshCredential: "refresh-1"}, nil
	}))

	_, err := p.Refresh(context.Background())
	if KindOf(err) != FailureNoSession || !errors.Is(err, session.ErrSuperseded) {
		t.Fatalf("expected superseded failure, got %v", err)
	}
	if cur, _ := store.Current(); cur != bob {
		t.Fatalf("expected bob to stay signed in, got %+v", cur)
	}
}

func TestRefreshDoesNotOverwriteNewLogin(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	relogin := session.Session{
		Identity:          "alice",
		Role:              session.RolePremium,
		Membership:        session.MembershipPremium,
		AccessCredential:  "access-relogin",
		RefreshCredential: "refresh-relogin",
	}
	p := New(store, ExchangerFunc(func(ctx context.Context, _ string) (session.Session, error) {
		store.Clear(ctx)
		_ = store.Set(ctx, relogin)
		return session.Session{Identity: "alice", Role: session.RoleFree, AccessCredential: "access-1", RefreshCredential: "refresh-1"}, nil
	}))

	if _, err := p.Refresh(context.Background()); !errors.Is(err, session.ErrSuperseded) {
		t.Fatalf("expected superseded failure, got %v", err)
	}
	if cur, _ := store.Current(); cur != relogin {
		t.Fatalf("expected the new login to survive, got %+v", cur)
	}
}

func TestRenewRejectsStaleSessionOfAnotherIdentity(t *testing.T) {
	for _, dedup := range []bool{true, false} {
		t.Run(fmt.Sprintf("dedup=%v", dedup), func(t *testing.T) {
			store := signedIn(t, session.RoleFree)
			stale, _ := store.Current()
			bob := session.Session{
				Identity:          "bob",
				Role:              session.RoleAdmin,
				Membership:        session.MembershipFor(session.RoleAdmin),
				AccessCredential:  "bob-access",
				RefreshCredential: "bob-refresh",
			}
			_ = store.Set(context.Background(), bob)
			ex := &countingExchanger{}
			p := New(store, ex, WithDeduplication(dedup))

			next, err := p.Renew(context.Background(), stale)
			if KindOf(err) != FailureNoSession || !errors.Is(err, session.ErrSuperseded) {
				t.Fatalf("expected superseded failure, got %v (%+v)", err, next)
			}
			if ex.calls.Load() != 0 {
				t.Fatal("no exchange for another identity's session")
			}
			if cur, _ := store.Current(); cur != bob {
				t.Fatalf("expected bob untouched, got %+v", cur)
			}
		})
	}
}

func TestConcurrentRefreshSharesOneExchange(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	ex := &countingExchanger{release: make(chan struct{})}
	p := New(store, ex)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]session.Session, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Refresh(context.Background())
		}(i)
	}

	// Let every caller join the in-flight exchange before it completes.
	deadline := time.After(2 * time.Second)
	for ex.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("exchange never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	if n := ex.calls.Load(); n != 1 {
		t.Fatalf("expected one exchange, got %d", n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d saw a different session", i)
		}
	}
}

func TestRefreshWithoutDedupExchangesPerCaller(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	ex := &countingExchanger{}
	p := New(store, ex, WithDeduplication(false))
	if p.Deduplicating() {
		t.Fatal("expected dedup disabled")
	}

	for i := 0; i < 3; i++ {
		if _, err := p.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh #%d: %v", i+1, err)
		}
	}
	if n := ex.calls.Load(); n != 3 {
		t.Fatalf("expected 3 exchanges, got %d", n)
	}
}

func TestCanceledWaiterDoesNotAbortSharedExchange(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	ex := &countingExchanger{release: make(chan struct{})}
	p := New(store, ex)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Refresh(ctx)
		done <- err
	}()
	for ex.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled waiter, got %v", err)
	}

	close(ex.release)
	deadline := time.After(2 * time.Second)
	for {
		if cur, _ := store.Current(); cur.AccessCredential == "access-1" {
			return
		}
		select {
		case <-deadline:
			t.Fatal("shared exchange did not complete")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRenewSkipsExchangeWhenAlreadyRotated(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	ex := &countingExchanger{}
	p := New(store, ex)

	stale, _ := store.Current()
	first, err := p.Renew(context.Background(), stale)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	second, err := p.Renew(context.Background(), stale)
	if err != nil {
		t.Fatalf("second renew: %v", err)
	}
	if n := ex.calls.Load(); n != 1 {
		t.Fatalf("expected one exchange for the same stale session, got %d", n)
	}
	if first != second {
		t.Fatalf("expected both callers to get %+v, got %+v", first, second)
	}
}

func TestRenewWithoutDedupAlwaysExchanges(t *testing.T) {
	store := signedIn(t, session.RoleFree)
	ex := &countingExchanger{}
	p := New(store, ex, WithDeduplication(false))

	stale, _ := store.Current()
	_, _ = p.Renew(context.Background(), stale)
	_, _ = p.Renew(context.Background(), stale)
	if n := ex.calls.Load(); n != 2 {
		t.Fatalf("expected 2 exchanges, got %d", n)
	}
}
