package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Listener receives the current session, or nil once logged out.
type Listener func(s *Session)

// PersistOp names the durable-storage operation reported to the persist-error hook.
type PersistOp string

const (
	PersistLoad   PersistOp = "load"
	PersistSave   PersistOp = "save"
	PersistDelete PersistOp = "delete"
)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.log = logger
	}
}

// WithPersistErrorHook registers fn to be called whenever durable storage fails.
// The in-memory state is already updated when fn runs.
func WithPersistErrorHook(fn func(op PersistOp, err error)) Option {
	return func(s *Store) {
		s.onPersistError = fn
	}
}

type subscription struct {
	id       uint64
	listener Listener
	active   atomic.Bool
}

// Store is the single source of truth for the current [Session].
//
// All mutation goes through [Store.Set], [Store.Replace] and [Store.Clear].
// These, together with [Store.Subscribe] and [Store.Restore], are serialized so
// listeners see changes in order. Listeners may call [Store.Current] and
// unsubscribe from inside the callback. They must not call any other Store
// method synchronously, including Subscribe and anything built on it such as
// a navigator watch; hand such work to another goroutine.
type Store struct {
	persister      Persister
	log            zerolog.Logger
	onPersistError func(PersistOp, error)

	writeMu sync.Mutex

	mu        sync.RWMutex
	current   *Session
	subs      []*subscription
	nextSubID uint64
}

// NewStore creates an empty store writing through to p. A nil p keeps the
// session in memory only.
func NewStore(p Persister, opts ...Option) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	s := &Store{
		persister: p,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the latest accepted session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Subscribe registers l, immediately delivers the current value to it, and then
// delivers every subsequent change until the returned function is called.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.nextSubID++
	sub := &subscription{id: s.nextSubID, listener: l}
	sub.active.Store(true)
	s.subs = append(s.subs, sub)
	current := copySession(s.current)
	s.mu.Unlock()

	l(current)

	return func() { s.unsubscribe(sub.id) }
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			sub.active.Store(false)
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Set replaces the current session, persists it and notifies listeners. Only
// incomplete sessions are rejected; persistence failures are logged, not
// returned.
func (s *Store) Set(ctx context.Context, next Session) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.current = copySession(&next)
	s.mu.Unlock()

	s.save(ctx, next)
	s.notify()
	return nil
}

// Replace stores next only while match accepts the current session. With no
// session, or when match rejects it, the store is left untouched and
// [ErrSuperseded] is returned. match runs under the store lock and must not
// call back into the store.
func (s *Store) Replace(ctx context.Context, next Session, match func(current Session) bool) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.current == nil || !match(*s.current) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.current = copySession(&next)
	s.mu.Unlock()

	s.save(ctx, next)
	s.notify()
	return nil
}

// Clear removes the session from memory and durable storage and notifies
// listeners with nil.
func (s *Store) Clear(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.clearLocked(ctx)
}

// ClearIf clears the session only when match accepts it, and reports whether
// it did.
func (s *Store) ClearIf(ctx context.Context, match func(current Session) bool) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if cur, ok := s.Current(); !ok || !match(cur) {
		return false
	}
	s.clearLocked(ctx)
	return true
}

func (s *Store) clearLocked(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.persister.Delete(ctx); err != nil {
		s.persistFailed(PersistDelete, err)
	}
	s.notify()
}

// Restore loads the durable record. Any failure is treated as "no session".
// Legacy records are rewritten in the current schema; undecodable records are
// removed.
func (s *Store) Restore(ctx context.Context) (Session, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	restored, ok := s.load(ctx)

	s.mu.Lock()
	if ok {
		s.current = copySession(&restored)
	} else {
		s.current = nil
	}
	s.mu.Unlock()

	s.notify()
	return restored, ok
}

func (s *Store) load(ctx context.Context) (Session, bool) {
	data, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return Session{}, false
	}
	if err != nil {
		s.persistFailed(PersistLoad, err)
		return Session{}, false
	}

	restored, version, err := decodeVersioned(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("session: discarding unreadable record")
		if delErr := s.persister.Delete(ctx); delErr != nil {
			s.persistFailed(PersistDelete, delErr)
		}
		return Session{}, false
	}

	if version != CurrentSchemaVersion {
		s.save(ctx, restored)
	}
	return restored, true
}

func (s *Store) save(ctx context.Context, next Session) {
	data, err := Encode(next)
	if err == nil {
		err = s.persister.Save(ctx, data)
	}
	if err != nil {
		s.persistFailed(PersistSave, err)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	current := s.current
	s.mu.RUnlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		sub.listener(copySession(current))
	}
}

func (s *Store) persistFailed(op PersistOp, err error) {
	s.log.Warn().Err(err).Str("op", string(op)).Msg("session: durable storage failed")
	if s.onPersistError != nil {
		s.onPersistError(op, err)
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
