package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/store"
)

// ErrStaleLoad is what a Target returns when a finished load was discarded.
// The loader treats it as a normal outcome.
var ErrStaleLoad = errors.New("stale load discarded")

// Loader consumes session events and keeps a Target in step with them.
type Loader struct {
	provider Provider
	target   Target
	profiles store.Profiles
	logger   *log.Logger
	timeout  time.Duration

	mu       sync.RWMutex
	state    State
	session  *core.Session
	onChange []func(State)

	loads sync.WaitGroup
}

type LoaderOption func(*Loader)

// WithProfiles makes the loader ensure a profile row on every sign-in.
func WithProfiles(p store.Profiles) LoaderOption {
	return func(l *Loader) { l.profiles = p }
}

func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithLoadTimeout bounds each triggered load. Zero means no bound.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

func NewLoader(provider Provider, target Target, opts ...LoaderOption) *Loader {
	l := &Loader{
		provider: provider,
		target:   target,
		logger:   log.Default(log.ComponentSession),
		state:    Unknown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current authentication state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Ready reports whether the first session event has been resolved.
func (l *Loader) Ready() bool {
	return l.State() != Unknown
}

// Session returns the session seen with the last event, or nil.
func (l *Loader) Session() *core.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// OnChange registers fn to be called after every state transition.
// Must be called before Run.
func (l *Loader) OnChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Run subscribes to the provider and handles events until ctx is done or
// the subscription closes. Loads it started keep running after Run returns;
// use Wait to drain them.
func (l *Loader) Run(ctx context.Context) error {
	events, unsubscribe := l.provider.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.Handle(ev)
		}
	}
}

// Handle applies a single session event.
func (l *Loader) Handle(ev core.SessionEvent) {
	switch {
	case ev.Kind == core.SignedOut, ev.Session == nil:
		l.enterSignedOut(ev)
	case ev.Kind == core.InitialSession, ev.Kind == core.SignedIn:
		l.enterSignedIn(ev)
	default:
		l.logger.Warn("Ignoring unknown session event", "kind", ev.Kind)
	}
}

func (l *Loader) enterSignedOut(ev core.SessionEvent) {
	// Clear before publishing the state so observers never see SignedOut
	// with data still in the target.
	l.target.Clear()
	l.transition(SignedOut, nil)
	l.logger.Info("Session ended, ledger cleared", "kind", ev.Kind)
}

func (l *Loader) enterSignedIn(ev core.SessionEvent) {
	sess := ev.Session
	l.transition(SignedIn, sess)
	l.logger.Info("Session active, loading ledger",
		"kind", ev.Kind,
		log.FieldSessionID, sess.ID,
		log.FieldOwnerID, sess.UserID)

	l.loads.Add(1)
	go func() {
		defer l.loads.Done()
		// Independent of Run's context: a later event never cancels an
		// in-flight load, the target decides which result wins.
		ctx := context.Background()
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		if l.profiles != nil {
			if _, err := l.profiles.EnsureProfile(ctx, sess.UserID, displayName(sess)); err != nil {
				l.logger.Error("Failed to ensure profile", log.FieldOwnerID, sess.UserID, "error", err)
			}
		}
		if err := l.target.Load(ctx); err != nil {
			if errors.Is(err, ErrStaleLoad) {
				l.logger.Debug("Load superseded", log.FieldSessionID, sess.ID)
				return
			}
			l.logger.Error("Ledger load failed", log.FieldSessionID, sess.ID, "error", err)
		}
	}()
}

func (l *Loader) transition(state State, sess *core.Session) {
	l.mu.Lock()
	l.state = state
	l.session = sess
	hooks := append([]func(State){}, l.onChange...)
	l.mu.Unlock()

	for _, fn := range hooks {
		fn(state)
	}
}

// Wait blocks until every load started so far has finished.
func (l *Loader) Wait() {
	l.loads.Wait()
}

func displayName(s *core.Session) string {
	for i, r := range s.Email {
		if r == '@' {
			return s.Email[:i]
		}
	}
	return s.Email
}
