// Package session tracks whether an admin session is live and exposes it as
// the switch that turns the message subscription on and off.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/broadcast"
	"portfolio-backend/pkg/logger"
)

// DefaultLoadingTimeout bounds how long the UI waits for the first session
// notification.
const DefaultLoadingTimeout = 3 * time.Second

// Provider is the identity provider as consumed by the gate.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	// SignInWithProvider runs a federated sign-in; a user abort is reported
	// as domain.ErrUserCancelled.
	SignInWithProvider(ctx context.Context, provider string) (*domain.Session, error)
	// WatchSession emits the current session (nil when signed out) and every
	// change after it, until ctx is done.
	WatchSession(ctx context.Context) (<-chan *domain.Session, error)
	SignOut(ctx context.Context) error
}

type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return "loading"
}

// Status is a point-in-time view of the gate. Loading is the UI flag and may
// turn false through the timeout while State is still StateLoading.
type Status struct {
	State   State
	Loading bool
	Session *domain.Session
	// Epoch identifies the authenticated period. It changes on every new
	// sign-in, so a watcher that missed the sign-out in between can tell.
	Epoch uint64
}

func (s Status) Authenticated() bool { return s.State == StateAuthenticated }

// UserID is empty unless authenticated.
func (s Status) UserID() string {
	if s.State != StateAuthenticated || s.Session == nil {
		return ""
	}
	return s.Session.UserID
}

// Gate is acquired with Start and released with Stop.
type Gate struct {
	provider Provider
	timeout  time.Duration

	mu      sync.Mutex
	status  Status
	epoch   uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool

	updates  *broadcast.Broadcaster[Status]
	stopOnce sync.Once
}

type Option func(*Gate)

// WithLoadingTimeout overrides DefaultLoadingTimeout.
func WithLoadingTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

func NewGate(p Provider, opts ...Option) *Gate {
	g := &Gate{
		provider: p,
		timeout:  DefaultLoadingTimeout,
		status:   Status{State: StateLoading, Loading: true},
		updates:  broadcast.New[Status](),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	g.updates.Publish(g.status)
	return g
}

// Start begins listening for session changes. A provider error is logged and
// leaves the gate in StateLoading; the timeout still clears the flag.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started || g.stopped {
		g.mu.Unlock()
		return errors.New("session gate already started")
	}
	g.started = true
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.timer = time.AfterFunc(g.timeout, g.loadingTimedOut)
	g.mu.Unlock()

	ch, err := g.provider.WatchSession(ctx)
	if err != nil {
		logger.Log.Warn("Session watch failed", "error", err)
		close(g.done)
		return fmt.Errorf("watch session: %w", err)
	}

	go func() {
		defer close(g.done)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-ch:
				if !ok {
					return
				}
				g.apply(s)
			}
		}
	}()
	return nil
}

// Stop cancels the listener and the pending timeout. Later calls are no-ops.
func (g *Gate) Stop() {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		g.stopped = true
		if g.timer != nil {
			g.timer.Stop()
		}
		cancel := g.cancel
		started := g.started
		g.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if started {
			<-g.done
		}
		g.updates.Close()
	})
}

func (g *Gate) loadingTimedOut() {
	g.mu.Lock()
	if g.stopped || !g.status.Loading {
		g.mu.Unlock()
		return
	}
	g.status.Loading = false
	g.updates.Publish(g.status)
	g.mu.Unlock()

	logger.Log.Debug("Session loading timed out")
}

func (g *Gate) apply(s *domain.Session) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	if s != nil {
		if !g.status.Authenticated() || g.status.UserID() != s.UserID {
			g.epoch++
		}
		g.status = Status{State: StateAuthenticated, Session: s, Epoch: g.epoch}
	} else {
		g.status = Status{State: StateUnauthenticated}
	}
	// Published under the lock so subscribers see changes in order.
	g.updates.Publish(g.status)
	g.mu.Unlock()
}

// Status returns the current status.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Watch streams status changes, starting with the current one.
func (g *Gate) Watch() (<-chan Status, func()) {
	return g.updates.Subscribe()
}

// SignInWithPassword returns a *domain.AuthError on failure.
func (g *Gate) SignInWithPassword(ctx context.Context, email, password string) error {
	s, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return classify(err)
	}
	g.apply(s)
	return nil
}

// SignInWithProvider returns a *domain.AuthError on failure; a user abort
// has kind domain.AuthUserCancelled.
func (g *Gate) SignInWithProvider(ctx context.Context, provider string) error {
	s, err := g.provider.SignInWithProvider(ctx, provider)
	if err != nil {
		return classify(err)
	}
	g.apply(s)
	return nil
}

// SignOut flips to unauthenticated only after the provider confirms. On
// failure the current state is kept.
func (g *Gate) SignOut(ctx context.Context) error {
	if err := g.provider.SignOut(ctx); err != nil {
		logger.Log.Warn("Sign out failed", "error", err)
		return err
	}
	g.apply(nil)
	return nil
}

func classify(err error) error {
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		return err
	}
	return &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
}
