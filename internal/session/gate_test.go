package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	sessions   chan *domain.Session
	watchErr   error
	signInErr  error
	signOutErr error
	signedOut  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(chan *domain.Session, 4)}
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &domain.Session{UserID: "admin-1", Email: email}, nil
}

func (f *fakeProvider) SignInWithProvider(ctx context.Context, provider string) (*domain.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &domain.Session{UserID: "admin-1"}, nil
}

func (f *fakeProvider) WatchSession(ctx context.Context) (<-chan *domain.Session, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	return f.sessions, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.signedOut++
	return f.signOutErr
}

func waitFor(t *testing.T, g *Gate, cond func(Status) bool) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		st = g.Status()
		return cond(st)
	}, time.Second, 5*time.Millisecond)
	return st
}

func TestGateStartsLoading(t *testing.T) {
	g := NewGate(newFakeProvider())
	st := g.Status()
	assert.Equal(t, StateLoading, st.State)
	assert.True(t, st.Loading)
	assert.False(t, st.Authenticated())
}

func TestGateFollowsNotifications(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p)
	require.NoError(t, g.Start(context.Background()))
	defer g.Stop()

	p.sessions <- &domain.Session{UserID: "admin-1"}
	st := waitFor(t, g, Status.Authenticated)
	assert.False(t, st.Loading)
	assert.Equal(t, "admin-1", st.UserID())

	p.sessions <- nil
	st = waitFor(t, g, func(s Status) bool { return s.State == StateUnauthenticated })
	assert.Equal(t, "", st.UserID())
}

func TestGateEpochPerSignIn(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p)
	require.NoError(t, g.Start(context.Background()))
	defer g.Stop()

	sessionWith := func(user, email string) func(Status) bool {
		return func(s Status) bool {
			return s.Authenticated() && s.Session.UserID == user && s.Session.Email == email
		}
	}

	p.sessions <- &domain.Session{UserID: "admin-1", Email: "first"}
	first := waitFor(t, g, sessionWith("admin-1", "first")).Epoch
	assert.NotZero(t, first)

	// A refreshed notification for the same session keeps the epoch.
	p.sessions <- &domain.Session{UserID: "admin-1", Email: "refreshed"}
	assert.Equal(t, first, waitFor(t, g, sessionWith("admin-1", "refreshed")).Epoch)

	p.sessions <- nil
	p.sessions <- &domain.Session{UserID: "admin-1", Email: "again"}
	again := waitFor(t, g, sessionWith("admin-1", "again")).Epoch
	assert.Greater(t, again, first)

	p.sessions <- &domain.Session{UserID: "admin-2", Email: "other"}
	assert.Greater(t, waitFor(t, g, sessionWith("admin-2", "other")).Epoch, again)
}

func TestGateLoadingTimeout(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, WithLoadingTimeout(20*time.Millisecond))
	require.NoError(t, g.Start(context.Background()))
	defer g.Stop()

	st := waitFor(t, g, func(s Status) bool { return !s.Loading })
	assert.Equal(t, StateLoading, st.State)
}

func TestGateWatchErrorStaysLoading(t *testing.T) {
	p := newFakeProvider()
	p.watchErr = errors.New("provider down")
	g := NewGate(p, WithLoadingTimeout(20*time.Millisecond))

	err := g.Start(context.Background())
	require.Error(t, err)

	st := waitFor(t, g, func(s Status) bool { return !s.Loading })
	assert.Equal(t, StateLoading, st.State)
	g.Stop()
}

func TestGateStopCancelsTimeout(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p, WithLoadingTimeout(20*time.Millisecond))
	require.NoError(t, g.Start(context.Background()))
	g.Stop()
	g.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, g.Status().Loading)

	// Notifications after stop are ignored.
	p.sessions <- &domain.Session{UserID: "admin-1"}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateLoading, g.Status().State)
	assert.Error(t, g.Start(context.Background()))
}

func TestGateSignOut(t *testing.T) {
	t.Run("Success flips to unauthenticated", func(t *testing.T) {
		p := newFakeProvider()
		g := NewGate(p)
		require.NoError(t, g.SignInWithPassword(context.Background(), "admin@example.com", "secret"))
		require.True(t, g.Status().Authenticated())

		require.NoError(t, g.SignOut(context.Background()))
		assert.Equal(t, StateUnauthenticated, g.Status().State)
		assert.Equal(t, 1, p.signedOut)
	})

	t.Run("Failure keeps authenticated", func(t *testing.T) {
		p := newFakeProvider()
		g := NewGate(p)
		require.NoError(t, g.SignInWithPassword(context.Background(), "admin@example.com", "secret"))

		p.signOutErr = errors.New("network")
		assert.Error(t, g.SignOut(context.Background()))
		assert.True(t, g.Status().Authenticated())
	})
}

func TestGateSignInClassifiesErrors(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p)

	p.signInErr = domain.ErrInvalidCredentials
	err := g.SignInWithPassword(context.Background(), "a@b.co", "bad")
	assert.Equal(t, domain.AuthInvalidCredentials, domain.AuthKind(err))

	p.signInErr = domain.ErrUserCancelled
	err = g.SignInWithProvider(context.Background(), "google")
	assert.ErrorIs(t, err, domain.ErrUserCancelled)

	p.signInErr = errors.New("timeout")
	err = g.SignInWithPassword(context.Background(), "a@b.co", "bad")
	assert.Equal(t, domain.AuthUnknown, domain.AuthKind(err))

	assert.False(t, g.Status().Authenticated())
}

func TestGateWatch(t *testing.T) {
	p := newFakeProvider()
	g := NewGate(p)
	ch, cancel := g.Watch()
	defer cancel()

	first := <-ch
	assert.Equal(t, StateLoading, first.State)

	require.NoError(t, g.SignInWithPassword(context.Background(), "admin@example.com", "secret"))
	next := <-ch
	assert.True(t, next.Authenticated())

	g.Stop()
	_, ok := <-ch
	assert.False(t, ok)
}
