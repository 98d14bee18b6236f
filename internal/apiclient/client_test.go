package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{
		"success":    status < 300,
		"message":    http.StatusText(status),
		"request_id": "req-1",
	}
	if data != nil {
		body["data"] = data
	}
	if kind != "" {
		body["error"] = map[string]string{"kind": kind}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer good"
}

var testSession = domain.Session{UserID: "admin-1", Email: "admin@example.com", ExpiresAt: time.Now().Add(time.Hour).UTC()}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithReconnectBackoff(10*time.Millisecond, 50*time.Millisecond)}, opts...)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c, srv
}

func nextSession(t *testing.T, ch <-chan *domain.Session) *domain.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no session notification")
		return nil
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
}

func TestSignInWithPassword(t *testing.T) {
	var got loginBody
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.Password != "secret" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "invalid_credentials")
			return
		}
		writeEnvelope(w, http.StatusOK, domain.LoginResult{Token: "good", Session: testSession}, "")
	})

	tokenFile := filepath.Join(t.TempDir(), "token")
	c, _ := newTestClient(t, mux, WithTokenFile(tokenFile))

	t.Run("wrong password", func(t *testing.T) {
		_, err := c.SignInWithPassword(context.Background(), "admin@example.com", "nope")
		assert.Equal(t, domain.AuthInvalidCredentials, domain.AuthKind(err))
	})

	t.Run("one-time code on second line", func(t *testing.T) {
		s, err := c.SignInWithPassword(context.Background(), "admin@example.com", "secret\n123456")
		require.NoError(t, err)
		assert.Equal(t, "admin-1", s.UserID)
		assert.Equal(t, "123456", got.OTP)
		assert.Equal(t, "good", c.currentToken())

		b, err := os.ReadFile(tokenFile)
		require.NoError(t, err)
		assert.Equal(t, "good", strings.TrimSpace(string(b)))
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want domain.AuthErrorKind
	}{
		{&APIError{Status: 401, Kind: "invalid_credentials"}, domain.AuthInvalidCredentials},
		{&APIError{Status: 400, Kind: "validation"}, domain.AuthInvalidCredentials},
		{&APIError{Status: 429, Kind: "login_blocked"}, domain.AuthUnknown},
		{&APIError{Status: 503, Kind: "provider_disabled"}, domain.AuthUnknown},
		{errors.New("connection refused"), domain.AuthUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.AuthKind(classify(tc.err)), tc.err.Error())
	}
}

func TestWatchSession_RestoresStoredToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthenticated")
			return
		}
		writeEnvelope(w, http.StatusOK, testSession, "")
	})

	t.Run("valid token", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("good\n"), 0o600))
		c, _ := newTestClient(t, mux, WithTokenFile(tokenFile))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ch, err := c.WatchSession(ctx)
		require.NoError(t, err)

		s := nextSession(t, ch)
		require.NotNil(t, s)
		assert.Equal(t, "admin@example.com", s.Email)
	})

	t.Run("rejected token", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("stale\n"), 0o600))
		c, _ := newTestClient(t, mux, WithTokenFile(tokenFile))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ch, err := c.WatchSession(ctx)
		require.NoError(t, err)

		assert.Nil(t, nextSession(t, ch))
		assert.Empty(t, c.currentToken())
		_, err = os.Stat(tokenFile)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("no token", func(t *testing.T) {
		c, _ := newTestClient(t, mux)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ch, err := c.WatchSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, nextSession(t, ch))
	})
}

func TestSignOut(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if !authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthenticated")
			return
		}
		writeEnvelope(w, http.StatusOK, nil, "")
	})
	c, _ := newTestClient(t, mux)
	c.token = "good"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.WatchSession(ctx)
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, calls)
	assert.Empty(t, c.currentToken())
	assert.Nil(t, nextSession(t, ch))

	// Already signed out is not an error.
	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, calls)
}

func TestSignInWithProvider(t *testing.T) {
	outcomes := map[string]string{
		"ok":        "token=good",
		"cancelled": "error=user_cancelled",
		"broken":    "error=unknown",
	}

	for name, query := range outcomes {
		t.Run(name, func(t *testing.T) {
			var redirectTo string
			mux := http.NewServeMux()
			mux.HandleFunc("/v1/auth/oauth/google/start", func(w http.ResponseWriter, r *http.Request) {
				redirectTo = r.URL.Query().Get("redirect_to")
				writeEnvelope(w, http.StatusOK, map[string]string{"auth_url": "https://provider.example/consent"}, "")
			})
			mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, testSession, "")
			})

			// The fake browser follows the provider round trip straight to the callback.
			browser := func(string) error {
				go func() {
					resp, err := http.Get(redirectTo + "?" + query)
					if err == nil {
						resp.Body.Close()
					}
				}()
				return nil
			}
			c, _ := newTestClient(t, mux, WithBrowser(browser))

			s, err := c.SignInWithProvider(context.Background(), "google")
			switch name {
			case "ok":
				require.NoError(t, err)
				assert.Equal(t, "admin-1", s.UserID)
				assert.Equal(t, "good", c.currentToken())
				assert.True(t, strings.HasPrefix(redirectTo, "http://127.0.0.1:"))
			case "cancelled":
				assert.ErrorIs(t, err, domain.ErrUserCancelled)
			default:
				assert.Equal(t, domain.AuthUnknown, domain.AuthKind(err))
				assert.Empty(t, c.currentToken())
			}
		})
	}
}

func TestStoreMutations(t *testing.T) {
	var (
		mu      sync.Mutex
		created domain.NewMessage
		status  domain.UpdateStatusRequest
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/contact", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeEnvelope(w, http.StatusCreated, map[string]string{"id": "m-1"}, "")
	})
	mux.HandleFunc("/v1/admin/messages/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthenticated")
			return
		}
		if strings.Contains(r.URL.Path, "missing") {
			writeEnvelope(w, http.StatusNotFound, nil, "")
			return
		}
		if r.Method == http.MethodPatch {
			mu.Lock()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
			mu.Unlock()
		}
		writeEnvelope(w, http.StatusOK, nil, "")
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	id, err := c.Create(ctx, domain.ContactMessage{Name: "Ada", Email: "ada@example.com", Message: "Hello there, friend", Date: "2026-01-02T03:04:05.000Z"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	assert.Equal(t, "Ada", created.Name)
	assert.Equal(t, "2026-01-02T03:04:05.000Z", created.Date)

	assert.ErrorIs(t, c.UpdateStatus(ctx, "m-1", domain.StatusRead), domain.ErrNotAuthenticated)

	c.token = "good"
	require.NoError(t, c.UpdateStatus(ctx, "m-1", domain.StatusReplied))
	assert.Equal(t, domain.StatusReplied, status.Status)
	require.NoError(t, c.Delete(ctx, "m-1"))
	assert.ErrorIs(t, c.Delete(ctx, "missing"), domain.ErrMessageNotFound)

	c.token = "stale"
	assert.ErrorIs(t, c.Delete(ctx, "m-1"), domain.ErrNotAuthenticated)
	assert.Empty(t, c.currentToken())
}

func nextSnapshot(t *testing.T, sub *domain.Subscription) domain.Snapshot {
	t.Helper()
	select {
	case s, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
		return domain.Snapshot{}
	}
}

func TestWatch(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		c, _ := newTestClient(t, http.NotFoundHandler())
		_, err := c.Watch(context.Background())
		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	})

	t.Run("snapshots and reconnect", func(t *testing.T) {
		var mu sync.Mutex
		conns := 0
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/admin/messages/stream", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			conns++
			n := conns
			mu.Unlock()

			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, ": ping\n\n")
			fmt.Fprintf(w, "event:snapshot\ndata:[{\"id\":\"m-%d\",\"status\":\"new\"}]\n\n", n)
			w.(http.Flusher).Flush()
			if n == 1 {
				// Drop the first connection.
				return
			}
			<-r.Context().Done()
		})
		c, _ := newTestClient(t, mux)
		c.token = "good"

		sub, err := c.Watch(context.Background())
		require.NoError(t, err)
		defer sub.Cancel()

		// Snapshots are latest-wins, so only the reconnected state is certain.
		sawErr := false
		for {
			s := nextSnapshot(t, sub)
			if s.Err != nil {
				sawErr = true
				continue
			}
			require.Len(t, s.Messages, 1)
			if s.Messages[0].ID == "m-2" {
				break
			}
		}
		assert.True(t, sawErr)
	})

	t.Run("server error event", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/admin/messages/stream", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: error\ndata: {\"message\":\"failed to load messages\"}\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		})
		c, _ := newTestClient(t, mux)
		c.token = "good"
		sub, err := c.Watch(context.Background())
		require.NoError(t, err)
		defer sub.Cancel()

		s := nextSnapshot(t, sub)
		assert.EqualError(t, s.Err, "failed to load messages")
	})

	t.Run("rejected session ends subscription", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/admin/messages/stream", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthenticated")
		})
		c, _ := newTestClient(t, mux)
		c.token = "revoked"
		sub, err := c.Watch(context.Background())
		require.NoError(t, err)

		select {
		case _, ok := <-sub.C:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("subscription stayed open")
		}
		assert.Empty(t, c.currentToken())
	})
}

func TestReadEvents(t *testing.T) {
	body := ": comment\n\nevent: snapshot\ndata: [1,\ndata: 2]\n\ndata:x\n\nevent: partial\ndata: y\n"
	var got []event
	err := readEvents(strings.NewReader(body), func(e event) { got = append(got, e) })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []event{
		{name: "snapshot", data: "[1,\n2]"},
		{name: "message", data: "x"},
	}, got)
}

func TestReadEventsLargeSnapshot(t *testing.T) {
	payload := strings.Repeat("a", 9<<20)
	body := "event: snapshot\r\ndata: " + payload + "\r\n\r\n"
	var got []event
	err := readEvents(strings.NewReader(body), func(e event) { got = append(got, e) })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Len(t, got, 1)
	assert.Equal(t, "snapshot", got[0].name)
	assert.Len(t, got[0].data, len(payload))
}
