package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/logger"
)

const callbackPage = `<!doctype html><title>Portfolio inbox</title><p>%s You can close this tab.</p>`

type callbackResult struct {
	token string
	kind  string
}

// SignInWithProvider runs a federated sign-in through the system browser.
// The API redirects back to a one-shot listener on the loopback interface.
func (c *Client) SignInWithProvider(ctx context.Context, provider string) (*domain.Session, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: fmt.Errorf("open callback listener: %w", err)}
	}
	redirect := fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{token: q.Get("token"), kind: q.Get("error")}
		if res.token == "" && res.kind == "" {
			res.kind = string(domain.AuthUnknown)
		}
		msg := "Signed in."
		if res.token == "" {
			msg = "Sign-in did not complete."
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, callbackPage, msg)
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Warn("Callback listener stopped", "error", err)
		}
	}()
	defer srv.Close()

	var start struct {
		AuthURL string `json:"auth_url"`
	}
	q := url.Values{"redirect_to": {redirect}}
	if err := c.do(ctx, http.MethodGet, "/auth/oauth/"+url.PathEscape(provider)+"/start", q, nil, &start, false); err != nil {
		return nil, classify(err)
	}
	if err := c.openURL(start.AuthURL); err != nil {
		logger.Log.Warn("Could not open browser", "error", err, "url", start.AuthURL)
	}

	ctx, cancel := context.WithTimeout(ctx, federatedTimeout)
	defer cancel()

	var res callbackResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: errors.New("timed out waiting for the browser")}
		}
		return nil, &domain.AuthError{Kind: domain.AuthUserCancelled, Err: ctx.Err()}
	case res = <-results:
	}

	if res.token == "" {
		if res.kind == string(domain.AuthUserCancelled) {
			return nil, domain.ErrUserCancelled
		}
		return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: fmt.Errorf("provider sign-in failed: %s", res.kind)}
	}

	c.mu.Lock()
	c.token = res.token
	c.mu.Unlock()
	s, err := c.Me(ctx)
	if err != nil {
		c.expire(res.token)
		return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
	}
	c.setToken(res.token, s)
	return s, nil
}

func openInBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
