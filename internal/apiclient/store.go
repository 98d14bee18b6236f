package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/logger"

	"github.com/sethvargo/go-retry"
)

// Create submits msg through the public contact endpoint.
func (c *Client) Create(ctx context.Context, msg domain.ContactMessage) (string, error) {
	body := domain.NewMessage{
		Name:    msg.Name,
		Email:   msg.Email,
		Message: msg.Message,
		Date:    msg.Date,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/contact", nil, body, &out, false); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	body := domain.UpdateStatusRequest{Status: status}
	err := c.do(ctx, http.MethodPatch, "/admin/messages/"+url.PathEscape(id)+"/status", nil, body, nil, true)
	return notFound(err)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/admin/messages/"+url.PathEscape(id), nil, nil, nil, true)
	return notFound(err)
}

func notFound(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrMessageNotFound, err)
	}
	return err
}

// Watch follows the admin message stream. Dropped connections are retried
// with capped exponential backoff and reported as error snapshots in the
// meantime. The subscription closes once the server rejects the session.
func (c *Client) Watch(ctx context.Context) (*domain.Subscription, error) {
	if c.currentToken() == "" {
		return nil, domain.ErrNotAuthenticated
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Snapshot, 1)
	go func() {
		defer close(out)
		c.follow(ctx, out)
	}()
	return domain.NewSubscription(out, cancel), nil
}

func (c *Client) follow(ctx context.Context, out chan domain.Snapshot) {
	backoff := c.newBackoff()
	for {
		connected, err := c.streamOnce(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, domain.ErrNotAuthenticated) {
			logger.Log.Info("Message stream closed: session rejected")
			return
		}
		if connected {
			backoff = c.newBackoff()
		}
		if err == nil {
			err = errors.New("message stream closed by server")
		}
		deliver(ctx, out, domain.Snapshot{Err: err})

		wait, stop := backoff.Next()
		if stop {
			wait = c.maxBackoff
		}
		logger.Log.Warn("Message stream interrupted, reconnecting", "error", err, "in", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (c *Client) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(c.maxBackoff, retry.NewExponential(c.minBackoff))
}

// streamOnce reads one connection until it ends. connected reports whether
// the server accepted the stream.
func (c *Client) streamOnce(ctx context.Context, out chan domain.Snapshot) (connected bool, err error) {
	token := c.currentToken()
	if token == "" {
		return false, domain.ErrNotAuthenticated
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/messages/stream", nil, nil, token)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return false, fmt.Errorf("open message stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		derr := decode(resp, nil)
		var apiErr *APIError
		if errors.As(derr, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.expire(token)
			return false, fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, derr)
		}
		if derr == nil {
			derr = fmt.Errorf("message stream: unexpected status %d", resp.StatusCode)
		}
		return false, derr
	}

	err = readEvents(resp.Body, func(ev event) {
		switch ev.name {
		case "snapshot":
			var msgs []domain.ContactMessage
			if jerr := json.Unmarshal([]byte(ev.data), &msgs); jerr != nil {
				deliver(ctx, out, domain.Snapshot{Err: fmt.Errorf("decode snapshot: %w", jerr)})
				return
			}
			if msgs == nil {
				msgs = []domain.ContactMessage{}
			}
			deliver(ctx, out, domain.Snapshot{Messages: msgs})
		case "error":
			var body struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal([]byte(ev.data), &body)
			if body.Message == "" {
				body.Message = "message stream error"
			}
			deliver(ctx, out, domain.Snapshot{Err: errors.New(body.Message)})
		}
	})
	return true, err
}

// deliver hands snap to the reader, dropping an undelivered older one.
func deliver(ctx context.Context, out chan domain.Snapshot, snap domain.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case out <- snap:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

type event struct {
	name string
	data string
}

// readEvents parses a text/event-stream body, calling fn for every
// complete event. Comment lines are skipped. Lines have no length limit.
func readEvents(r io.Reader, fn func(event)) error {
	br := bufio.NewReader(r)

	var ev event
	var data []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read message stream: %w", err)
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		switch {
		case line == "":
			if len(data) > 0 {
				ev.data = strings.Join(data, "\n")
				if ev.name == "" {
					ev.name = "message"
				}
				fn(ev)
			}
			ev, data = event{}, nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				ev.name = value
			case "data":
				data = append(data, value)
			}
		}
	}
}
