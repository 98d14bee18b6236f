// Package livequery keeps the latest ordered snapshot of all messages and
// fans it out to subscribers, reloading whenever the store signals a change.
package livequery

import (
	"context"
	"sync"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/broadcast"
	"portfolio-backend/pkg/logger"
)

// Lister loads the full date-descending message list.
type Lister interface {
	List(ctx context.Context) ([]domain.ContactMessage, error)
}

type Hub struct {
	lister Lister
	b      *broadcast.Broadcaster[domain.Snapshot]

	mu   sync.Mutex
	last []domain.ContactMessage
}

func NewHub(lister Lister) *Hub {
	return &Hub{lister: lister, b: broadcast.New[domain.Snapshot]()}
}

// Reload fetches the list and publishes it. On failure subscribers get a
// snapshot carrying the error alongside the previous messages.
func (h *Hub) Reload(ctx context.Context) error {
	msgs, err := h.lister.List(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		logger.Log.Error("Live query reload failed", "error", err)
		h.b.Publish(domain.Snapshot{Messages: h.last, Err: err})
		return err
	}
	h.last = msgs
	h.b.Publish(domain.Snapshot{Messages: msgs})
	return nil
}

// Run loads once, then reloads on every signal until ctx is done or
// signals is closed.
func (h *Hub) Run(ctx context.Context, signals <-chan struct{}) {
	_ = h.Reload(ctx)
	for {
		select {
		case <-ctx.Done():
			h.b.Close()
			return
		case _, ok := <-signals:
			if !ok {
				h.b.Close()
				return
			}
			_ = h.Reload(ctx)
		}
	}
}

// Subscribe returns a subscription seeded with the latest snapshot, if any.
func (h *Hub) Subscribe() *domain.Subscription {
	ch, cancel := h.b.Subscribe()
	return domain.NewSubscription(ch, cancel)
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	return h.b.Len()
}
