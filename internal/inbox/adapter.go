// Package inbox bridges the message store's live query to an in-memory,
// date-descending message sequence that exists only while an admin session
// is live.
package inbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/session"
	"portfolio-backend/pkg/broadcast"
	"portfolio-backend/pkg/logger"
)

// Store is the document store as consumed by the adapter.
type Store interface {
	// Watch opens a live query over all messages ordered by date, newest
	// first. Every snapshot carries the full result set.
	Watch(ctx context.Context) (*domain.Subscription, error)
	// Create stores msg and returns the id the store assigned.
	Create(ctx context.Context, msg domain.ContactMessage) (string, error)
	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error
	Delete(ctx context.Context, id string) error
}

// Gate is the part of the session gate the adapter follows.
type Gate interface {
	Status() session.Status
	Watch() (<-chan session.Status, func())
}

// Update is published whenever the sequence is replaced or a live query
// reports a failure. On failure Messages still holds the last snapshot.
type Update struct {
	Messages []domain.ContactMessage
	Err      error
}

type Adapter struct {
	store Store
	gate  Gate
	now   func() time.Time

	mu       sync.Mutex
	messages []domain.ContactMessage
	sub      *domain.Subscription
	stop     chan struct{}
	gen      uint64

	updates *broadcast.Broadcaster[Update]
}

func NewAdapter(store Store, gate Gate) *Adapter {
	return &Adapter{
		store:   store,
		gate:    gate,
		now:     time.Now,
		updates: broadcast.New[Update](),
	}
}

// Subscribe opens the live query. It fails with domain.ErrNotAuthenticated
// unless the gate reports a live session, and is a no-op when already open.
func (a *Adapter) Subscribe(ctx context.Context) error {
	if !a.gate.Status().Authenticated() {
		return domain.ErrNotAuthenticated
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return nil
	}

	sub, err := a.store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("open live query: %w", err)
	}
	a.gen++
	a.sub = sub
	a.stop = make(chan struct{})
	go a.consume(sub, a.stop, a.gen)
	return nil
}

func (a *Adapter) consume(sub *domain.Subscription, stop <-chan struct{}, gen uint64) {
	for {
		select {
		case <-stop:
			return
		case snap, ok := <-sub.C:
			if !ok {
				a.ended(gen)
				return
			}
			a.receive(snap, gen)
		}
	}
}

func (a *Adapter) receive(snap domain.Snapshot, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.sub == nil {
		return
	}
	if snap.Err != nil {
		logger.Log.Warn("Live query error", "error", snap.Err)
		a.updates.Publish(Update{Messages: a.copyLocked(), Err: snap.Err})
		return
	}
	a.messages = snap.Messages
	a.updates.Publish(Update{Messages: a.copyLocked()})
}

// ended handles a live query closed by the store side. The last snapshot
// stays visible and a later Subscribe may reopen it.
func (a *Adapter) ended(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.sub == nil {
		return
	}
	a.sub = nil
	a.stop = nil
	a.updates.Publish(Update{Messages: a.copyLocked(), Err: domain.ErrSubscriptionEnded})
}

// Unsubscribe closes the live query and clears the sequence. Snapshots
// already in flight are dropped. Safe to call repeatedly.
func (a *Adapter) Unsubscribe() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	if a.sub != nil {
		a.sub.Cancel()
		close(a.stop)
		a.sub = nil
		a.stop = nil
	}
	if a.messages == nil {
		return
	}
	a.messages = nil
	a.updates.Publish(Update{})
}

// Bind keeps the subscription in step with the gate until ctx is done:
// subscribed while authenticated, closed and cleared otherwise. A new
// authenticated epoch always starts from a fresh, empty sequence.
func (a *Adapter) Bind(ctx context.Context) {
	ch, cancel := a.gate.Watch()
	defer cancel()
	defer a.Unsubscribe()

	var bound uint64
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			if !st.Authenticated() {
				a.Unsubscribe()
				continue
			}
			if st.Epoch != bound {
				a.Unsubscribe()
			}
			if err := a.Subscribe(ctx); err != nil {
				logger.Log.Warn("Subscribe to messages failed", "error", err)
				a.updates.Publish(Update{Messages: a.Messages(), Err: err})
				continue
			}
			bound = st.Epoch
		}
	}
}

// Messages returns a copy of the current sequence.
func (a *Adapter) Messages() []domain.ContactMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyLocked()
}

func (a *Adapter) copyLocked() []domain.ContactMessage {
	if a.messages == nil {
		return nil
	}
	return append([]domain.ContactMessage(nil), a.messages...)
}

// Subscribed reports whether a live query is open.
func (a *Adapter) Subscribed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sub != nil
}

// Updates streams sequence changes and live query failures.
func (a *Adapter) Updates() (<-chan Update, func()) {
	return a.updates.Subscribe()
}

// Create stores a new message with status new, dated now. No session is
// needed.
func (a *Adapter) Create(ctx context.Context, msg domain.NewMessage) (string, error) {
	doc := domain.ContactMessage{
		Name:    msg.Name,
		Email:   msg.Email,
		Message: msg.Message,
		Date:    domain.FormatDate(a.now()),
		Status:  domain.StatusNew,
	}
	id, err := a.store.Create(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	return id, nil
}

// UpdateStatus patches the status of one message. The change becomes
// visible through the next snapshot.
func (a *Adapter) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	if !a.gate.Status().Authenticated() {
		return domain.ErrNotAuthenticated
	}
	if err := a.store.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update status of %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, id string) error {
	if !a.gate.Status().Authenticated() {
		return domain.ErrNotAuthenticated
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Close releases the live query and ends Updates streams.
func (a *Adapter) Close() {
	a.Unsubscribe()
	a.updates.Close()
}
