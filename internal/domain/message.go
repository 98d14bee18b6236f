package domain

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MessageStatus is the triage state of a contact message. Any status may be
// set from any other status.
type MessageStatus string

const (
	StatusNew     MessageStatus = "new"
	StatusRead    MessageStatus = "read"
	StatusReplied MessageStatus = "replied"
)

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusNew, StatusRead, StatusReplied:
		return true
	}
	return false
}

// DateLayout renders message dates as ISO-8601 UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrInvalidStatus     = errors.New("invalid message status")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrSubscriptionEnded = errors.New("subscription ended")
)

// ContactMessage is one contact-form submission. Name, Email, Message and Date
// are written once at creation; only Status changes afterwards.
type ContactMessage struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Email   string        `json:"email"`
	Message string        `json:"message"`
	Date    string        `json:"date"`
	Status  MessageStatus `json:"status"`
}

// NewMessage holds the visitor-supplied fields of a submission. Date is the
// submitter's clock in DateLayout; the server falls back to its own clock
// when it is missing or implausible.
type NewMessage struct {
	Name    string `json:"name" binding:"required,contact_name"`
	Email   string `json:"email" binding:"required,contact_email"`
	Message string `json:"message" binding:"required,contact_message"`
	Date    string `json:"date,omitempty"`
}

// UpdateStatusRequest is the admin patch body.
type UpdateStatusRequest struct {
	Status MessageStatus `json:"status" binding:"required,message_status"`
}

// MessageKPIs are the admin counters. New doubles as the "unread" figure.
type MessageKPIs struct {
	Total int `json:"total"`
	New   int `json:"new"`
}

// Snapshot is one delivery of a live query: the full ordered result set, or
// an error with the last known messages left untouched by the consumer.
type Snapshot struct {
	Messages []ContactMessage `json:"messages"`
	Err      error            `json:"-"`
}

// Subscription is a cancellable stream of snapshots. Cancel may be called any
// number of times.
type Subscription struct {
	C      <-chan Snapshot
	cancel func()
	once   sync.Once
}

func NewSubscription(c <-chan Snapshot, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// MessageRepository is the document store for contact messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *ContactMessage) error
	GetByID(ctx context.Context, id string) (*ContactMessage, error)
	// List returns every message ordered by date, newest first.
	List(ctx context.Context) ([]ContactMessage, error)
	UpdateStatus(ctx context.Context, id string, status MessageStatus) error
	Delete(ctx context.Context, id string) error
}

// MessageFeed publishes full snapshots of the messages collection.
type MessageFeed interface {
	Subscribe() *Subscription
}

// MessageUsecase is the server-side message workflow.
type MessageUsecase interface {
	Create(ctx context.Context, req *NewMessage) (*ContactMessage, error)
	Get(ctx context.Context, id string) (*ContactMessage, error)
	List(ctx context.Context, search string, status string) ([]ContactMessage, error)
	Stats(ctx context.Context) (*MessageKPIs, error)
	UpdateStatus(ctx context.Context, id string, status MessageStatus) (*ContactMessage, error)
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context) *Subscription
	Export(ctx context.Context) ([]byte, string, error)
	// Archive stores a fresh export in the configured bucket.
	Archive(ctx context.Context) (*ArchiveResult, error)
}

// ArchiveResult locates an archived export.
type ArchiveResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}
