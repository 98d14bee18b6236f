// Package app is the root controller. It owns view selection, theme and
// dialog state, and composes the session gate, message adapter and triage
// view-model, which are built independently and injected.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"portfolio-backend/internal/contactform"
	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/inbox"
	"portfolio-backend/internal/session"
	"portfolio-backend/internal/triage"
	"portfolio-backend/pkg/broadcast"
	"portfolio-backend/pkg/logger"
)

type View string

const (
	ViewPortfolio View = "portfolio"
	ViewAdmin     View = "admin"
)

// AdminFragment is the only fragment that selects the admin view.
const AdminFragment = "#admin"

// ViewFromFragment maps a URL fragment to a view.
func ViewFromFragment(fragment string) View {
	if fragment == AdminFragment {
		return ViewAdmin
	}
	return ViewPortfolio
}

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DefaultNoticeTTL is how long admin notices stay visible.
const DefaultNoticeTTL = 3 * time.Second

// User-facing texts.
const (
	TextLoginEmpty      = "enter your user and password"
	TextLoginInvalid    = "incorrect user or password"
	TextLoginFailed     = "could not sign in, please try again"
	TextProviderFailed  = "could not connect to the sign-in provider"
	TextSubmitFailed    = "there was an error sending your message, please try again"
	TextStatusUpdated   = "status updated"
	TextStatusFailed    = "could not update the status"
	TextDeleted         = "message deleted"
	TextDeleteFailed    = "could not delete the message"
	TextEmailCopied     = "email copied"
	TextSyncFailed      = "could not sync messages"
	TextSignOutFailed   = "could not sign out"
	TextSessionExpired  = "your session ended, sign in again"
	TextNothingSelected = "no message selected"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient admin notification.
type Notice struct {
	ID   uint64
	Kind NoticeKind
	Text string
}

// Deps are the collaborators the controller composes.
type Deps struct {
	Gate   *session.Gate
	Inbox  *inbox.Adapter
	Triage *triage.ViewModel
	Form   *contactform.Form
}

type Option func(*Controller)

func WithNoticeTTL(d time.Duration) Option {
	return func(c *Controller) { c.noticeTTL = d }
}

func WithTheme(t Theme) Option {
	return func(c *Controller) { c.theme = t }
}

type Controller struct {
	gate   *session.Gate
	inbox  *inbox.Adapter
	triage *triage.ViewModel
	form   *contactform.Form

	noticeTTL time.Duration

	mu         sync.Mutex
	view       View
	theme      Theme
	modalOpen  bool
	alert      string
	loginErr   string
	pending    bool
	notices    []Notice
	nextNotice uint64
	timers     map[uint64]*time.Timer

	changes *broadcast.Broadcaster[struct{}]
}

// New builds a controller showing the view selected by fragment. The theme
// starts dark.
func New(deps Deps, fragment string, opts ...Option) *Controller {
	c := &Controller{
		gate:      deps.Gate,
		inbox:     deps.Inbox,
		triage:    deps.Triage,
		form:      deps.Form,
		noticeTTL: DefaultNoticeTTL,
		view:      ViewFromFragment(fragment),
		theme:     ThemeDark,
		timers:    make(map[uint64]*time.Timer),
		changes:   broadcast.New[struct{}](),
	}
	if c.triage == nil {
		c.triage = triage.NewViewModel()
	}
	if c.form == nil {
		c.form = contactform.New()
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run starts the gate, keeps the adapter bound to it and feeds every
// update into the triage view-model. It releases everything it acquired
// when ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	updates, cancelUpdates := c.inbox.Updates()
	gateCh, cancelGate := c.gate.Watch()

	if err := c.gate.Start(ctx); err != nil {
		logger.Log.Warn("Session gate did not start", "error", err)
	}

	bindCtx, stopBind := context.WithCancel(ctx)
	bound := make(chan struct{})
	go func() {
		defer close(bound)
		c.inbox.Bind(bindCtx)
	}()

	defer func() {
		stopBind()
		<-bound
		cancelUpdates()
		cancelGate()
		c.gate.Stop()
		c.inbox.Close()
		c.stopTimers()
		c.changes.Close()
	}()

	wasAuthenticated := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			c.triage.SetMessages(u.Messages)
			if u.Err != nil && !errors.Is(u.Err, domain.ErrNotAuthenticated) {
				c.notify(NoticeError, TextSyncFailed)
			}
			c.changed()
		case st, ok := <-gateCh:
			if !ok {
				return nil
			}
			if wasAuthenticated && st.State == session.StateUnauthenticated {
				c.mu.Lock()
				if c.view == ViewAdmin && c.loginErr == "" {
					c.loginErr = TextSessionExpired
				}
				c.mu.Unlock()
			}
			wasAuthenticated = st.Authenticated()
			c.changed()
		}
	}
}

// Changes signals that rendered state may have changed.
func (c *Controller) Changes() (<-chan struct{}, func()) {
	return c.changes.Subscribe()
}

func (c *Controller) changed() {
	c.changes.Publish(struct{}{})
}

// Navigate switches view by fragment.
func (c *Controller) Navigate(fragment string) {
	c.mu.Lock()
	c.view = ViewFromFragment(fragment)
	c.loginErr = ""
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) ToggleTheme() Theme {
	c.mu.Lock()
	if c.theme == ThemeDark {
		c.theme = ThemeLight
	} else {
		c.theme = ThemeDark
	}
	t := c.theme
	c.mu.Unlock()
	c.changed()
	return t
}

func (c *Controller) Form() *contactform.Form { return c.form }

func (c *Controller) Triage() *triage.ViewModel { return c.triage }

// SubmitContact runs the form submission against the store. Success opens
// the confirmation modal; a store failure raises a blocking alert and keeps
// the fields. A call made while another submission is pending returns false
// without touching the store.
func (c *Controller) SubmitContact(ctx context.Context) bool {
	ok, err := c.form.Submit(ctx, func(ctx context.Context, msg domain.NewMessage) error {
		// The form now reports itself as submitting.
		c.changed()
		_, err := c.inbox.Create(ctx, msg)
		return err
	})
	c.mu.Lock()
	switch {
	case err != nil:
		logger.Log.Error("Contact submission failed", "error", err)
		c.alert = TextSubmitFailed
	case ok:
		c.modalOpen = true
	}
	c.mu.Unlock()
	c.changed()
	return ok
}

func (c *Controller) CloseModal() {
	c.mu.Lock()
	c.modalOpen = false
	c.mu.Unlock()
	c.changed()
}

// DismissAlert acknowledges the blocking alert.
func (c *Controller) DismissAlert() {
	c.mu.Lock()
	c.alert = ""
	c.mu.Unlock()
	c.changed()
}

// Login signs in with email and password. Failures become login error text.
func (c *Controller) Login(ctx context.Context, email, password string) bool {
	if strings.TrimSpace(email) == "" || password == "" {
		c.setLogin(false, TextLoginEmpty)
		return false
	}
	c.setLogin(true, "")
	err := c.gate.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err == nil {
		c.setLogin(false, "")
		return true
	}
	if domain.AuthKind(err) == domain.AuthInvalidCredentials {
		c.setLogin(false, TextLoginInvalid)
	} else {
		logger.Log.Warn("Sign in failed", "error", err)
		c.setLogin(false, TextLoginFailed)
	}
	return false
}

// LoginWithProvider runs a federated sign-in. A user abort shows nothing.
func (c *Controller) LoginWithProvider(ctx context.Context, provider string) bool {
	c.setLogin(true, "")
	err := c.gate.SignInWithProvider(ctx, provider)
	switch {
	case err == nil:
		c.setLogin(false, "")
		return true
	case domain.AuthKind(err) == domain.AuthUserCancelled:
		c.setLogin(false, "")
	default:
		logger.Log.Warn("Federated sign in failed", "provider", provider, "error", err)
		c.setLogin(false, TextProviderFailed)
	}
	return false
}

func (c *Controller) setLogin(pending bool, text string) {
	c.mu.Lock()
	c.pending = pending
	c.loginErr = text
	c.mu.Unlock()
	c.changed()
}

// SignOut ends the session and returns to the public view. On failure the
// admin view stays as it is.
func (c *Controller) SignOut(ctx context.Context) bool {
	if err := c.gate.SignOut(ctx); err != nil {
		c.notify(NoticeError, TextSignOutFailed)
		return false
	}
	c.triage.ClearSelection()
	c.mu.Lock()
	c.view = ViewPortfolio
	c.loginErr = ""
	c.mu.Unlock()
	c.changed()
	return true
}

// SetStatus updates a message status and mirrors it into the selection once
// the store acknowledges. The next snapshot is authoritative.
func (c *Controller) SetStatus(ctx context.Context, id string, status domain.MessageStatus) bool {
	if err := c.inbox.UpdateStatus(ctx, id, status); err != nil {
		logger.Log.Warn("Status update failed", "id", id, "error", err)
		c.notify(NoticeError, TextStatusFailed)
		return false
	}
	c.triage.ApplyStatus(id, status)
	c.notify(NoticeSuccess, TextStatusUpdated)
	return true
}

// DeleteMessage deletes id and clears a selection pointing at it.
func (c *Controller) DeleteMessage(ctx context.Context, id string) bool {
	if err := c.inbox.Delete(ctx, id); err != nil {
		logger.Log.Warn("Delete failed", "id", id, "error", err)
		c.notify(NoticeError, TextDeleteFailed)
		return false
	}
	c.triage.Forget(id)
	c.notify(NoticeSuccess, TextDeleted)
	return true
}

// CopyEmail returns the selected message's email for the UI to place on
// the clipboard.
func (c *Controller) CopyEmail() (string, bool) {
	m, ok := c.triage.Selected()
	if !ok {
		c.notify(NoticeError, TextNothingSelected)
		return "", false
	}
	c.notify(NoticeSuccess, TextEmailCopied)
	return m.Email, true
}

func (c *Controller) notify(kind NoticeKind, text string) {
	c.mu.Lock()
	c.nextNotice++
	id := c.nextNotice
	c.notices = append(c.notices, Notice{ID: id, Kind: kind, Text: text})
	c.timers[id] = time.AfterFunc(c.noticeTTL, func() { c.dismiss(id) })
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) dismiss(id uint64) {
	c.mu.Lock()
	delete(c.timers, id)
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i:i], c.notices[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// State is everything a renderer needs, copied under lock.
type State struct {
	View         View
	Theme        Theme
	Session      session.Status
	ModalOpen    bool
	Alert        string
	LoginError   string
	LoginPending bool
	Notices      []Notice

	Form     contactform.State
	Visible  []domain.ContactMessage
	KPIs     domain.MessageKPIs
	Selected *domain.ContactMessage
	Search   string
	Filter   triage.StatusFilter
}

func (c *Controller) State() State {
	c.mu.Lock()
	st := State{
		View:         c.view,
		Theme:        c.theme,
		ModalOpen:    c.modalOpen,
		Alert:        c.alert,
		LoginError:   c.loginErr,
		LoginPending: c.pending,
		Notices:      append([]Notice(nil), c.notices...),
	}
	c.mu.Unlock()

	st.Session = c.gate.Status()
	st.Form = c.form.State()
	st.Visible = c.triage.Visible()
	st.KPIs = c.triage.KPIs()
	st.Search = c.triage.SearchTerm()
	st.Filter = c.triage.StatusFilter()
	if m, ok := c.triage.Selected(); ok {
		st.Selected = &m
	}
	return st
}
