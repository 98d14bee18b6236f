package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio-backend/internal/app"
	"portfolio-backend/internal/contactform"
	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/inbox"
	"portfolio-backend/internal/session"
	"portfolio-backend/internal/triage"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	sessions  chan *domain.Session
	passwords []string
	providers []string
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwords = append(p.passwords, password)
	return &domain.Session{UserID: "admin-1", Email: email}, nil
}

func (p *fakeProvider) SignInWithProvider(ctx context.Context, provider string) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers = append(p.providers, provider)
	return nil, domain.ErrUserCancelled
}

func (p *fakeProvider) WatchSession(ctx context.Context) (<-chan *domain.Session, error) {
	return p.sessions, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error { return nil }

type fakeStore struct {
	mu       sync.Mutex
	created  []domain.ContactMessage
	statuses map[string]domain.MessageStatus
	deleted  []string
}

func (s *fakeStore) Watch(ctx context.Context) (*domain.Subscription, error) {
	return domain.NewSubscription(make(chan domain.Snapshot), func() {}), nil
}

func (s *fakeStore) Create(ctx context.Context, msg domain.ContactMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, msg)
	return "m-new", nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

type harness struct {
	provider *fakeProvider
	store    *fakeStore
	gate     *session.Gate
	ctrl     *app.Controller
	model    Model
}

// newHarness builds a model over real gate, adapter and controller. A
// non-nil signedIn starts the gate with that session; otherwise the gate
// reports signed out.
func newHarness(t *testing.T, fragment string, signedIn *domain.Session) *harness {
	t.Helper()
	p := &fakeProvider{sessions: make(chan *domain.Session, 1)}
	s := &fakeStore{statuses: map[string]domain.MessageStatus{}}
	gate := session.NewGate(p)
	ctrl := app.New(app.Deps{
		Gate:   gate,
		Inbox:  inbox.NewAdapter(s, gate),
		Triage: triage.NewViewModel(),
		Form:   contactform.New(),
	}, fragment)

	p.sessions <- signedIn
	require.NoError(t, gate.Start(context.Background()))
	t.Cleanup(gate.Stop)
	require.Eventually(t, func() bool {
		return gate.Status().State != session.StateLoading
	}, time.Second, 5*time.Millisecond)

	return &harness{
		provider: p,
		store:    s,
		gate:     gate,
		ctrl:     ctrl,
		model:    NewModel(context.Background(), ctrl, nil),
	}
}

// send feeds msg to the model and runs any command it returns, feeding
// opDoneMsg results back in.
func (h *harness) send(t *testing.T, msg tea.Msg) tea.Msg {
	t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	if cmd == nil {
		return nil
	}
	out := cmd()
	if done, ok := out.(opDoneMsg); ok {
		next, _ = h.model.Update(done)
		h.model = next.(Model)
	}
	return out
}

func (h *harness) typeText(t *testing.T, text string) {
	t.Helper()
	for _, r := range text {
		h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeMsg(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func TestModelQuit(t *testing.T) {
	h := newHarness(t, "", nil)
	_, cmd := h.model.Update(keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestModelThemeToggle(t *testing.T) {
	h := newHarness(t, "", nil)
	h.send(t, keyMsg(tea.KeyCtrlT))
	assert.Equal(t, app.ThemeLight, h.ctrl.State().Theme)
	assert.Contains(t, h.model.View(), "light")
}

func TestModelContactForm(t *testing.T) {
	h := newHarness(t, "", nil)

	h.typeText(t, "A")
	h.send(t, keyMsg(tea.KeyTab))
	st := h.ctrl.State()
	assert.Equal(t, "A", st.Form.Fields[contactform.FieldName])
	assert.True(t, st.Form.Touched[contactform.FieldName])
	assert.Contains(t, h.model.View(), contactform.ErrNameTooShort)

	h.send(t, keyMsg(tea.KeyShiftTab))
	h.typeText(t, "na Lopez")
	h.send(t, keyMsg(tea.KeyTab))
	h.typeText(t, "ana@x.com")
	h.send(t, keyMsg(tea.KeyTab))
	h.typeText(t, "Hola, quiero cotizar un sitio web")

	h.send(t, keyMsg(tea.KeyCtrlS))
	require.Len(t, h.store.created, 1)
	assert.Equal(t, "Ana Lopez", h.store.created[0].Name)
	assert.Equal(t, domain.StatusNew, h.store.created[0].Status)

	st = h.ctrl.State()
	assert.True(t, st.ModalOpen)
	assert.Empty(t, h.model.formInputs[0].Value())
	assert.Contains(t, h.model.View(), modalText)

	h.send(t, keyMsg(tea.KeyEnter))
	assert.False(t, h.ctrl.State().ModalOpen)
}

func TestModelContactFormHasNoLengthCap(t *testing.T) {
	h := newHarness(t, "", nil)
	long := strings.Repeat("a", 300)
	h.typeText(t, long)
	h.send(t, keyMsg(tea.KeyTab))
	h.typeText(t, long+"@x.com")

	st := h.ctrl.State()
	assert.Equal(t, long, st.Form.Fields[contactform.FieldName])
	assert.Equal(t, long+"@x.com", st.Form.Fields[contactform.FieldEmail])
	assert.Zero(t, h.model.formMessage.CharLimit)
}

func TestModelLogin(t *testing.T) {
	h := newHarness(t, "", nil)
	h.send(t, keyMsg(tea.KeyCtrlA))
	require.Equal(t, app.ViewAdmin, h.ctrl.State().View)
	assert.Contains(t, h.model.View(), "Admin sign-in")

	h.typeText(t, "admin@example.com")
	h.send(t, keyMsg(tea.KeyTab))
	h.typeText(t, "secret")
	h.send(t, keyMsg(tea.KeyTab))
	h.typeText(t, "123456")
	h.send(t, keyMsg(tea.KeyEnter))

	require.Equal(t, []string{"secret\n123456"}, h.provider.passwords)
	assert.True(t, h.gate.Status().Authenticated())
	assert.Empty(t, h.model.loginInputs[loginPassword].Value())
}

func TestModelLoginProviderCancelled(t *testing.T) {
	h := newHarness(t, "#admin", nil)
	h.send(t, keyMsg(tea.KeyCtrlG))
	assert.Equal(t, []string{ProviderGoogle}, h.provider.providers)
	assert.Empty(t, h.ctrl.State().LoginError)
}

func TestModelEscReturnsToPortfolio(t *testing.T) {
	h := newHarness(t, "#admin", nil)
	h.send(t, keyMsg(tea.KeyEsc))
	assert.Equal(t, app.ViewPortfolio, h.ctrl.State().View)
}

func triageMessages() []domain.ContactMessage {
	return []domain.ContactMessage{
		{ID: "m-3", Name: "Carla", Email: "carla@x.com", Message: "Need a landing page", Date: "2026-03-03T10:00:00.000Z", Status: domain.StatusNew},
		{ID: "m-2", Name: "Beto", Email: "beto@x.com", Message: "Quote for a shop", Date: "2026-03-02T10:00:00.000Z", Status: domain.StatusRead},
		{ID: "m-1", Name: "Ana", Email: "ana@x.com", Message: "Hola", Date: "2026-03-01T10:00:00.000Z", Status: domain.StatusReplied},
	}
}

func TestModelTriage(t *testing.T) {
	h := newHarness(t, "#admin", &domain.Session{UserID: "admin-1", Email: "admin@example.com"})
	h.ctrl.Triage().SetMessages(triageMessages())

	view := h.model.View()
	assert.Contains(t, view, "Carla")
	assert.Contains(t, view, "admin@example.com")

	h.send(t, runeMsg('j'))
	h.send(t, keyMsg(tea.KeyEnter))
	sel, ok := h.ctrl.Triage().Selected()
	require.True(t, ok)
	assert.Equal(t, "m-2", sel.ID)

	h.send(t, runeMsg('p'))
	assert.Equal(t, domain.StatusReplied, h.store.statuses["m-2"])
	sel, _ = h.ctrl.Triage().Selected()
	assert.Equal(t, domain.StatusReplied, sel.Status)

	h.send(t, runeMsg('x'))
	assert.Contains(t, h.model.View(), "Delete this message?")
	h.send(t, runeMsg('y'))
	assert.Equal(t, []string{"m-2"}, h.store.deleted)
}

func TestModelTriageFilterAndSearch(t *testing.T) {
	h := newHarness(t, "#admin", &domain.Session{UserID: "admin-1", Email: "admin@example.com"})
	h.ctrl.Triage().SetMessages(triageMessages())

	h.send(t, runeMsg('f'))
	assert.Equal(t, triage.FilterNew, h.ctrl.Triage().StatusFilter())
	require.Len(t, h.ctrl.Triage().Visible(), 1)

	h.send(t, runeMsg('f'))
	h.send(t, runeMsg('f'))
	h.send(t, runeMsg('f'))
	assert.Equal(t, triage.FilterAll, h.ctrl.Triage().StatusFilter())

	h.send(t, runeMsg('/'))
	h.typeText(t, "SHOP")
	assert.Equal(t, "SHOP", h.ctrl.Triage().SearchTerm())
	visible := h.ctrl.Triage().Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "m-2", visible[0].ID)

	// Letters go to the search box until it is left.
	assert.Equal(t, triage.FilterAll, h.ctrl.Triage().StatusFilter())
	h.send(t, keyMsg(tea.KeyEsc))
	assert.Equal(t, app.ViewAdmin, h.ctrl.State().View)
	h.send(t, keyMsg(tea.KeyEsc))
	assert.Equal(t, app.ViewPortfolio, h.ctrl.State().View)
}

func TestModelSignOut(t *testing.T) {
	h := newHarness(t, "#admin", &domain.Session{UserID: "admin-1", Email: "admin@example.com"})
	h.send(t, runeMsg('o'))
	assert.False(t, h.gate.Status().Authenticated())
	assert.Equal(t, app.ViewPortfolio, h.ctrl.State().View)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.True(t, strings.HasSuffix(truncate("ñañañañaña", 4), "…"))
}
