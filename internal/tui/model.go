// Package tui renders the root controller in the terminal: the public
// contact form and the admin inbox.
package tui

import (
	"context"

	"portfolio-backend/internal/app"
	"portfolio-backend/internal/contactform"
	"portfolio-backend/internal/session"
	"portfolio-backend/internal/triage"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ProviderGoogle is the federated provider offered on the login screen.
const ProviderGoogle = "google"

// changedMsg is delivered whenever the controller state may have changed.
type changedMsg struct{}

// opDoneMsg reports that an asynchronous controller call returned.
type opDoneMsg struct {
	op string
	ok bool
}

const (
	opSubmit = "submit"
	opLogin  = "login"
)

const (
	loginEmail = iota
	loginPassword
	loginOTP
)

// Model is the bubbletea model. The controller owns all state that matters;
// the model only keeps input widgets, focus and the list cursor.
type Model struct {
	ctx  context.Context
	ctrl *app.Controller
	keys KeyMap

	changes <-chan struct{}

	width  int
	height int

	// Contact form, focus indexes contactform.Fields.
	formInputs  []textinput.Model
	formMessage textarea.Model
	formFocus   int

	// Login.
	loginInputs []textinput.Model
	loginFocus  int

	// Triage.
	search        textinput.Model
	searching     bool
	cursor        int
	confirmDelete bool
}

// NewModel builds the model. changes should come from ctrl.Changes.
func NewModel(ctx context.Context, ctrl *app.Controller, changes <-chan struct{}) Model {
	name := textinput.New()
	name.Placeholder = "Your name"
	name.CharLimit = 0
	email := textinput.New()
	email.Placeholder = "name@domain.com"
	email.CharLimit = 0
	message := textarea.New()
	message.Placeholder = "Tell me about your project"
	message.ShowLineNumbers = false
	message.CharLimit = 0
	message.SetHeight(5)

	loginEmailInput := textinput.New()
	loginEmailInput.Placeholder = "admin email"
	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	otp := textinput.New()
	otp.Placeholder = "one-time code (if enabled)"
	otp.CharLimit = 8

	search := textinput.New()
	search.Placeholder = "search name, email or message"
	search.Prompt = "/ "

	model := Model{
		ctx:         ctx,
		ctrl:        ctrl,
		keys:        DefaultKeyMap,
		changes:     changes,
		width:       80,
		height:      24,
		formInputs:  []textinput.Model{name, email},
		formMessage: message,
		loginInputs: []textinput.Model{loginEmailInput, password, otp},
		search:      search,
	}
	model.focusCurrent()
	return model
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(listenForChanges(model.changes), textinput.Blink)
}

func listenForChanges(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Update implements tea.Model.
func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.width, model.height = msg.Width, msg.Height
		model.formMessage.SetWidth(max(20, min(msg.Width-4, 76)))
		return model, nil
	case changedMsg:
		model.clampCursor()
		return model, listenForChanges(model.changes)
	case opDoneMsg:
		return model.handleOpDone(msg), nil
	case tea.KeyMsg:
		return model.handleKey(msg)
	}
	return model.updateFocused(msg)
}

func (model Model) handleOpDone(msg opDoneMsg) Model {
	if !msg.ok {
		return model
	}
	switch msg.op {
	case opSubmit:
		for i := range model.formInputs {
			model.formInputs[i].Reset()
		}
		model.formMessage.Reset()
		model.formFocus = 0
	case opLogin:
		model.loginInputs[loginPassword].Reset()
		model.loginInputs[loginOTP].Reset()
		model.loginFocus = loginEmail
	}
	model.focusCurrent()
	return model
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(msg, model.keys.ToggleTheme):
		model.ctrl.ToggleTheme()
		return model, nil
	}

	st := model.ctrl.State()
	if st.Alert != "" {
		if key.Matches(msg, model.keys.Dismiss) {
			model.ctrl.DismissAlert()
		}
		return model, nil
	}
	if st.ModalOpen {
		if key.Matches(msg, model.keys.Dismiss) {
			model.ctrl.CloseModal()
		}
		return model, nil
	}

	if st.View == app.ViewPortfolio {
		return model.portfolioKey(msg)
	}
	if key.Matches(msg, model.keys.Back) && !model.searching {
		model.ctrl.Navigate("")
		model.confirmDelete = false
		model.focusCurrent()
		return model, nil
	}
	switch st.Session.State {
	case session.StateAuthenticated:
		return model.triageKey(msg, st)
	case session.StateUnauthenticated:
		return model.loginKey(msg, st)
	}
	if !st.Session.Loading {
		// The loading flag timed out before the first notification.
		return model.loginKey(msg, st)
	}
	return model, nil
}

func (model Model) portfolioKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	form := model.ctrl.Form()
	switch {
	case key.Matches(msg, model.keys.OpenAdmin):
		model.ctrl.Navigate(app.AdminFragment)
		model.loginFocus = loginEmail
		model.focusCurrent()
		return model, nil
	case key.Matches(msg, model.keys.NextField), key.Matches(msg, model.keys.PrevField):
		form.OnBlur(contactform.Fields[model.formFocus])
		step := 1
		if key.Matches(msg, model.keys.PrevField) {
			step = len(contactform.Fields) - 1
		}
		model.formFocus = (model.formFocus + step) % len(contactform.Fields)
		model.focusCurrent()
		return model, nil
	case key.Matches(msg, model.keys.Submit):
		if form.Submitting() {
			return model, nil
		}
		ctx, ctrl := model.ctx, model.ctrl
		return model, func() tea.Msg {
			return opDoneMsg{op: opSubmit, ok: ctrl.SubmitContact(ctx)}
		}
	}

	if form.Submitting() {
		return model, nil
	}
	field := contactform.Fields[model.formFocus]
	var cmd tea.Cmd
	if field == contactform.FieldMessage {
		model.formMessage, cmd = model.formMessage.Update(msg)
		form.OnChange(field, model.formMessage.Value())
	} else {
		model.formInputs[model.formFocus], cmd = model.formInputs[model.formFocus].Update(msg)
		form.OnChange(field, model.formInputs[model.formFocus].Value())
	}
	return model, cmd
}

func (model Model) loginKey(msg tea.KeyMsg, st app.State) (tea.Model, tea.Cmd) {
	if st.LoginPending {
		return model, nil
	}
	switch {
	case key.Matches(msg, model.keys.NextField), key.Matches(msg, model.keys.PrevField):
		step := 1
		if key.Matches(msg, model.keys.PrevField) {
			step = len(model.loginInputs) - 1
		}
		model.loginFocus = (model.loginFocus + step) % len(model.loginInputs)
		model.focusCurrent()
		return model, nil
	case key.Matches(msg, model.keys.SignIn):
		email := model.loginInputs[loginEmail].Value()
		password := model.loginInputs[loginPassword].Value()
		if otp := model.loginInputs[loginOTP].Value(); otp != "" && password != "" {
			password += "\n" + otp
		}
		ctx, ctrl := model.ctx, model.ctrl
		return model, func() tea.Msg {
			return opDoneMsg{op: opLogin, ok: ctrl.Login(ctx, email, password)}
		}
	case key.Matches(msg, model.keys.SignInProvider):
		ctx, ctrl := model.ctx, model.ctrl
		return model, func() tea.Msg {
			return opDoneMsg{op: opLogin, ok: ctrl.LoginWithProvider(ctx, ProviderGoogle)}
		}
	}
	var cmd tea.Cmd
	model.loginInputs[model.loginFocus], cmd = model.loginInputs[model.loginFocus].Update(msg)
	return model, cmd
}

func (model Model) triageKey(msg tea.KeyMsg, st app.State) (tea.Model, tea.Cmd) {
	vm := model.ctrl.Triage()

	if model.searching {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			model.searching = false
			model.focusCurrent()
			return model, nil
		}
		var cmd tea.Cmd
		model.search, cmd = model.search.Update(msg)
		vm.SetSearchTerm(model.search.Value())
		model.cursor = 0
		return model, cmd
	}

	if model.confirmDelete {
		model.confirmDelete = false
		if key.Matches(msg, model.keys.Confirm) && st.Selected != nil {
			id, ctx, ctrl := st.Selected.ID, model.ctx, model.ctrl
			return model, func() tea.Msg {
				return opDoneMsg{op: "delete", ok: ctrl.DeleteMessage(ctx, id)}
			}
		}
		return model, nil
	}

	switch {
	case key.Matches(msg, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(msg, model.keys.Down):
		if model.cursor < len(st.Visible)-1 {
			model.cursor++
		}
	case key.Matches(msg, model.keys.Open):
		model.selectCursor(st)
	case key.Matches(msg, model.keys.Search):
		model.searching = true
		model.focusCurrent()
	case key.Matches(msg, model.keys.CycleFilter):
		vm.SetStatusFilter(nextFilter(st.Filter))
		model.cursor = 0
	case key.Matches(msg, model.keys.MarkNew), key.Matches(msg, model.keys.MarkRead), key.Matches(msg, model.keys.MarkReplied):
		id, ok := model.selectCursor(st)
		if !ok {
			return model, nil
		}
		status := statusForKey(model.keys, msg)
		ctx, ctrl := model.ctx, model.ctrl
		return model, func() tea.Msg {
			return opDoneMsg{op: "status", ok: ctrl.SetStatus(ctx, id, status)}
		}
	case key.Matches(msg, model.keys.Delete):
		if _, ok := model.selectCursor(st); ok {
			model.confirmDelete = true
		}
	case key.Matches(msg, model.keys.CopyEmail):
		if email, ok := model.ctrl.CopyEmail(); ok {
			return model, copyToClipboard(email)
		}
	case key.Matches(msg, model.keys.SignOut):
		ctx, ctrl := model.ctx, model.ctrl
		return model, func() tea.Msg {
			return opDoneMsg{op: "signout", ok: ctrl.SignOut(ctx)}
		}
	}
	return model, nil
}

// selectCursor selects the row under the cursor, or keeps the current
// selection when the list is empty.
func (model Model) selectCursor(st app.State) (string, bool) {
	if model.cursor >= 0 && model.cursor < len(st.Visible) {
		id := st.Visible[model.cursor].ID
		if model.ctrl.Triage().Select(id) {
			return id, true
		}
	}
	if st.Selected != nil {
		return st.Selected.ID, true
	}
	return "", false
}

func nextFilter(f triage.StatusFilter) triage.StatusFilter {
	for i, cur := range triage.Filters {
		if cur == f {
			return triage.Filters[(i+1)%len(triage.Filters)]
		}
	}
	return triage.FilterAll
}

func (model *Model) clampCursor() {
	n := len(model.ctrl.Triage().Visible())
	if model.cursor >= n {
		model.cursor = n - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
}

// focusCurrent gives focus to exactly one input, based on view and state.
func (model *Model) focusCurrent() {
	for i := range model.formInputs {
		model.formInputs[i].Blur()
	}
	model.formMessage.Blur()
	for i := range model.loginInputs {
		model.loginInputs[i].Blur()
	}
	model.search.Blur()

	st := model.ctrl.State()
	switch {
	case st.View == app.ViewPortfolio:
		if contactform.Fields[model.formFocus] == contactform.FieldMessage {
			model.formMessage.Focus()
		} else {
			model.formInputs[model.formFocus].Focus()
		}
	case st.Session.Authenticated():
		if model.searching {
			model.search.Focus()
		}
	default:
		model.loginInputs[model.loginFocus].Focus()
	}
}

func (model Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	for i := range model.formInputs {
		model.formInputs[i], cmd = model.formInputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	model.formMessage, cmd = model.formMessage.Update(msg)
	cmds = append(cmds, cmd)
	for i := range model.loginInputs {
		model.loginInputs[i], cmd = model.loginInputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	model.search, cmd = model.search.Update(msg)
	cmds = append(cmds, cmd)
	return model, tea.Batch(cmds...)
}
