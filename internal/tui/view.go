package tui

import (
	"fmt"
	"strings"

	"portfolio-backend/internal/app"
	"portfolio-backend/internal/contactform"
	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/session"
	"portfolio-backend/internal/triage"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	modalText = "Message sent! Thanks for reaching out, I will get back to you soon."
	maxRows   = 12
)

func statusForKey(keys KeyMap, msg tea.KeyMsg) domain.MessageStatus {
	switch {
	case key.Matches(msg, keys.MarkRead):
		return domain.StatusRead
	case key.Matches(msg, keys.MarkReplied):
		return domain.StatusReplied
	}
	return domain.StatusNew
}

type styles struct {
	theme    Theme
	title    lipgloss.Style
	text     lipgloss.Style
	faint    lipgloss.Style
	label    lipgloss.Style
	err      lipgloss.Style
	ok       lipgloss.Style
	box      lipgloss.Style
	selected lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		theme:    t,
		title:    lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		text:     lipgloss.NewStyle().Foreground(t.Text),
		faint:    lipgloss.NewStyle().Foreground(t.Faint),
		label:    lipgloss.NewStyle().Bold(true).Foreground(t.Text),
		err:      lipgloss.NewStyle().Foreground(t.Error),
		ok:       lipgloss.NewStyle().Foreground(t.Success),
		box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1),
		selected: lipgloss.NewStyle().Background(t.SelectedBg).Foreground(t.SelectedFg),
	}
}

// View implements tea.Model.
func (model Model) View() string {
	st := model.ctrl.State()
	s := newStyles(themeFor(st.Theme))

	var body string
	switch {
	case st.View == app.ViewPortfolio:
		body = model.portfolioView(st, s)
	case st.Session.Authenticated():
		body = model.triageView(st, s)
	case st.Session.State == session.StateLoading && st.Session.Loading:
		body = s.faint.Render("Checking session…")
	default:
		body = model.loginView(st, s)
	}

	parts := []string{model.header(st, s), body}
	if st.ModalOpen {
		parts = append(parts, s.box.BorderForeground(s.theme.Success).Render(s.ok.Render(modalText)+"\n"+s.faint.Render("enter to close")))
	}
	if st.Alert != "" {
		parts = append(parts, s.box.BorderForeground(s.theme.Error).Render(s.err.Render(st.Alert)+"\n"+s.faint.Render("enter to dismiss")))
	}
	parts = append(parts, model.footer(st, s))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (model Model) header(st app.State, s styles) string {
	right := string(st.Theme)
	if st.Session.Authenticated() && st.Session.Session != nil {
		right = st.Session.Session.Email + " · " + right
	}
	return s.title.Render("Portfolio") + s.faint.Render(fmt.Sprintf("  %s  [%s]\n", st.View, right))
}

func (model Model) portfolioView(st app.State, s styles) string {
	var b strings.Builder
	b.WriteString(s.text.Render("Web development, design and consulting. Send me a message below.") + "\n\n")
	for i, field := range contactform.Fields {
		b.WriteString(s.label.Render(fieldLabel(field)) + "\n")
		if field == contactform.FieldMessage {
			b.WriteString(model.formMessage.View() + "\n")
		} else {
			b.WriteString(model.formInputs[i].View() + "\n")
		}
		if st.Form.Touched[field] && st.Form.Errors[field] != "" {
			b.WriteString(s.err.Render(st.Form.Errors[field]) + "\n")
		}
		b.WriteString("\n")
	}
	switch {
	case st.Form.Submitting:
		b.WriteString(s.faint.Render("Sending…"))
	case st.Form.Valid:
		b.WriteString(s.ok.Render("ctrl+s to send"))
	default:
		b.WriteString(s.faint.Render("fill in every field to send"))
	}
	return b.String()
}

func fieldLabel(field string) string {
	switch field {
	case contactform.FieldName:
		return "Name"
	case contactform.FieldEmail:
		return "Email"
	}
	return "Message"
}

func (model Model) loginView(st app.State, s styles) string {
	var b strings.Builder
	b.WriteString(s.label.Render("Admin sign-in") + "\n\n")
	for _, in := range model.loginInputs {
		b.WriteString(in.View() + "\n")
	}
	b.WriteString("\n")
	switch {
	case st.LoginPending:
		b.WriteString(s.faint.Render("Signing in…"))
	case st.LoginError != "":
		b.WriteString(s.err.Render(st.LoginError))
	}
	return b.String()
}

func (model Model) triageView(st app.State, s styles) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %d   %s %d\n",
		s.label.Render("Total"), st.KPIs.Total,
		lipgloss.NewStyle().Bold(true).Foreground(s.theme.StatusNew).Render("New"), st.KPIs.New))

	b.WriteString(model.search.View() + "   ")
	for _, f := range triage.Filters {
		if f == st.Filter {
			b.WriteString(s.selected.Render(" "+string(f)+" ") + " ")
		} else {
			b.WriteString(s.faint.Render(string(f)) + " ")
		}
	}
	b.WriteString("\n\n")

	if len(st.Visible) == 0 {
		b.WriteString(s.faint.Render("No messages") + "\n")
	}
	start := 0
	if model.cursor >= maxRows {
		start = model.cursor - maxRows + 1
	}
	for i := start; i < len(st.Visible) && i < start+maxRows; i++ {
		b.WriteString(model.row(st, s, i) + "\n")
	}

	if m := st.Selected; m != nil {
		detail := fmt.Sprintf("%s <%s>\n%s  %s\n\n%s",
			s.label.Render(m.Name), m.Email,
			s.faint.Render(m.Date),
			lipgloss.NewStyle().Foreground(s.theme.StatusColor(m.Status)).Render(string(m.Status)),
			s.text.Width(max(20, min(model.width-6, 76))).Render(m.Message))
		b.WriteString("\n" + s.box.Render(detail))
	}
	if model.confirmDelete {
		b.WriteString("\n" + s.err.Render("Delete this message? y to confirm"))
	}
	return b.String()
}

func (model Model) row(st app.State, s styles, i int) string {
	m := st.Visible[i]
	date := m.Date
	if len(date) > 16 {
		date = strings.Replace(date[:16], "T", " ", 1)
	}
	status := lipgloss.NewStyle().Width(8).Foreground(s.theme.StatusColor(m.Status)).Render(string(m.Status))
	line := fmt.Sprintf("%s %s  %-20s %s", status, date, truncate(m.Name, 20), truncate(m.Email, 30))
	marker := "  "
	if st.Selected != nil && st.Selected.ID == m.ID {
		marker = "▸ "
	}
	if i == model.cursor {
		return s.selected.Render(marker + line)
	}
	return marker + line
}

func truncate(v string, n int) string {
	r := []rune(v)
	if len(r) <= n {
		return v
	}
	return string(r[:n-1]) + "…"
}

func (model Model) footer(st app.State, s styles) string {
	var lines []string
	for _, n := range st.Notices {
		if n.Kind == app.NoticeError {
			lines = append(lines, s.err.Render(n.Text))
		} else {
			lines = append(lines, s.ok.Render(n.Text))
		}
	}
	lines = append(lines, s.faint.Render(model.help(st)))
	return "\n" + strings.Join(lines, "\n")
}

func (model Model) help(st app.State) string {
	var bindings []key.Binding
	k := model.keys
	switch {
	case st.View == app.ViewPortfolio:
		bindings = []key.Binding{k.NextField, k.Submit, k.OpenAdmin}
	case st.Session.Authenticated():
		bindings = []key.Binding{k.Up, k.Down, k.Open, k.Search, k.CycleFilter, k.MarkNew, k.MarkRead, k.MarkReplied, k.Delete, k.CopyEmail, k.SignOut, k.Back}
	default:
		bindings = []key.Binding{k.NextField, k.SignIn, k.SignInProvider, k.Back}
	}
	bindings = append(bindings, k.ToggleTheme, k.Quit)
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}
