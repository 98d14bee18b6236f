package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding. Letter keys only apply where no text input
// has focus.
type KeyMap struct {
	Quit        key.Binding
	ToggleTheme key.Binding
	OpenAdmin   key.Binding
	Back        key.Binding
	Dismiss     key.Binding

	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding

	SignIn         key.Binding
	SignInProvider key.Binding
	SignOut        key.Binding

	Up          key.Binding
	Down        key.Binding
	Open        key.Binding
	Search      key.Binding
	CycleFilter key.Binding
	MarkNew     key.Binding
	MarkRead    key.Binding
	MarkReplied key.Binding
	Delete      key.Binding
	Confirm     key.Binding
	CopyEmail   key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	ToggleTheme: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "theme")),
	OpenAdmin:   key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "admin")),
	Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Dismiss:     key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter", "close")),

	NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab")),
	Submit:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "send")),

	SignIn:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in")),
	SignInProvider: key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "sign in with Google")),
	SignOut:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sign out")),

	Up:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:        key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	CycleFilter: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	MarkNew:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
	MarkRead:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "read")),
	MarkReplied: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "replied")),
	Delete:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
	Confirm:     key.NewBinding(key.WithKeys("y")),
	CopyEmail:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy email")),
}
