package tui

import (
	"portfolio-backend/internal/app"
	"portfolio-backend/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color palette. Colors are ANSI 256 codes.
type Theme struct {
	Text       lipgloss.Color
	Faint      lipgloss.Color
	Accent     lipgloss.Color
	Border     lipgloss.Color
	Error      lipgloss.Color
	Success    lipgloss.Color
	SelectedBg lipgloss.Color
	SelectedFg lipgloss.Color

	StatusNew     lipgloss.Color
	StatusRead    lipgloss.Color
	StatusReplied lipgloss.Color
}

var DarkTheme = Theme{
	Text:          "252",
	Faint:         "243",
	Accent:        "111",
	Border:        "238",
	Error:         "203",
	Success:       "114",
	SelectedBg:    "236",
	SelectedFg:    "255",
	StatusNew:     "221",
	StatusRead:    "117",
	StatusReplied: "114",
}

var LightTheme = Theme{
	Text:          "235",
	Faint:         "245",
	Accent:        "25",
	Border:        "250",
	Error:         "160",
	Success:       "28",
	SelectedBg:    "254",
	SelectedFg:    "232",
	StatusNew:     "130",
	StatusRead:    "25",
	StatusReplied: "28",
}

func themeFor(t app.Theme) Theme {
	if t == app.ThemeLight {
		return LightTheme
	}
	return DarkTheme
}

func (t Theme) StatusColor(s domain.MessageStatus) lipgloss.Color {
	switch s {
	case domain.StatusNew:
		return t.StatusNew
	case domain.StatusRead:
		return t.StatusRead
	case domain.StatusReplied:
		return t.StatusReplied
	}
	return t.Faint
}
