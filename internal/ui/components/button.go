package components

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/ui/theme"
)

// Button is a styled, keyboard-labelled button.
type Button struct {
	Key    string
	Label  string
	Active bool
}

// NewButton creates a new button.
func NewButton(key, label string, active bool) Button {
	return Button{Key: key, Label: label, Active: active}
}

// View renders the button.
func (b Button) View() string {
	label := "[" + b.Key + "] " + b.Label
	if b.Active {
		return theme.ButtonActive.Render(label)
	}
	return theme.ButtonInactive.Render(label)
}

// Confirm renders a centered yes/no prompt.
func Confirm(question, detail string, yes, no Button, width int) string {
	q := lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(question)
	parts := []string{q}
	if detail != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.TextDim).Render(detail))
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yes.View(), "  ", no.View())
	parts = append(parts, "", buttons)
	block := lipgloss.JoinVertical(lipgloss.Center, parts...)
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, "\n\n"+block)
}
