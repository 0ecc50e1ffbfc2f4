package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/ui/theme"
)

// Choice is one rendered answer option.
type Choice struct {
	Label   string // A, B, C, D
	Content string
}

// MultiChoice renders the four answer options of a question. Chosen marks
// the learner's pick; in review mode Correct is highlighted as well.
type MultiChoice struct {
	Choices []Choice
	Chosen  int // -1 when unanswered
	Correct int
	Review  bool
	Locked  bool // answers can no longer change
}

// NewMultiChoice creates a MultiChoice with no selection.
func NewMultiChoice(choices []Choice) MultiChoice {
	return MultiChoice{
		Choices: choices,
		Chosen:  -1,
		Correct: -1,
	}
}

// View renders one option per line.
func (m MultiChoice) View() string {
	var b strings.Builder
	for i, c := range m.Choices {
		marker := "  "
		if i == m.Chosen {
			marker = "▸ "
		}
		line := fmt.Sprintf("%s%s)  %s", marker, c.Label, c.Content)

		var style lipgloss.Style
		switch {
		case m.Review && i == m.Correct:
			style = theme.Correct
		case m.Review && i == m.Chosen:
			style = theme.Incorrect
		case m.Review, m.Locked && i != m.Chosen:
			style = lipgloss.NewStyle().Foreground(theme.TextDim)
		case i == m.Chosen:
			style = theme.Selected
		default:
			style = theme.Unselected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// IsCorrect reports whether the chosen option is the correct one.
func (m MultiChoice) IsCorrect() bool {
	return m.Chosen >= 0 && m.Chosen == m.Correct
}
