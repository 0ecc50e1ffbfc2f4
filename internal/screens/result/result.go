// Package result shows the scored outcome of a finished attempt.
package result

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/router"
	"github.com/abhisek/hangeul/internal/screen"
	"github.com/abhisek/hangeul/internal/session"
	"github.com/abhisek/hangeul/internal/ui/components"
	"github.com/abhisek/hangeul/internal/ui/layout"
	"github.com/abhisek/hangeul/internal/ui/theme"
)

// ResultScreen displays the score and a per-question review.
type ResultScreen struct {
	summary session.Summary
}

var _ screen.Screen = (*ResultScreen)(nil)
var _ screen.KeyHintProvider = (*ResultScreen)(nil)

// New creates a ResultScreen.
func New(summary session.Summary) *ResultScreen {
	return &ResultScreen{summary: summary}
}

func (s *ResultScreen) Init() tea.Cmd {
	return nil
}

func (s *ResultScreen) Title() string {
	return "Result"
}

func (s *ResultScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "any key", Description: "Back to assessments"},
	}
}

// Update returns to the catalog on any key press.
func (s *ResultScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && kmsg.String() != "ctrl+c" {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	return s, nil
}

func (s *ResultScreen) View(width, height int) string {
	sum := s.summary
	center := func(str string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, str)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center(theme.Title.Render(sum.Title)))
	b.WriteString("\n\n")

	res := sum.Result
	verdict := theme.Incorrect.Render("Not passed")
	if res.Passed {
		verdict = theme.Correct.Render("Passed")
	}
	score := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true).Render(fmt.Sprintf("%d%%", res.Score))
	b.WriteString(center(score + "   " + verdict))
	b.WriteString("\n\n")

	stats := fmt.Sprintf("Correct %d/%d    Answered %d    Unanswered %d    Time %s",
		res.CorrectAnswers, res.TotalQuestions, sum.Answered, sum.Unanswered,
		layout.FormatClock(sum.TimeTakenSeconds))
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text).Render(stats)))
	b.WriteString("\n")
	if sum.AutoSubmitted {
		b.WriteString(center(theme.Hint.Render("Submitted automatically when time ran out.")))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	barWidth := min(width-8, 60)
	bar := components.NewProgressBar("", float64(res.Score)/100, false, barWidth)
	b.WriteString(center(bar.View()))
	b.WriteString("\n\n")

	// Review rows fill whatever height is left.
	used := lipgloss.Height(b.String())
	rows := height - used - 2
	if rows > 0 && len(sum.Review) > 0 {
		divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", barWidth))
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim).Render("Review")))
		b.WriteString("\n")
		b.WriteString(center(divider))
		b.WriteString("\n")
		b.WriteString(center(renderReview(sum.Review, rows-2, barWidth)))
	}
	return b.String()
}

func renderReview(items []session.ReviewItem, rows, width int) string {
	if rows <= 0 {
		return ""
	}
	var lines []string
	for i, it := range items {
		if len(lines) == rows-1 && i < len(items)-1 {
			lines = append(lines, theme.Hint.Render(fmt.Sprintf("… %d more", len(items)-i)))
			break
		}
		lines = append(lines, reviewLine(it, width))
	}
	return strings.Join(lines, "\n")
}

func reviewLine(it session.ReviewItem, width int) string {
	var mark, answer string
	switch {
	case it.Chosen == "":
		mark = lipgloss.NewStyle().Foreground(theme.TextDim).Render("–")
		answer = "skipped, answer " + it.Correct
	case it.IsCorrect():
		mark = theme.Correct.Render("✓")
		answer = it.Chosen
	default:
		mark = theme.Incorrect.Render("✗")
		answer = it.Chosen + " → " + it.Correct
	}
	prefix := fmt.Sprintf("%2d. ", it.Index+1)
	text := layout.Truncate(layout.PlainText(it.Text), max(width-lipgloss.Width(prefix)-lipgloss.Width(answer)-4, 8))
	return mark + " " + prefix + text + "  " + lipgloss.NewStyle().Foreground(theme.TextDim).Render(answer)
}
