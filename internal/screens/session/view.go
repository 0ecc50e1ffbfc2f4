package session

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/mediacache"
	sess "github.com/abhisek/hangeul/internal/session"
	"github.com/abhisek/hangeul/internal/ui/components"
	"github.com/abhisek/hangeul/internal/ui/layout"
	"github.com/abhisek/hangeul/internal/ui/theme"
)

const (
	// lowTimeFraction turns the countdown bar orange.
	lowTimeFraction = 0.2

	maxPathWidth = 64
)

// renderQuestionView renders the current question with its status bar.
func (s *SessionScreen) renderQuestionView(width, height int) string {
	st := s.state
	q, ok := st.Current()
	if !ok {
		return renderLoading(width, "No question to show.")
	}

	inner := max(width-4, 20)
	gap := "\n\n"
	if layout.IsCompactHeight(height) {
		gap = "\n"
	}
	var b strings.Builder

	b.WriteString(s.renderStatusLine(inner))
	b.WriteString("\n")
	b.WriteString(s.renderClock(inner))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", inner)))
	b.WriteString(gap)

	if pb := q.PromptBox; pb != nil && pb.Placement == assessment.PlacementTop {
		b.WriteString(s.renderPromptBox(*pb, q.Kind, inner))
		b.WriteString(gap)
	}

	b.WriteString(lipgloss.NewStyle().
		Width(inner).
		Foreground(theme.Text).
		Bold(true).
		Render(layout.RenderMarkup(q.Text)))
	b.WriteString(gap)

	if pb := q.PromptBox; pb != nil && pb.Placement == assessment.PlacementMiddle {
		b.WriteString(s.renderPromptBox(*pb, q.Kind, inner))
		b.WriteString(gap)
	}

	if media := s.renderMedia(q); media != "" {
		b.WriteString(media)
		b.WriteString("\n")
	}

	b.WriteString(s.renderOptions(q))

	if pb := q.PromptBox; pb != nil && pb.Placement != assessment.PlacementTop && pb.Placement != assessment.PlacementMiddle {
		b.WriteString("\n")
		b.WriteString(s.renderPromptBox(*pb, q.Kind, inner))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(s.renderFooterLine())

	return lipgloss.NewStyle().Padding(0, 2).Render(b.String())
}

// renderStatusLine shows the position, the question strip and the answer count.
func (s *SessionScreen) renderStatusLine(width int) string {
	st := s.state
	left := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("Question %d of %d", st.CurrentIndex+1, len(st.Questions)))

	right := lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("Answered %d/%d", st.Answered(), len(st.Questions)))

	strip := questionStrip(st)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap > lipgloss.Width(strip)+4 {
		pad := (gap - lipgloss.Width(strip)) / 2
		return left + strings.Repeat(" ", pad) + strip + strings.Repeat(" ", gap-pad-lipgloss.Width(strip)) + right
	}
	return left + strings.Repeat(" ", max(gap, 1)) + right
}

// questionStrip renders one dot per question: filled when answered,
// highlighted when current.
func questionStrip(st sess.State) string {
	parts := make([]string, len(st.Questions))
	for i, q := range st.Questions {
		dot := "○"
		if _, ok := st.AnswerFor(q.ID); ok {
			dot = "●"
		}
		style := lipgloss.NewStyle().Foreground(theme.TextDim)
		if i == st.CurrentIndex {
			style = lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
		}
		parts[i] = style.Render(dot)
	}
	return strings.Join(parts, " ")
}

// renderClock renders the countdown bar, or elapsed-free "untimed".
func (s *SessionScreen) renderClock(width int) string {
	st := s.state
	if !st.Timed {
		return lipgloss.NewStyle().Foreground(theme.TextDim).Render("Untimed")
	}
	total := st.Assessment.DurationSeconds
	pct := 0.0
	if total > 0 {
		pct = float64(st.RemainingSeconds) / float64(total)
	}
	bar := components.NewProgressBar("Time", pct, false, width)
	bar.LowAt = lowTimeFraction
	bar.Suffix = layout.FormatClock(st.RemainingSeconds)
	return bar.View()
}

func (s *SessionScreen) renderPromptBox(pb assessment.PromptBox, kind assessment.Kind, width int) string {
	var lines []string
	if pb.Text != "" {
		lines = append(lines, layout.RenderMarkup(pb.Text))
	}
	if pb.MediaURL != "" {
		mt := assessment.InferMediaType(pb.MediaURL, kind)
		lines = append(lines, s.mediaLine(pb.MediaURL, mt))
	}
	return theme.PromptBox.Width(min(width, 72)).Render(strings.Join(lines, "\n"))
}

// renderMedia lists the question's attachments with their cache status.
func (s *SessionScreen) renderMedia(q assessment.Question) string {
	if len(q.MediaRefs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range q.MediaRefs {
		mt := m.Type
		if mt == "" {
			mt = assessment.InferMediaType(m.URL, q.Kind)
		}
		b.WriteString(s.mediaLine(m.URL, mt))
		b.WriteString("\n")
	}
	return b.String()
}

// mediaLine shows where an asset is rendered from: the local copy when
// ready, otherwise the remote URL, or a failure marker.
func (s *SessionScreen) mediaLine(src string, mt assessment.MediaType) string {
	label := lipgloss.NewStyle().Foreground(theme.Accent).Render(mediaIcon(mt) + " " + string(mt))
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	url := layout.Truncate(src, maxPathWidth)

	if s.media == nil {
		return label + "  " + dim.Render(url)
	}
	e, ok := s.media.Entry(src)
	switch {
	case ok && e.State == mediacache.StateFailed:
		return label + "  " + theme.ErrorText.Render("failed to load") + dim.Render(" (M to retry)")
	case ok && e.State == mediacache.StatePending:
		return label + "  " + dim.Render("loading "+url)
	default:
		return label + "  " + lipgloss.NewStyle().Foreground(theme.Text).Render(layout.Truncate(s.media.Get(src, mt), maxPathWidth))
	}
}

func mediaIcon(mt assessment.MediaType) string {
	switch mt {
	case assessment.MediaAudio:
		return "♪"
	case assessment.MediaVideo:
		return "▶"
	default:
		return "▣"
	}
}

func (s *SessionScreen) renderOptions(q assessment.Question) string {
	choices := make([]components.Choice, len(q.Options))
	chosen := -1
	picked, answered := s.state.AnswerFor(q.ID)
	for i, o := range q.Options {
		content := layout.RenderMarkup(o.Content)
		if o.Kind == assessment.KindImage || o.Kind == assessment.KindAudio {
			content = s.mediaLine(o.Content, assessment.InferMediaType(o.Content, o.Kind))
		}
		choices[i] = components.Choice{Label: o.ID, Content: content}
		if answered && o.ID == picked {
			chosen = i
		}
	}
	mc := components.NewMultiChoice(choices)
	mc.Chosen = chosen
	mc.Locked = s.state.Expired || s.state.Status != sess.StatusInProgress
	return mc.View()
}

// renderFooterLine shows submission progress, failures and notices.
func (s *SessionScreen) renderFooterLine() string {
	st := s.state
	var lines []string
	switch {
	case st.Status == sess.StatusSubmitting:
		msg := "Submitting answers..."
		if st.AutoSubmitted || st.Expired {
			msg = "Time is up. Submitting answers..."
		}
		lines = append(lines, s.spinner.View()+" "+lipgloss.NewStyle().Foreground(theme.Accent).Render(msg))
	case st.Err != nil:
		lines = append(lines, theme.ErrorText.Render("Submission failed: "+st.Err.Error()),
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("Your answers are kept. Press R to submit again."))
	case st.Expired:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.Warning).Render("Time is up."))
	}
	if s.notice != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.Warning).Render(s.notice))
	}
	return strings.Join(lines, "\n")
}

// renderFailure renders a load or submit error.
func (s *SessionScreen) renderFailure(width int) string {
	st := s.state
	title := "Could not load the questions"
	hint := "Press R to try again or Esc to go back."
	if st.ErrFrom == sess.StatusSubmitting {
		title = "Could not submit your answers"
		hint = fmt.Sprintf("%d answer(s) are kept. Press R to submit again or Esc to discard.", st.Answered())
	}
	detail := ""
	if st.Err != nil {
		detail = st.Err.Error()
	}
	if s.notice != "" {
		detail += "\n" + s.notice
	}
	return renderError(width, title+"\n\n"+detail, hint)
}

func (s *SessionScreen) renderConfirm(width int) string {
	if s.confirm == confirmQuit {
		return components.Confirm(
			"Leave this attempt?",
			"Your answers will be discarded and nothing is submitted.",
			components.NewButton("Y", "Leave", false),
			components.NewButton("N", "Keep going", true),
			width)
	}
	st := s.ctrl.State()
	detail := "All questions answered."
	if left := len(st.Questions) - st.Answered(); left > 0 {
		detail = fmt.Sprintf("%d question(s) still unanswered.", left)
	}
	return components.Confirm(
		"Submit your answers now?",
		detail,
		components.NewButton("Y", "Submit", true),
		components.NewButton("N", "Keep going", false),
		width)
}

// renderLoading renders the loading state.
func renderLoading(width int, msg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("\n\n\n" + msg)
}

// renderError renders an error message.
func renderError(width int, errMsg, hint string) string {
	body := theme.ErrorText.Render(errMsg)
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render("\n\n\n" + body + "\n\n" + lipgloss.NewStyle().Foreground(theme.TextDim).Render(hint))
}
