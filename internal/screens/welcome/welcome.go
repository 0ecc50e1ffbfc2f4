package welcome

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/router"
	"github.com/abhisek/hangeul/internal/screen"
	"github.com/abhisek/hangeul/internal/ui/theme"
)

const (
	tickInterval = 150 * time.Millisecond
	letterEvery  = 2 // ticks per revealed letter
)

// totalTicks is the length of the spelling animation.
var totalTicks = len(jamo) * letterEvery

type tickMsg time.Time

// WelcomeScreen spells out 한글 letter by letter, then waits for a key
// before handing over to the next screen.
type WelcomeScreen struct {
	nextFactory  func() screen.Screen
	ticks        int
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen that is replaced by the screen produced by
// nextFactory.
func New(nextFactory func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{nextFactory: nextFactory}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *WelcomeScreen) done() bool {
	return w.ticks >= totalTicks
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.done() || w.transitioned {
			return w, nil
		}
		w.ticks++
		if w.done() {
			return w, nil
		}
		return w, tick()

	case tea.KeyPressMsg:
		// Any key skips the rest of the animation.
		return w, w.transition()
	}
	return w, nil
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	next := w.nextFactory()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: next}
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	var sections []string

	if w.done() {
		sections = append(sections, RenderBanner(width))
	} else {
		sections = append(sections, "", RenderJamo(w.ticks/letterEvery+1), "")
	}

	if w.done() {
		sections = append(sections,
			"",
			lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render("Korean quizzes and TOPIK practice"),
			"",
			lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true).Render("press any key to continue"),
		)
	}

	content := strings.Join(sections, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
