// Package session is the screen for one running attempt. It renders
// controller snapshots and turns key presses into controller operations.
package session

import (
	"errors"
	"fmt"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/mediacache"
	"github.com/abhisek/hangeul/internal/router"
	"github.com/abhisek/hangeul/internal/screen"
	"github.com/abhisek/hangeul/internal/screens/result"
	sess "github.com/abhisek/hangeul/internal/session"
	"github.com/abhisek/hangeul/internal/ui/layout"
	"github.com/abhisek/hangeul/internal/ui/theme"
)

// Media is the read side of the prefetch cache the screen renders from.
type Media interface {
	Get(url string, mediaType assessment.MediaType) string
	Entry(url string) (mediacache.Entry, bool)
	Retry(url string) bool
	Subscribe() (<-chan mediacache.Event, func())
}

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmFinish
	confirmQuit
)

// SessionScreen implements screen.Screen for one attempt. It owns the
// controller and closes it when the attempt ends or is abandoned.
type SessionScreen struct {
	ctrl   *sess.Controller
	media  Media
	target assessment.Assessment

	state      sess.State
	states     <-chan sess.State
	stopStates func()
	events     <-chan mediacache.Event
	stopEvents func()

	spinner  spinner.Model
	keys     keyMap
	confirm  confirmKind
	notice   string
	startErr error
	done     bool
}

var _ screen.Screen = (*SessionScreen)(nil)
var _ screen.KeyHintProvider = (*SessionScreen)(nil)
var _ screen.BackHandler = (*SessionScreen)(nil)

// New creates a SessionScreen that starts a on Init. media may be nil.
func New(ctrl *sess.Controller, media Media, a assessment.Assessment) *SessionScreen {
	return &SessionScreen{
		ctrl:   ctrl,
		media:  media,
		target: a,
		keys:   defaultKeys(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Secondary)),
		),
	}
}

func (s *SessionScreen) Init() tea.Cmd {
	s.states, s.stopStates = s.ctrl.Subscribe()
	cmds := []tea.Cmd{waitForState(s.states), s.spinner.Tick}
	if s.media != nil {
		s.events, s.stopEvents = s.media.Subscribe()
		cmds = append(cmds, waitForMedia(s.events))
	}
	if err := s.ctrl.Start(s.target); err != nil {
		s.startErr = err
	}
	return tea.Batch(cmds...)
}

func (s *SessionScreen) Title() string {
	if s.target.Title != "" {
		return s.target.Title
	}
	return "Session"
}

// HandlesBack keeps the app from popping a running attempt on Esc.
func (s *SessionScreen) HandlesBack() bool { return true }

func (s *SessionScreen) KeyHints() []layout.KeyHint {
	if s.confirm != confirmNone {
		return []layout.KeyHint{
			{Key: "Y", Description: "Yes"},
			{Key: "N", Description: "No"},
		}
	}
	switch s.state.Status {
	case sess.StatusInProgress:
		hints := []layout.KeyHint{
			{Key: "1-4", Description: "Answer"},
			{Key: "←→", Description: "Move"},
			{Key: "F", Description: "Finish"},
		}
		if s.state.CanRetry() {
			hints = append(hints, layout.KeyHint{Key: "R", Description: "Retry submit"})
		}
		if s.failedMedia() {
			hints = append(hints, layout.KeyHint{Key: "M", Description: "Reload media"})
		}
		return append(hints, layout.KeyHint{Key: "Esc", Description: "Leave"})
	case sess.StatusError:
		return []layout.KeyHint{
			{Key: "R", Description: "Retry"},
			{Key: "Esc", Description: "Leave"},
		}
	case sess.StatusSubmitting:
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	default:
		return []layout.KeyHint{{Key: "Esc", Description: "Leave"}}
	}
}

func (s *SessionScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		return s.handleState(msg.State)

	case statesClosedMsg, mediaClosedMsg, closedMsg:
		return s, nil

	case mediaMsg:
		return s, waitForMedia(s.events)

	case spinner.TickMsg:
		if !s.busy() {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *SessionScreen) View(width, height int) string {
	if s.confirm != confirmNone {
		return s.renderConfirm(width)
	}
	if s.startErr != nil {
		return renderError(width, "Could not start: "+s.startErr.Error(), "Press Esc to go back.")
	}
	switch s.state.Status {
	case sess.StatusIdle, sess.StatusLoading:
		return renderLoading(width, s.spinner.View()+" Loading questions...")
	case sess.StatusError:
		return s.renderFailure(width)
	default:
		return s.renderQuestionView(width, height)
	}
}

func (s *SessionScreen) busy() bool {
	switch s.state.Status {
	case sess.StatusIdle, sess.StatusLoading, sess.StatusSubmitting:
		return !s.done
	}
	return false
}

func (s *SessionScreen) handleState(st sess.State) (screen.Screen, tea.Cmd) {
	if s.done {
		return s, nil
	}
	prev := s.state.Status
	s.state = st

	if st.Status == sess.StatusCompleted {
		s.done = true
		sum := sess.BuildSummary(st)
		next := result.New(sum)
		return s, tea.Batch(
			s.shutdown(),
			func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} },
		)
	}

	var cmds []tea.Cmd
	cmds = append(cmds, waitForState(s.states))
	if s.busy() && prev != st.Status {
		cmds = append(cmds, s.spinner.Tick)
	}
	if st.Status != sess.StatusInProgress {
		s.confirm = confirmNone
	}
	return s, tea.Batch(cmds...)
}

func (s *SessionScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.done {
		return s, nil
	}

	if s.confirm != confirmNone {
		switch {
		case key.Matches(msg, s.keys.Yes):
			kind := s.confirm
			s.confirm = confirmNone
			if kind == confirmQuit {
				return s, s.quit()
			}
			s.report(s.ctrl.Finish())
		case key.Matches(msg, s.keys.No):
			s.confirm = confirmNone
		}
		return s, nil
	}

	if s.startErr != nil {
		if key.Matches(msg, s.keys.Back) {
			return s, s.quit()
		}
		return s, nil
	}

	// Keys act on the controller's current state; s.state may still lag
	// behind operations made by earlier keys in the same batch.
	st := s.ctrl.State()
	switch st.Status {
	case sess.StatusIdle, sess.StatusLoading:
		if key.Matches(msg, s.keys.Back) {
			return s, s.quit()
		}
	case sess.StatusError:
		switch {
		case key.Matches(msg, s.keys.Retry):
			s.notice = ""
			s.report(s.ctrl.Retry())
		case key.Matches(msg, s.keys.Back):
			if st.Answered() == 0 {
				return s, s.quit()
			}
			s.confirm = confirmQuit
		}
	case sess.StatusInProgress:
		return s.handleAnswering(msg, st)
	}
	return s, nil
}

func (s *SessionScreen) handleAnswering(msg tea.KeyMsg, st sess.State) (screen.Screen, tea.Cmd) {
	switch {
	case key.Matches(msg, s.keys.Answer):
		i, _ := optionIndex(msg.String())
		q, ok := st.Current()
		if !ok || i >= len(q.Options) {
			return s, nil
		}
		s.notice = ""
		s.report(s.ctrl.Answer(q.ID, q.Options[i].ID))
	case key.Matches(msg, s.keys.Previous):
		s.report(s.ctrl.Previous())
	case key.Matches(msg, s.keys.Next):
		s.report(s.ctrl.Next())
	case key.Matches(msg, s.keys.Finish):
		s.confirm = confirmFinish
	case key.Matches(msg, s.keys.Retry):
		if st.CanRetry() {
			s.notice = ""
			s.report(s.ctrl.Retry())
		}
	case key.Matches(msg, s.keys.Media):
		s.retryMedia(st)
	case key.Matches(msg, s.keys.Back):
		s.confirm = confirmQuit
	}
	return s, nil
}

// report turns an operation error into the notice line.
func (s *SessionScreen) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, sess.ErrTimeExpired):
		s.notice = "Time is up. Your answers are being submitted."
	case errors.Is(err, sess.ErrInvalidTransition):
		// A snapshot is in flight; the next render shows the new status.
	default:
		s.notice = err.Error()
	}
}

func (s *SessionScreen) retryMedia(st sess.State) {
	if s.media == nil {
		return
	}
	q, ok := st.Current()
	if !ok {
		return
	}
	n := 0
	for _, a := range q.Assets() {
		if s.media.Retry(a.URL) {
			n++
		}
	}
	if n > 0 {
		s.notice = fmt.Sprintf("Reloading %d media file(s)...", n)
	}
}

func (s *SessionScreen) failedMedia() bool {
	if s.media == nil {
		return false
	}
	q, ok := s.state.Current()
	if !ok {
		return false
	}
	for _, a := range q.Assets() {
		if e, ok := s.media.Entry(a.URL); ok && e.State == mediacache.StateFailed {
			return true
		}
	}
	return false
}

// quit abandons the attempt and leaves the screen.
func (s *SessionScreen) quit() tea.Cmd {
	s.done = true
	s.ctrl.Reset()
	return tea.Batch(
		s.shutdown(),
		func() tea.Msg { return router.PopScreenMsg{} },
	)
}

// shutdown ends the subscriptions and closes the controller off the update
// loop, since Close waits for in-flight work.
func (s *SessionScreen) shutdown() tea.Cmd {
	if s.stopStates != nil {
		s.stopStates()
	}
	if s.stopEvents != nil {
		s.stopEvents()
	}
	ctrl := s.ctrl
	return func() tea.Msg {
		return closedMsg{Err: ctrl.Close()}
	}
}

func waitForState(ch <-chan sess.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return statesClosedMsg{}
		}
		return stateMsg{State: st}
	}
}

func waitForMedia(ch <-chan mediacache.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return mediaClosedMsg{}
		}
		return mediaMsg{Event: ev}
	}
}
