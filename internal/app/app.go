package app

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/api"
	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/router"
	"github.com/abhisek/hangeul/internal/screen"
	"github.com/abhisek/hangeul/internal/screens/catalog"
	"github.com/abhisek/hangeul/internal/screens/welcome"
	"github.com/abhisek/hangeul/internal/ui/layout"
)

// Options holds the dependencies for the TUI.
type Options struct {
	Client   api.Client
	Sessions *Sessions

	// Status is shown on the right of the header, e.g. the backend host.
	Status string

	// Take opens this assessment straight away instead of the splash.
	Take *assessment.Assessment
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	start  screen.Screen
	status string
	width  int
	height int
}

// newAppModel creates the root model. The catalog is always at the bottom
// of the stack so that leaving a session returns to it.
func newAppModel(opts Options) (AppModel, error) {
	cat := catalog.New(opts.Client, opts.Sessions.Screen)
	m := AppModel{status: opts.Status}

	if opts.Take != nil {
		s, err := opts.Sessions.Screen(*opts.Take)
		if err != nil {
			return AppModel{}, err
		}
		m.router = router.New(cat)
		m.start = s
		return m, nil
	}

	m.router = router.New(welcome.New(func() screen.Screen { return cat }))
	return m, nil
}

func (m AppModel) Init() tea.Cmd {
	cmd := m.router.Init()
	if m.start != nil {
		cmd = tea.Batch(cmd, m.router.Push(m.start))
	}
	return cmd
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if bh, ok := m.router.Active().(screen.BackHandler); ok && bh.HandlesBack() {
				break
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.RenderHeader(title, m.status, m.width)
	footer := layout.RenderFooter(m.footerHints(active), m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

func (m AppModel) footerHints(active screen.Screen) []layout.KeyHint {
	if p, ok := active.(screen.KeyHintProvider); ok {
		return p.KeyHints()
	}
	if m.router.Depth() > 1 {
		return []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

// Run starts the Bubble Tea program. Sessions still open when it exits are
// closed before returning.
func Run(opts Options) error {
	defer opts.Sessions.Close()

	m, err := newAppModel(opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
