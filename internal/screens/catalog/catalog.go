// Package catalog lists the assessments offered by the backend, grouped by
// category.
package catalog

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/api"
	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/router"
	"github.com/abhisek/hangeul/internal/screen"
	"github.com/abhisek/hangeul/internal/ui/components"
	"github.com/abhisek/hangeul/internal/ui/layout"
	"github.com/abhisek/hangeul/internal/ui/theme"
)

const loadTimeout = 30 * time.Second

// SessionFactory builds the screen for one attempt at a.
type SessionFactory func(a assessment.Assessment) (screen.Screen, error)

// Section is one category with its assessments.
type Section struct {
	Category    assessment.Category
	Assessments []assessment.Assessment
}

type loadedMsg struct {
	sections []Section
	err      error
}

// CatalogScreen is the root screen.
type CatalogScreen struct {
	client     api.Client
	newSession SessionFactory

	loading  bool
	err      error
	sections []Section
	menu     components.Menu
	spinner  spinner.Model
	notice   string
}

var _ screen.Screen = (*CatalogScreen)(nil)
var _ screen.KeyHintProvider = (*CatalogScreen)(nil)

// New creates a CatalogScreen.
func New(client api.Client, newSession SessionFactory) *CatalogScreen {
	return &CatalogScreen{
		client:     client,
		newSession: newSession,
		loading:    true,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Secondary)),
		),
	}
}

func (s *CatalogScreen) Init() tea.Cmd {
	return tea.Batch(s.load(), s.spinner.Tick)
}

func (s *CatalogScreen) Title() string {
	return "Assessments"
}

func (s *CatalogScreen) KeyHints() []layout.KeyHint {
	if s.err != nil {
		return []layout.KeyHint{
			{Key: "R", Description: "Reload"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Start"},
		{Key: "R", Description: "Reload"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *CatalogScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loading = false
		s.err = msg.err
		if msg.err == nil {
			s.sections = msg.sections
			s.menu = components.NewMenu(s.menuItems())
		}
		return s, nil

	case spinner.TickMsg:
		if !s.loading {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		if msg.String() == "r" && !s.loading {
			s.loading = true
			s.err = nil
			s.notice = ""
			return s, tea.Batch(s.load(), s.spinner.Tick)
		}
		if s.loading || s.err != nil {
			return s, nil
		}
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *CatalogScreen) View(width, height int) string {
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)

	if s.loading {
		return center.Foreground(theme.TextDim).
			Render("\n\n\n" + s.spinner.View() + " Loading assessments...")
	}
	if s.err != nil {
		return center.Foreground(theme.Error).
			Render(fmt.Sprintf("\n\n\nCould not load assessments: %v\n\nPress R to try again.", s.err))
	}
	if len(s.sections) == 0 {
		return center.Foreground(theme.TextDim).Render("\n\n\nNo assessments available.")
	}

	body := s.menu.View()
	if s.notice != "" {
		body += "\n" + theme.ErrorText.Render(s.notice)
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, "\n"+body)
}

func (s *CatalogScreen) menuItems() []components.MenuItem {
	var items []components.MenuItem
	for _, sec := range s.sections {
		items = append(items, components.MenuItem{
			Label:    sec.Category.Name,
			Detail:   string(sec.Category.Type),
			Disabled: true,
		})
		for _, a := range sec.Assessments {
			items = append(items, components.MenuItem{
				Label:  "  " + a.Title,
				Detail: Describe(a),
				Action: s.start(a),
			})
		}
	}
	return items
}

func (s *CatalogScreen) start(a assessment.Assessment) func() tea.Cmd {
	return func() tea.Cmd {
		next, err := s.newSession(a)
		if err != nil {
			s.notice = fmt.Sprintf("Could not start %s: %v", a.Title, err)
			return nil
		}
		s.notice = ""
		return func() tea.Msg { return router.PushScreenMsg{Screen: next} }
	}
}

// Describe summarizes an assessment's size and time limit.
func Describe(a assessment.Assessment) string {
	limit := "untimed"
	if a.DurationSeconds > 0 {
		limit = layout.FormatClock(a.DurationSeconds)
	}
	return fmt.Sprintf("%d questions · %s · pass %d%%", a.QuestionCount, limit, a.PassingScore)
}

func (s *CatalogScreen) load() tea.Cmd {
	client := s.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		sections, err := LoadSections(ctx, client)
		return loadedMsg{sections: sections, err: err}
	}
}

// LoadSections fetches every category and its assessments. Empty
// categories are dropped.
func LoadSections(ctx context.Context, client api.Client) ([]Section, error) {
	cats, err := client.Categories(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []Section
	for _, c := range cats {
		list, err := client.Assessments(ctx, c.ID, "")
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			continue
		}
		out = append(out, Section{Category: c, Assessments: list})
	}
	return out, nil
}
