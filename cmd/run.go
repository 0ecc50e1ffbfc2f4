package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/hangeul/internal/app"
	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/events"
	"github.com/abhisek/hangeul/internal/screens/catalog"
	"github.com/abhisek/hangeul/internal/store"
)

// runApp opens the journal, builds dependencies, and launches the TUI. A
// non-empty takeID opens that assessment directly.
func runApp(cmd *cobra.Command, takeID string) error {
	e, err := loadEnv(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	dbPath, err := resolveDBPath(cmd, e.cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.NewBus(events.BusConfig{Logger: e.logger})
	defer bus.Close()
	journaled, err := store.NewJournal(st, e.logger).Run(ctx, bus)
	if err != nil {
		return err
	}

	opts := app.Options{
		Client: e.client,
		Sessions: app.NewSessions(app.SessionOptions{
			Backend: e.client,
			Events:  bus,
			Media:   e.cfg.Media,
			Logger:  e.logger,
		}),
		Status: e.host(),
	}
	if takeID != "" {
		a, err := findAssessment(ctx, e, takeID)
		if err != nil {
			return err
		}
		opts.Take = &a
	}

	e.logger.Info("starting", "version", version, "api", e.cfg.API.BaseURL, "db", dbPath)
	runErr := app.Run(opts)

	// Close hands every queued event to the journal before it stops.
	bus.Close()
	<-journaled
	return runErr
}

// findAssessment looks id up in the catalog listing.
func findAssessment(ctx context.Context, e *env, id string) (assessment.Assessment, error) {
	sections, err := catalog.LoadSections(ctx, e.client)
	if err != nil {
		return assessment.Assessment{}, fmt.Errorf("load catalog: %w", err)
	}
	for _, s := range sections {
		for _, a := range s.Assessments {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return assessment.Assessment{}, fmt.Errorf("assessment %q not found", id)
}

var takeCmd = &cobra.Command{
	Use:   "take <assessment-id>",
	Short: "Start an assessment directly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, args[0])
	},
}
