package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/hangeul/internal/store"
	"github.com/abhisek/hangeul/internal/ui/layout"
)

const historyTimeLayout = "2006-01-02 15:04"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past results",
	Long:  "Show past results from the backend, or with --local the attempts journaled on this machine.",
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		limit, _ := cmd.Flags().GetInt("limit")
		if local {
			return localHistory(cmd, limit)
		}

		e, err := loadEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		id, _ := cmd.Flags().GetString("assessment")
		entries, err := e.client.AssessmentResults(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("load results: %w", err)
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		rows := make([][]string, 0, len(entries))
		for _, h := range entries {
			rows = append(rows, historyRow(h.Title, h.Score, h.Passed, h.CorrectAnswers, h.TotalQuestions, h.TimeTakenSeconds, h.CompletedAt))
		}
		printTable(cmd.OutOrStdout(), historyHeaders, rows)
		return nil
	},
}

var historyHeaders = []string{"Assessment", "Score", "Passed", "Correct", "Time", "Completed"}

func localHistory(cmd *cobra.Command, limit int) error {
	e, err := loadEnv(cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	dbPath, err := resolveDBPath(cmd, e.cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	attempts, err := st.AttemptRepo().Recent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("load attempts: %w", err)
	}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		title := a.Title
		if a.AutoSubmitted {
			title += " (time up)"
		}
		rows = append(rows, historyRow(title, a.Score, a.Passed, a.Correct, a.Total, a.TimeTakenSeconds, a.CompletedAt))
	}
	printTable(cmd.OutOrStdout(), historyHeaders, rows)
	return nil
}

func historyRow(title string, score int, passed bool, correct, total, seconds int, at time.Time) []string {
	return []string{
		title,
		strconv.Itoa(score) + "%",
		yesNo(passed),
		fmt.Sprintf("%d/%d", correct, total),
		layout.FormatClock(seconds),
		at.Local().Format(historyTimeLayout),
	}
}

func init() {
	historyCmd.Flags().Bool("local", false, "Show attempts recorded on this machine")
	historyCmd.Flags().String("assessment", "", "Only results for this assessment ID")
	historyCmd.Flags().Int("limit", 20, "Maximum number of rows (0 = all)")
}
