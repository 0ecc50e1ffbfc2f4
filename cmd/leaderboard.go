package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/hangeul/internal/assessment"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		typ, _ := cmd.Flags().GetString("type")
		id, _ := cmd.Flags().GetString("assessment")
		board, err := e.client.Leaderboard(cmd.Context(), assessment.Type(typ), id)
		if err != nil {
			return fmt.Errorf("load leaderboard: %w", err)
		}
		rows := make([][]string, 0, len(board))
		for _, b := range board {
			rows = append(rows, []string{
				strconv.Itoa(b.Rank),
				b.DisplayName,
				strconv.Itoa(b.Score) + "%",
				strconv.Itoa(b.Attempts),
			})
		}
		printTable(cmd.OutOrStdout(), []string{"#", "Name", "Best", "Attempts"}, rows)
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().String("type", "", "Filter by type (quiz or exam)")
	leaderboardCmd.Flags().String("assessment", "", "Filter by assessment ID")
}
