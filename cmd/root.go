package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/hangeul/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "hangeul",
	Short: "Korean quizzes and TOPIK practice in the terminal",
	Long:  "Hangeul: timed Korean quizzes and mock exams in the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, "")
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (default $XDG_CONFIG_HOME/hangeul/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides HANGEUL_DB env var)")
	rootCmd.PersistentFlags().String("api", "", "Backend base URL (overrides api.base_url)")

	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(assessmentsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(fixtureServerCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then store.db_path from config, then HANGEUL_DB env var, then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath()
}
