package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/screens/catalog"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List assessment categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		typ, _ := cmd.Flags().GetString("type")
		cats, err := e.client.Categories(cmd.Context(), assessment.Type(typ))
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			rows = append(rows, []string{c.ID, c.Name, string(c.Type)})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Type"}, rows)
		return nil
	},
}

var assessmentsCmd = &cobra.Command{
	Use:   "assessments",
	Short: "List assessments",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		categoryID, _ := cmd.Flags().GetString("category")
		typ, _ := cmd.Flags().GetString("type")
		list, err := e.client.Assessments(cmd.Context(), categoryID, assessment.Type(typ))
		if err != nil {
			return fmt.Errorf("list assessments: %w", err)
		}
		rows := make([][]string, 0, len(list))
		for _, a := range list {
			rows = append(rows, []string{
				a.ID,
				a.Title,
				string(a.Type),
				catalog.Describe(a),
			})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "Title", "Type", "Details"}, rows)
		return nil
	},
}

func init() {
	categoriesCmd.Flags().String("type", "", "Filter by type (quiz or exam)")
	assessmentsCmd.Flags().String("category", "", "Filter by category ID")
	assessmentsCmd.Flags().String("type", "", "Filter by type (quiz or exam)")
}
