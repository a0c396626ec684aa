package commands

import (
	"github.com/spf13/cobra"

	"github.com/localrivet/schemarecall/internal/trainstore"
)

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Retrieve training data related to a question",
	Long: `Retrieve the stored training data nearest to a question.

Results are ordered nearest first and restricted to one kind.`,
}

var relatedDDLCmd = &cobra.Command{
	Use:   "ddl <question...>",
	Short: "Find related DDL statements",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *trainstore.Store) error {
			text, _ := readText(args, "")
			results, err := store.GetRelatedDDL(cmd.Context(), text)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), nonNil(results))
		})
	},
}

var relatedDocCmd = &cobra.Command{
	Use:     "doc <question...>",
	Aliases: []string{"documentation"},
	Short:   "Find related documentation",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *trainstore.Store) error {
			text, _ := readText(args, "")
			results, err := store.GetRelatedDocumentation(cmd.Context(), text)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), nonNil(results))
		})
	},
}

var relatedSQLCmd = &cobra.Command{
	Use:   "sql <question...>",
	Short: "Find similar question/SQL pairs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *trainstore.Store) error {
			text, _ := readText(args, "")
			results, err := store.GetSimilarQuestionSQL(cmd.Context(), text)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), nonNil(results))
		})
	},
}

func init() {
	relatedCmd.AddCommand(relatedDDLCmd)
	relatedCmd.AddCommand(relatedDocCmd)
	relatedCmd.AddCommand(relatedSQLCmd)
}

// withStore opens the store, runs fn and closes the store.
func withStore(fn func(store *trainstore.Store) error) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
