package commands

import (
	"github.com/spf13/cobra"

	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/trainstore"
)

var listKind string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored training data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind ledger.Kind
		if listKind != "" {
			k, err := ledger.ParseKind(listKind)
			if err != nil {
				return err
			}
			kind = k
		}

		return withStore(func(store *trainstore.Store) error {
			records := []ledger.Record{}
			for _, r := range store.GetTrainingData() {
				if kind == "" || r.Kind == kind {
					records = append(records, r)
				}
			}
			return outputResult(cmd.OutOrStdout(), records)
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a training record by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *trainstore.Store) error {
			if err := store.RemoveTrainingData(cmd.Context(), args[0]); err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), map[string]any{"id": args[0], "removed": true})
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report store health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *trainstore.Store) error {
			return outputResult(cmd.OutOrStdout(), store.Health())
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&listKind, "kind", "k", "", "only list records of this kind (ddl, documentation, question_sql)")
}
