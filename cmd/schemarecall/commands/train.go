package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/trainstore"
)

var (
	trainFile     string
	trainQuestion string
	trainBatch    string
)

type trainResult struct {
	ID   string      `json:"id"`
	Kind ledger.Kind `json:"kind"`
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Store training data",
	Long: `Store DDL statements, documentation or question/SQL pairs.

With --batch, reads a YAML or JSON list of training facts:
  - ddl: CREATE TABLE orders(id INT, total DECIMAL)
  - documentation: orders.total is stored in cents
  - question: total revenue
    sql: SELECT SUM(total) FROM orders`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if trainBatch == "" {
			return cmd.Help()
		}
		reqs, err := loadBatch(trainBatch)
		if err != nil {
			return err
		}
		return runTrain(cmd, reqs...)
	},
}

var trainDDLCmd = &cobra.Command{
	Use:   "ddl [statement...]",
	Short: "Store a DDL statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, trainFile)
		if err != nil {
			return err
		}
		return runTrain(cmd, trainstore.TrainRequest{DDL: text})
	},
}

var trainDocCmd = &cobra.Command{
	Use:     "doc [text...]",
	Aliases: []string{"documentation"},
	Short:   "Store a documentation snippet",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, trainFile)
		if err != nil {
			return err
		}
		return runTrain(cmd, trainstore.TrainRequest{Documentation: text})
	},
}

var trainSQLCmd = &cobra.Command{
	Use:   "sql --question QUESTION [sql...]",
	Short: "Store a question with the SQL that answers it",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, trainFile)
		if err != nil {
			return err
		}
		return runTrain(cmd, trainstore.TrainRequest{Question: trainQuestion, SQL: text})
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainBatch, "batch", "", "YAML or JSON file with a list of training facts")
	for _, c := range []*cobra.Command{trainDDLCmd, trainDocCmd, trainSQLCmd} {
		c.Flags().StringVarP(&trainFile, "file", "f", "", "read the text from a file (- for stdin)")
	}
	trainSQLCmd.Flags().StringVarP(&trainQuestion, "question", "q", "", "question the SQL answers")

	trainCmd.AddCommand(trainDDLCmd)
	trainCmd.AddCommand(trainDocCmd)
	trainCmd.AddCommand(trainSQLCmd)
}

func runTrain(cmd *cobra.Command, reqs ...trainstore.TrainRequest) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	results := make([]trainResult, 0, len(reqs))
	for i, req := range reqs {
		id, kind, err := store.Train(cmd.Context(), req)
		if err != nil {
			if len(reqs) > 1 {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			return err
		}
		results = append(results, trainResult{ID: id, Kind: kind})
	}

	if len(results) == 1 {
		return outputResult(cmd.OutOrStdout(), results[0])
	}
	return outputResult(cmd.OutOrStdout(), results)
}

// loadBatch reads a list of training facts from a YAML or JSON file.
func loadBatch(path string) ([]trainstore.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var reqs []trainstore.TrainRequest
	// YAML is a superset of JSON
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(reqs) == 0 {
		return nil, errors.New("batch file contains no training facts")
	}
	return reqs, nil
}
