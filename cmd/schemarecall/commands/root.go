package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/localrivet/schemarecall"
	"github.com/localrivet/schemarecall/internal/config"
	"github.com/localrivet/schemarecall/internal/logger"
	"github.com/localrivet/schemarecall/internal/trainstore"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schemarecall",
	Short: "Retrieval store for NL-to-SQL assistants",
	Long: `SchemaRecall stores DDL statements, documentation and question/SQL
pairs as embeddings, and retrieves the ones most relevant to a new question.

Examples:
  # Store training data
  schemarecall train ddl "CREATE TABLE orders(id INT, total DECIMAL)"
  schemarecall train sql --question "total revenue" "SELECT SUM(total) FROM orders"

  # Retrieve context for a question
  schemarecall related ddl "what was revenue last month"

  # Serve the tools to an MCP client over stdio
  schemarecall serve
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	return config.LoadConfigWithPath(cfgFile)
}

// newLogger builds the command logger. Logs always go to stderr; stdout
// carries results or the MCP stream. One-shot commands log warnings only.
func newLogger(cfg *config.Config, oneShot bool) *slog.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	} else if oneShot {
		level = "warn"
	}
	return logger.New(level, cfg.Logging.Format, os.Stderr)
}

// openStore loads the configuration and opens the store for a one-shot
// command. The caller closes the store.
func openStore() (*trainstore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, _, err := schemarecall.CreateComponents(cfg, newLogger(cfg, true))
	return store, err
}

// readText returns the positional arguments joined by spaces, or the
// contents of path when set ("-" reads stdin).
func readText(args []string, path string) (string, error) {
	if path == "" {
		return strings.Join(args, " "), nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// outputResult writes result to w as YAML, or JSON with --json.
func outputResult(w io.Writer, result any) error {
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
