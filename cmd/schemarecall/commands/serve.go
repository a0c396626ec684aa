package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localrivet/schemarecall"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the training tools over MCP stdio",
	Long: `Serve the training tools to an MCP client over stdin/stdout.

Tools:
  train_ddl, train_documentation, train_question_sql
  get_related_ddl, get_related_documentation, get_similar_question_sql
  get_training_data, remove_training_data, store_health`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg, false)

		srv, err := schemarecall.NewServer(schemarecall.ServerOptions{Config: cfg, Logger: log})
		if err != nil {
			return err
		}

		// Handle graceful shutdown
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			log.Info("Received shutdown signal, terminating gracefully...")
			if err := srv.Stop(); err != nil {
				os.Exit(1)
			}
			os.Exit(0)
		}()

		if err := srv.Start(); err != nil {
			_ = srv.Stop()
			return err
		}
		return srv.Stop()
	},
}
