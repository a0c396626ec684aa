// Package schemarecall is an embedding-backed retrieval store for NL-to-SQL
// assistants. It keeps DDL statements, documentation and question/SQL pairs,
// and returns the ones most relevant to a new question.
package schemarecall

import (
	"context"
	"log/slog"
	"time"

	"github.com/localrivet/schemarecall/internal/config"
	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/server"
	"github.com/localrivet/schemarecall/internal/snapshot"
	"github.com/localrivet/schemarecall/internal/trainstore"
	"github.com/localrivet/schemarecall/internal/vector"
)

// Config represents the configuration for the SchemaRecall service.
type Config = config.Config

// Record is one stored training fact.
type Record = ledger.Record

// QuestionSQL is a retrieved question/SQL pair.
type QuestionSQL = trainstore.QuestionSQL

// Server represents the SchemaRecall service.
type Server struct {
	config     *config.Config
	store      *trainstore.Store
	embedder   vector.Embedder
	toolServer server.ToolServer
	logger     *slog.Logger
}

// ServerOptions defines the options for creating a new Server.
type ServerOptions struct {
	Config     *Config      // Pre-filled config. If nil, ConfigPath is used.
	ConfigPath string       // Path to config file. Used if Config is nil. If both are empty, DefaultConfig() is used.
	Logger     *slog.Logger // External logger. If nil, one is built from the config.
}

// NewServer creates a new SchemaRecall Server with the given options.
func NewServer(opts ServerOptions) (*Server, error) {
	var cfg *Config
	var err error

	switch {
	case opts.Config != nil:
		cfg = opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	case opts.ConfigPath != "":
		cfg, err = config.LoadConfigWithPath(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	default:
		cfg = DefaultConfig()
	}

	logger := opts.Logger
	if logger == nil {
		logger = cfg.NewLogger()
	}

	store, emb, err := CreateComponents(cfg, logger)
	if err != nil {
		logger.Error("Failed to create components during server initialization", "error", err)
		return nil, err
	}

	toolServer := server.NewTrainingToolServer(store, logger)
	if cfg.Embedder.TimeoutSeconds > 0 {
		// Leave room for the persist that follows the embedding call.
		toolServer.SetCallTimeout(2 * time.Duration(cfg.Embedder.TimeoutSeconds) * time.Second)
	}
	if err := toolServer.Initialize(); err != nil {
		_ = store.Close()
		return nil, errortypes.ConfigError(err, "failed to initialize MCP tool server")
	}

	logger.Info("SchemaRecall server successfully initialized",
		"store", cfg.Store.Path,
		"backend", cfg.Store.Backend,
		"provider", emb.Name())
	return &Server{
		config:     cfg,
		store:      store,
		embedder:   emb,
		toolServer: toolServer,
		logger:     logger,
	}, nil
}

// DefaultConfig returns the default configuration for the SchemaRecall service.
func DefaultConfig() *Config {
	return config.NewConfig()
}

// Start serves the MCP tools over stdio until the client disconnects.
func (s *Server) Start() error {
	s.logger.Info("Starting SchemaRecall service")
	return s.toolServer.Start()
}

// Stop stops the tool server and closes the store.
func (s *Server) Stop() error {
	s.logger.Info("Stopping SchemaRecall service")
	if err := s.toolServer.Stop(); err != nil {
		s.logger.Error("Error stopping tool server", "error", err)
		return err
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close store", "error", err)
		return err
	}

	s.logger.Info("SchemaRecall service stopped")
	return nil
}

// AddDDL stores a DDL statement and returns its record id.
func (s *Server) AddDDL(ctx context.Context, ddl string) (string, error) {
	return s.store.AddDDL(ctx, ddl)
}

// AddDocumentation stores a documentation snippet and returns its record id.
func (s *Server) AddDocumentation(ctx context.Context, doc string) (string, error) {
	return s.store.AddDocumentation(ctx, doc)
}

// AddQuestionSQL stores a question with the SQL that answers it.
func (s *Server) AddQuestionSQL(ctx context.Context, question, sql string) (string, error) {
	return s.store.AddQuestionSQL(ctx, question, sql)
}

// GetRelatedDDL returns stored DDL near the question, nearest first.
func (s *Server) GetRelatedDDL(ctx context.Context, question string) ([]string, error) {
	return s.store.GetRelatedDDL(ctx, question)
}

// GetRelatedDocumentation returns stored documentation near the question.
func (s *Server) GetRelatedDocumentation(ctx context.Context, question string) ([]string, error) {
	return s.store.GetRelatedDocumentation(ctx, question)
}

// GetSimilarQuestionSQL returns stored question/SQL pairs near the question.
func (s *Server) GetSimilarQuestionSQL(ctx context.Context, question string) ([]QuestionSQL, error) {
	return s.store.GetSimilarQuestionSQL(ctx, question)
}

// GetTrainingData lists every stored record in insertion order.
func (s *Server) GetTrainingData() []Record {
	return s.store.GetTrainingData()
}

// RemoveTrainingData deletes the record with the given id.
func (s *Server) RemoveTrainingData(ctx context.Context, id string) error {
	return s.store.RemoveTrainingData(ctx, id)
}

// GetStore returns the training store used by the server.
func (s *Server) GetStore() *trainstore.Store {
	return s.store
}

// GetEmbedder returns the embedder used by the server.
func (s *Server) GetEmbedder() vector.Embedder {
	return s.embedder
}

// CreateComponents builds the embedder, the snapshot persister and the store
// without creating a server. The caller owns the returned store.
func CreateComponents(cfg *Config, logger *slog.Logger) (*trainstore.Store, vector.Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Initializing embedder", "provider", cfg.Embedder.Provider, "model", cfg.Embedder.Model)
	emb, err := vector.NewEmbedder(cfg.ProviderConfig())
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.SnapshotOptions(logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Opening snapshot persister", "backend", opts.Backend, "path", opts.Path, "compression", opts.Compression.String())
	persister, err := snapshot.Open(opts)
	if err != nil {
		return nil, nil, err
	}

	store, err := trainstore.Open(trainstore.Options{
		Embedder:  emb,
		Persister: persister,
		TopN:      cfg.Retrieval.TopN,
		Logger:    logger,
	})
	if err != nil {
		_ = persister.Close()
		return nil, nil, err
	}

	return store, emb, nil
}
