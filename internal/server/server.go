package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/localrivet/gomcp/server"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/logger"
	"github.com/localrivet/schemarecall/internal/tools"
	"github.com/localrivet/schemarecall/internal/trainstore"
)

// ServerName is the MCP server name announced to clients.
const ServerName = "schemarecall"

// DefaultCallTimeout bounds a single tool call, embedding included.
const DefaultCallTimeout = 60 * time.Second

// logTextLimit caps the runes of caller text written to logs.
const logTextLimit = 100

// TrainingStore is the store surface the tool handlers use.
type TrainingStore interface {
	AddDDL(ctx context.Context, ddl string) (string, error)
	AddDocumentation(ctx context.Context, doc string) (string, error)
	AddQuestionSQL(ctx context.Context, question, sql string) (string, error)
	GetRelatedDDL(ctx context.Context, question string) ([]string, error)
	GetRelatedDocumentation(ctx context.Context, question string) ([]string, error)
	GetSimilarQuestionSQL(ctx context.Context, question string) ([]trainstore.QuestionSQL, error)
	GetTrainingData() []ledger.Record
	RemoveTrainingData(ctx context.Context, id string) error
	Health() *trainstore.HealthReport
}

var _ TrainingStore = (*trainstore.Store)(nil)

// MCPTrainingToolServer implements the ToolServer interface
// for handling MCP tool calls against the training store.
type MCPTrainingToolServer struct {
	store       TrainingStore
	logger      *slog.Logger
	callTimeout time.Duration
	mcpServer   server.Server
}

var _ ToolServer = (*MCPTrainingToolServer)(nil)

// NewTrainingToolServer creates a new MCPTrainingToolServer instance.
func NewTrainingToolServer(store TrainingStore, logger *slog.Logger) *MCPTrainingToolServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPTrainingToolServer{
		store:       store,
		logger:      logger.With("component", "mcp"),
		callTimeout: DefaultCallTimeout,
	}
}

// SetCallTimeout changes the per-call timeout. Zero disables it.
func (s *MCPTrainingToolServer) SetCallTimeout(d time.Duration) {
	s.callTimeout = d
}

// Initialize creates the MCP server and registers the tools.
func (s *MCPTrainingToolServer) Initialize() error {
	s.logger.Info("Initializing MCP Training Tool Server")

	if s.store == nil {
		return errortypes.ConfigError(errors.New("missing dependencies"), "server initialization failed")
	}

	s.mcpServer = s.RegisterTools(server.NewServer(ServerName))
	s.logger.Info("MCP Training Tool Server initialized successfully", "tool_count", len(ToolNames))
	return nil
}

// ToolNames lists every tool RegisterTools adds.
var ToolNames = []string{
	tools.ToolTrainDDL,
	tools.ToolTrainDocumentation,
	tools.ToolTrainQuestionSQL,
	tools.ToolGetRelatedDDL,
	tools.ToolGetRelatedDocumentation,
	tools.ToolGetSimilarQuestionSQL,
	tools.ToolGetTrainingData,
	tools.ToolRemoveTrainingData,
	tools.ToolStoreHealth,
}

// RegisterTools adds the training tools to srv, which may be a server owned
// by the caller, and returns it.
func (s *MCPTrainingToolServer) RegisterTools(srv server.Server) server.Server {
	srv = srv.Tool(tools.ToolTrainDDL, "Store a CREATE TABLE or other DDL statement as training data",
		s.handleTrainDDL)

	srv = srv.Tool(tools.ToolTrainDocumentation, "Store free-text documentation about the schema or business rules",
		s.handleTrainDocumentation)

	srv = srv.Tool(tools.ToolTrainQuestionSQL, "Store a natural-language question with the SQL that answers it",
		s.handleTrainQuestionSQL)

	srv = srv.Tool(tools.ToolGetRelatedDDL, "Find DDL statements related to a question",
		s.handleGetRelatedDDL)

	srv = srv.Tool(tools.ToolGetRelatedDocumentation, "Find documentation related to a question",
		s.handleGetRelatedDocumentation)

	srv = srv.Tool(tools.ToolGetSimilarQuestionSQL, "Find previously answered questions similar to a question",
		s.handleGetSimilarQuestionSQL)

	srv = srv.Tool(tools.ToolGetTrainingData, "List all stored training data",
		s.handleGetTrainingData)

	srv = srv.Tool(tools.ToolRemoveTrainingData, "Remove a training record by id",
		s.handleRemoveTrainingData)

	srv = srv.Tool(tools.ToolStoreHealth, "Report training store health",
		s.handleStoreHealth)

	return srv
}

// Start starts the MCP server on the specified transport.
func (s *MCPTrainingToolServer) Start() error {
	if s.mcpServer == nil {
		return errortypes.ConfigError(errors.New("server not initialized"), "cannot start server")
	}

	s.logger.Info("Starting MCP Training Tool Server")

	// Start the server using stdio transport
	return s.mcpServer.AsStdio().Run()
}

// Stop gracefully shuts down the MCP server.
func (s *MCPTrainingToolServer) Stop() error {
	s.logger.Info("Stopping MCP Training Tool Server")
	// The server will exit when stdin is closed
	return nil
}

func (s *MCPTrainingToolServer) callContext() (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.callTimeout)
}

// handleTrainDDL handles the train_ddl MCP tool call.
func (s *MCPTrainingToolServer) handleTrainDDL(_ *server.Context, req tools.TrainTextRequest) (tools.TrainResponse, error) {
	s.logger.Info("Processing train_ddl request", "text_length", len(req.Text))

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.TrainResponse{Result: tools.Success()}
	id, err := s.store.AddDDL(ctx, req.Text)
	if err != nil {
		fail(s.logger, &response.Result, tools.ToolTrainDDL, err)
		return response, nil
	}

	response.ID = id
	response.Kind = string(ledger.KindDDL)
	return response, nil
}

// handleTrainDocumentation handles the train_documentation MCP tool call.
func (s *MCPTrainingToolServer) handleTrainDocumentation(_ *server.Context, req tools.TrainTextRequest) (tools.TrainResponse, error) {
	s.logger.Info("Processing train_documentation request", "text_length", len(req.Text))

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.TrainResponse{Result: tools.Success()}
	id, err := s.store.AddDocumentation(ctx, req.Text)
	if err != nil {
		fail(s.logger, &response.Result, tools.ToolTrainDocumentation, err)
		return response, nil
	}

	response.ID = id
	response.Kind = string(ledger.KindDocumentation)
	return response, nil
}

// handleTrainQuestionSQL handles the train_question_sql MCP tool call.
func (s *MCPTrainingToolServer) handleTrainQuestionSQL(_ *server.Context, req tools.TrainQuestionSQLRequest) (tools.TrainResponse, error) {
	s.logger.Info("Processing train_question_sql request", "question", logger.Truncate(req.Question, logTextLimit))

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.TrainResponse{Result: tools.Success()}
	id, err := s.store.AddQuestionSQL(ctx, req.Question, req.SQL)
	if err != nil {
		fail(s.logger, &response.Result, tools.ToolTrainQuestionSQL, err)
		return response, nil
	}

	response.ID = id
	response.Kind = string(ledger.KindQuestionSQL)
	return response, nil
}

// handleGetRelatedDDL handles the get_related_ddl MCP tool call.
func (s *MCPTrainingToolServer) handleGetRelatedDDL(_ *server.Context, req tools.QuestionRequest) (tools.RelatedTextResponse, error) {
	s.logger.Info("Processing get_related_ddl request", "question", logger.Truncate(req.Question, logTextLimit))

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.RelatedTextResponse{Result: tools.Success(), Results: []string{}}
	results, err := s.store.GetRelatedDDL(ctx, req.Question)
	if err != nil {
		fail(s.logger, &response.Result, tools.ToolGetRelatedDDL, err)
		return response, nil
	}

	response.Results = append(response.Results, results...)
	return response, nil
}

// handleGetRelatedDocumentation handles the get_related_documentation MCP tool call.
func (s *MCPTrainingToolServer) handleGetRelatedDocumentation(_ *server.Context, req tools.QuestionRequest) (tools.RelatedTextResponse, error) {
	s.logger.Info("Processing get_related_documentation request", "question", logger.Truncate(req.Question, logTextLimit))

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.RelatedTextResponse{Result: tools.Success(), Results: []string{}}
	results, err := s.store.GetRelatedDocumentation(ctx, req.Question)
	if err != nil {
		fail(s.logger, &response.Result, tools.ToolGetRelatedDocumentation, err)
		return response, nil
	}

	response.Results = append(response.Results, results...)
	return response, nil
}

// handleGetSimilarQuestionSQL handles the get_similar_question_sql MCP tool call.
func (s *MCPTrainingToolServer) handleGetSimilarQuestionSQL(_ *server.Context, req tools.QuestionRequest) (tools.SimilarQuestionSQLResponse, error) {
	s.logger.Info("Processing get_similar_question_sql request", "question", logger.Truncate(req.Question, logTextLimit))

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.SimilarQuestionSQLResponse{Result: tools.Success(), Results: []tools.QuestionSQLPair{}}
	results, err := s.store.GetSimilarQuestionSQL(ctx, req.Question)
	if err != nil {
		fail(s.logger, &response.Result, tools.ToolGetSimilarQuestionSQL, err)
		return response, nil
	}

	for _, r := range results {
		response.Results = append(response.Results, tools.QuestionSQLPair{Question: r.Question, SQL: r.SQL})
	}
	return response, nil
}

// handleGetTrainingData handles the get_training_data MCP tool call.
func (s *MCPTrainingToolServer) handleGetTrainingData(_ *server.Context, req tools.GetTrainingDataRequest) (tools.GetTrainingDataResponse, error) {
	s.logger.Info("Processing get_training_data request", "kind", req.Kind)

	response := tools.GetTrainingDataResponse{Result: tools.Success(), Records: []ledger.Record{}}

	var kind ledger.Kind
	if req.Kind != "" {
		k, err := ledger.ParseKind(req.Kind)
		if err != nil {
			fail(s.logger, &response.Result, tools.ToolGetTrainingData, errortypes.InputError(err, "invalid kind filter"))
			return response, nil
		}
		kind = k
	}

	for _, r := range s.store.GetTrainingData() {
		if kind == "" || r.Kind == kind {
			response.Records = append(response.Records, r)
		}
	}
	response.Count = len(response.Records)
	return response, nil
}

// handleRemoveTrainingData handles the remove_training_data MCP tool call.
func (s *MCPTrainingToolServer) handleRemoveTrainingData(_ *server.Context, req tools.RemoveTrainingDataRequest) (tools.RemoveTrainingDataResponse, error) {
	s.logger.Info("Processing remove_training_data request", "id", req.ID)

	ctx, cancel := s.callContext()
	defer cancel()

	response := tools.RemoveTrainingDataResponse{Result: tools.Success()}
	if err := s.store.RemoveTrainingData(ctx, req.ID); err != nil {
		fail(s.logger, &response.Result, tools.ToolRemoveTrainingData, err)
		return response, nil
	}

	response.Removed = true
	return response, nil
}

// handleStoreHealth handles the store_health MCP tool call.
func (s *MCPTrainingToolServer) handleStoreHealth(_ *server.Context, _ tools.StoreHealthRequest) (tools.StoreHealthResponse, error) {
	return tools.StoreHealthResponse{Result: tools.Success(), Health: s.store.Health()}, nil
}
