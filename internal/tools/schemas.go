// Package tools defines the MCP tool names and the request/response
// schemas exposed by the SchemaRecall server.
package tools

import (
	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/trainstore"
)

const (
	// ToolTrainDDL is the name of the train_ddl MCP tool
	ToolTrainDDL = "train_ddl"

	// ToolTrainDocumentation is the name of the train_documentation MCP tool
	ToolTrainDocumentation = "train_documentation"

	// ToolTrainQuestionSQL is the name of the train_question_sql MCP tool
	ToolTrainQuestionSQL = "train_question_sql"

	// ToolGetRelatedDDL is the name of the get_related_ddl MCP tool
	ToolGetRelatedDDL = "get_related_ddl"

	// ToolGetRelatedDocumentation is the name of the get_related_documentation MCP tool
	ToolGetRelatedDocumentation = "get_related_documentation"

	// ToolGetSimilarQuestionSQL is the name of the get_similar_question_sql MCP tool
	ToolGetSimilarQuestionSQL = "get_similar_question_sql"

	// ToolGetTrainingData is the name of the get_training_data MCP tool
	ToolGetTrainingData = "get_training_data"

	// ToolRemoveTrainingData is the name of the remove_training_data MCP tool
	ToolRemoveTrainingData = "remove_training_data"

	// ToolStoreHealth is the name of the store_health MCP tool
	ToolStoreHealth = "store_health"
)

// Response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is embedded in every response.
type Result struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// Code classifies the failure when Status is "error", e.g. "NOT_FOUND"
	Code string `json:"code,omitempty"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`
}

// Success returns a successful Result.
func Success() Result {
	return Result{Status: StatusSuccess}
}

// Fail marks the result as failed.
func (r *Result) Fail(code, message string) {
	r.Status = StatusError
	r.Code = code
	r.Error = message
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// TrainTextRequest defines the input schema for train_ddl and
// train_documentation
type TrainTextRequest struct {
	// Text is the DDL statement or documentation to store
	Text string `json:"text"`
}

// TrainQuestionSQLRequest defines the input schema for train_question_sql
type TrainQuestionSQLRequest struct {
	// Question is the natural-language question; it is what gets embedded
	Question string `json:"question"`

	// SQL is the query answering Question
	SQL string `json:"sql"`
}

// TrainResponse defines the output schema for the train_* tools
type TrainResponse struct {
	Result

	// ID is the identifier assigned to the new record
	ID string `json:"id,omitempty"`

	// Kind is the kind of the stored record
	Kind string `json:"kind,omitempty"`
}

// QuestionRequest defines the input schema for the retrieval tools
type QuestionRequest struct {
	// Question is the user question to find related training data for
	Question string `json:"question"`
}

// RelatedTextResponse defines the output schema for get_related_ddl and
// get_related_documentation
type RelatedTextResponse struct {
	Result

	// Results holds the matching texts, nearest first
	Results []string `json:"results"`
}

// QuestionSQLPair is one retrieved question/SQL example
type QuestionSQLPair struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// SimilarQuestionSQLResponse defines the output schema for
// get_similar_question_sql
type SimilarQuestionSQLResponse struct {
	Result

	// Results holds the matching pairs, nearest first
	Results []QuestionSQLPair `json:"results"`
}

// GetTrainingDataRequest defines the input schema for get_training_data
type GetTrainingDataRequest struct {
	// Kind optionally restricts the listing to one record kind
	Kind string `json:"kind,omitempty"`
}

// GetTrainingDataResponse defines the output schema for get_training_data
type GetTrainingDataResponse struct {
	Result

	// Records holds the stored records in insertion order
	Records []ledger.Record `json:"records"`

	// Count is len(Records)
	Count int `json:"count"`
}

// RemoveTrainingDataRequest defines the input schema for remove_training_data
type RemoveTrainingDataRequest struct {
	// ID is the identifier of the record to remove
	ID string `json:"id"`
}

// RemoveTrainingDataResponse defines the output schema for remove_training_data
type RemoveTrainingDataResponse struct {
	Result

	// Removed is true when the record was deleted
	Removed bool `json:"removed"`
}

// StoreHealthRequest defines the input schema for store_health
type StoreHealthRequest struct{}

// StoreHealthResponse defines the output schema for store_health
type StoreHealthResponse struct {
	Result

	// Health is the current store health report
	Health *trainstore.HealthReport `json:"health,omitempty"`
}
