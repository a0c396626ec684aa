package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/snapshot"
	"github.com/localrivet/schemarecall/internal/tools"
	"github.com/localrivet/schemarecall/internal/trainstore"
	"github.com/localrivet/schemarecall/internal/vector"
)

// MockStore implements TrainingStore for testing
type MockStore struct {
	Records      []ledger.Record
	RelatedTexts []string
	SimilarPairs []trainstore.QuestionSQL
	RemovedIDs   []string
	ReturnError  error
	LastQuestion string
}

func (m *MockStore) add(r ledger.Record) (string, error) {
	if m.ReturnError != nil {
		return "", m.ReturnError
	}
	r.ID = "id-" + string(r.Kind)
	m.Records = append(m.Records, r)
	return r.ID, nil
}

func (m *MockStore) AddDDL(ctx context.Context, ddl string) (string, error) {
	return m.add(ledger.NewDDL(ddl))
}

func (m *MockStore) AddDocumentation(ctx context.Context, doc string) (string, error) {
	return m.add(ledger.NewDocumentation(doc))
}

func (m *MockStore) AddQuestionSQL(ctx context.Context, question, sql string) (string, error) {
	return m.add(ledger.NewQuestionSQL(question, sql))
}

func (m *MockStore) GetRelatedDDL(ctx context.Context, question string) ([]string, error) {
	m.LastQuestion = question
	return m.RelatedTexts, m.ReturnError
}

func (m *MockStore) GetRelatedDocumentation(ctx context.Context, question string) ([]string, error) {
	m.LastQuestion = question
	return m.RelatedTexts, m.ReturnError
}

func (m *MockStore) GetSimilarQuestionSQL(ctx context.Context, question string) ([]trainstore.QuestionSQL, error) {
	m.LastQuestion = question
	return m.SimilarPairs, m.ReturnError
}

func (m *MockStore) GetTrainingData() []ledger.Record {
	return m.Records
}

func (m *MockStore) RemoveTrainingData(ctx context.Context, id string) error {
	if m.ReturnError != nil {
		return m.ReturnError
	}
	m.RemovedIDs = append(m.RemovedIDs, id)
	return nil
}

func (m *MockStore) Health() *trainstore.HealthReport {
	return &trainstore.HealthReport{Status: trainstore.StatusHealthy, Records: len(m.Records)}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeRequiresStore(t *testing.T) {
	srv := NewTrainingToolServer(nil, quietLogger())
	err := srv.Initialize()
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected config error, got %v", err)
	}
	if err := srv.Start(); !errortypes.IsConfigError(err) {
		t.Errorf("Expected config error from Start before Initialize, got %v", err)
	}
}

func TestTrainHandlers(t *testing.T) {
	store := &MockStore{}
	srv := NewTrainingToolServer(store, quietLogger())

	resp, err := srv.handleTrainDDL(nil, tools.TrainTextRequest{Text: "CREATE TABLE t(id INT)"})
	if err != nil {
		t.Fatalf("handleTrainDDL returned error: %v", err)
	}
	if !resp.OK() || resp.ID != "id-ddl" || resp.Kind != "ddl" {
		t.Errorf("Unexpected train_ddl response: %+v", resp)
	}

	resp, _ = srv.handleTrainDocumentation(nil, tools.TrainTextRequest{Text: "t stores widgets"})
	if !resp.OK() || resp.Kind != "documentation" {
		t.Errorf("Unexpected train_documentation response: %+v", resp)
	}

	resp, _ = srv.handleTrainQuestionSQL(nil, tools.TrainQuestionSQLRequest{Question: "how many rows", SQL: "SELECT COUNT(*) FROM t"})
	if !resp.OK() || resp.Kind != "question_sql" {
		t.Errorf("Unexpected train_question_sql response: %+v", resp)
	}

	if len(store.Records) != 3 {
		t.Errorf("Expected 3 stored records, got %d", len(store.Records))
	}
}

func TestRetrievalHandlers(t *testing.T) {
	store := &MockStore{
		RelatedTexts: []string{"CREATE TABLE t(id INT)"},
		SimilarPairs: []trainstore.QuestionSQL{{Question: "how many rows", SQL: "SELECT COUNT(*) FROM t"}},
	}
	srv := NewTrainingToolServer(store, quietLogger())

	related, err := srv.handleGetRelatedDDL(nil, tools.QuestionRequest{Question: "which table"})
	if err != nil {
		t.Fatalf("handleGetRelatedDDL returned error: %v", err)
	}
	if !related.OK() || len(related.Results) != 1 || store.LastQuestion != "which table" {
		t.Errorf("Unexpected get_related_ddl response: %+v", related)
	}

	docs, _ := srv.handleGetRelatedDocumentation(nil, tools.QuestionRequest{Question: "widgets"})
	if !docs.OK() || len(docs.Results) != 1 {
		t.Errorf("Unexpected get_related_documentation response: %+v", docs)
	}

	similar, _ := srv.handleGetSimilarQuestionSQL(nil, tools.QuestionRequest{Question: "how many rows in t"})
	if !similar.OK() || len(similar.Results) != 1 || similar.Results[0].SQL != "SELECT COUNT(*) FROM t" {
		t.Errorf("Unexpected get_similar_question_sql response: %+v", similar)
	}
}

func TestEmptyResultsAreNotNil(t *testing.T) {
	srv := NewTrainingToolServer(&MockStore{}, quietLogger())

	related, _ := srv.handleGetRelatedDDL(nil, tools.QuestionRequest{Question: "q"})
	if related.Results == nil {
		t.Error("Expected empty, non-nil results")
	}
	similar, _ := srv.handleGetSimilarQuestionSQL(nil, tools.QuestionRequest{Question: "q"})
	if similar.Results == nil {
		t.Error("Expected empty, non-nil results")
	}
	data, _ := srv.handleGetTrainingData(nil, tools.GetTrainingDataRequest{})
	if data.Records == nil || data.Count != 0 {
		t.Errorf("Expected empty listing, got %+v", data)
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"provider", errortypes.ProviderError(errors.New("timeout"), "embedding failed"), CodeProviderError},
		{"dimension", errortypes.DimensionMismatchError(1024, 768), CodeDimensionMismatch},
		{"storage", errortypes.StorageError(errors.New("disk full"), "persist failed"), CodeStorageError},
		{"input", errortypes.InputError(nil, "empty"), CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewTrainingToolServer(&MockStore{ReturnError: tt.err}, quietLogger())

			// We expect no direct error from handler
			resp, err := srv.handleTrainDDL(nil, tools.TrainTextRequest{Text: "CREATE TABLE t(id INT)"})
			if err != nil {
				t.Fatalf("Expected nil error from handler, got %v", err)
			}
			if resp.Status != tools.StatusError || resp.Code != tt.wantCode || resp.ID != "" {
				t.Errorf("Unexpected response: %+v", resp)
			}

			related, _ := srv.handleGetRelatedDDL(nil, tools.QuestionRequest{Question: "q"})
			if related.Status != tools.StatusError || related.Code != tt.wantCode {
				t.Errorf("Unexpected related response: %+v", related)
			}
		})
	}
}

func TestGetTrainingDataKindFilter(t *testing.T) {
	store := &MockStore{Records: []ledger.Record{
		{ID: "1", Kind: ledger.KindDDL, Content: "CREATE TABLE t(id INT)"},
		{ID: "2", Kind: ledger.KindDocumentation, Content: "t stores widgets"},
	}}
	srv := NewTrainingToolServer(store, quietLogger())

	all, _ := srv.handleGetTrainingData(nil, tools.GetTrainingDataRequest{})
	if all.Count != 2 {
		t.Errorf("Expected 2 records, got %d", all.Count)
	}

	docs, _ := srv.handleGetTrainingData(nil, tools.GetTrainingDataRequest{Kind: "doc"})
	if docs.Count != 1 || docs.Records[0].ID != "2" {
		t.Errorf("Unexpected filtered listing: %+v", docs)
	}

	bad, _ := srv.handleGetTrainingData(nil, tools.GetTrainingDataRequest{Kind: "view"})
	if bad.Code != CodeInvalidInput {
		t.Errorf("Expected INVALID_INPUT for bad kind, got %+v", bad)
	}
}

func TestRemoveAndHealthHandlers(t *testing.T) {
	store := &MockStore{}
	srv := NewTrainingToolServer(store, quietLogger())

	resp, _ := srv.handleRemoveTrainingData(nil, tools.RemoveTrainingDataRequest{ID: "abc"})
	if !resp.OK() || !resp.Removed || len(store.RemovedIDs) != 1 {
		t.Errorf("Unexpected remove response: %+v", resp)
	}

	store.ReturnError = errortypes.NotFoundError(nil, "no such record")
	resp, _ = srv.handleRemoveTrainingData(nil, tools.RemoveTrainingDataRequest{ID: "abc"})
	if resp.Removed || resp.Code != CodeNotFound {
		t.Errorf("Expected NOT_FOUND, got %+v", resp)
	}

	health, _ := srv.handleStoreHealth(nil, tools.StoreHealthRequest{})
	if !health.OK() || health.Health == nil || health.Health.Status != trainstore.StatusHealthy {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

// TestHandlersAgainstStore runs the end-to-end scenario through the tool
// handlers with a real store.
func TestHandlersAgainstStore(t *testing.T) {
	p, err := snapshot.NewFilePersister(t.TempDir(), snapshot.CompressionNone, quietLogger())
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	store, err := trainstore.Open(trainstore.Options{
		Embedder:  vector.NewMockEmbedder(32),
		Persister: p,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("trainstore.Open: %v", err)
	}
	srv := NewTrainingToolServer(store, quietLogger())

	ddl, _ := srv.handleTrainDDL(nil, tools.TrainTextRequest{Text: "CREATE TABLE t(id INT)"})
	_, _ = srv.handleTrainDocumentation(nil, tools.TrainTextRequest{Text: "t stores widgets"})
	_, _ = srv.handleTrainQuestionSQL(nil, tools.TrainQuestionSQLRequest{Question: "how many rows", SQL: "SELECT COUNT(*) FROM t"})

	// The mock embedder is deterministic, so the identical question is an exact match.
	similar, _ := srv.handleGetSimilarQuestionSQL(nil, tools.QuestionRequest{Question: "how many rows"})
	if len(similar.Results) != 1 || similar.Results[0].SQL != "SELECT COUNT(*) FROM t" {
		t.Errorf("Unexpected similar results: %+v", similar)
	}

	related, _ := srv.handleGetRelatedDDL(nil, tools.QuestionRequest{Question: "CREATE TABLE t(id INT)"})
	if len(related.Results) != 1 || related.Results[0] != "CREATE TABLE t(id INT)" {
		t.Errorf("Unexpected related results: %+v", related)
	}

	removed, _ := srv.handleRemoveTrainingData(nil, tools.RemoveTrainingDataRequest{ID: ddl.ID})
	if !removed.Removed {
		t.Fatalf("Expected removal, got %+v", removed)
	}
	data, _ := srv.handleGetTrainingData(nil, tools.GetTrainingDataRequest{})
	if data.Count != 2 {
		t.Errorf("Expected 2 remaining records, got %d", data.Count)
	}

	again, _ := srv.handleRemoveTrainingData(nil, tools.RemoveTrainingDataRequest{ID: ddl.ID})
	if again.Code != CodeNotFound {
		t.Errorf("Expected NOT_FOUND on second removal, got %+v", again)
	}
}

func TestHandlersTruncateLoggedQuestions(t *testing.T) {
	var buf bytes.Buffer
	srv := NewTrainingToolServer(&MockStore{}, slog.New(slog.NewTextHandler(&buf, nil)))
	question := strings.Repeat("q", 300)

	_, _ = srv.handleTrainQuestionSQL(nil, tools.TrainQuestionSQLRequest{Question: question, SQL: "SELECT 1"})
	_, _ = srv.handleGetRelatedDDL(nil, tools.QuestionRequest{Question: question})
	_, _ = srv.handleGetRelatedDocumentation(nil, tools.QuestionRequest{Question: question})
	_, _ = srv.handleGetSimilarQuestionSQL(nil, tools.QuestionRequest{Question: question})

	logged := buf.String()
	if strings.Contains(logged, strings.Repeat("q", logTextLimit+1)) {
		t.Errorf("Expected logged questions truncated to %d runes, got %q", logTextLimit, logged)
	}
	if got := strings.Count(logged, strings.Repeat("q", logTextLimit)+"..."); got != 4 {
		t.Errorf("Expected 4 truncated questions in the log, got %d", got)
	}
}
