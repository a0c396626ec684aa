// Package trainstore is the retrieval store behind the SQL assistant: it
// embeds training facts, keeps them durably alongside their vectors, and
// answers kind-filtered nearest-neighbour queries.
package trainstore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/index"
	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/logger"
	"github.com/localrivet/schemarecall/internal/snapshot"
	"github.com/localrivet/schemarecall/internal/telemetry"
	"github.com/localrivet/schemarecall/internal/util"
	"github.com/localrivet/schemarecall/internal/vector"
)

// DefaultTopN is the number of candidates pulled from the index before
// filtering by kind.
const DefaultTopN = 10

const logTextLimit = 100

// QuestionSQL is a retrieved question/SQL pair.
type QuestionSQL struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// Options configures a Store.
type Options struct {
	Embedder  vector.Embedder
	Persister snapshot.Persister
	// TopN defaults to DefaultTopN.
	TopN    int
	Logger  *slog.Logger
	Metrics *telemetry.MetricsCollector
}

// Store owns the vector index and the record ledger. Position i of the index
// holds the embedding of record i of the ledger; every exported method
// preserves that alignment and persists before returning from a mutation.
//
// Store is safe for concurrent use. Embedding runs outside the lock.
type Store struct {
	mu  sync.RWMutex
	idx *index.Index
	led *ledger.Ledger

	embedder  vector.Embedder
	persister snapshot.Persister
	topN      int
	logger    *slog.Logger
	metrics   *telemetry.MetricsCollector
}

// Open loads the persisted snapshot, if any, and returns a ready store. A
// snapshot that exists but cannot be read is an error, never an empty store.
func Open(opts Options) (*Store, error) {
	if opts.Embedder == nil {
		return nil, errortypes.ConfigError(errors.New("nil embedder"), "store requires an embedder")
	}
	if opts.Persister == nil {
		return nil, errortypes.ConfigError(errors.New("nil persister"), "store requires a persister")
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetricsCollector()
	}

	s := &Store{
		idx:       index.New(0),
		led:       ledger.New(),
		embedder:  opts.Embedder,
		persister: opts.Persister,
		topN:      opts.TopN,
		logger:    logger.WithComponent(opts.Logger, "trainstore"),
		metrics:   opts.Metrics,
	}

	snap, err := opts.Persister.Load()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		idx, err := index.FromVectors(snap.Dimension, snap.Vectors)
		if err != nil {
			return nil, errortypes.StorageError(err, "snapshot vectors do not match dimension")
		}
		if idx.Len() != len(snap.Records) {
			return nil, errortypes.StorageError(errors.New("vector and record counts differ"), "inconsistent snapshot")
		}
		s.idx = idx
		s.led = ledger.FromRecords(snap.Records)
	}

	s.metrics.SetGauge(telemetry.MetricRecords, float64(s.led.Len()))
	s.logger.Info("Training store opened",
		"records", s.led.Len(),
		"dimension", s.idx.Dimension(),
		"embedder", s.embedder.Name())
	return s, nil
}

// Close releases the persister.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persister.Close()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.led.Len()
}

// Dimension returns the locked-in embedding length, or 0 before the first add.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.Dimension()
}

// Metrics returns the store's metrics collector.
func (s *Store) Metrics() *telemetry.MetricsCollector {
	return s.metrics
}

// AddDDL stores a table definition and returns its record id.
func (s *Store) AddDDL(ctx context.Context, ddl string) (string, error) {
	return s.add(ctx, ledger.NewDDL(ddl))
}

// AddDocumentation stores free-text documentation and returns its record id.
func (s *Store) AddDocumentation(ctx context.Context, doc string) (string, error) {
	return s.add(ctx, ledger.NewDocumentation(doc))
}

// AddQuestionSQL stores a question with its SQL answer. Only the question is
// embedded.
func (s *Store) AddQuestionSQL(ctx context.Context, question, sql string) (string, error) {
	return s.add(ctx, ledger.NewQuestionSQL(question, sql))
}

func (s *Store) add(ctx context.Context, rec ledger.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", errortypes.InputError(err, "invalid training record")
	}

	vec, err := s.embed(ctx, rec.Text())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevLen := s.idx.Len()
	prevDim := s.idx.Dimension()

	if _, err := s.idx.Append(vec); err != nil {
		return "", err
	}
	id := s.led.Append(rec)

	if err := s.persistLocked(s.idx, s.led); err != nil {
		s.idx.Truncate(prevLen)
		s.led.Truncate(prevLen)
		if prevDim == 0 {
			s.idx.ResetDimension()
		}
		s.metrics.IncrementCounter(telemetry.MetricRollbacks, 1)
		s.logger.Warn("Rolled back add after persistence failure",
			"kind", rec.Kind,
			"id", id,
			"error", err)
		return "", err
	}

	s.metrics.IncrementCounter(telemetry.MetricAdds, 1)
	s.metrics.SetGauge(telemetry.MetricRecords, float64(s.led.Len()))
	s.logger.Info("Added training record",
		"kind", rec.Kind,
		"id", id,
		"text", logger.Truncate(rec.Text(), logTextLimit),
		"hash", util.ContentHash(rec.Text()))
	return id, nil
}

// GetRelatedDDL returns the DDL texts among the top candidates for question,
// nearest first.
func (s *Store) GetRelatedDDL(ctx context.Context, question string) ([]string, error) {
	recs, err := s.related(ctx, question, ledger.KindDDL)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Content
	}
	return out, nil
}

// GetRelatedDocumentation returns the documentation texts among the top
// candidates for question, nearest first.
func (s *Store) GetRelatedDocumentation(ctx context.Context, question string) ([]string, error) {
	recs, err := s.related(ctx, question, ledger.KindDocumentation)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Content
	}
	return out, nil
}

// GetSimilarQuestionSQL returns the question/SQL pairs among the top
// candidates for question, nearest first.
func (s *Store) GetSimilarQuestionSQL(ctx context.Context, question string) ([]QuestionSQL, error) {
	recs, err := s.related(ctx, question, ledger.KindQuestionSQL)
	if err != nil {
		return nil, err
	}
	out := make([]QuestionSQL, len(recs))
	for i, r := range recs {
		out[i] = QuestionSQL{Question: r.Question, SQL: r.SQL}
	}
	return out, nil
}

// related pulls the top N candidates across all kinds and keeps those of the
// requested kind in rank order. Fewer than N results may come back even when
// more records of that kind exist further away.
func (s *Store) related(ctx context.Context, question string, kind ledger.Kind) ([]ledger.Record, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errortypes.InputError(errors.New("empty question"), "question is required")
	}
	if s.Len() == 0 {
		return []ledger.Record{}, nil
	}

	vec, err := s.embed(ctx, question)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.idx.Search(vec, s.topN)
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Record, 0, len(matches))
	for _, m := range matches {
		rec, err := s.led.Get(m.Position)
		if err != nil {
			return nil, err
		}
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}

	s.metrics.IncrementCounter(telemetry.MetricSearches, 1)
	s.metrics.Since(telemetry.MetricSearchTime, start)
	s.logger.Debug("Searched training data",
		"kind", kind,
		"candidates", len(matches),
		"results", len(out))
	return out, nil
}

// GetTrainingData returns every record in insertion order.
func (s *Store) GetTrainingData() []ledger.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.led.All()
}

// RemoveTrainingData deletes the record with the given id, rebuilding the
// index and ledger without it. Later records move down one position. The
// store is only changed once the rebuilt snapshot is durable.
func (s *Store) RemoveTrainingData(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errortypes.InputError(errors.New("empty id"), "record id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.led.IndexOf(id)
	if pos < 0 {
		return errortypes.NotFoundError(errors.New("no record with id "+id), "cannot remove training data").
			WithField("id", id)
	}

	idx, err := s.idx.Without(pos)
	if err != nil {
		return errortypes.InternalError(err, "index out of sync with ledger")
	}
	led, err := s.led.Without(pos)
	if err != nil {
		return errortypes.InternalError(err, "ledger out of sync with index")
	}

	if err := s.persistLocked(idx, led); err != nil {
		s.logger.Error("Failed to persist removal", "id", id, "error", err)
		return err
	}

	s.idx, s.led = idx, led
	s.metrics.IncrementCounter(telemetry.MetricRemoves, 1)
	s.metrics.SetGauge(telemetry.MetricRecords, float64(s.led.Len()))
	s.logger.Info("Removed training record", "id", id, "position", pos)
	return nil
}

// embed calls the embedder without holding the lock.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	s.metrics.IncrementCounter(telemetry.MetricEmbedCalls, 1)

	vec, err := s.embedder.CreateEmbedding(ctx, text)
	s.metrics.Since(telemetry.MetricEmbedTime, start)
	if err != nil {
		s.metrics.IncrementCounter(telemetry.MetricEmbedFailures, 1)
		if errortypes.TypeOf(err) == "" {
			err = errortypes.ProviderError(err, "embedding failed").
				WithField("provider", s.embedder.Name())
		}
		return nil, err
	}
	if len(vec) == 0 {
		s.metrics.IncrementCounter(telemetry.MetricEmbedFailures, 1)
		return nil, errortypes.ProviderError(errors.New("empty embedding"), "embedding failed").
			WithField("provider", s.embedder.Name())
	}
	return vec, nil
}

// persistLocked saves idx and led. The caller holds the write lock.
func (s *Store) persistLocked(idx *index.Index, led *ledger.Ledger) error {
	start := time.Now()
	defer s.metrics.Since(telemetry.MetricPersistTime, start)

	snap := &snapshot.Snapshot{
		Dimension: idx.Dimension(),
		Vectors:   idx.Vectors(),
		Records:   led.All(),
	}
	if err := s.persister.Save(snap); err != nil {
		if errortypes.TypeOf(err) == "" {
			err = errortypes.StorageError(err, "failed to persist snapshot")
		}
		s.logger.Error("Persisting snapshot failed", "records", len(snap.Records), "error", err)
		return err
	}
	s.metrics.RecordTimestamp(telemetry.MetricLastPersist)
	return nil
}
