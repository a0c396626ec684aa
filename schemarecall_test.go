package schemarecall

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/snapshot"
)

func testConfig(t *testing.T, backend string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Store.Path = t.TempDir()
	cfg.Store.Backend = backend
	cfg.Embedder.Dimensions = 16
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerRoundTrip(t *testing.T) {
	for _, backend := range []string{snapshot.BackendFile, snapshot.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)

			srv, err := NewServer(ServerOptions{Config: cfg, Logger: quietLogger()})
			require.NoError(t, err)

			ddlID, err := srv.AddDDL(ctx, "CREATE TABLE orders(id INT, total DECIMAL)")
			require.NoError(t, err)
			_, err = srv.AddDocumentation(ctx, "orders.total is in cents")
			require.NoError(t, err)
			_, err = srv.AddQuestionSQL(ctx, "total revenue", "SELECT SUM(total) FROM orders")
			require.NoError(t, err)
			require.NoError(t, srv.Stop())

			reopened, err := NewServer(ServerOptions{Config: cfg, Logger: quietLogger()})
			require.NoError(t, err)
			defer reopened.Stop()

			data := reopened.GetTrainingData()
			require.Len(t, data, 3)
			assert.Equal(t, ddlID, data[0].ID)

			ddl, err := reopened.GetRelatedDDL(ctx, "CREATE TABLE orders(id INT, total DECIMAL)")
			require.NoError(t, err)
			assert.Equal(t, []string{"CREATE TABLE orders(id INT, total DECIMAL)"}, ddl)

			pairs, err := reopened.GetSimilarQuestionSQL(ctx, "total revenue")
			require.NoError(t, err)
			require.Len(t, pairs, 1)
			assert.Equal(t, "SELECT SUM(total) FROM orders", pairs[0].SQL)

			docs, err := reopened.GetRelatedDocumentation(ctx, "cents")
			require.NoError(t, err)
			assert.Equal(t, []string{"orders.total is in cents"}, docs)

			require.NoError(t, reopened.RemoveTrainingData(ctx, ddlID))
			assert.Len(t, reopened.GetTrainingData(), 2)
			assert.Equal(t, 16, reopened.GetStore().Dimension())
		})
	}
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "postgres")
	_, err := NewServer(ServerOptions{Config: cfg, Logger: quietLogger()})
	require.Error(t, err)
	assert.True(t, errortypes.IsConfigError(err))
}

func TestCreateComponentsMissingAPIKey(t *testing.T) {
	cfg := testConfig(t, snapshot.BackendFile)
	cfg.Embedder.Provider = "openai"
	cfg.Embedder.ApiKey = ""

	_, _, err := CreateComponents(cfg, quietLogger())
	require.Error(t, err)
	assert.True(t, errortypes.IsConfigError(err))
}

func TestCreateComponents(t *testing.T) {
	cfg := testConfig(t, snapshot.BackendFile)
	store, emb, err := CreateComponents(cfg, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "mock", emb.Name())
	assert.Equal(t, 0, store.Len())
}
