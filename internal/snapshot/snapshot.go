// Package snapshot persists the training store's dimension, vectors and
// records as one consistent unit and restores them at startup.
//
// Two backends are provided. The file backend writes each snapshot into a
// fresh generation directory and publishes it by atomically replacing a
// CURRENT manifest. The sqlite backend rewrites three tables inside a single
// transaction. Either way a crash mid-save leaves the previous snapshot or
// the new one, never a mix of both.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/ledger"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// SQLiteFileName is the database file created inside the store path by the
// sqlite backend.
const SQLiteFileName = "schemarecall.db"

// Snapshot is the complete durable state of a training store.
type Snapshot struct {
	// Dimension is the locked-in embedding length, or 0 if never set.
	Dimension int
	// Vectors holds one embedding per record, in insertion order.
	Vectors [][]float32
	// Records is positionally aligned with Vectors.
	Records []ledger.Record
}

// Validate checks the alignment and dimension invariants.
func (s *Snapshot) Validate() error {
	if len(s.Vectors) != len(s.Records) {
		return fmt.Errorf("snapshot has %d vectors but %d records", len(s.Vectors), len(s.Records))
	}
	if s.Dimension < 0 {
		return fmt.Errorf("negative dimension %d", s.Dimension)
	}
	if s.Dimension == 0 && len(s.Vectors) > 0 {
		return errors.New("snapshot has vectors but no dimension")
	}
	for i, v := range s.Vectors {
		if len(v) != s.Dimension {
			return fmt.Errorf("vector %d has %d values, dimension is %d", i, len(v), s.Dimension)
		}
	}
	for i, r := range s.Records {
		if r.ID == "" {
			return fmt.Errorf("record %d has no id", i)
		}
		if !r.Kind.Valid() {
			return fmt.Errorf("record %d has unknown kind %q", i, r.Kind)
		}
	}
	return nil
}

// Persister saves and restores snapshots.
//
// Save is called synchronously after every mutation and must either publish
// the whole snapshot or leave the previous one in place. Load returns
// (nil, nil) when nothing has been saved yet and a storage error when a
// snapshot exists but cannot be read.
type Persister interface {
	Save(s *Snapshot) error
	Load() (*Snapshot, error)
	Close() error
}

// Options selects and configures a persistence backend.
type Options struct {
	Backend     string
	Path        string
	Compression Compression
	Logger      *slog.Logger
}

// Open creates the persister for opts.Backend rooted at opts.Path.
func Open(opts Options) (Persister, error) {
	if opts.Path == "" {
		return nil, errortypes.ConfigError(errors.New("empty path"), "store path is required")
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, errortypes.StorageError(err, "failed to create store directory").
			WithField("path", opts.Path)
	}

	switch strings.ToLower(opts.Backend) {
	case BackendFile, "":
		return NewFilePersister(opts.Path, opts.Compression, opts.Logger)
	case BackendSQLite:
		return NewSQLitePersister(filepath.Join(opts.Path, SQLiteFileName))
	default:
		return nil, errortypes.ConfigError(fmt.Errorf("unknown backend: %s", opts.Backend), "cannot open store")
	}
}
