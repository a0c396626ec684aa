package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"crawshaw.io/sqlite"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/vector"
)

const (
	metaDimension     = "dimension"
	metaFormatVersion = "format_version"
	metaRecordCount   = "record_count"

	sqliteFormatVersion = 1
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS vectors (
		position INTEGER PRIMARY KEY,
		embedding BLOB NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS records (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL DEFAULT '',
		sql_text TEXT NOT NULL DEFAULT ''
	);`,
}

// SQLitePersister stores snapshots in a SQLite database. Each save replaces
// the contents of all three tables in one transaction.
type SQLitePersister struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	dbPath string
}

var _ Persister = (*SQLitePersister)(nil)

// NewSQLitePersister opens (creating if needed) the database at dbPath.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	conn, err := sqlite.OpenConn(dbPath, sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE)
	if err != nil {
		return nil, errortypes.StorageError(err, "failed to open SQLite database").
			WithField("path", dbPath)
	}

	p := &SQLitePersister{conn: conn, dbPath: dbPath}
	for _, stmt := range schemaStatements {
		if err := p.exec(stmt); err != nil {
			conn.Close()
			return nil, errortypes.StorageError(err, "failed to create tables")
		}
	}
	return p, nil
}

// Path returns the database file path.
func (p *SQLitePersister) Path() string {
	return p.dbPath
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// exec runs a statement that returns no rows.
func (p *SQLitePersister) exec(query string) error {
	stmt, err := p.conn.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Reset()

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with s.
func (p *SQLitePersister) Save(s *Snapshot) (err error) {
	if err := s.Validate(); err != nil {
		return errortypes.StorageError(err, "refusing to save invalid snapshot")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return errortypes.StorageError(errors.New("connection closed"), "cannot save snapshot")
	}

	if err := p.exec("BEGIN IMMEDIATE;"); err != nil {
		return errortypes.StorageError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := p.exec("ROLLBACK;"); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err := p.replaceAll(s); err != nil {
		return errortypes.StorageError(err, "failed to write snapshot")
	}

	if err := p.exec("COMMIT;"); err != nil {
		return errortypes.StorageError(err, "failed to commit snapshot")
	}
	return nil
}

func (p *SQLitePersister) replaceAll(s *Snapshot) error {
	for _, table := range []string{"snapshot_meta", "vectors", "records"} {
		if err := p.exec("DELETE FROM " + table + ";"); err != nil {
			return err
		}
	}

	meta := map[string]string{
		metaDimension:     strconv.Itoa(s.Dimension),
		metaFormatVersion: strconv.Itoa(sqliteFormatVersion),
		metaRecordCount:   strconv.Itoa(len(s.Records)),
	}
	metaStmt, err := p.conn.Prepare(`INSERT INTO snapshot_meta (key, value) VALUES (?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare meta insert: %w", err)
	}
	for k, v := range meta {
		metaStmt.Reset()
		metaStmt.BindText(1, k)
		metaStmt.BindText(2, v)
		if _, err := metaStmt.Step(); err != nil {
			metaStmt.Reset()
			return fmt.Errorf("failed to insert meta %s: %w", k, err)
		}
	}
	metaStmt.Reset()

	vecStmt, err := p.conn.Prepare(`INSERT INTO vectors (position, embedding) VALUES (?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer vecStmt.Reset()
	for i, v := range s.Vectors {
		blob, err := vector.Float32SliceToBytes(v)
		if err != nil {
			return err
		}
		vecStmt.Reset()
		vecStmt.BindInt64(1, int64(i))
		vecStmt.BindBytes(2, blob)
		if _, err := vecStmt.Step(); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", i, err)
		}
	}

	recStmt, err := p.conn.Prepare(`INSERT INTO records (position, id, kind, content, question, sql_text)
	VALUES (?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer recStmt.Reset()
	for i, r := range s.Records {
		recStmt.Reset()
		recStmt.BindInt64(1, int64(i))
		recStmt.BindText(2, r.ID)
		recStmt.BindText(3, string(r.Kind))
		recStmt.BindText(4, r.Content)
		recStmt.BindText(5, r.Question)
		recStmt.BindText(6, r.SQL)
		if _, err := recStmt.Step(); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields (nil, nil).
func (p *SQLitePersister) Load() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil, errortypes.StorageError(errors.New("connection closed"), "cannot load snapshot")
	}

	meta, err := p.loadMeta()
	if err != nil {
		return nil, errortypes.StorageError(err, "failed to read snapshot metadata")
	}
	vectors, err := p.loadVectors()
	if err != nil {
		return nil, errortypes.StorageError(err, "failed to read vectors")
	}
	records, err := p.loadRecords()
	if err != nil {
		return nil, errortypes.StorageError(err, "failed to read records")
	}

	if len(meta) == 0 && len(vectors) == 0 && len(records) == 0 {
		return nil, nil
	}

	if v, ok := meta[metaFormatVersion]; ok && v != strconv.Itoa(sqliteFormatVersion) {
		err := fmt.Errorf("%w: sqlite v%s", ErrUnsupportedVersion, v)
		return nil, errortypes.StorageError(err, "unsupported snapshot")
	}

	var dim int
	if v, ok := meta[metaDimension]; ok {
		if dim, err = DecodeDimension([]byte(v)); err != nil {
			return nil, errortypes.StorageError(err, "corrupt dimension")
		}
	} else if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	s := &Snapshot{Dimension: dim, Vectors: vectors, Records: records}
	if err := s.Validate(); err != nil {
		return nil, errortypes.StorageError(err, "inconsistent snapshot")
	}
	if v, ok := meta[metaRecordCount]; ok && v != strconv.Itoa(len(records)) {
		err := fmt.Errorf("metadata lists %s records, table has %d", v, len(records))
		return nil, errortypes.StorageError(err, "inconsistent snapshot")
	}
	return s, nil
}

func (p *SQLitePersister) loadMeta() (map[string]string, error) {
	stmt, err := p.conn.Prepare(`SELECT key, value FROM snapshot_meta;`)
	if err != nil {
		return nil, err
	}
	defer stmt.Reset()

	meta := make(map[string]string)
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		meta[stmt.ColumnText(0)] = stmt.ColumnText(1)
	}
	return meta, nil
}

func (p *SQLitePersister) loadVectors() ([][]float32, error) {
	stmt, err := p.conn.Prepare(`SELECT position, embedding FROM vectors ORDER BY position;`)
	if err != nil {
		return nil, err
	}
	defer stmt.Reset()

	var vectors [][]float32
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		if pos := stmt.ColumnInt64(0); pos != int64(len(vectors)) {
			return nil, fmt.Errorf("vector positions not contiguous at %d", pos)
		}

		blob := make([]byte, stmt.ColumnLen(1))
		stmt.ColumnBytes(1, blob)
		v, err := vector.BytesToFloat32Slice(blob)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", len(vectors), err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (p *SQLitePersister) loadRecords() ([]ledger.Record, error) {
	stmt, err := p.conn.Prepare(`SELECT position, id, kind, content, question, sql_text
	FROM records ORDER BY position;`)
	if err != nil {
		return nil, err
	}
	defer stmt.Reset()

	var records []ledger.Record
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		if pos := stmt.ColumnInt64(0); pos != int64(len(records)) {
			return nil, fmt.Errorf("record positions not contiguous at %d", pos)
		}
		records = append(records, ledger.Record{
			ID:       stmt.ColumnText(1),
			Kind:     ledger.Kind(stmt.ColumnText(2)),
			Content:  stmt.ColumnText(3),
			Question: stmt.ColumnText(4),
			SQL:      stmt.ColumnText(5),
		})
	}
	return records, nil
}
