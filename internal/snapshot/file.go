package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localrivet/schemarecall/internal/errortypes"
)

// File layout inside the store directory.
const (
	CurrentFileName   = "CURRENT"
	VectorsFileName   = "vectors.bin"
	LedgerFileName    = "ledger.msgpack"
	DimensionFileName = "dimension"

	manifestVersion  = 1
	generationPrefix = "gen-"
	stagingPrefix    = ".staging-"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

type artifactInfo struct {
	Size  int64  `json:"size"`
	CRC32 uint32 `json:"crc32"`
}

// manifest is the content of CURRENT. Replacing CURRENT is the commit point
// of a save.
type manifest struct {
	Version     int                     `json:"version"`
	Generation  uint64                  `json:"generation"`
	Dimension   int                     `json:"dimension"`
	Records     int                     `json:"records"`
	Compression string                  `json:"compression"`
	Artifacts   map[string]artifactInfo `json:"artifacts"`
	CreatedAt   time.Time               `json:"created_at"`
}

// FilePersister stores snapshots as generation directories on the local
// filesystem.
type FilePersister struct {
	dir         string
	compression Compression
	logger      *slog.Logger

	mu         sync.Mutex
	generation uint64
}

var _ Persister = (*FilePersister)(nil)

// NewFilePersister returns a persister rooted at dir, which must exist.
func NewFilePersister(dir string, c Compression, logger *slog.Logger) (*FilePersister, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FilePersister{
		dir:         dir,
		compression: c,
		logger:      logger.With("component", "snapshot", "dir", dir),
	}

	m, err := p.readManifest()
	if err != nil {
		return nil, err
	}
	if m != nil {
		p.generation = m.Generation
	}
	return p, nil
}

// Dir returns the store directory.
func (p *FilePersister) Dir() string {
	return p.dir
}

// Generation returns the generation of the last published snapshot.
func (p *FilePersister) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Save writes s into a new generation and publishes it.
func (p *FilePersister) Save(s *Snapshot) error {
	if err := s.Validate(); err != nil {
		return errortypes.StorageError(err, "refusing to save invalid snapshot")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	staging, err := os.MkdirTemp(p.dir, stagingPrefix)
	if err != nil {
		return errortypes.StorageError(err, "failed to create staging directory")
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
		}
	}()

	infos, err := p.stage(staging, s)
	if err != nil {
		return errortypes.StorageError(err, "failed to stage snapshot")
	}
	if err := syncDir(staging); err != nil {
		return errortypes.StorageError(err, "failed to sync staging directory")
	}

	gen := p.generation + 1
	genDir := filepath.Join(p.dir, generationName(gen))
	// Left over from a save that crashed before publishing CURRENT.
	if err := os.RemoveAll(genDir); err != nil {
		return errortypes.StorageError(err, "failed to clear stale generation")
	}
	if err := os.Rename(staging, genDir); err != nil {
		return errortypes.StorageError(err, "failed to move staged snapshot into place")
	}
	published = true
	if err := syncDir(p.dir); err != nil {
		_ = os.RemoveAll(genDir)
		return errortypes.StorageError(err, "failed to sync store directory")
	}

	m := &manifest{
		Version:     manifestVersion,
		Generation:  gen,
		Dimension:   s.Dimension,
		Records:     len(s.Records),
		Compression: p.compression.String(),
		Artifacts:   infos,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.writeManifest(m); err != nil {
		_ = os.RemoveAll(genDir)
		return errortypes.StorageError(err, "failed to publish snapshot").
			WithField("generation", gen)
	}
	p.generation = gen
	if err := syncDir(p.dir); err != nil {
		p.logger.Warn("Failed to sync store directory after publish", "generation", gen, "error", err)
	}

	p.prune(gen)
	return nil
}

// stage encodes and writes the three artifacts concurrently.
func (p *FilePersister) stage(dir string, s *Snapshot) (map[string]artifactInfo, error) {
	names := []string{VectorsFileName, LedgerFileName, DimensionFileName}
	infos := make([]artifactInfo, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			var data []byte
			var err error
			switch name {
			case VectorsFileName:
				data, err = EncodeVectors(s.Dimension, s.Vectors, p.compression)
			case LedgerFileName:
				data, err = EncodeLedger(s.Records)
			case DimensionFileName:
				data = EncodeDimension(s.Dimension)
			}
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			if err := writeFileSync(filepath.Join(dir, name), data); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			infos[i] = artifactInfo{Size: int64(len(data)), CRC32: crc32.Checksum(data, crcTable)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]artifactInfo, len(names))
	for i, name := range names {
		out[name] = infos[i]
	}
	return out, nil
}

func (p *FilePersister) writeManifest(m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(p.dir, CurrentFileName+".tmp")
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(p.dir, CurrentFileName)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// readManifest returns nil when no snapshot has been published.
func (p *FilePersister) readManifest() (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, CurrentFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errortypes.StorageError(err, "failed to read snapshot manifest")
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errortypes.StorageError(err, "corrupt snapshot manifest")
	}
	if m.Version != manifestVersion {
		err := fmt.Errorf("%w: manifest v%d", ErrUnsupportedVersion, m.Version)
		return nil, errortypes.StorageError(err, "unsupported snapshot manifest")
	}
	if m.Generation == 0 {
		return nil, errortypes.StorageError(errors.New("generation 0"), "corrupt snapshot manifest")
	}
	return &m, nil
}

// Load reads the published snapshot, verifying every artifact against the
// manifest.
func (p *FilePersister) Load() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.readManifest()
	if err != nil || m == nil {
		return nil, err
	}
	genDir := filepath.Join(p.dir, generationName(m.Generation))

	vecData, err := p.readArtifact(genDir, VectorsFileName, m, false)
	if err != nil {
		return nil, err
	}
	ledgerData, err := p.readArtifact(genDir, LedgerFileName, m, false)
	if err != nil {
		return nil, err
	}

	width, vectors, err := DecodeVectors(vecData)
	if err != nil {
		return nil, errortypes.StorageError(err, "corrupt vector artifact")
	}
	records, err := DecodeLedger(ledgerData)
	if err != nil {
		return nil, errortypes.StorageError(err, "corrupt ledger artifact")
	}

	dim := width
	dimData, err := p.readArtifact(genDir, DimensionFileName, m, true)
	switch {
	case err == nil:
		if dim, err = DecodeDimension(dimData); err != nil {
			return nil, errortypes.StorageError(err, "corrupt dimension artifact")
		}
	case errors.Is(err, fs.ErrNotExist):
		p.logger.Warn("Dimension artifact missing, using vector width", "dimension", width)
	default:
		return nil, err
	}

	s := &Snapshot{Dimension: dim, Vectors: vectors, Records: records}
	if err := s.Validate(); err != nil {
		return nil, errortypes.StorageError(err, "inconsistent snapshot").
			WithField("generation", m.Generation)
	}
	if len(records) != m.Records {
		err := fmt.Errorf("manifest lists %d records, ledger has %d", m.Records, len(records))
		return nil, errortypes.StorageError(err, "inconsistent snapshot")
	}

	p.generation = m.Generation
	p.logger.Debug("Loaded snapshot", "generation", m.Generation, "records", len(records), "dimension", dim)
	return s, nil
}

// readArtifact reads and verifies one artifact. An optional artifact that is
// absent from both the directory and the manifest yields fs.ErrNotExist.
func (p *FilePersister) readArtifact(genDir, name string, m *manifest, optional bool) ([]byte, error) {
	info, listed := m.Artifacts[name]
	data, err := os.ReadFile(filepath.Join(genDir, name))
	if err != nil {
		if optional && !listed && errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, errortypes.StorageError(err, "failed to read snapshot artifact").
			WithField("artifact", name)
	}
	if !listed {
		return data, nil
	}
	if int64(len(data)) != info.Size || crc32.Checksum(data, crcTable) != info.CRC32 {
		return nil, errortypes.StorageError(errors.New("checksum mismatch"), "corrupt snapshot artifact").
			WithField("artifact", name)
	}
	return data, nil
}

// prune removes every generation and staging directory except keep. Failures
// only leave extra disk usage behind, so they are logged and ignored.
func (p *FilePersister) prune(keep uint64) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Warn("Failed to list store directory for pruning", "error", err)
		return
	}
	keepName := generationName(keep)
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == keepName {
			continue
		}
		if !strings.HasPrefix(name, generationPrefix) && !strings.HasPrefix(name, stagingPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.dir, name)); err != nil {
			p.logger.Warn("Failed to prune old snapshot", "path", name, "error", err)
		}
	}
}

// Generations lists the generation numbers present on disk, ascending.
func (p *FilePersister) Generations() ([]uint64, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	var gens []uint64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), generationPrefix) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(e.Name(), generationPrefix), 10, 64)
		if err == nil {
			gens = append(gens, n)
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// Close is a no-op; the file backend holds no open handles between calls.
func (p *FilePersister) Close() error {
	return nil
}

func generationName(gen uint64) string {
	return fmt.Sprintf("%s%08d", generationPrefix, gen)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
