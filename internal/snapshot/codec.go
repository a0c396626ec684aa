package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/localrivet/schemarecall/internal/ledger"
)

// Vector artifact layout, all integers little-endian:
//
//	magic    [4]byte "SRVX"
//	version  uint16
//	codec    uint8   (Compression)
//	reserved uint8
//	dim      uint32
//	count    uint32
//	rawSize  uint32  (dim*count*4)
//	payload  rawSize bytes of float32 rows, possibly compressed
const (
	vectorMagic         = "SRVX"
	vectorFormatVersion = 1
	vectorHeaderSize    = 20

	ledgerFormatVersion = 1
)

var (
	// ErrBadMagic means the vector artifact is not in this format.
	ErrBadMagic = errors.New("bad vector artifact magic")
	// ErrUnsupportedVersion means the artifact was written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported artifact version")
)

// EncodeVectors serializes vectors of length dim.
func EncodeVectors(dim int, vectors [][]float32, c Compression) ([]byte, error) {
	raw := make([]byte, dim*len(vectors)*4)
	off := 0
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d values, dimension is %d", i, len(v), dim)
		}
		for _, f := range v {
			binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(f))
			off += 4
		}
	}

	payload, used, err := compress(raw, c)
	if err != nil {
		return nil, err
	}

	out := make([]byte, vectorHeaderSize+len(payload))
	copy(out[0:4], vectorMagic)
	binary.LittleEndian.PutUint16(out[4:], vectorFormatVersion)
	out[6] = byte(used)
	binary.LittleEndian.PutUint32(out[8:], uint32(dim))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(out[16:], uint32(len(raw)))
	copy(out[vectorHeaderSize:], payload)
	return out, nil
}

// DecodeVectors parses a vector artifact and returns its dimension and rows.
func DecodeVectors(data []byte) (int, [][]float32, error) {
	if len(data) < vectorHeaderSize {
		return 0, nil, fmt.Errorf("vector artifact truncated: %d bytes", len(data))
	}
	if string(data[0:4]) != vectorMagic {
		return 0, nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != vectorFormatVersion {
		return 0, nil, fmt.Errorf("%w: vectors v%d", ErrUnsupportedVersion, v)
	}
	c := Compression(data[6])
	dim := int(binary.LittleEndian.Uint32(data[8:]))
	count := int(binary.LittleEndian.Uint32(data[12:]))
	rawSize := int(binary.LittleEndian.Uint32(data[16:]))

	if dim == 0 && count > 0 {
		return 0, nil, fmt.Errorf("vector header inconsistent: %d rows of dimension 0", count)
	}
	if rawSize != dim*count*4 {
		return 0, nil, fmt.Errorf("vector header inconsistent: dim=%d count=%d size=%d", dim, count, rawSize)
	}

	raw, err := decompress(data[vectorHeaderSize:], c, rawSize)
	if err != nil {
		return 0, nil, err
	}

	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return dim, vectors, nil
}

type ledgerFile struct {
	Version int             `msgpack:"version"`
	Records []ledger.Record `msgpack:"records"`
}

// EncodeLedger serializes records with msgpack.
func EncodeLedger(records []ledger.Record) ([]byte, error) {
	if records == nil {
		records = []ledger.Record{}
	}
	return msgpack.Marshal(&ledgerFile{Version: ledgerFormatVersion, Records: records})
}

// DecodeLedger parses a ledger artifact.
func DecodeLedger(data []byte) ([]ledger.Record, error) {
	var lf ledgerFile
	if err := msgpack.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if lf.Version != ledgerFormatVersion {
		return nil, fmt.Errorf("%w: ledger v%d", ErrUnsupportedVersion, lf.Version)
	}
	return lf.Records, nil
}

// EncodeDimension renders the dimension artifact.
func EncodeDimension(dim int) []byte {
	return []byte(strconv.Itoa(dim) + "\n")
}

// DecodeDimension parses the dimension artifact.
func DecodeDimension(data []byte) (int, error) {
	dim, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("decode dimension: %w", err)
	}
	if dim < 0 {
		return 0, fmt.Errorf("negative dimension %d", dim)
	}
	return dim, nil
}
