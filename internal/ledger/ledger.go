package ledger

import (
	"fmt"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/util"
)

// Ledger is an ordered, append-only sequence of records. Position i
// describes vector i in the paired index. It is not safe for concurrent use.
type Ledger struct {
	records []Record
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// FromRecords returns a ledger holding a copy of records in order.
func FromRecords(records []Record) *Ledger {
	l := &Ledger{records: make([]Record, len(records))}
	copy(l.records, records)
	return l
}

// Append stores r at the end of the ledger and returns its id. A fresh id is
// assigned when r has none.
func (l *Ledger) Append(r Record) string {
	if r.ID == "" {
		r.ID = util.NewRecordID()
	}
	l.records = append(l.records, r)
	return r.ID
}

// Get returns the record at pos. An out of range position means the ledger
// and index have diverged.
func (l *Ledger) Get(pos int) (Record, error) {
	if pos < 0 || pos >= len(l.records) {
		err := fmt.Errorf("position %d out of range [0,%d)", pos, len(l.records))
		return Record{}, errortypes.InternalError(err, "ledger out of sync with index")
	}
	return l.records[pos], nil
}

// All returns a copy of every record in insertion order.
func (l *Ledger) All() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// IndexOf returns the position of the record with the given id, or -1.
func (l *Ledger) IndexOf(id string) int {
	for i, r := range l.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// CountByKind returns the number of records of each kind.
func (l *Ledger) CountByKind() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = 0
	}
	for _, r := range l.records {
		counts[r.Kind]++
	}
	return counts
}

// Truncate drops every record at position n or later.
func (l *Ledger) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(l.records) {
		clear(l.records[n:])
		l.records = l.records[:n]
	}
}

// Without returns a new ledger without the record at pos. The receiver is
// not modified.
func (l *Ledger) Without(pos int) (*Ledger, error) {
	if pos < 0 || pos >= len(l.records) {
		return nil, fmt.Errorf("position %d out of range [0,%d)", pos, len(l.records))
	}
	out := &Ledger{records: make([]Record, 0, len(l.records)-1)}
	out.records = append(out.records, l.records[:pos]...)
	out.records = append(out.records, l.records[pos+1:]...)
	return out, nil
}
