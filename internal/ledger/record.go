// Package ledger holds the typed training records that sit alongside the
// vector index, one record per indexed vector.
package ledger

import (
	"fmt"
	"strings"
)

// Kind discriminates the payload shape of a Record.
type Kind string

// Record kinds.
const (
	KindDDL           Kind = "ddl"
	KindDocumentation Kind = "documentation"
	KindQuestionSQL   Kind = "question_sql"
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindDDL, KindDocumentation, KindQuestionSQL}

// ParseKind accepts a kind name, case-insensitively. "doc" and "sql" are
// accepted as short forms.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ddl":
		return KindDDL, nil
	case "documentation", "doc":
		return KindDocumentation, nil
	case "question_sql", "sql":
		return KindQuestionSQL, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDDL, KindDocumentation, KindQuestionSQL:
		return true
	}
	return false
}

// Record is an immutable training fact.
//
// DDL and documentation records use Content. Question/SQL records use
// Question and SQL; only the question is embedded.
type Record struct {
	ID       string `json:"id" msgpack:"id"`
	Kind     Kind   `json:"kind" msgpack:"kind"`
	Content  string `json:"content,omitempty" msgpack:"content,omitempty"`
	Question string `json:"question,omitempty" msgpack:"question,omitempty"`
	SQL      string `json:"sql,omitempty" msgpack:"sql,omitempty"`
}

// NewDDL returns a DDL record without an id.
func NewDDL(ddl string) Record {
	return Record{Kind: KindDDL, Content: ddl}
}

// NewDocumentation returns a documentation record without an id.
func NewDocumentation(doc string) Record {
	return Record{Kind: KindDocumentation, Content: doc}
}

// NewQuestionSQL returns a question/SQL record without an id.
func NewQuestionSQL(question, sql string) Record {
	return Record{Kind: KindQuestionSQL, Question: question, SQL: sql}
}

// Text returns the text that is embedded for this record.
func (r Record) Text() string {
	if r.Kind == KindQuestionSQL {
		return r.Question
	}
	return r.Content
}

// Validate checks that the record has a known kind and a non-empty payload.
func (r Record) Validate() error {
	switch r.Kind {
	case KindDDL, KindDocumentation:
		if strings.TrimSpace(r.Content) == "" {
			return fmt.Errorf("%s record has empty content", r.Kind)
		}
	case KindQuestionSQL:
		if strings.TrimSpace(r.Question) == "" {
			return fmt.Errorf("question_sql record has empty question")
		}
		if strings.TrimSpace(r.SQL) == "" {
			return fmt.Errorf("question_sql record has empty sql")
		}
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}
