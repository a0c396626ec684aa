package trainstore

import (
	"context"
	"errors"
	"strings"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/ledger"
)

// TrainRequest carries one training fact. Exactly one of the payloads is
// used, checked in the order documentation, question/SQL, DDL.
type TrainRequest struct {
	Question      string `json:"question,omitempty"`
	SQL           string `json:"sql,omitempty"`
	DDL           string `json:"ddl,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}

// Train dispatches req to the matching add operation and returns the new
// record's id and kind.
func (s *Store) Train(ctx context.Context, req TrainRequest) (string, ledger.Kind, error) {
	hasQuestion := strings.TrimSpace(req.Question) != ""
	hasSQL := strings.TrimSpace(req.SQL) != ""

	switch {
	case hasQuestion && !hasSQL:
		return "", "", errortypes.InputError(errors.New("sql missing"), "a question requires its sql")
	case strings.TrimSpace(req.Documentation) != "":
		id, err := s.AddDocumentation(ctx, req.Documentation)
		return id, ledger.KindDocumentation, err
	case hasSQL:
		if !hasQuestion {
			return "", "", errortypes.InputError(errors.New("question missing"), "sql requires the question it answers")
		}
		id, err := s.AddQuestionSQL(ctx, req.Question, req.SQL)
		return id, ledger.KindQuestionSQL, err
	case strings.TrimSpace(req.DDL) != "":
		id, err := s.AddDDL(ctx, req.DDL)
		return id, ledger.KindDDL, err
	default:
		return "", "", errortypes.InputError(errors.New("empty request"), "nothing to train")
	}
}
