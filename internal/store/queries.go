// File path: internal/store/queries.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Open-ended variants are excluded from every aggregation query.
const eligible = `open_ended IS NULL`

// CheckQuestionExists reports whether an identifier matches the schema
// exactly or as a case-insensitive substring, against both the question
// identifier and the sub-question field, along with similar entries.
func (s *Store) CheckQuestionExists(ctx context.Context, id string) (Existence, error) {
	if s == nil || s.db == nil {
		return Existence{}, fmt.Errorf("store not initialised")
	}
	var matches int
	err := s.db.GetContext(ctx, &matches, `
                SELECT COUNT(*) FROM survey_responses
                WHERE question_id = ? OR COALESCE(sub_question, '') = ?
                   OR UPPER(question_id) LIKE '%' || UPPER(?) || '%'
                   OR UPPER(COALESCE(sub_question, '')) LIKE '%' || UPPER(?) || '%'`,
		id, id, id, id)
	if err != nil {
		return Existence{}, fmt.Errorf("check question exists: %w", err)
	}
	similar, err := s.SimilarQuestions(ctx, strings.ToUpper(id))
	if err != nil {
		return Existence{}, err
	}
	return Existence{Exists: matches > 0, Similar: similar}, nil
}

// SimilarQuestions returns distinct schema entries whose identifier or
// sub-question contains the needle as a substring. The needle is matched
// against uppercased fields, so callers fold it before searching.
func (s *Store) SimilarQuestions(ctx context.Context, needle string) ([]QuestionRef, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialised")
	}
	refs := []QuestionRef{}
	err := s.db.SelectContext(ctx, &refs, `
                SELECT DISTINCT question_id, COALESCE(sub_question, '') AS sub_question
                FROM survey_responses
                WHERE UPPER(question_id) LIKE '%' || ? || '%'
                   OR UPPER(COALESCE(sub_question, '')) LIKE '%' || ? || '%'
                ORDER BY question_id, sub_question`,
		needle, needle)
	if err != nil {
		return nil, fmt.Errorf("select similar questions: %w", err)
	}
	return refs, nil
}

// CountSingleAnswer counts eligible single-answer rows for an identifier.
// A nil code counts every row (the base); a non-nil code counts scalar
// matches plus membership in bracketed multi-code response lists.
// Identifier matching is case-insensitive, mirroring the SA contract.
func (s *Store) CountSingleAnswer(ctx context.Context, id string, code *string) (int, error) {
	return s.countAnswers(ctx, `question_id LIKE ?`, id, code)
}

// CountMultiAnswer counts eligible multi-answer rows for an identifier
// using exact identifier matching.
func (s *Store) CountMultiAnswer(ctx context.Context, id string, code *string) (int, error) {
	return s.countAnswers(ctx, `question_id = ?`, id, code)
}

func (s *Store) countAnswers(ctx context.Context, idClause, id string, code *string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store not initialised")
	}
	query := `SELECT COUNT(*) FROM survey_responses WHERE ` + idClause + ` AND ` + eligible
	args := []interface{}{id}
	if code != nil {
		// Bracketed lists are normalised by stripping spaces before the
		// membership check, e.g. "[1, 3]" matches code "3".
		query += ` AND (
                        response_value = ?
                        OR REPLACE(response_value, ' ', '') = '[' || ? || ']'
                        OR REPLACE(response_value, ' ', '') LIKE '[' || ? || ',%'
                        OR REPLACE(response_value, ' ', '') LIKE '%,' || ? || ']'
                        OR REPLACE(response_value, ' ', '') LIKE '%,' || ? || ',%'
                )`
		args = append(args, *code, *code, *code, *code, *code)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return count, nil
}

// GridCounts aggregates occurrence counts per (response value, grid
// column) for a grid question family. An empty gridNumbers slice covers
// every bracketed variant under the base identifier. Rows are returned
// ordered by response value; callers must preserve that order.
func (s *Store) GridCounts(ctx context.Context, baseID string, gridNumbers []string) ([]GridRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialised")
	}
	query := `
                SELECT question_id, response_value, COUNT(*) AS n
                FROM survey_responses
                WHERE ` + eligible + `
                  AND response_value IS NOT NULL AND response_value != ''
                  AND question_id LIKE ? || '[%'
                GROUP BY question_id, response_value
                ORDER BY response_value, question_id`
	args := []interface{}{baseID}
	if len(gridNumbers) > 0 {
		variants := make([]string, 0, len(gridNumbers))
		for _, num := range gridNumbers {
			variants = append(variants, fmt.Sprintf("%s[%s]", baseID, num))
		}
		expanded, inArgs, err := sqlx.In(`
                        SELECT question_id, response_value, COUNT(*) AS n
                        FROM survey_responses
                        WHERE `+eligible+`
                          AND response_value IS NOT NULL AND response_value != ''
                          AND question_id IN (?)
                        GROUP BY question_id, response_value
                        ORDER BY response_value, question_id`, variants)
		if err != nil {
			return nil, fmt.Errorf("build grid query: %w", err)
		}
		query = s.db.Rebind(expanded)
		args = inArgs
	}
	type gridCount struct {
		QuestionID    string `db:"question_id"`
		ResponseValue string `db:"response_value"`
		N             int    `db:"n"`
	}
	counts := []gridCount{}
	if err := s.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("select grid counts: %w", err)
	}
	var rows []GridRow
	index := make(map[string]int)
	for _, c := range counts {
		pos, ok := index[c.ResponseValue]
		if !ok {
			pos = len(rows)
			index[c.ResponseValue] = pos
			rows = append(rows, GridRow{ResponseValue: c.ResponseValue, Counts: make(map[string]int)})
		}
		rows[pos].Counts[c.QuestionID] = c.N
	}
	return rows, nil
}

// LookupColumnKind resolves the declared kind for a base identifier,
// accepting either the bare base or any bracketed grid variant. A nil
// result means the question is unknown.
func (s *Store) LookupColumnKind(ctx context.Context, baseID string) (*ColumnInfo, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialised")
	}
	var info ColumnInfo
	err := s.db.GetContext(ctx, &info, `
                SELECT question_id, question_type
                FROM survey_responses
                WHERE (question_id LIKE ? || '[%' OR question_id = ?) AND `+eligible+`
                LIMIT 1`,
		baseID, baseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup column kind: %w", err)
	}
	return &info, nil
}

// DistinctResponseValues enumerates the distinct non-empty raw response
// values recorded for an identifier. Raw values may be scalars or
// bracketed multi-code lists; splitting is the caller's concern.
func (s *Store) DistinctResponseValues(ctx context.Context, id string, exact bool) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialised")
	}
	idClause := `question_id LIKE ?`
	if exact {
		idClause = `question_id = ?`
	}
	values := []string{}
	err := s.db.SelectContext(ctx, &values, `
                SELECT DISTINCT response_value FROM survey_responses
                WHERE `+idClause+` AND `+eligible+`
                  AND response_value IS NOT NULL AND response_value != ''
                ORDER BY response_value`,
		id)
	if err != nil {
		return nil, fmt.Errorf("select response values: %w", err)
	}
	return values, nil
}
