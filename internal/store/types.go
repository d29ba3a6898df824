// File path: internal/store/types.go
package store

import "database/sql"

// ColumnKind enumerates the survey question kinds recognised by the
// tabulation engine. Values match the question_type column.
type ColumnKind string

const (
	KindSingleAnswer ColumnKind = "SA"
	KindMultiAnswer  ColumnKind = "MA"
	KindGrid         ColumnKind = "GRID"
)

// Response mirrors a survey_responses row.
type Response struct {
	ID            int64          `db:"id"`
	RespondentID  string         `db:"respondent_id"`
	QuestionID    string         `db:"question_id"`
	SubQuestion   sql.NullString `db:"sub_question"`
	QuestionType  string         `db:"question_type"`
	ResponseValue sql.NullString `db:"response_value"`
	OpenEnded     sql.NullString `db:"open_ended"`
}

// QuestionRef is a (question_id, sub_question) pair used by suggestion
// searches.
type QuestionRef struct {
	QuestionID  string `db:"question_id"`
	SubQuestion string `db:"sub_question"`
}

// ColumnInfo reports the declared kind for a question column.
type ColumnInfo struct {
	QuestionID string     `db:"question_id"`
	Kind       ColumnKind `db:"question_type"`
}

// Existence is the result of an identifier existence check.
type Existence struct {
	Exists  bool
	Similar []QuestionRef
}

// GridRow carries, for one distinct response value, the occurrence count
// per grid column identifier.
type GridRow struct {
	ResponseValue string
	Counts        map[string]int
}
