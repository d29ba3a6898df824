// File path: internal/api/types.go
package api

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type validateRequest struct {
	QuestionID string `json:"question_id"`
}

type validateResponse struct {
	IsValid          bool     `json:"is_valid"`
	Message          string   `json:"message,omitempty"`
	SimilarQuestions []string `json:"similar_questions,omitempty"`
}

type countsResponse struct {
	Counts string `json:"counts"`
}
