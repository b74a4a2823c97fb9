package server

import "github.com/mohammad-safakhou/quizsolver/internal/pipeline"

// QuizRequest is the POST /quiz payload.
type QuizRequest struct {
	Email  string `json:"email"`
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// QuizResponse is returned for every POST /quiz, success or not.
type QuizResponse struct {
	Answer       string               `json:"answer"`
	Status       string               `json:"status"` // success, error
	Message      string               `json:"message,omitempty"`
	Code         string               `json:"code,omitempty"`
	SessionID    string               `json:"session_id,omitempty"`
	Strategy     string               `json:"strategy,omitempty"`
	FallbackFrom string               `json:"fallback_from,omitempty"`
	Submission   *pipeline.Submission `json:"submission,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Uptime         string `json:"uptime"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)
