package dto

import "time"

// CreateEvaluationRequest payload.
type CreateEvaluationRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// EvaluationResponse represents a client rating.
type EvaluationResponse struct {
	ID             string    `json:"id"`
	InterventionID string    `json:"intervention_id"`
	ClientID       string    `json:"client_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
}
