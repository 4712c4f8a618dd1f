package domain

import "time"

// Evaluation is a client rating of a completed intervention.
type Evaluation struct {
	ID             string
	InterventionID string
	ClientID       string
	Rating         int
	Comment        string
	CreatedAt      time.Time
}

// RatingValid reports whether the rating falls in the accepted 1-5 range.
func (e Evaluation) RatingValid() bool {
	return e.Rating >= 1 && e.Rating <= 5
}
