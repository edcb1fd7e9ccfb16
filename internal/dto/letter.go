package dto

import "github.com/placement-cell/internship-portal-api/internal/models"

// LetterJobResponse is returned after enqueueing a letter.
type LetterJobResponse struct {
	ID     string              `json:"id"`
	Status models.LetterStatus `json:"status"`
}

// LetterStatusResponse exposes job progress metadata.
type LetterStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.LetterStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
