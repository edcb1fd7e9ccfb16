package models

import "time"

// LetterStatus captures background letter job lifecycle states.
type LetterStatus string

const (
	LetterStatusQueued     LetterStatus = "QUEUED"
	LetterStatusProcessing LetterStatus = "PROCESSING"
	LetterStatusFinished   LetterStatus = "FINISHED"
	LetterStatusFailed     LetterStatus = "FAILED"
)

// LetterJob is a persisted internship-letter generation job. A letter is only
// rendered for applications approved at every stage.
type LetterJob struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"application_id"`
	Status        LetterStatus `db:"status" json:"status"`
	FilePath      *string      `db:"file_path" json:"-"`
	ResultURL     *string      `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage  *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedBy     string       `db:"created_by" json:"created_by"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	FinishedAt    *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
