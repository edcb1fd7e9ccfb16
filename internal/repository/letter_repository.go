package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/placement-cell/internship-portal-api/internal/models"
)

const letterColumns = `id, application_id, status, file_path, result_url, error_message, created_by, created_at, finished_at`

// LetterRepository persists internship-letter job metadata.
type LetterRepository struct {
	db *sqlx.DB
}

// NewLetterRepository constructs the repository.
func NewLetterRepository(db *sqlx.DB) *LetterRepository {
	return &LetterRepository{db: db}
}

// Create inserts a new letter job row with generated defaults.
func (r *LetterRepository) Create(ctx context.Context, job *models.LetterJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.LetterStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO letter_jobs (id, application_id, status, file_path, result_url, error_message, created_by, created_at, finished_at)
VALUES (:id, :application_id, :status, :file_path, :result_url, :error_message, :created_by, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create letter job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *LetterRepository) GetByID(ctx context.Context, id string) (*models.LetterJob, error) {
	query := fmt.Sprintf("SELECT %s FROM letter_jobs WHERE id = $1", letterColumns)
	var job models.LetterJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActiveByApplication returns an unfinished job for the application, if any.
func (r *LetterRepository) FindActiveByApplication(ctx context.Context, applicationID string) (*models.LetterJob, error) {
	query := fmt.Sprintf("SELECT %s FROM letter_jobs WHERE application_id = $1 AND status IN ('QUEUED', 'PROCESSING') ORDER BY created_at DESC LIMIT 1", letterColumns)
	var job models.LetterJob
	if err := r.db.GetContext(ctx, &job, query, applicationID); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateLetterJobParams defines the mutable fields. ClearResult nulls the
// stored file path and download URL after cleanup has removed the file.
type UpdateLetterJobParams struct {
	Status       *models.LetterStatus
	FilePath     *string
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
	ClearResult  bool
}

// Update persists the provided changes for a job row.
func (r *LetterRepository) Update(ctx context.Context, id string, params UpdateLetterJobParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.FilePath != nil {
		set = append(set, fmt.Sprintf("file_path = $%d", argPos))
		args = append(args, *params.FilePath)
		argPos++
	}
	if params.ResultURL != nil {
		set = append(set, fmt.Sprintf("result_url = $%d", argPos))
		args = append(args, *params.ResultURL)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}
	if params.ClearResult {
		set = append(set, "file_path = NULL", "result_url = NULL")
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE letter_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update letter job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *LetterRepository) ListQueued(ctx context.Context, limit int) ([]models.LetterJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM letter_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1", letterColumns)
	var jobs []models.LetterJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued letter jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore fetches finished jobs older than the cutoff whose files
// are still on disk. Cleanup nulls file_path, dropping the row from later
// scans.
func (r *LetterRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.LetterJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM letter_jobs WHERE status IN ('FINISHED', 'FAILED') AND finished_at < $1 AND file_path IS NOT NULL ORDER BY finished_at ASC LIMIT $2", letterColumns)
	var jobs []models.LetterJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished letter jobs: %w", err)
	}
	return jobs, nil
}
