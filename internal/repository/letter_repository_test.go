package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/placement-cell/internship-portal-api/internal/models"
)

func TestLetterRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO letter_jobs")).
		WithArgs(sqlmock.AnyArg(), "app-1", "QUEUED", nil, nil, nil, "student-1", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.LetterJob{ApplicationID: "app-1", CreatedBy: "student-1"}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.LetterStatusQueued, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterRepositoryFindActiveByApplication(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "application_id", "status", "file_path", "result_url", "error_message", "created_by", "created_at", "finished_at"}).
		AddRow("job-1", "app-1", "PROCESSING", nil, nil, nil, "student-1", now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE application_id = $1 AND status IN ('QUEUED', 'PROCESSING') ORDER BY created_at DESC LIMIT 1")).
		WithArgs("app-1").
		WillReturnRows(rows)

	job, err := repo.FindActiveByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Equal(t, models.LetterStatusProcessing, job.Status)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE application_id = $1 AND status IN ('QUEUED', 'PROCESSING')")).
		WithArgs("app-2").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindActiveByApplication(context.Background(), "app-2")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterRepositoryUpdateBuildsSparseSet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	status := models.LetterStatusFinished
	url := "http://localhost:8080/api/v1/letters/download?token=abc"
	finished := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE letter_jobs SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4")).
		WithArgs("FINISHED", url, finished, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateLetterJobParams{
		Status:     &status,
		ResultURL:  &url,
		FinishedAt: &finished,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterRepositoryUpdateClearsResult(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE letter_jobs SET file_path = NULL, result_url = NULL WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateLetterJobParams{ClearResult: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterRepositoryUpdateNoFieldsIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateLetterJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "application_id", "status", "file_path", "result_url", "error_message", "created_by", "created_at", "finished_at"}).
		AddRow("job-1", "app-1", "QUEUED", nil, nil, nil, "student-1", now.Add(-time.Hour), nil).
		AddRow("job-2", "app-2", "QUEUED", nil, nil, nil, "student-2", now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "job-1", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLetterRepositoryListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLetterRepository(db)

	cutoff := time.Now().Add(-24 * time.Hour)
	path := "/tmp/letters/letter_abc.pdf"
	rows := sqlmock.NewRows([]string{"id", "application_id", "status", "file_path", "result_url", "error_message", "created_by", "created_at", "finished_at"}).
		AddRow("job-1", "app-1", "FINISHED", path, nil, nil, "student-1", cutoff.Add(-time.Hour), cutoff.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ('FINISHED', 'FAILED') AND finished_at < $1 AND file_path IS NOT NULL ORDER BY finished_at ASC LIMIT $2")).
		WithArgs(cutoff, 50).
		WillReturnRows(rows)

	jobs, err := repo.ListFinishedBefore(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].FilePath)
	require.NoError(t, mock.ExpectationsWereMet())
}
