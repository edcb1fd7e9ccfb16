package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/placement-cell/internship-portal-api/internal/dto"
	"github.com/placement-cell/internship-portal-api/internal/models"
	"github.com/placement-cell/internship-portal-api/internal/repository"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
	"github.com/placement-cell/internship-portal-api/pkg/export"
)

type letterJobStore interface {
	Create(ctx context.Context, job *models.LetterJob) error
	GetByID(ctx context.Context, id string) (*models.LetterJob, error)
	FindActiveByApplication(ctx context.Context, applicationID string) (*models.LetterJob, error)
	Update(ctx context.Context, id string, params repository.UpdateLetterJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.LetterJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.LetterJob, error)
}

type letterApplicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

// LetterTask is the queue payload referencing one letter job row.
type LetterTask struct {
	JobID string
}

type letterDispatcher interface {
	Enqueue(task LetterTask) error
}

type letterStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// LetterServiceConfig governs result retention and restart recovery.
type LetterServiceConfig struct {
	BaseURL         string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// LetterService orchestrates internship request letter generation. Letters are
// rendered asynchronously and exposed through signed download URLs.
type LetterService struct {
	repo         letterJobStore
	applications letterApplicationStore
	queue        letterDispatcher
	store        letterStore
	signer       urlSigner
	renderer     *export.LetterRenderer
	logger       *zap.Logger
	cfg          LetterServiceConfig
}

// LetterDownload aggregates resolved download data.
type LetterDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// NewLetterService constructs the letter service.
func NewLetterService(repo letterJobStore, applications letterApplicationStore, queue letterDispatcher, store letterStore, signer urlSigner, renderer *export.LetterRenderer, logger *zap.Logger, cfg LetterServiceConfig) *LetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &LetterService{
		repo:         repo,
		applications: applications,
		queue:        queue,
		store:        store,
		signer:       signer,
		renderer:     renderer,
		logger:       logger,
		cfg:          cfg,
	}
}

// Request enqueues letter generation for a fully approved application. The
// owning student or an admin may request; an unfinished job is returned as-is
// instead of queueing a duplicate.
func (s *LetterService) Request(ctx context.Context, applicationID string, actor *models.JWTClaims) (*dto.LetterJobResponse, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	switch actor.Role {
	case models.RoleStudent:
		if app.StudentID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
		}
	case models.RoleAdmin, models.RolePrincipal:
	default:
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "role cannot request letters")
	}

	if !app.FullyApproved() {
		return nil, appErrors.Clone(appErrors.ErrLetterNotReady, "application is not approved at every stage")
	}

	if active, err := s.repo.FindActiveByApplication(ctx, applicationID); err == nil {
		return &dto.LetterJobResponse{ID: active.ID, Status: active.Status}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check letter jobs")
	}

	job := &models.LetterJob{
		ApplicationID: applicationID,
		Status:        models.LetterStatusQueued,
		CreatedBy:     actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create letter job")
	}

	if err := s.queue.Enqueue(LetterTask{JobID: job.ID}); err != nil {
		status := models.LetterStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateLetterJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue letter job")
	}

	return &dto.LetterJobResponse{ID: job.ID, Status: job.Status}, nil
}

// Status exposes job metadata, enforcing ownership for students.
func (s *LetterService) Status(ctx context.Context, id string, actor *models.JWTClaims) (*dto.LetterStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "letter job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter job")
	}
	if actor.Role == models.RoleStudent && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "letter belongs to another student")
	}
	resp := &dto.LetterStatusResponse{ID: job.ID, Status: job.Status}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates a signed token and opens the stored letter file.
func (s *LetterService) ResolveDownload(ctx context.Context, token string) (*LetterDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "letter job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.LetterStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrLetterNotReady, "letter not ready")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open letter file")
	}
	return &LetterDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		ExpiresAt: expiresAt,
	}, nil
}

// ProcessJob renders a single queued letter. Wired as the queue handler.
func (s *LetterService) ProcessJob(ctx context.Context, task LetterTask) error {
	record, err := s.repo.GetByID(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load letter job %s: %w", task.JobID, err)
	}
	if record.Status == models.LetterStatusFinished {
		return nil
	}

	processing := models.LetterStatusProcessing
	if err := s.repo.Update(ctx, record.ID, repository.UpdateLetterJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark letter job processing: %w", err)
	}

	if err := s.render(ctx, record); err != nil {
		status := models.LetterStatusFailed
		msg := err.Error()
		now := time.Now().UTC()
		if uerr := s.repo.Update(ctx, record.ID, repository.UpdateLetterJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); uerr != nil {
			s.logger.Sugar().Errorw("failed to mark letter job failed", "job_id", record.ID, "error", uerr)
		}
		return err
	}
	return nil
}

func (s *LetterService) render(ctx context.Context, record *models.LetterJob) error {
	app, err := s.applications.FindByID(ctx, record.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application %s: %w", record.ApplicationID, err)
	}
	if !app.FullyApproved() {
		return fmt.Errorf("application %s is no longer fully approved", app.ID)
	}

	data := export.LetterData{
		RefNumber:      fmt.Sprintf("PLC/%s/%s", app.Department, shortID(record.ID)),
		Date:           time.Now().Format("02 Jan 2006"),
		StudentName:    app.StudentName,
		RegNumber:      app.RegNumber,
		Department:     string(app.Department),
		Semester:       app.Semester,
		CompanyName:    app.CompanyName,
		CompanyAddress: app.CompanyAddress,
		StartDate:      app.StartDate.Format("02 Jan 2006"),
		EndDate:        app.EndDate.Format("02 Jan 2006"),
		Duties:         app.Duties,
	}
	pdfBytes, err := s.renderer.Render(data)
	if err != nil {
		return fmt.Errorf("render letter: %w", err)
	}

	filename := fmt.Sprintf("letter_%s_%d.pdf", shortID(record.ID), time.Now().UTC().Unix())
	relPath, err := s.store.Save(filename, pdfBytes)
	if err != nil {
		return fmt.Errorf("store letter: %w", err)
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign letter url: %w", err)
	}
	resultURL := strings.TrimRight(s.cfg.BaseURL, "/") + "/api/v1/letters/download?token=" + token

	status := models.LetterStatusFinished
	now := time.Now().UTC()
	return s.repo.Update(ctx, record.ID, repository.UpdateLetterJobParams{
		Status:     &status,
		FilePath:   &relPath,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	})
}

// RecoverQueued replays queued jobs after a process restart.
func (s *LetterService) RecoverQueued(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued letter jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(LetterTask{JobID: job.ID}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue letter job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired letters periodically.
func (s *LetterService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *LetterService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Warnw("letter cleanup list failed", "error", err)
		return
	}
	for _, job := range expired {
		if job.FilePath == nil || *job.FilePath == "" {
			continue
		}
		if err := s.store.Delete(*job.FilePath); err != nil {
			s.logger.Sugar().Warnw("letter cleanup delete failed", "job_id", job.ID, "error", err)
			continue
		}
		// Release the row so the next tick does not re-list it.
		if err := s.repo.Update(ctx, job.ID, repository.UpdateLetterJobParams{ClearResult: true}); err != nil {
			s.logger.Sugar().Warnw("letter cleanup update failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.store.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("letter filesystem cleanup failed", "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
