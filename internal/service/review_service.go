package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/placement-cell/internship-portal-api/internal/models"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
)

// ReviewAction is the verdict a reviewer submits for a stage.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

type reviewApplicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListQueue(ctx context.Context, filter models.ReviewQueueFilter) ([]models.Application, error)
	UpdateStage(ctx context.Context, id string, stage models.ReviewStage, predecessor models.ReviewStage, review models.StageReview) (int64, error)
}

// stageRule binds a reviewer role to its checkpoint in the pipeline. A stage
// may only leave pending once its predecessor is approved; the first stage has
// no predecessor and additionally surfaces applications bounced back by a
// downstream rejection.
type stageRule struct {
	stage            models.ReviewStage
	predecessor      models.ReviewStage
	departmentScoped bool
}

var stageRules = map[models.UserRole]stageRule{
	models.RoleCohortOwner: {stage: models.StageCohortOwner, departmentScoped: true},
	models.RoleHOD:         {stage: models.StageHOD, predecessor: models.StageCohortOwner, departmentScoped: true},
	models.RolePlacement:   {stage: models.StagePlacement, predecessor: models.StageHOD},
	models.RolePrincipal:   {stage: models.StagePrincipal, predecessor: models.StagePlacement},
}

// ReviewService owns the sequential approval pipeline: queue construction per
// reviewer role and the one-shot stage transitions.
type ReviewService struct {
	repo   reviewApplicationStore
	logger *zap.Logger
}

// NewReviewService constructs the review service.
func NewReviewService(repo reviewApplicationStore, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, logger: logger}
}

// ComputeQueueFilter derives the store filter selecting exactly the
// applications the given reviewer must currently act on.
func ComputeQueueFilter(role models.UserRole, department *models.Department) (models.ReviewQueueFilter, error) {
	rule, ok := stageRules[role]
	if !ok {
		return models.ReviewQueueFilter{}, appErrors.ErrNotAuthorized
	}

	filter := models.ReviewQueueFilter{
		StagePending:        rule.stage,
		PredecessorApproved: rule.predecessor,
	}
	if rule.departmentScoped {
		if department == nil || *department == "" {
			return models.ReviewQueueFilter{}, appErrors.ErrMissingDepartment
		}
		filter.Department = department
	}
	if rule.predecessor == "" {
		// Rework restarts at the first stage, so its queue also surfaces
		// applications rejected anywhere downstream.
		filter.IncludeReworked = true
	}
	return filter, nil
}

// IsReworkCandidate reports whether a downstream rejection has bounced the
// application back into the first queue. The first stage's own record is left
// untouched by the rejection, so a rework candidate whose first stage is
// already approved is visible but not actionable there.
func IsReworkCandidate(app models.Application) bool {
	for _, stage := range models.ReviewStages()[1:] {
		if app.Stage(stage).Status == models.StageRejected {
			return true
		}
	}
	return false
}

// Queue returns the reviewer's pending applications, most recent first.
func (s *ReviewService) Queue(ctx context.Context, role models.UserRole, department *models.Department) ([]models.Application, error) {
	filter, err := ComputeQueueFilter(role, department)
	if err != nil {
		return nil, err
	}
	apps, err := s.repo.ListQueue(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review queue")
	}
	return apps, nil
}

// Submit applies an approve/reject verdict for the stage owned by the
// caller's role. The precondition chain runs against a fresh read, and the
// store re-checks the pending guard inside the write, so racing reviewers
// cannot double-apply a verdict.
func (s *ReviewService) Submit(ctx context.Context, applicationID string, role models.UserRole, department *models.Department, action ReviewAction, comment string) (*models.Application, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, appErrors.ErrInvalidAction
	}

	rule, ok := stageRules[role]
	if !ok {
		return nil, appErrors.ErrNotAuthorized
	}

	app, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if err := checkStagePreconditions(rule, app, department); err != nil {
		return nil, err
	}

	status := models.StageApproved
	if action == ActionReject {
		status = models.StageRejected
	}
	review := models.StageReview{Status: status, Comment: comment}

	affected, err := s.repo.UpdateStage(ctx, applicationID, rule.stage, rule.predecessor, review)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}
	if affected == 0 {
		// Lost the race against a concurrent write. Re-read so the caller
		// gets the precise precondition failure instead of a stale success.
		return nil, s.raceOutcome(ctx, applicationID, rule, department)
	}

	s.logger.Info("review recorded",
		zap.String("application_id", applicationID),
		zap.String("stage", string(rule.stage)),
		zap.String("status", string(status)),
	)

	updated, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}
	return updated, nil
}

func checkStagePreconditions(rule stageRule, app *models.Application, department *models.Department) error {
	if rule.departmentScoped {
		if department == nil || *department == "" {
			return appErrors.ErrMissingDepartment
		}
		if *department != app.Department {
			return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another department")
		}
	}
	if rule.predecessor != "" && app.Stage(rule.predecessor).Status != models.StageApproved {
		return appErrors.ErrPredecessorNotApproved
	}
	if app.Stage(rule.stage).Status != models.StagePending {
		return appErrors.ErrAlreadyReviewed
	}
	return nil
}

func (s *ReviewService) raceOutcome(ctx context.Context, applicationID string, rule stageRule, department *models.Department) error {
	app, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}
	if err := checkStagePreconditions(rule, app, department); err != nil {
		return err
	}
	// Preconditions pass on the fresh read but the guarded write still
	// matched nothing; report a conflict rather than guessing.
	return appErrors.Clone(appErrors.ErrAlreadyReviewed, "review state changed concurrently")
}
