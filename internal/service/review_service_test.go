package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/placement-cell/internship-portal-api/internal/models"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
)

type reviewStoreStub struct {
	apps         map[string]*models.Application
	lastFilter   models.ReviewQueueFilter
	queueResult  []models.Application
	forceNoWrite bool
}

func newReviewStoreStub() *reviewStoreStub {
	return &reviewStoreStub{apps: map[string]*models.Application{}}
}

func (r *reviewStoreStub) FindByID(ctx context.Context, id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (r *reviewStoreStub) ListQueue(ctx context.Context, filter models.ReviewQueueFilter) ([]models.Application, error) {
	r.lastFilter = filter
	return r.queueResult, nil
}

// UpdateStage mirrors the guarded write: the row only changes while the stage
// is still pending and the predecessor, if any, is approved.
func (r *reviewStoreStub) UpdateStage(ctx context.Context, id string, stage models.ReviewStage, predecessor models.ReviewStage, review models.StageReview) (int64, error) {
	if r.forceNoWrite {
		return 0, nil
	}
	app, ok := r.apps[id]
	if !ok {
		return 0, nil
	}
	if app.Stage(stage).Status != models.StagePending {
		return 0, nil
	}
	if predecessor != "" && app.Stage(predecessor).Status != models.StageApproved {
		return 0, nil
	}
	app.SetStage(stage, review)
	return 1, nil
}

func pendingApplication(id string, dept models.Department) *models.Application {
	return &models.Application{
		ID:                id,
		StudentID:         "student-1",
		Department:        dept,
		StudentName:       "Arun Kumar",
		CompanyName:       "Kirloskar Pumps",
		CohortOwnerStatus: models.StagePending,
		HODStatus:         models.StagePending,
		PlacementStatus:   models.StagePending,
		PrincipalStatus:   models.StagePending,
	}
}

func deptPtr(d models.Department) *models.Department {
	return &d
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestComputeQueueFilterFirstStage(t *testing.T) {
	filter, err := ComputeQueueFilter(models.RoleCohortOwner, deptPtr(models.DeptComputer))
	require.NoError(t, err)
	require.NotNil(t, filter.Department)
	assert.Equal(t, models.DeptComputer, *filter.Department)
	assert.Equal(t, models.StageCohortOwner, filter.StagePending)
	assert.Empty(t, filter.PredecessorApproved)
	assert.True(t, filter.IncludeReworked)
}

func TestComputeQueueFilterMiddleStages(t *testing.T) {
	filter, err := ComputeQueueFilter(models.RoleHOD, deptPtr(models.DeptCivil))
	require.NoError(t, err)
	require.NotNil(t, filter.Department)
	assert.Equal(t, models.StageHOD, filter.StagePending)
	assert.Equal(t, models.StageCohortOwner, filter.PredecessorApproved)
	assert.False(t, filter.IncludeReworked)

	filter, err = ComputeQueueFilter(models.RolePlacement, nil)
	require.NoError(t, err)
	assert.Nil(t, filter.Department)
	assert.Equal(t, models.StagePlacement, filter.StagePending)
	assert.Equal(t, models.StageHOD, filter.PredecessorApproved)

	filter, err = ComputeQueueFilter(models.RolePrincipal, nil)
	require.NoError(t, err)
	assert.Nil(t, filter.Department)
	assert.Equal(t, models.StagePrincipal, filter.StagePending)
	assert.Equal(t, models.StagePlacement, filter.PredecessorApproved)
}

func TestComputeQueueFilterRejectsNonReviewers(t *testing.T) {
	_, err := ComputeQueueFilter(models.RoleStudent, nil)
	assert.Equal(t, appErrors.ErrNotAuthorized.Code, errCode(t, err))

	_, err = ComputeQueueFilter(models.RoleAdmin, nil)
	assert.Equal(t, appErrors.ErrNotAuthorized.Code, errCode(t, err))
}

func TestComputeQueueFilterRequiresDepartment(t *testing.T) {
	_, err := ComputeQueueFilter(models.RoleCohortOwner, nil)
	assert.Equal(t, appErrors.ErrMissingDepartment.Code, errCode(t, err))

	empty := models.Department("")
	_, err = ComputeQueueFilter(models.RoleHOD, &empty)
	assert.Equal(t, appErrors.ErrMissingDepartment.Code, errCode(t, err))
}

func TestQueueUsesComputedFilter(t *testing.T) {
	repo := newReviewStoreStub()
	repo.queueResult = []models.Application{*pendingApplication("app-1", models.DeptMechanical)}
	svc := NewReviewService(repo, zap.NewNop())

	apps, err := svc.Queue(context.Background(), models.RoleCohortOwner, deptPtr(models.DeptMechanical))
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NotNil(t, repo.lastFilter.Department)
	assert.Equal(t, models.DeptMechanical, *repo.lastFilter.Department)
	assert.True(t, repo.lastFilter.IncludeReworked)
}

func TestSubmitApproveAdvancesPipeline(t *testing.T) {
	repo := newReviewStoreStub()
	repo.apps["app-1"] = pendingApplication("app-1", models.DeptComputer)
	svc := NewReviewService(repo, zap.NewNop())
	ctx := context.Background()

	app, err := svc.Submit(ctx, "app-1", models.RoleCohortOwner, deptPtr(models.DeptComputer), ActionApprove, "good standing")
	require.NoError(t, err)
	assert.Equal(t, models.StageApproved, app.CohortOwnerStatus)
	assert.Equal(t, "good standing", app.CohortOwnerComment)
	assert.Equal(t, models.StagePending, app.HODStatus)

	app, err = svc.Submit(ctx, "app-1", models.RoleHOD, deptPtr(models.DeptComputer), ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageApproved, app.HODStatus)

	app, err = svc.Submit(ctx, "app-1", models.RolePlacement, nil, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageApproved, app.PlacementStatus)

	app, err = svc.Submit(ctx, "app-1", models.RolePrincipal, nil, ActionApprove, "sanctioned")
	require.NoError(t, err)
	assert.True(t, app.FullyApproved())
}

func TestSubmitRejectRecordsComment(t *testing.T) {
	repo := newReviewStoreStub()
	app := pendingApplication("app-1", models.DeptElectrical)
	app.CohortOwnerStatus = models.StageApproved
	repo.apps["app-1"] = app
	svc := NewReviewService(repo, zap.NewNop())

	updated, err := svc.Submit(context.Background(), "app-1", models.RoleHOD, deptPtr(models.DeptElectrical), ActionReject, "attendance shortfall")
	require.NoError(t, err)
	assert.Equal(t, models.StageRejected, updated.HODStatus)
	assert.Equal(t, "attendance shortfall", updated.HODComment)
}

func TestSubmitRejectsUnknownAction(t *testing.T) {
	svc := NewReviewService(newReviewStoreStub(), zap.NewNop())
	_, err := svc.Submit(context.Background(), "app-1", models.RoleHOD, deptPtr(models.DeptCivil), ReviewAction("defer"), "")
	assert.Equal(t, appErrors.ErrInvalidAction.Code, errCode(t, err))
}

func TestSubmitRejectsNonReviewerRole(t *testing.T) {
	svc := NewReviewService(newReviewStoreStub(), zap.NewNop())
	_, err := svc.Submit(context.Background(), "app-1", models.RoleStudent, nil, ActionApprove, "")
	assert.Equal(t, appErrors.ErrNotAuthorized.Code, errCode(t, err))
}

func TestSubmitApplicationNotFound(t *testing.T) {
	svc := NewReviewService(newReviewStoreStub(), zap.NewNop())
	_, err := svc.Submit(context.Background(), "missing", models.RolePrincipal, nil, ActionApprove, "")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestSubmitEnforcesDepartmentScope(t *testing.T) {
	repo := newReviewStoreStub()
	repo.apps["app-1"] = pendingApplication("app-1", models.DeptComputer)
	svc := NewReviewService(repo, zap.NewNop())

	_, err := svc.Submit(context.Background(), "app-1", models.RoleCohortOwner, deptPtr(models.DeptMechanical), ActionApprove, "")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	_, err = svc.Submit(context.Background(), "app-1", models.RoleCohortOwner, nil, ActionApprove, "")
	assert.Equal(t, appErrors.ErrMissingDepartment.Code, errCode(t, err))
}

func TestSubmitRequiresPredecessorApproval(t *testing.T) {
	repo := newReviewStoreStub()
	repo.apps["app-1"] = pendingApplication("app-1", models.DeptCivil)
	svc := NewReviewService(repo, zap.NewNop())

	_, err := svc.Submit(context.Background(), "app-1", models.RoleHOD, deptPtr(models.DeptCivil), ActionApprove, "")
	assert.Equal(t, appErrors.ErrPredecessorNotApproved.Code, errCode(t, err))

	_, err = svc.Submit(context.Background(), "app-1", models.RolePrincipal, nil, ActionApprove, "")
	assert.Equal(t, appErrors.ErrPredecessorNotApproved.Code, errCode(t, err))
}

func TestSubmitStageIsOneShot(t *testing.T) {
	repo := newReviewStoreStub()
	repo.apps["app-1"] = pendingApplication("app-1", models.DeptInfoTech)
	svc := NewReviewService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Submit(ctx, "app-1", models.RoleCohortOwner, deptPtr(models.DeptInfoTech), ActionReject, "incomplete form")
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "app-1", models.RoleCohortOwner, deptPtr(models.DeptInfoTech), ActionApprove, "changed my mind")
	assert.Equal(t, appErrors.ErrAlreadyReviewed.Code, errCode(t, err))
}

// A downstream rejection bounces the application back into the first queue,
// but the first stage record itself stays approved, so the cohort owner sees
// it without being able to act on it.
func TestBouncedApplicationFrozenAtFirstStage(t *testing.T) {
	repo := newReviewStoreStub()
	app := pendingApplication("app-1", models.DeptComputer)
	app.CohortOwnerStatus = models.StageApproved
	app.HODStatus = models.StageRejected
	app.HODComment = "semester backlog"
	repo.apps["app-1"] = app
	svc := NewReviewService(repo, zap.NewNop())

	assert.True(t, IsReworkCandidate(*app))

	filter, err := ComputeQueueFilter(models.RoleCohortOwner, deptPtr(models.DeptComputer))
	require.NoError(t, err)
	assert.True(t, filter.IncludeReworked)

	_, err = svc.Submit(context.Background(), "app-1", models.RoleCohortOwner, deptPtr(models.DeptComputer), ActionApprove, "")
	assert.Equal(t, appErrors.ErrAlreadyReviewed.Code, errCode(t, err))
}

func TestIsReworkCandidate(t *testing.T) {
	app := pendingApplication("app-1", models.DeptChemical)
	assert.False(t, IsReworkCandidate(*app))

	app.CohortOwnerStatus = models.StageRejected
	assert.False(t, IsReworkCandidate(*app), "first stage rejection is terminal, not rework")

	app.CohortOwnerStatus = models.StageApproved
	app.PlacementStatus = models.StageRejected
	assert.True(t, IsReworkCandidate(*app))
}

func TestSubmitConcurrentDecisionConflicts(t *testing.T) {
	repo := newReviewStoreStub()
	repo.apps["app-1"] = pendingApplication("app-1", models.DeptAutomobile)
	repo.forceNoWrite = true
	svc := NewReviewService(repo, zap.NewNop())

	_, err := svc.Submit(context.Background(), "app-1", models.RoleCohortOwner, deptPtr(models.DeptAutomobile), ActionApprove, "")
	assert.Equal(t, appErrors.ErrAlreadyReviewed.Code, errCode(t, err))
}

func TestSubmitRaceReportsFreshPrecondition(t *testing.T) {
	repo := newReviewStoreStub()
	app := pendingApplication("app-1", models.DeptElectronic)
	app.CohortOwnerStatus = models.StageApproved
	app.HODStatus = models.StageApproved
	repo.apps["app-1"] = app
	svc := NewReviewService(repo, zap.NewNop())
	ctx := context.Background()

	// First placement decision lands.
	_, err := svc.Submit(ctx, "app-1", models.RolePlacement, nil, ActionReject, "company not registered")
	require.NoError(t, err)

	// A second racing decision matches nothing and the re-read explains why.
	_, err = svc.Submit(ctx, "app-1", models.RolePlacement, nil, ActionApprove, "")
	assert.Equal(t, appErrors.ErrAlreadyReviewed.Code, errCode(t, err))
}
