package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/placement-cell/internship-portal-api/internal/models"
)

// stageColumns maps each review stage to its column pair. Acting as a
// whitelist, it keeps stage identifiers out of caller control when queries
// are assembled.
var stageColumns = map[models.ReviewStage]struct {
	status  string
	comment string
}{
	models.StageCohortOwner: {status: "cohort_owner_status", comment: "cohort_owner_comment"},
	models.StageHOD:         {status: "hod_status", comment: "hod_comment"},
	models.StagePlacement:   {status: "placement_status", comment: "placement_comment"},
	models.StagePrincipal:   {status: "principal_status", comment: "principal_comment"},
}

const applicationColumns = `id, student_id, reg_number, department, student_name, email, phone, semester,
        company_name, company_address, company_contact, start_date, end_date, duties,
        cohort_owner_status, cohort_owner_comment, hod_status, hod_comment,
        placement_status, placement_comment, principal_status, principal_comment,
        created_at, updated_at`

// ApplicationRepository manages persistence for internship applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application with every stage left pending.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	for _, stage := range models.ReviewStages() {
		app.SetStage(stage, models.StageReview{Status: models.StagePending, Comment: ""})
	}
	const query = `INSERT INTO applications (id, student_id, reg_number, department, student_name, email, phone, semester,
        company_name, company_address, company_contact, start_date, end_date, duties,
        cohort_owner_status, cohort_owner_comment, hod_status, hod_comment,
        placement_status, placement_comment, principal_status, principal_comment,
        created_at, updated_at)
        VALUES (:id, :student_id, :reg_number, :department, :student_name, :email, :phone, :semester,
        :company_name, :company_address, :company_contact, :start_date, :end_date, :duties,
        :cohort_owner_status, :cohort_owner_comment, :hod_status, :hod_comment,
        :placement_status, :placement_comment, :principal_status, :principal_comment,
        :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID fetches an application by ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByStudentID fetches the application belonging to a student.
func (r *ApplicationRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE student_id = $1", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, studentID); err != nil {
		return nil, err
	}
	return &app, nil
}

// ExistsByStudentID checks whether the student already has an application.
func (r *ApplicationRepository) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM applications WHERE student_id = $1 LIMIT 1", studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student application: %w", err)
	}
	return true, nil
}

// ListQueue returns the applications matching a reviewer's queue filter,
// most recent first.
func (r *ApplicationRepository) ListQueue(ctx context.Context, filter models.ReviewQueueFilter) ([]models.Application, error) {
	pending, ok := stageColumns[filter.StagePending]
	if !ok {
		return nil, fmt.Errorf("unknown review stage %q", filter.StagePending)
	}

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)

	if filter.Department != nil {
		args = append(args, *filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}

	args = append(args, models.StagePending)
	gate := fmt.Sprintf("%s = $%d", pending.status, len(args))
	if filter.PredecessorApproved != "" {
		pred, ok := stageColumns[filter.PredecessorApproved]
		if !ok {
			return nil, fmt.Errorf("unknown review stage %q", filter.PredecessorApproved)
		}
		args = append(args, models.StageApproved)
		gate = fmt.Sprintf("(%s AND %s = $%d)", gate, pred.status, len(args))
	}

	if filter.IncludeReworked {
		// A rejection at any downstream stage re-surfaces the application in
		// this queue; the stage record itself is left untouched.
		args = append(args, models.StageRejected)
		idx := len(args)
		rework := make([]string, 0, 3)
		for _, stage := range downstreamStages(filter.StagePending) {
			rework = append(rework, fmt.Sprintf("%s = $%d", stageColumns[stage].status, idx))
		}
		gate = fmt.Sprintf("(%s OR %s)", gate, strings.Join(rework, " OR "))
	}
	conditions = append(conditions, gate)

	query := fmt.Sprintf("SELECT %s FROM applications WHERE %s ORDER BY created_at DESC",
		applicationColumns, strings.Join(conditions, " AND "))

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	return apps, nil
}

// UpdateStage conditionally records a verdict for one stage. The pending guard
// (and predecessor gate, when given) is re-evaluated inside the UPDATE itself,
// so a concurrent reviewer losing the race affects zero rows instead of
// overwriting a resolved stage. Returns the number of rows written.
func (r *ApplicationRepository) UpdateStage(ctx context.Context, id string, stage models.ReviewStage, predecessor models.ReviewStage, review models.StageReview) (int64, error) {
	cols, ok := stageColumns[stage]
	if !ok {
		return 0, fmt.Errorf("unknown review stage %q", stage)
	}

	args := []interface{}{review.Status, review.Comment, time.Now().UTC(), id, models.StagePending}
	query := fmt.Sprintf("UPDATE applications SET %s = $1, %s = $2, updated_at = $3 WHERE id = $4 AND %s = $5",
		cols.status, cols.comment, cols.status)
	if predecessor != "" {
		pred, ok := stageColumns[predecessor]
		if !ok {
			return 0, fmt.Errorf("unknown review stage %q", predecessor)
		}
		args = append(args, models.StageApproved)
		query += fmt.Sprintf(" AND %s = $%d", pred.status, len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update review stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update review stage: %w", err)
	}
	return affected, nil
}

// Delete removes an application.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM applications WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns applications matching admin listing criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Department != nil {
		args = append(args, *filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(student_name) LIKE $%d OR LOWER(reg_number) LIKE $%d)", len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM applications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		applicationColumns, where, size, offset)

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM applications WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// DepartmentSummary aggregates pipeline counts grouped by department.
func (r *ApplicationRepository) DepartmentSummary(ctx context.Context) ([]models.DepartmentSummary, error) {
	const query = `SELECT department,
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE cohort_owner_status = 'pending') AS awaiting_cohort,
        COUNT(*) FILTER (WHERE cohort_owner_status = 'approved' AND hod_status = 'pending') AS awaiting_hod,
        COUNT(*) FILTER (WHERE hod_status = 'approved' AND placement_status = 'pending') AS awaiting_placement,
        COUNT(*) FILTER (WHERE placement_status = 'approved' AND principal_status = 'pending') AS awaiting_principal,
        COUNT(*) FILTER (WHERE cohort_owner_status = 'approved' AND hod_status = 'approved' AND placement_status = 'approved' AND principal_status = 'approved') AS approved,
        COUNT(*) FILTER (WHERE cohort_owner_status = 'rejected' OR hod_status = 'rejected' OR placement_status = 'rejected' OR principal_status = 'rejected') AS rejected
        FROM applications GROUP BY department ORDER BY department`
	var summaries []models.DepartmentSummary
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("department summary: %w", err)
	}
	return summaries, nil
}

// downstreamStages returns the stages strictly after the given stage in
// pipeline order.
func downstreamStages(stage models.ReviewStage) []models.ReviewStage {
	stages := models.ReviewStages()
	for i, s := range stages {
		if s == stage {
			return stages[i+1:]
		}
	}
	return nil
}
