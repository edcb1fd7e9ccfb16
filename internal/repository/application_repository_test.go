package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/placement-cell/internship-portal-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var applicationTestColumns = []string{
	"id", "student_id", "reg_number", "department", "student_name", "email", "phone", "semester",
	"company_name", "company_address", "company_contact", "start_date", "end_date", "duties",
	"cohort_owner_status", "cohort_owner_comment", "hod_status", "hod_comment",
	"placement_status", "placement_comment", "principal_status", "principal_comment",
	"created_at", "updated_at",
}

func addApplicationRow(rows *sqlmock.Rows, id string, dept models.Department, statuses [4]models.StageStatus) {
	now := time.Now()
	rows.AddRow(id, "student-1", "21CSE042", dept, "Meena Raghavan", "meena@example.edu", "", "6",
		"Ashok Leyland", "Ennore, Chennai", "", now, now.AddDate(0, 1, 0), "QA rotation",
		statuses[0], "", statuses[1], "", statuses[2], "", statuses[3], "",
		now, now)
}

func TestApplicationRepositoryCreateForcesPendingStages(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WithArgs(sqlmock.AnyArg(), "student-1", "21CSE042", "CSE", "Meena Raghavan", "meena@example.edu", "", "6",
			"Ashok Leyland", "Ennore, Chennai", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "QA rotation",
			"pending", "", "pending", "", "pending", "", "pending", "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.Application{
		StudentID:      "student-1",
		RegNumber:      "21CSE042",
		Department:     models.DeptComputer,
		StudentName:    "Meena Raghavan",
		Email:          "meena@example.edu",
		Semester:       "6",
		CompanyName:    "Ashok Leyland",
		CompanyAddress: "Ennore, Chennai",
		StartDate:      time.Now(),
		EndDate:        time.Now().AddDate(0, 1, 0),
		Duties:         "QA rotation",
		// Caller-supplied stage state must be reset on insert.
		CohortOwnerStatus: models.StageApproved,
		PrincipalStatus:   models.StageApproved,
	}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)
	require.Equal(t, models.StagePending, app.CohortOwnerStatus)
	require.Equal(t, models.StagePending, app.PrincipalStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListQueueFirstStage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows(applicationTestColumns)
	addApplicationRow(rows, "app-1", models.DeptComputer, [4]models.StageStatus{models.StagePending, models.StagePending, models.StagePending, models.StagePending})
	addApplicationRow(rows, "app-2", models.DeptComputer, [4]models.StageStatus{models.StageApproved, models.StageRejected, models.StagePending, models.StagePending})

	mock.ExpectQuery(regexp.QuoteMeta("WHERE department = $1 AND (cohort_owner_status = $2 OR hod_status = $3 OR placement_status = $3 OR principal_status = $3) ORDER BY created_at DESC")).
		WithArgs("CSE", "pending", "rejected").
		WillReturnRows(rows)

	dept := models.DeptComputer
	apps, err := repo.ListQueue(context.Background(), models.ReviewQueueFilter{
		Department:      &dept,
		StagePending:    models.StageCohortOwner,
		IncludeReworked: true,
	})
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListQueueWithPredecessor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows(applicationTestColumns)
	addApplicationRow(rows, "app-1", models.DeptCivil, [4]models.StageStatus{models.StageApproved, models.StagePending, models.StagePending, models.StagePending})

	mock.ExpectQuery(regexp.QuoteMeta("WHERE department = $1 AND (hod_status = $2 AND cohort_owner_status = $3) ORDER BY created_at DESC")).
		WithArgs("CE", "pending", "approved").
		WillReturnRows(rows)

	dept := models.DeptCivil
	apps, err := repo.ListQueue(context.Background(), models.ReviewQueueFilter{
		Department:          &dept,
		StagePending:        models.StageHOD,
		PredecessorApproved: models.StageCohortOwner,
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListQueueUnscoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows(applicationTestColumns)
	addApplicationRow(rows, "app-1", models.DeptMechanical, [4]models.StageStatus{models.StageApproved, models.StageApproved, models.StagePending, models.StagePending})

	mock.ExpectQuery(regexp.QuoteMeta("WHERE (placement_status = $1 AND hod_status = $2) ORDER BY created_at DESC")).
		WithArgs("pending", "approved").
		WillReturnRows(rows)

	apps, err := repo.ListQueue(context.Background(), models.ReviewQueueFilter{
		StagePending:        models.StagePlacement,
		PredecessorApproved: models.StageHOD,
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStageGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET hod_status = $1, hod_comment = $2, updated_at = $3 WHERE id = $4 AND hod_status = $5 AND cohort_owner_status = $6")).
		WithArgs("approved", "clear record", sqlmock.AnyArg(), "app-1", "pending", "approved").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.UpdateStage(context.Background(), "app-1", models.StageHOD, models.StageCohortOwner,
		models.StageReview{Status: models.StageApproved, Comment: "clear record"})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStageLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET principal_status = $1, principal_comment = $2, updated_at = $3 WHERE id = $4 AND principal_status = $5 AND placement_status = $6")).
		WithArgs("rejected", "", sqlmock.AnyArg(), "app-1", "pending", "approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.UpdateStage(context.Background(), "app-1", models.StagePrincipal, models.StagePlacement,
		models.StageReview{Status: models.StageRejected})
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryExistsByStudentID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE student_id = $1 LIMIT 1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByStudentID(context.Background(), "student-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE student_id = $1 LIMIT 1")).
		WithArgs("student-2").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsByStudentID(context.Background(), "student-2")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDepartmentSummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows([]string{"department", "total", "awaiting_cohort", "awaiting_hod", "awaiting_placement", "awaiting_principal", "approved", "rejected"}).
		AddRow("CSE", 10, 2, 3, 1, 1, 2, 1).
		AddRow("ME", 4, 4, 0, 0, 0, 0, 0)
	mock.ExpectQuery("SELECT department,").WillReturnRows(rows)

	summaries, err := repo.DepartmentSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, models.DeptComputer, summaries[0].Department)
	require.Equal(t, 10, summaries[0].Total)
	require.NoError(t, mock.ExpectationsWereMet())
}
