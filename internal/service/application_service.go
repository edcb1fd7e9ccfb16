package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/placement-cell/internship-portal-api/internal/models"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
)

type applicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByStudentID(ctx context.Context, studentID string) (*models.Application, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
}

// SubmitApplicationRequest holds the payload for a new internship application.
type SubmitApplicationRequest struct {
	RegNumber      string    `json:"reg_number" validate:"required"`
	Department     string    `json:"department" validate:"required"`
	StudentName    string    `json:"student_name" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone"`
	Semester       string    `json:"semester"`
	CompanyName    string    `json:"company_name" validate:"required"`
	CompanyAddress string    `json:"company_address" validate:"required"`
	CompanyContact string    `json:"company_contact"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
	Duties         string    `json:"duties"`
}

// ApplicationService handles application lifecycle outside of review
// transitions.
type ApplicationService struct {
	repo      applicationStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationService constructs the application service.
func NewApplicationService(repo applicationStore, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, validator: validate, logger: logger}
}

// Submit registers a student's application. Each student may hold at most one
// application; a second submission is rejected before any write.
func (s *ApplicationService) Submit(ctx context.Context, studentID string, req SubmitApplicationRequest) (*models.Application, error) {
	if studentID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	dept := models.Department(req.Department)
	if !dept.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department code")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "internship end date must be after start date")
	}

	exists, err := s.repo.ExistsByStudentID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}
	if exists {
		return nil, appErrors.ErrDuplicateSubmission
	}

	app := &models.Application{
		StudentID:      studentID,
		RegNumber:      req.RegNumber,
		Department:     dept,
		StudentName:    req.StudentName,
		Email:          req.Email,
		Phone:          req.Phone,
		Semester:       req.Semester,
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
		CompanyContact: req.CompanyContact,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Duties:         req.Duties,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("department", string(app.Department)),
	)
	return app, nil
}

// Get loads an application, enforcing role-scoped access: students see only
// their own, department reviewers only their department.
func (s *ApplicationService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	switch claims.Role {
	case models.RoleStudent:
		if app.StudentID != claims.UserID {
			return nil, appErrors.ErrForbidden
		}
	case models.RoleCohortOwner, models.RoleHOD:
		if claims.Department == nil || *claims.Department != app.Department {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another department")
		}
	case models.RolePlacement, models.RolePrincipal, models.RoleAdmin:
	default:
		return nil, appErrors.ErrNotAuthorized
	}
	return app, nil
}

// GetMine loads the caller's own application.
func (s *ApplicationService) GetMine(ctx context.Context, studentID string) (*models.Application, error) {
	app, err := s.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no application submitted yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// Delete removes an application.
func (s *ApplicationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
	}
	return nil
}

// List returns applications and pagination metadata for administrators.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return apps, pagination, nil
}
