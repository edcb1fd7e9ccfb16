package models

import "time"

// Department enumerates the eight department codes of the college.
type Department string

const (
	DeptCivil      Department = "CE"
	DeptMechanical Department = "ME"
	DeptElectrical Department = "EEE"
	DeptElectronic Department = "ECE"
	DeptComputer   Department = "CSE"
	DeptInfoTech   Department = "IT"
	DeptChemical   Department = "CHE"
	DeptAutomobile Department = "AUTO"
)

// Departments lists every valid department code.
func Departments() []Department {
	return []Department{
		DeptCivil, DeptMechanical, DeptElectrical, DeptElectronic,
		DeptComputer, DeptInfoTech, DeptChemical, DeptAutomobile,
	}
}

// Valid reports whether the department is one of the known codes.
func (d Department) Valid() bool {
	for _, dept := range Departments() {
		if d == dept {
			return true
		}
	}
	return false
}

// StageStatus is the per-stage review verdict.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageApproved StageStatus = "approved"
	StageRejected StageStatus = "rejected"
)

// ReviewStage identifies one of the four sequential reviewer checkpoints.
type ReviewStage string

const (
	StageCohortOwner ReviewStage = "cohort_owner"
	StageHOD         ReviewStage = "hod"
	StagePlacement   ReviewStage = "placement"
	StagePrincipal   ReviewStage = "principal"
)

// ReviewStages returns the stages in pipeline order.
func ReviewStages() []ReviewStage {
	return []ReviewStage{StageCohortOwner, StageHOD, StagePlacement, StagePrincipal}
}

// StageReview is the status/comment pair recorded for one stage.
type StageReview struct {
	Status  StageStatus `json:"status"`
	Comment string      `json:"comment"`
}

// Application is a student's internship application with its review pipeline.
type Application struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	RegNumber  string     `db:"reg_number" json:"reg_number"`
	Department Department `db:"department" json:"department"`

	StudentName string `db:"student_name" json:"student_name"`
	Email       string `db:"email" json:"email"`
	Phone       string `db:"phone" json:"phone"`
	Semester    string `db:"semester" json:"semester"`

	CompanyName    string    `db:"company_name" json:"company_name"`
	CompanyAddress string    `db:"company_address" json:"company_address"`
	CompanyContact string    `db:"company_contact" json:"company_contact"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	Duties         string    `db:"duties" json:"duties"`

	CohortOwnerStatus  StageStatus `db:"cohort_owner_status" json:"-"`
	CohortOwnerComment string      `db:"cohort_owner_comment" json:"-"`
	HODStatus          StageStatus `db:"hod_status" json:"-"`
	HODComment         string      `db:"hod_comment" json:"-"`
	PlacementStatus    StageStatus `db:"placement_status" json:"-"`
	PlacementComment   string      `db:"placement_comment" json:"-"`
	PrincipalStatus    StageStatus `db:"principal_status" json:"-"`
	PrincipalComment   string      `db:"principal_comment" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Stage returns the recorded review for the given stage.
func (a *Application) Stage(stage ReviewStage) StageReview {
	switch stage {
	case StageCohortOwner:
		return StageReview{Status: a.CohortOwnerStatus, Comment: a.CohortOwnerComment}
	case StageHOD:
		return StageReview{Status: a.HODStatus, Comment: a.HODComment}
	case StagePlacement:
		return StageReview{Status: a.PlacementStatus, Comment: a.PlacementComment}
	case StagePrincipal:
		return StageReview{Status: a.PrincipalStatus, Comment: a.PrincipalComment}
	}
	return StageReview{}
}

// SetStage records the review for the given stage.
func (a *Application) SetStage(stage ReviewStage, review StageReview) {
	switch stage {
	case StageCohortOwner:
		a.CohortOwnerStatus, a.CohortOwnerComment = review.Status, review.Comment
	case StageHOD:
		a.HODStatus, a.HODComment = review.Status, review.Comment
	case StagePlacement:
		a.PlacementStatus, a.PlacementComment = review.Status, review.Comment
	case StagePrincipal:
		a.PrincipalStatus, a.PrincipalComment = review.Status, review.Comment
	}
}

// FullyApproved reports whether every stage has approved the application.
func (a *Application) FullyApproved() bool {
	for _, stage := range ReviewStages() {
		if a.Stage(stage).Status != StageApproved {
			return false
		}
	}
	return true
}

// ReviewPipeline is the JSON projection of the four stage sub-records.
type ReviewPipeline struct {
	CohortOwner StageReview `json:"cohort_owner"`
	HOD         StageReview `json:"hod"`
	Placement   StageReview `json:"placement"`
	Principal   StageReview `json:"principal"`
}

// Pipeline returns the review pipeline projection for API responses.
func (a *Application) Pipeline() ReviewPipeline {
	return ReviewPipeline{
		CohortOwner: a.Stage(StageCohortOwner),
		HOD:         a.Stage(StageHOD),
		Placement:   a.Stage(StagePlacement),
		Principal:   a.Stage(StagePrincipal),
	}
}

// ReviewQueueFilter selects the applications a reviewer must currently act on.
// The repository translates it into a single WHERE clause; ordering is always
// created_at descending.
type ReviewQueueFilter struct {
	// Department scopes the queue when set.
	Department *Department
	// StagePending is the stage that must still be pending.
	StagePending ReviewStage
	// PredecessorApproved, when non-empty, requires that stage to be approved.
	PredecessorApproved ReviewStage
	// IncludeReworked additionally surfaces applications rejected at any
	// downstream stage, so a bounced application reappears in the first queue.
	IncludeReworked bool
}

// ApplicationFilter captures admin listing criteria.
type ApplicationFilter struct {
	Department *Department
	Search     string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// DepartmentSummary aggregates pipeline counts for one department.
type DepartmentSummary struct {
	Department        Department `db:"department" json:"department"`
	Total             int        `db:"total" json:"total"`
	AwaitingCohort    int        `db:"awaiting_cohort" json:"awaiting_cohort"`
	AwaitingHOD       int        `db:"awaiting_hod" json:"awaiting_hod"`
	AwaitingPlacement int        `db:"awaiting_placement" json:"awaiting_placement"`
	AwaitingPrincipal int        `db:"awaiting_principal" json:"awaiting_principal"`
	Approved          int        `db:"approved" json:"approved"`
	Rejected          int        `db:"rejected" json:"rejected"`
}
