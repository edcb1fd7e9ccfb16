package dto

import (
	"time"

	"github.com/placement-cell/internship-portal-api/internal/models"
)

// PlacementSummaryResponse aggregates per-department pipeline counts.
type PlacementSummaryResponse struct {
	Departments []models.DepartmentSummary `json:"departments"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// ApplicationResponse is the API projection of an application with its
// review pipeline expanded.
type ApplicationResponse struct {
	models.Application
	Reviews models.ReviewPipeline `json:"reviews"`
}

// NewApplicationResponse builds the projection for a single application.
func NewApplicationResponse(app models.Application) ApplicationResponse {
	return ApplicationResponse{Application: app, Reviews: app.Pipeline()}
}

// NewApplicationResponses maps a slice of applications.
func NewApplicationResponses(apps []models.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, NewApplicationResponse(app))
	}
	return out
}
