package types

import (
	"time"

	"github.com/google/uuid"
)

// CropPhase is a lifecycle phase of a crop season.
type CropPhase string

const (
	PhasePreSowing CropPhase = "pre_sowing"
	PhaseGrowth    CropPhase = "growth"
	PhaseHarvest   CropPhase = "harvest"
	PhaseCompleted CropPhase = "completed"
)

// Phases lists the valid phases in lifecycle order.
var Phases = []CropPhase{PhasePreSowing, PhaseGrowth, PhaseHarvest, PhaseCompleted}

// IsValid reports whether p is one of the known lifecycle phases.
func (p CropPhase) IsValid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// CropSeason tracks a single planting cycle for a user.
// StartDate is optional: a season without one has not been sown yet.
// CurrentPhase, when set, is a manual override and always wins over the
// date-derived phase.
type CropSeason struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	CropType            string     `json:"crop_type"`
	StartDate           *time.Time `json:"start_date,omitempty"`
	ExpectedHarvestDate *time.Time `json:"expected_harvest_date,omitempty"`
	ActualHarvestDate   *time.Time `json:"actual_harvest_date,omitempty"`
	CurrentPhase        *CropPhase `json:"current_phase,omitempty"`
	PhaseUpdatedAt      *time.Time `json:"phase_updated_at,omitempty"`
	HealthScore         *int       `json:"health_score,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CreateSeasonParams is the payload for creating a crop season.
type CreateSeasonParams struct {
	CropType            string     `json:"crop_type"`
	StartDate           *time.Time `json:"start_date,omitempty"`
	ExpectedHarvestDate *time.Time `json:"expected_harvest_date,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

// UpdateSeasonParams supports partial updates via pointer fields.
type UpdateSeasonParams struct {
	StartDate           *time.Time `json:"start_date,omitempty"`
	ExpectedHarvestDate *time.Time `json:"expected_harvest_date,omitempty"`
	ActualHarvestDate   *time.Time `json:"actual_harvest_date,omitempty"`
	HealthScore         *int       `json:"health_score,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
}

// HarvestReadiness is the result of checking whether a season can move from
// growth into harvest.
type HarvestReadiness struct {
	Ready          bool     `json:"ready"`
	Reasons        []string `json:"reasons"`
	Recommendation string   `json:"recommendation"`
}

// PhaseSummary aggregates phase state for a season.
type PhaseSummary struct {
	SeasonID              uuid.UUID         `json:"season_id"`
	CurrentPhase          CropPhase         `json:"current_phase"`
	CropType              string            `json:"crop_type"`
	DaysElapsed           *int              `json:"days_elapsed,omitempty"`
	ExpectedHarvestInDays *int              `json:"expected_harvest_in_days,omitempty"`
	StartDate             *time.Time        `json:"start_date,omitempty"`
	ExpectedHarvestDate   *time.Time        `json:"expected_harvest_date,omitempty"`
	HarvestReadiness      *HarvestReadiness `json:"harvest_readiness,omitempty"`
}
