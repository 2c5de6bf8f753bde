package storage

import (
	"context"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// Repository defines the interface for the registration outcome ledger
type Repository interface {
	RecordOutcome(ctx context.Context, outcome models.RegistrationOutcome) error
	ListOutcomes(ctx context.Context, filters models.OutcomeFilters) ([]models.RegistrationOutcome, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
