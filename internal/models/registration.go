package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTier names the pricing rule that produced an amount
type PriceTier string

const (
	TierSpot      PriceTier = "spot"
	TierEarlyBird PriceTier = "earlybird"
	TierCategory  PriceTier = "category"
	TierBase      PriceTier = "base"
)

// PaymentRequest is handed to the payment collaborator once the
// questionnaire (if any) is done.
type PaymentRequest struct {
	UserID     ID              `json:"user_id"`
	EventID    ID              `json:"event_id"`
	Amount     decimal.Decimal `json:"amount"`
	Tier       PriceTier       `json:"price_tier"`
	UserName   string          `json:"user_name"`
	UserEmail  string          `json:"user_email"`
	EventTitle string          `json:"event_title"`
}

// OutcomeStatus is the final status of one payment attempt
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// RegistrationOutcome is one ledger row written when a payment attempt ends
type RegistrationOutcome struct {
	ID         string          `json:"id"`
	UserID     ID              `json:"user_id"`
	EventID    ID              `json:"event_id"`
	EventSlug  string          `json:"event_slug"`
	EventTitle string          `json:"event_title"`
	Amount     decimal.Decimal `json:"amount"`
	Tier       PriceTier       `json:"price_tier"`
	Status     OutcomeStatus   `json:"status"`
	Reference  string          `json:"reference,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OutcomeFilters narrows ledger listings
type OutcomeFilters struct {
	UserID ID
	Status OutcomeStatus
	Limit  int
	Offset int
}
