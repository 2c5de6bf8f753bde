// Package pricing computes the amount a user owes for an event.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// Quote is a resolved price and the rule that produced it
type Quote struct {
	Amount decimal.Decimal  `json:"amount"`
	Tier   models.PriceTier `json:"tier"`
}

// Resolve returns the price for profile at time now. Rules, first match wins:
//
//  1. matching category, event already started, spot price set -> spot price
//  2. matching category, now before the early-bird cutoff, early-bird price set -> early-bird price
//  3. matching category with a standard price -> category price
//  4. event base price
//
// A tier whose stored price is not numeric counts as unset.
func Resolve(event models.Event, profile models.UserProfile, now time.Time) Quote {
	if cp, ok := event.CategoryPriceFor(profile.Category); ok {
		if start, ok := event.StartsAt(); ok && !now.Before(start) {
			if spot, ok := cp.SpotPrice.Decimal(); ok {
				return Quote{Amount: spot, Tier: models.TierSpot}
			}
		}

		if cutoff, ok := event.EarlyBirdCutoff(); ok && now.Before(cutoff) {
			if early, ok := cp.EarlyBirdPrice.Decimal(); ok {
				return Quote{Amount: early, Tier: models.TierEarlyBird}
			}
		}

		if price, ok := cp.Price.Decimal(); ok {
			return Quote{Amount: price, Tier: models.TierCategory}
		}
	}

	base, _ := event.Price.Decimal()
	return Quote{Amount: base, Tier: models.TierBase}
}
