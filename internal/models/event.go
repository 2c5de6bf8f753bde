package models

import (
	"strings"
	"time"
)

// Event is one event as served by the public event detail endpoint.
// It is immutable for the lifetime of a registration flow.
type Event struct {
	ID             ID              `json:"id"`
	Title          string          `json:"event_title"`
	Slug           string          `json:"slug"`
	Description    string          `json:"event_description"`
	Image          string          `json:"event_image,omitempty"`
	Location       string          `json:"event_location"`
	Category       string          `json:"event_category"`
	StartDate      string          `json:"event_start_date"`
	EndDate        string          `json:"event_end_date,omitempty"`
	StartTime      string          `json:"event_start_time"`
	EndTime        string          `json:"event_end_time,omitempty"`
	Price          Amount          `json:"event_price"`
	EarlyBirdDate  string          `json:"earlybird_registration_date,omitempty"`
	CategoryPrices []CategoryPrice `json:"category_prices,omitempty"`
}

// CategoryPrice holds the price tiers of one user category for an event
type CategoryPrice struct {
	CategoryID     ID     `json:"category_id"`
	CategoryName   string `json:"category_name"`
	Price          Amount `json:"price"`
	EarlyBirdPrice Amount `json:"earlybird_registration_price"`
	SpotPrice      Amount `json:"spot_registration_price"`
}

// StartsAt returns the event start date; ok is false when unset or unparseable
func (e *Event) StartsAt() (time.Time, bool) {
	return ParseDate(e.StartDate)
}

// EarlyBirdCutoff returns the early-bird cutoff; ok is false when the event
// has no early-bird window.
func (e *Event) EarlyBirdCutoff() (time.Time, bool) {
	return ParseDate(e.EarlyBirdDate)
}

// CategoryPriceFor finds the price entry for a user category.
// Matching is case-insensitive; the first matching entry wins.
func (e *Event) CategoryPriceFor(category string) (CategoryPrice, bool) {
	category = strings.TrimSpace(category)
	if category == "" {
		return CategoryPrice{}, false
	}
	for _, cp := range e.CategoryPrices {
		if strings.EqualFold(strings.TrimSpace(cp.CategoryName), category) {
			return cp, true
		}
	}
	return CategoryPrice{}, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats the API uses. Values without a zone are
// read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
