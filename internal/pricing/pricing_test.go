package pricing

import (
	"testing"
	"time"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

var today = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func retreat() models.Event {
	return models.Event{
		ID:            "1",
		Title:         "Wellness Retreat",
		StartDate:     today.AddDate(0, 0, 7).Format("2006-01-02"),
		EarlyBirdDate: today.AddDate(0, 0, 1).Format(time.RFC3339),
		Price:         models.AmountOf("5000"),
		CategoryPrices: []models.CategoryPrice{
			{
				CategoryName:   "vip",
				Price:          models.AmountOf("4000"),
				EarlyBirdPrice: models.AmountOf("3000"),
				SpotPrice:      models.AmountOf("6000"),
			},
		},
	}
}

func TestResolveScenarios(t *testing.T) {
	tests := []struct {
		name     string
		category string
		now      time.Time
		want     string
		tier     models.PriceTier
	}{
		{"early bird wins before start", "VIP", today, "3000", models.TierEarlyBird},
		{"spot after start", "VIP", today.AddDate(0, 0, 8), "6000", models.TierSpot},
		{"spot on start day", "vip", today.AddDate(0, 0, 7).Truncate(24 * time.Hour), "6000", models.TierSpot},
		{"category after early bird", "Vip", today.AddDate(0, 0, 3), "4000", models.TierCategory},
		{"no category match", "guest", today, "5000", models.TierBase},
		{"empty category", "", today, "5000", models.TierBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Resolve(retreat(), models.UserProfile{Category: tt.category}, tt.now)
			if q.Amount.String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, q.Amount)
			}
			if q.Tier != tt.tier {
				t.Errorf("expected tier %s, got %s", tt.tier, q.Tier)
			}
		})
	}
}

func TestResolveSpotIgnoresEarlyBirdWindow(t *testing.T) {
	ev := retreat()
	// early-bird window still open after the event started
	ev.EarlyBirdDate = today.AddDate(0, 1, 0).Format("2006-01-02")

	q := Resolve(ev, models.UserProfile{Category: "VIP"}, today.AddDate(0, 0, 10))
	if q.Tier != models.TierSpot || q.Amount.String() != "6000" {
		t.Errorf("expected spot 6000, got %s %s", q.Tier, q.Amount)
	}
}

func TestResolveFallsThroughUnusableTiers(t *testing.T) {
	tests := []struct {
		name string
		edit func(*models.CategoryPrice)
		now  time.Time
		want string
		tier models.PriceTier
	}{
		{
			name: "non numeric spot falls to category",
			edit: func(cp *models.CategoryPrice) { cp.SpotPrice = models.AmountOf("TBD") },
			now:  today.AddDate(0, 0, 8),
			want: "4000", tier: models.TierCategory,
		},
		{
			name: "missing early bird falls to category",
			edit: func(cp *models.CategoryPrice) { cp.EarlyBirdPrice = models.Amount{} },
			now:  today,
			want: "4000", tier: models.TierCategory,
		},
		{
			name: "no usable tier falls to base",
			edit: func(cp *models.CategoryPrice) {
				cp.Price = models.AmountOf("")
				cp.EarlyBirdPrice = models.AmountOf("n/a")
			},
			now:  today,
			want: "5000", tier: models.TierBase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := retreat()
			tt.edit(&ev.CategoryPrices[0])
			q := Resolve(ev, models.UserProfile{Category: "vip"}, tt.now)
			if q.Amount.String() != tt.want || q.Tier != tt.tier {
				t.Errorf("expected %s %s, got %s %s", tt.tier, tt.want, q.Tier, q.Amount)
			}
		})
	}
}

func TestResolveWithoutEarlyBirdCutoff(t *testing.T) {
	ev := retreat()
	ev.EarlyBirdDate = ""

	q := Resolve(ev, models.UserProfile{Category: "vip"}, today)
	if q.Tier != models.TierCategory {
		t.Errorf("expected category tier without cutoff, got %s", q.Tier)
	}
}

func TestResolveEarlyBirdCutoffIsExclusive(t *testing.T) {
	ev := retreat()
	cutoff, _ := ev.EarlyBirdCutoff()

	q := Resolve(ev, models.UserProfile{Category: "vip"}, cutoff)
	if q.Tier != models.TierCategory {
		t.Errorf("expected category tier at the cutoff instant, got %s", q.Tier)
	}
}

func TestResolveUnparseableBasePrice(t *testing.T) {
	ev := retreat()
	ev.Price = models.AmountOf("free")

	q := Resolve(ev, models.UserProfile{Category: "guest"}, today)
	if !q.Amount.IsZero() || q.Tier != models.TierBase {
		t.Errorf("expected zero base, got %s %s", q.Tier, q.Amount)
	}
}
