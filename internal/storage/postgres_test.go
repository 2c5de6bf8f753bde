package storage

import (
	"strings"
	"testing"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

func TestOutcomeQuery(t *testing.T) {
	query, args := outcomeQuery(models.OutcomeFilters{
		UserID: "7",
		Status: models.OutcomeCompleted,
		Limit:  20,
		Offset: 40,
	})

	for _, part := range []string{"user_id = $1", "status = $2", "ORDER BY created_at DESC", "LIMIT $3", "OFFSET $4"} {
		if !strings.Contains(query, part) {
			t.Errorf("expected query to contain %q:\n%s", part, query)
		}
	}
	if len(args) != 4 || args[0] != "7" || args[1] != "completed" || args[2] != 20 || args[3] != 40 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestOutcomeQueryWithoutFilters(t *testing.T) {
	query, args := outcomeQuery(models.OutcomeFilters{})

	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
	if strings.Contains(query, "LIMIT") || strings.Contains(query, "$1") {
		t.Errorf("unexpected placeholders in %s", query)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := listMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("listMigrations failed: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 migrations, got %v", migrations)
	}
	if migrations[0] != "001_registration_outcomes.sql" {
		t.Errorf("expected migrations sorted by name, got %v", migrations)
	}
}
