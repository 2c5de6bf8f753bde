package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository connects, verifies the connection and applies
// pending migrations.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// RecordOutcome inserts one ledger row. A repeated completed payment
// reference is ignored.
func (r *PostgresRepository) RecordOutcome(ctx context.Context, o models.RegistrationOutcome) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO registration_outcomes (id, user_id, event_id, event_slug, event_title, amount, price_tier, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)
		ON CONFLICT (reference) WHERE reference IS NOT NULL AND status = 'completed' DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		o.ID,
		o.UserID.String(),
		o.EventID.String(),
		o.EventSlug,
		o.EventTitle,
		o.Amount.String(),
		string(o.Tier),
		string(o.Status),
		nullString(o.Reference),
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	return nil
}

// ListOutcomes lists ledger rows matching filters, newest first
func (r *PostgresRepository) ListOutcomes(ctx context.Context, filters models.OutcomeFilters) ([]models.RegistrationOutcome, error) {
	query, args := outcomeQuery(filters)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.RegistrationOutcome
	for rows.Next() {
		var o models.RegistrationOutcome
		var userID, eventID, amount, tier, status string
		var reference sql.NullString

		if err := rows.Scan(
			&o.ID,
			&userID,
			&eventID,
			&o.EventSlug,
			&o.EventTitle,
			&amount,
			&tier,
			&status,
			&reference,
			&o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		o.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q in outcome %s: %w", amount, o.ID, err)
		}
		o.UserID = models.ID(userID)
		o.EventID = models.ID(eventID)
		o.Tier = models.PriceTier(tier)
		o.Status = models.OutcomeStatus(status)
		o.Reference = reference.String

		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return outcomes, nil
}

// outcomeQuery builds the listing query for filters
func outcomeQuery(filters models.OutcomeFilters) (string, []any) {
	query := `
		SELECT id::text, user_id, event_id, event_slug, event_title, amount::text, price_tier, status, reference, created_at
		FROM registration_outcomes
		WHERE 1=1
	`

	args := []any{}
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID.String())
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	return query, args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
