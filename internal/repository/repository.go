// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveScore stores a score with tenant isolation.
func (r *SQLRepository) SaveScore(ctx context.Context, tenantID string, score *domain.Score) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	record, _ := json.Marshal(score.Record)
	warnings, _ := json.Marshal(score.Warnings)
	metadata, _ := json.Marshal(score.Metadata)

	fraud := 0
	if score.Fraud {
		fraud = 1
	}

	query := `
		INSERT INTO scores (
			id, tenant_id, record, p_fraud, p_legit, fraud, risk_tier,
			warnings, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ID, tenantID, string(record),
		score.PFraud, score.PLegit, fraud, string(score.Tier),
		string(warnings), score.Timestamp, string(metadata),
	)
	return err
}

// GetScore retrieves a score by ID with tenant isolation.
func (r *SQLRepository) GetScore(ctx context.Context, tenantID string, scoreID string) (*domain.Score, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, record, p_fraud, p_legit, fraud, risk_tier,
		       warnings, timestamp, metadata
		FROM scores
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, scoreID)
	score, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return score, err
}

// ListScores retrieves scores since the given time, newest first.
func (r *SQLRepository) ListScores(ctx context.Context, tenantID string, since time.Time, limit int) ([]*domain.Score, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, record, p_fraud, p_legit, fraud, risk_tier,
		       warnings, timestamp, metadata
		FROM scores
		WHERE tenant_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*domain.Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	return scores, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*domain.Score, error) {
	var score domain.Score
	var record, warnings, metadata, tier string
	var fraud int

	err := row.Scan(
		&score.ID, &score.TenantID, &record,
		&score.PFraud, &score.PLegit, &fraud, &tier,
		&warnings, &score.Timestamp, &metadata,
	)
	if err != nil {
		return nil, err
	}

	score.Fraud = fraud == 1
	score.Tier = domain.RiskTier(tier)
	if record != "" {
		json.Unmarshal([]byte(record), &score.Record)
	}
	if warnings != "" {
		json.Unmarshal([]byte(warnings), &score.Warnings)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &score.Metadata)
	}

	return &score, nil
}

// SaveGuardConfig stores a guard configuration with tenant isolation.
func (r *SQLRepository) SaveGuardConfig(ctx context.Context, tenantID string, guard *domain.GuardConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if guard.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO guard_configs (
			id, tenant_id, name, description, version, expression, severity, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		guard.ID, tenantID, guard.Name, guard.Description,
		guard.Version, guard.Expression, string(guard.Severity), guard.Reason, enabled,
		now, now,
	)
	return err
}

// GetGuardConfig retrieves a guard configuration with tenant isolation.
func (r *SQLRepository) GetGuardConfig(ctx context.Context, tenantID string, guardID string) (*domain.GuardConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, severity, reason, enabled
		FROM guard_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.GuardConfig
	var severity string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, guardID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &severity, &cfg.Reason, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Severity = domain.GuardSeverity(severity)
	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListGuardConfigs retrieves all active guard configurations for a tenant.
func (r *SQLRepository) ListGuardConfigs(ctx context.Context, tenantID string) ([]*domain.GuardConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, severity, reason, enabled
		FROM guard_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.GuardConfig
	for rows.Next() {
		var cfg domain.GuardConfig
		var severity string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &severity, &cfg.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Severity = domain.GuardSeverity(severity)
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveTrainingRun stores a training run record.
func (r *SQLRepository) SaveTrainingRun(ctx context.Context, run *domain.TrainingRun) error {
	query := `
		INSERT INTO training_runs (id, n, fraud_rate, seed, metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.N, run.FraudRate, int64(run.Seed), string(run.Metrics), run.CreatedAt,
	)
	return err
}

// LatestTrainingRun retrieves the most recent training run.
func (r *SQLRepository) LatestTrainingRun(ctx context.Context) (*domain.TrainingRun, error) {
	query := `
		SELECT id, n, fraud_rate, seed, metrics, created_at
		FROM training_runs
		ORDER BY created_at DESC
		LIMIT 1
	`

	var run domain.TrainingRun
	var seed int64
	var metrics string

	err := r.db.QueryRowContext(ctx, r.rebind(query)).Scan(
		&run.ID, &run.N, &run.FraudRate, &seed, &metrics, &run.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run.Seed = uint64(seed)
	run.Metrics = []byte(metrics)

	return &run, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
