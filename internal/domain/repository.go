package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Score audit trail
	SaveScore(ctx context.Context, tenantID string, score *Score) error
	GetScore(ctx context.Context, tenantID string, scoreID string) (*Score, error)
	ListScores(ctx context.Context, tenantID string, since time.Time, limit int) ([]*Score, error)

	// Guard configuration operations
	SaveGuardConfig(ctx context.Context, tenantID string, guard *GuardConfig) error
	GetGuardConfig(ctx context.Context, tenantID string, guardID string) (*GuardConfig, error)
	ListGuardConfigs(ctx context.Context, tenantID string) ([]*GuardConfig, error)

	// Training run records
	SaveTrainingRun(ctx context.Context, run *TrainingRun) error
	LatestTrainingRun(ctx context.Context) (*TrainingRun, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
