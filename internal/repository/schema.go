package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaScores = `
CREATE TABLE IF NOT EXISTS scores (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    record TEXT NOT NULL,
    p_fraud REAL NOT NULL,
    p_legit REAL NOT NULL,
    fraud INTEGER NOT NULL,
    risk_tier TEXT NOT NULL,
    warnings TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_tenant ON scores(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scores_timestamp ON scores(tenant_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_scores_tier ON scores(tenant_id, risk_tier);
`

const schemaGuardConfigs = `
CREATE TABLE IF NOT EXISTS guard_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_guard_configs_tenant ON guard_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_guard_configs_enabled ON guard_configs(tenant_id, enabled);
`

const schemaTrainingRuns = `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    n INTEGER NOT NULL,
    fraud_rate REAL NOT NULL,
    seed INTEGER NOT NULL,
    metrics TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_created ON training_runs(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaScores,
		schemaGuardConfigs,
		schemaTrainingRuns,
	}
}
