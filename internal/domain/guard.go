package domain

// GuardConfig defines an input-sanity guard. Guards are CEL expressions over
// the raw record fields; a guard that evaluates to true attaches a warning to
// the score response. Guards never block or alter scoring.
type GuardConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the raw fields, e.g. "amount < 0.0"
	Expression string `json:"expression"`

	// Severity of the warning when the guard fires
	Severity GuardSeverity `json:"severity"`

	// Human-readable reason attached to the warning
	Reason string `json:"reason"`

	// Whether the guard is active
	Enabled bool `json:"enabled"`
}

// GuardSeverity grades a guard warning.
type GuardSeverity string

const (
	SeverityInfo  GuardSeverity = "info"
	SeverityWarn  GuardSeverity = "warn"
	SeverityError GuardSeverity = "error"
)

// GuardResult is the outcome of evaluating one guard against a record.
type GuardResult struct {
	GuardID   string        `json:"guardId"`
	Name      string        `json:"name"`
	Severity  GuardSeverity `json:"severity"`
	Reason    string        `json:"reason"`
	Triggered bool          `json:"triggered"`
	Err       string        `json:"error,omitempty"`
}
