package domain

import (
	"time"
)

// DecisionThreshold is the fixed probability above which a transaction is
// classified as fraud. Strictly greater-than: P(fraud) == 0.5 is not fraud.
const DecisionThreshold = 0.5

// Risk tier cutoffs. Lower bounds are closed: P(fraud) == 0.2 is MODERATE.
const (
	TierModerateCutoff = 0.20
	TierHighCutoff     = 0.50
	TierCriticalCutoff = 0.80
)

// RiskTier buckets a fraud probability for presentation.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierModerate RiskTier = "MODERATE"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// TierFor maps a fraud probability to its risk tier.
func TierFor(pFraud float64) RiskTier {
	switch {
	case pFraud < TierModerateCutoff:
		return TierLow
	case pFraud < TierHighCutoff:
		return TierModerate
	case pFraud < TierCriticalCutoff:
		return TierHigh
	default:
		return TierCritical
	}
}

// IsFraud applies the fixed decision rule.
func IsFraud(pFraud float64) bool {
	return pFraud > DecisionThreshold
}

// FeatureWeight is one entry of the model's importance ranking.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Score is the complete scoring result for one transaction record.
type Score struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	Record   *Record  `json:"record"`
	PFraud   float64  `json:"pFraud"`
	PLegit   float64  `json:"pLegit"`
	Fraud    bool     `json:"fraud"`
	Tier     RiskTier `json:"riskTier"`

	// Guard warnings (advisory, never affect the probabilities)
	Warnings []GuardResult `json:"warnings,omitempty"`

	Timestamp time.Time     `json:"timestamp"`
	Metadata  ScoreMetadata `json:"metadata"`
}

// ScoreMetadata contains processing information.
type ScoreMetadata struct {
	TraceID      string `json:"traceId"`
	ScoreMs      int64  `json:"scoreMs"`
	TotalMs      int64  `json:"totalMs"`
	GuardsMs     int64  `json:"guardsMs"`
	CacheHit     bool   `json:"cacheHit"`
	ModelVersion string `json:"modelVersion"`
}
