package scoring

import (
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/synth"
)

// newTestScorer trains a small model so scoring tests run against a real
// artifact set.
func newTestScorer(t *testing.T) *Scorer {
	t.Helper()

	records, err := synth.Generate(synth.Config{N: 800, FraudRate: 0.1, Seed: 42})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	cfg := model.DefaultTrainConfig()
	cfg.Forest = model.ForestConfig{Trees: 20, MaxDepth: 6, LeafSize: 2}

	result, err := model.Train(records, cfg)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return NewScorer(result.Artifacts)
}

func legitimateRecord() *domain.Record {
	return &domain.Record{
		Amount:           45,
		HourOfDay:        14,
		DayOfWeek:        2,
		MerchantCategory: 3,
		NumTxn1h:         1,
		NumTxn24h:        4,
		AvgAmount30d:     50,
		DistanceFromHome: 5,
		IsOnline:         0,
		IsInternational:  0,
		CardPresent:      1,
		DaysSinceLastTxn: 2,
		CreditLimitUsed:  0.2,
		VelocityScore:    0.1,
		GeoRiskScore:     0.05,
	}
}

func suspiciousRecord() *domain.Record {
	return &domain.Record{
		Amount:           2400,
		HourOfDay:        3,
		DayOfWeek:        6,
		MerchantCategory: 7,
		NumTxn1h:         6,
		NumTxn24h:        15,
		AvgAmount30d:     40,
		DistanceFromHome: 800,
		IsOnline:         1,
		IsInternational:  1,
		CardPresent:      0,
		DaysSinceLastTxn: 0.1,
		CreditLimitUsed:  0.95,
		VelocityScore:    0.9,
		GeoRiskScore:     0.85,
	}
}

func TestScore(t *testing.T) {
	scorer := newTestScorer(t)

	t.Run("ProbabilitiesSumToOne", func(t *testing.T) {
		score, err := scorer.Score(legitimateRecord())
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if math.Abs(score.PFraud+score.PLegit-1) > 1e-9 {
			t.Errorf("probabilities sum to %v", score.PFraud+score.PLegit)
		}
	})

	t.Run("DecisionMatchesThreshold", func(t *testing.T) {
		for _, rec := range []*domain.Record{legitimateRecord(), suspiciousRecord()} {
			score, err := scorer.Score(rec)
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if score.Fraud != domain.IsFraud(score.PFraud) {
				t.Errorf("decision %v inconsistent with P(fraud) %v", score.Fraud, score.PFraud)
			}
			if score.Tier != domain.TierFor(score.PFraud) {
				t.Errorf("tier %s inconsistent with P(fraud) %v", score.Tier, score.PFraud)
			}
		}
	})

	t.Run("RanksSuspiciousAboveLegitimate", func(t *testing.T) {
		low, err := scorer.Score(legitimateRecord())
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		high, err := scorer.Score(suspiciousRecord())
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if high.PFraud <= low.PFraud {
			t.Errorf("suspicious record scored %v, legitimate %v", high.PFraud, low.PFraud)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		rec := suspiciousRecord()
		a, err := scorer.Score(rec)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		b, err := scorer.Score(rec)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if a.PFraud != b.PFraud || a.Tier != b.Tier {
			t.Errorf("repeated scoring differs: %v vs %v", a.PFraud, b.PFraud)
		}
	})

	t.Run("AttachesRecordAndTimestamp", func(t *testing.T) {
		rec := legitimateRecord()
		score, err := scorer.Score(rec)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if score.Record != rec {
			t.Error("score should reference the scored record")
		}
		if score.Timestamp.IsZero() {
			t.Error("score timestamp not set")
		}
	})
}

func TestScorerMetadata(t *testing.T) {
	scorer := newTestScorer(t)

	t.Run("FeatureNames", func(t *testing.T) {
		if got := len(scorer.FeatureNames()); got != 18 {
			t.Errorf("expected 18 feature names, got %d", got)
		}
	})

	t.Run("Importances", func(t *testing.T) {
		if got := len(scorer.Importances()); got != 18 {
			t.Errorf("expected 18 importances, got %d", got)
		}
	})

	t.Run("Manifest", func(t *testing.T) {
		m := scorer.Manifest()
		if m == nil {
			t.Fatal("expected a manifest")
		}
		if m.ModelVersion != model.ModelVersion {
			t.Errorf("unexpected model version %s", m.ModelVersion)
		}
	})
}

func TestRecordHash(t *testing.T) {
	t.Run("Stable", func(t *testing.T) {
		if RecordHash(legitimateRecord()) != RecordHash(legitimateRecord()) {
			t.Error("identical records must hash identically")
		}
	})

	t.Run("SensitiveToFieldChange", func(t *testing.T) {
		a := legitimateRecord()
		b := legitimateRecord()
		b.Amount += 0.01
		if RecordHash(a) == RecordHash(b) {
			t.Error("changed field should change the hash")
		}
	})

	t.Run("HexDigest", func(t *testing.T) {
		h := RecordHash(legitimateRecord())
		if len(h) != 64 {
			t.Errorf("expected 64-char sha256 hex digest, got %d chars", len(h))
		}
	})
}
