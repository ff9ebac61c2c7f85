// Package scoring turns one transaction record into a fraud decision using
// a trained artifact set. Scoring is a pure function of (record, artifacts):
// artifacts are immutable after load, so a Scorer is safe for concurrent use
// without locking.
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/model"
)

// Scorer scores records against one loaded artifact set.
type Scorer struct {
	artifacts *model.Artifacts
}

// NewScorer wraps a loaded artifact set.
func NewScorer(a *model.Artifacts) *Scorer {
	return &Scorer{artifacts: a}
}

// Score computes the probability vector, decision, and risk tier for one
// record. The record is engineered into the persisted feature order,
// standardized with the persisted scaler, and voted by the persisted forest.
func (s *Scorer) Score(r *domain.Record) (*domain.Score, error) {
	vec, err := feature.Vector(r, s.artifacts.FeatureNames)
	if err != nil {
		return nil, err
	}

	scaled, err := s.artifacts.Scaler.Transform(vec)
	if err != nil {
		return nil, err
	}

	probs := s.artifacts.Forest.Predict(scaled)
	pFraud := probs[1]

	return &domain.Score{
		Record:    r,
		PFraud:    pFraud,
		PLegit:    probs[0],
		Fraud:     domain.IsFraud(pFraud),
		Tier:      domain.TierFor(pFraud),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Importances returns the model's sorted feature-importance ranking.
func (s *Scorer) Importances() []domain.FeatureWeight {
	return s.artifacts.Forest.Importance(s.artifacts.FeatureNames)
}

// FeatureNames returns the persisted feature order.
func (s *Scorer) FeatureNames() []string {
	return s.artifacts.FeatureNames
}

// Manifest returns the artifact manifest, or nil for pre-manifest triples.
func (s *Scorer) Manifest() *model.Manifest {
	return s.artifacts.Manifest
}

// RecordHash returns a deterministic digest of the raw fields, used as the
// score-cache key. Identical records hash identically.
func RecordHash(r *domain.Record) string {
	h := sha256.New()
	fields := r.Fields()
	buf := make([]byte, 0, 32)
	for _, name := range domain.RawFields {
		h.Write([]byte(name))
		h.Write([]byte{':'})
		buf = strconv.AppendFloat(buf[:0], fields[name], 'g', -1, 64)
		h.Write(buf)
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
