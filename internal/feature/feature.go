// Package feature turns raw transaction records into model feature vectors.
//
// The transform is a pure function of one record: no randomness, no history,
// no mutable state. Training and inference share this single implementation
// so the two can never diverge.
package feature

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Derived feature names, appended after the 15 raw fields.
const (
	NameAmountToAvgRatio = "amount_to_avg_ratio"
	NameTxnBurst         = "txn_burst"
	NameRiskComposite    = "risk_composite"
)

// Names is the canonical ordered list of the 18 model features. The order
// used at training time must match the vector assembled at inference time
// exactly; the trained artifact set persists this list and Vector checks
// against it on every call.
func Names() []string {
	names := make([]string, 0, len(domain.RawFields)+3)
	names = append(names, domain.RawFields...)
	return append(names, NameAmountToAvgRatio, NameTxnBurst, NameRiskComposite)
}

// Engineer computes the full 18-field map for a record: the 15 raw fields
// plus the three derived ratios.
func Engineer(r *domain.Record) map[string]float64 {
	fields := r.Fields()
	fields[NameAmountToAvgRatio] = r.Amount / (r.AvgAmount30d + 1)
	fields[NameTxnBurst] = r.NumTxn1h / (r.NumTxn24h + 1)
	fields[NameRiskComposite] = (r.VelocityScore + r.GeoRiskScore) / 2
	return fields
}

// Vector assembles the engineered fields into the given name order.
// A name with no corresponding field is a configuration error: it means the
// persisted feature list and this build disagree about the feature set.
func Vector(r *domain.Record, names []string) ([]float64, error) {
	fields := Engineer(r)
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("feature order mismatch: %w", &domain.MissingFieldError{Field: name})
		}
		vec[i] = v
	}
	return vec, nil
}

// Matrix engineers a batch of labeled records into a feature matrix and a
// label vector, in the given name order.
func Matrix(records []domain.LabeledRecord, names []string) ([][]float64, []int, error) {
	x := make([][]float64, len(records))
	y := make([]int, len(records))
	for i := range records {
		vec, err := Vector(&records[i].Record, names)
		if err != nil {
			return nil, nil, err
		}
		x[i] = vec
		y[i] = records[i].Label
	}
	return x, y, nil
}
