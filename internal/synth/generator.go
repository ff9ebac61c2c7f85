// Package synth generates labeled synthetic card-transaction datasets.
//
// Two fixed parametric populations are sampled: legitimate transactions
// center on small daytime amounts with low velocity, fraudulent ones on
// large late-night amounts far from home with high velocity and risk
// scores. Each field is drawn independently within its class.
package synth

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Defaults for the training entry point.
const (
	DefaultN         = 50000
	DefaultFraudRate = 0.02
	DefaultSeed      = 42
)

// Config holds generation parameters.
type Config struct {
	N         int     // total record count
	FraudRate float64 // fraction of fraud records, in (0, 1)
	Seed      uint64  // deterministic seed; same seed reproduces the dataset bit-for-bit
}

// Generate produces a shuffled, labeled dataset of cfg.N records.
// The fraud population numbers round(N * FraudRate).
func Generate(cfg Config) ([]domain.LabeledRecord, error) {
	if cfg.N <= 0 {
		return nil, fmt.Errorf("invalid record count %d: must be positive", cfg.N)
	}
	if cfg.FraudRate <= 0 || cfg.FraudRate >= 1 {
		return nil, fmt.Errorf("invalid fraud rate %v: must be in (0, 1)", cfg.FraudRate)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	nFraud := int(math.Round(float64(cfg.N) * cfg.FraudRate))
	nLegit := cfg.N - nFraud

	records := make([]domain.LabeledRecord, 0, cfg.N)

	legit := legitPopulation(rng)
	for i := 0; i < nLegit; i++ {
		records = append(records, domain.LabeledRecord{Record: legit.draw(), Label: 0})
	}

	fraud := fraudPopulation(rng)
	for i := 0; i < nFraud; i++ {
		records = append(records, domain.LabeledRecord{Record: fraud.draw(), Label: 1})
	}

	// Uniform permutation so class is not encoded in row position.
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	return records, nil
}

// population samples one class distribution. All continuous fields come from
// gonum distuv; discrete codes and flags from the shared rng.
type population struct {
	rng *rand.Rand

	amount       distuv.LogNormal
	avgAmount30d distuv.LogNormal
	numTxn1h     distuv.Poisson
	numTxn24h    distuv.Poisson
	distance     distuv.Exponential
	recency      distuv.Exponential
	creditUsed   distuv.Beta
	velocity     distuv.Beta
	geoRisk      distuv.Beta

	hours          []float64 // candidate hour_of_day values, uniform choice
	pOnline        float64
	pInternational float64
	pCardPresent   float64
}

// legitPopulation: small amounts, business hours, low velocity and risk.
func legitPopulation(rng *rand.Rand) *population {
	src := rng
	return &population{
		rng:          rng,
		amount:       distuv.LogNormal{Mu: 4.0, Sigma: 1.2, Src: src},
		avgAmount30d: distuv.LogNormal{Mu: 3.8, Sigma: 0.9, Src: src},
		numTxn1h:     distuv.Poisson{Lambda: 1.5, Src: src},
		numTxn24h:    distuv.Poisson{Lambda: 5, Src: src},
		distance:     distuv.Exponential{Rate: 1.0 / 20, Src: src},
		recency:      distuv.Exponential{Rate: 1.0 / 2, Src: src},
		creditUsed:   distuv.Beta{Alpha: 2, Beta: 8, Src: src},
		velocity:     distuv.Beta{Alpha: 2, Beta: 10, Src: src},
		geoRisk:      distuv.Beta{Alpha: 1, Beta: 15, Src: src},

		hours:          hourRange(6, 22),
		pOnline:        0.4,
		pInternational: 0.05,
		pCardPresent:   0.7,
	}
}

// fraudPopulation: higher, more variable amounts, odd hours, high velocity,
// far from home, near credit limit.
func fraudPopulation(rng *rand.Rand) *population {
	src := rng
	return &population{
		rng:          rng,
		amount:       distuv.LogNormal{Mu: 5.5, Sigma: 1.5, Src: src},
		avgAmount30d: distuv.LogNormal{Mu: 3.2, Sigma: 0.8, Src: src},
		numTxn1h:     distuv.Poisson{Lambda: 4.5, Src: src},
		numTxn24h:    distuv.Poisson{Lambda: 12, Src: src},
		distance:     distuv.Exponential{Rate: 1.0 / 200, Src: src},
		recency:      distuv.Exponential{Rate: 1.0 / 0.5, Src: src},
		creditUsed:   distuv.Beta{Alpha: 8, Beta: 2, Src: src},
		velocity:     distuv.Beta{Alpha: 8, Beta: 2, Src: src},
		geoRisk:      distuv.Beta{Alpha: 8, Beta: 2, Src: src},

		hours:          append(hourRange(0, 5), 22, 23),
		pOnline:        0.7,
		pInternational: 0.5,
		pCardPresent:   0.3,
	}
}

func (p *population) draw() domain.Record {
	return domain.Record{
		Amount:           p.amount.Rand(),
		HourOfDay:        p.hours[p.rng.Intn(len(p.hours))],
		DayOfWeek:        float64(p.rng.Intn(7)),
		MerchantCategory: float64(p.rng.Intn(10)),
		NumTxn1h:         p.numTxn1h.Rand(),
		NumTxn24h:        p.numTxn24h.Rand(),
		AvgAmount30d:     p.avgAmount30d.Rand(),
		DistanceFromHome: p.distance.Rand(),
		IsOnline:         p.flag(p.pOnline),
		IsInternational:  p.flag(p.pInternational),
		CardPresent:      p.flag(p.pCardPresent),
		DaysSinceLastTxn: p.recency.Rand(),
		CreditLimitUsed:  p.creditUsed.Rand(),
		VelocityScore:    p.velocity.Rand(),
		GeoRiskScore:     p.geoRisk.Rand(),
	}
}

func (p *population) flag(prob float64) float64 {
	if p.rng.Float64() < prob {
		return 1
	}
	return 0
}

// hourRange returns the inclusive range [lo, hi] as float64 values.
func hourRange(lo, hi int) []float64 {
	hours := make([]float64, 0, hi-lo+1)
	for h := lo; h <= hi; h++ {
		hours = append(hours, float64(h))
	}
	return hours
}
