// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"fmt"
	"time"
)

// Raw input field names, in canonical order. This is the wire vocabulary of
// the scoring API: a score request is a JSON object keyed by exactly these
// names. The engineered feature order built on top of it lives in the
// feature package.
const (
	FieldAmount            = "amount"
	FieldHourOfDay         = "hour_of_day"
	FieldDayOfWeek         = "day_of_week"
	FieldMerchantCategory  = "merchant_category"
	FieldNumTxn1h          = "num_transactions_1h"
	FieldNumTxn24h         = "num_transactions_24h"
	FieldAvgAmount30d      = "avg_amount_30d"
	FieldDistanceFromHome  = "distance_from_home"
	FieldIsOnline          = "is_online"
	FieldIsInternational   = "is_international"
	FieldCardPresent       = "card_present"
	FieldDaysSinceLastTxn  = "days_since_last_txn"
	FieldCreditLimitUsed   = "credit_limit_used_pct"
	FieldVelocityScore     = "velocity_score"
	FieldGeoRiskScore      = "geo_risk_score"
)

// RawFields is the ordered list of the 15 raw input fields.
var RawFields = []string{
	FieldAmount,
	FieldHourOfDay,
	FieldDayOfWeek,
	FieldMerchantCategory,
	FieldNumTxn1h,
	FieldNumTxn24h,
	FieldAvgAmount30d,
	FieldDistanceFromHome,
	FieldIsOnline,
	FieldIsInternational,
	FieldCardPresent,
	FieldDaysSinceLastTxn,
	FieldCreditLimitUsed,
	FieldVelocityScore,
	FieldGeoRiskScore,
}

// Record is a single card transaction as seen by the scoring pipeline.
// All fields are numeric; boolean flags are 0/1.
type Record struct {
	Amount            float64 `json:"amount"`
	HourOfDay         float64 `json:"hour_of_day"`
	DayOfWeek         float64 `json:"day_of_week"`
	MerchantCategory  float64 `json:"merchant_category"`
	NumTxn1h          float64 `json:"num_transactions_1h"`
	NumTxn24h         float64 `json:"num_transactions_24h"`
	AvgAmount30d      float64 `json:"avg_amount_30d"`
	DistanceFromHome  float64 `json:"distance_from_home"`
	IsOnline          float64 `json:"is_online"`
	IsInternational   float64 `json:"is_international"`
	CardPresent       float64 `json:"card_present"`
	DaysSinceLastTxn  float64 `json:"days_since_last_txn"`
	CreditLimitUsed   float64 `json:"credit_limit_used_pct"`
	VelocityScore     float64 `json:"velocity_score"`
	GeoRiskScore      float64 `json:"geo_risk_score"`
}

// MissingFieldError reports a raw field absent from a score request.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// RecordFromMap builds a Record from a field map, failing on the first raw
// field (in canonical order) that is absent. Out-of-range values are accepted
// as-is; range sanity belongs to the guard layer.
func RecordFromMap(m map[string]float64) (*Record, error) {
	for _, name := range RawFields {
		if _, ok := m[name]; !ok {
			return nil, &MissingFieldError{Field: name}
		}
	}
	return &Record{
		Amount:           m[FieldAmount],
		HourOfDay:        m[FieldHourOfDay],
		DayOfWeek:        m[FieldDayOfWeek],
		MerchantCategory: m[FieldMerchantCategory],
		NumTxn1h:         m[FieldNumTxn1h],
		NumTxn24h:        m[FieldNumTxn24h],
		AvgAmount30d:     m[FieldAvgAmount30d],
		DistanceFromHome: m[FieldDistanceFromHome],
		IsOnline:         m[FieldIsOnline],
		IsInternational:  m[FieldIsInternational],
		CardPresent:      m[FieldCardPresent],
		DaysSinceLastTxn: m[FieldDaysSinceLastTxn],
		CreditLimitUsed:  m[FieldCreditLimitUsed],
		VelocityScore:    m[FieldVelocityScore],
		GeoRiskScore:     m[FieldGeoRiskScore],
	}, nil
}

// Fields returns the record as a field map keyed by the raw field names.
func (r *Record) Fields() map[string]float64 {
	return map[string]float64{
		FieldAmount:           r.Amount,
		FieldHourOfDay:        r.HourOfDay,
		FieldDayOfWeek:        r.DayOfWeek,
		FieldMerchantCategory: r.MerchantCategory,
		FieldNumTxn1h:         r.NumTxn1h,
		FieldNumTxn24h:        r.NumTxn24h,
		FieldAvgAmount30d:     r.AvgAmount30d,
		FieldDistanceFromHome: r.DistanceFromHome,
		FieldIsOnline:         r.IsOnline,
		FieldIsInternational:  r.IsInternational,
		FieldCardPresent:      r.CardPresent,
		FieldDaysSinceLastTxn: r.DaysSinceLastTxn,
		FieldCreditLimitUsed:  r.CreditLimitUsed,
		FieldVelocityScore:    r.VelocityScore,
		FieldGeoRiskScore:     r.GeoRiskScore,
	}
}

// LabeledRecord is a Record with its training label attached.
// Label is 1 for fraud, 0 for legitimate.
type LabeledRecord struct {
	Record Record `json:"record"`
	Label  int    `json:"label"`
}

// TrainingRun records the parameters and outcome of one training invocation.
type TrainingRun struct {
	ID        string    `json:"id"`
	N         int       `json:"n"`
	FraudRate float64   `json:"fraudRate"`
	Seed      uint64    `json:"seed"`
	Metrics   []byte    `json:"metrics,omitempty"` // JSON-encoded evaluation metrics
	CreatedAt time.Time `json:"createdAt"`
}
