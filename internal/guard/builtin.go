package guard

import "github.com/opensource-finance/kestrel/internal/domain"

// DefaultGuards returns the documented range checks for the raw input
// fields. They are loaded at startup when the database holds no guard
// configurations; tenants can replace them via the guards API.
func DefaultGuards() []*domain.GuardConfig {
	return []*domain.GuardConfig{
		{
			ID:         "negative-amount",
			TenantID:   "*",
			Name:       "Negative amount",
			Version:    "1.0.0",
			Expression: "amount < 0.0",
			Severity:   domain.SeverityError,
			Reason:     "amount must be >= 0",
			Enabled:    true,
		},
		{
			ID:         "hour-out-of-range",
			TenantID:   "*",
			Name:       "Hour out of range",
			Version:    "1.0.0",
			Expression: "hour_of_day < 0.0 || hour_of_day > 23.0",
			Severity:   domain.SeverityError,
			Reason:     "hour_of_day must be in [0, 23]",
			Enabled:    true,
		},
		{
			ID:         "day-out-of-range",
			TenantID:   "*",
			Name:       "Day out of range",
			Version:    "1.0.0",
			Expression: "day_of_week < 0.0 || day_of_week > 6.0",
			Severity:   domain.SeverityError,
			Reason:     "day_of_week must be in [0, 6]",
			Enabled:    true,
		},
		{
			ID:         "merchant-out-of-range",
			TenantID:   "*",
			Name:       "Merchant category out of range",
			Version:    "1.0.0",
			Expression: "merchant_category < 0.0 || merchant_category > 9.0",
			Severity:   domain.SeverityWarn,
			Reason:     "merchant_category must be a code in [0, 9]",
			Enabled:    true,
		},
		{
			ID:         "flag-not-boolean",
			TenantID:   "*",
			Name:       "Flag not boolean",
			Version:    "1.0.0",
			Expression: "(is_online != 0.0 && is_online != 1.0) || (is_international != 0.0 && is_international != 1.0) || (card_present != 0.0 && card_present != 1.0)",
			Severity:   domain.SeverityWarn,
			Reason:     "boolean flags must be 0 or 1",
			Enabled:    true,
		},
		{
			ID:         "score-out-of-range",
			TenantID:   "*",
			Name:       "Score field out of range",
			Version:    "1.0.0",
			Expression: "credit_limit_used_pct < 0.0 || credit_limit_used_pct > 1.0 || velocity_score < 0.0 || velocity_score > 1.0 || geo_risk_score < 0.0 || geo_risk_score > 1.0",
			Severity:   domain.SeverityWarn,
			Reason:     "score fields must be in [0, 1]",
			Enabled:    true,
		},
	}
}
