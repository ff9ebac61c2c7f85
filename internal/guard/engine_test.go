package guard

import (
	"context"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(10)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func cleanRecord() *domain.Record {
	return &domain.Record{
		Amount:           100,
		HourOfDay:        14,
		DayOfWeek:        3,
		MerchantCategory: 5,
		NumTxn1h:         2,
		NumTxn24h:        6,
		AvgAmount30d:     80,
		DistanceFromHome: 10,
		IsOnline:         1,
		IsInternational:  0,
		CardPresent:      0,
		DaysSinceLastTxn: 1,
		CreditLimitUsed:  0.4,
		VelocityScore:    0.2,
		GeoRiskScore:     0.1,
	}
}

func TestEngineEvaluateAll(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.LoadGuards(DefaultGuards()); err != nil {
		t.Fatalf("LoadGuards failed: %v", err)
	}

	t.Run("CleanRecordNoWarnings", func(t *testing.T) {
		results := engine.EvaluateAll(context.Background(), cleanRecord())
		if len(results) != 0 {
			t.Errorf("expected no triggered guards, got %+v", results)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		rec := cleanRecord()
		rec.Amount = -50

		results := engine.EvaluateAll(context.Background(), rec)
		if len(results) != 1 {
			t.Fatalf("expected 1 triggered guard, got %d", len(results))
		}
		if results[0].GuardID != "negative-amount" {
			t.Errorf("expected negative-amount guard, got %s", results[0].GuardID)
		}
		if results[0].Severity != domain.SeverityError {
			t.Errorf("expected severity %s, got %s", domain.SeverityError, results[0].Severity)
		}
		if !results[0].Triggered {
			t.Error("result should be marked triggered")
		}
	})

	t.Run("HourOutOfRange", func(t *testing.T) {
		rec := cleanRecord()
		rec.HourOfDay = 99

		results := engine.EvaluateAll(context.Background(), rec)
		if len(results) != 1 || results[0].GuardID != "hour-out-of-range" {
			t.Errorf("expected hour-out-of-range guard, got %+v", results)
		}
	})

	t.Run("MultipleGuardsTrigger", func(t *testing.T) {
		rec := cleanRecord()
		rec.Amount = -1
		rec.VelocityScore = 1.5
		rec.IsOnline = 0.5

		results := engine.EvaluateAll(context.Background(), rec)
		if len(results) != 3 {
			t.Errorf("expected 3 triggered guards, got %d: %+v", len(results), results)
		}
	})

	t.Run("NoGuardsLoaded", func(t *testing.T) {
		empty := newTestEngine(t)
		if results := empty.EvaluateAll(context.Background(), cleanRecord()); results != nil {
			t.Errorf("expected nil results with no guards loaded, got %+v", results)
		}
	})
}

func TestLoadGuard(t *testing.T) {
	t.Run("ValidExpression", func(t *testing.T) {
		engine := newTestEngine(t)
		err := engine.LoadGuard(&domain.GuardConfig{
			ID:         "big-amount",
			Name:       "Big amount",
			Expression: "amount > 10000.0",
			Severity:   domain.SeverityWarn,
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("LoadGuard failed: %v", err)
		}
		if engine.GuardsCount() != 1 {
			t.Errorf("expected 1 loaded guard, got %d", engine.GuardsCount())
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		engine := newTestEngine(t)
		err := engine.LoadGuard(&domain.GuardConfig{
			ID:         "broken",
			Expression: "amount >>> 5",
		})
		if err == nil {
			t.Error("expected compile error for invalid expression")
		}
		if engine.GuardsCount() != 0 {
			t.Error("failed guard must not be loaded")
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		engine := newTestEngine(t)
		err := engine.LoadGuard(&domain.GuardConfig{
			ID:         "unknown-var",
			Expression: "no_such_field > 1.0",
		})
		if err == nil {
			t.Error("expected compile error for unknown variable")
		}
	})

	t.Run("RecordMapAccess", func(t *testing.T) {
		engine := newTestEngine(t)
		err := engine.LoadGuard(&domain.GuardConfig{
			ID:         "map-access",
			Expression: `record["amount"] > 50.0`,
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("LoadGuard failed: %v", err)
		}

		results := engine.EvaluateAll(context.Background(), cleanRecord())
		if len(results) != 1 || results[0].GuardID != "map-access" {
			t.Errorf("expected map-access guard to trigger, got %+v", results)
		}
	})
}

func TestValidateGuard(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("DoesNotLoad", func(t *testing.T) {
		err := engine.ValidateGuard(&domain.GuardConfig{
			ID:         "check-only",
			Expression: "amount > 1.0",
		})
		if err != nil {
			t.Fatalf("ValidateGuard failed: %v", err)
		}
		if engine.GuardsCount() != 0 {
			t.Error("ValidateGuard must not load the guard")
		}
	})

	t.Run("NilConfig", func(t *testing.T) {
		if err := engine.ValidateGuard(nil); err == nil {
			t.Error("expected error for nil config")
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		err := engine.ValidateGuard(&domain.GuardConfig{
			ID:         "bad",
			Expression: "((",
		})
		if err == nil {
			t.Error("expected error for invalid expression")
		}
	})
}

func TestReloadGuards(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.LoadGuards(DefaultGuards()); err != nil {
		t.Fatalf("LoadGuards failed: %v", err)
	}

	t.Run("ReplacesLoadedSet", func(t *testing.T) {
		err := engine.ReloadGuards([]*domain.GuardConfig{
			{
				ID:         "only-guard",
				Expression: "amount < 0.0",
				Enabled:    true,
			},
		})
		if err != nil {
			t.Fatalf("ReloadGuards failed: %v", err)
		}
		if engine.GuardsCount() != 1 {
			t.Errorf("expected 1 guard after reload, got %d", engine.GuardsCount())
		}
	})

	t.Run("SkipsDisabled", func(t *testing.T) {
		err := engine.ReloadGuards([]*domain.GuardConfig{
			{ID: "enabled", Expression: "amount < 0.0", Enabled: true},
			{ID: "disabled", Expression: "amount > 0.0", Enabled: false},
		})
		if err != nil {
			t.Fatalf("ReloadGuards failed: %v", err)
		}
		if engine.GuardsCount() != 1 {
			t.Errorf("expected disabled guard to be skipped, got %d loaded", engine.GuardsCount())
		}
	})

	t.Run("FailedReloadKeepsNothingPartial", func(t *testing.T) {
		err := engine.ReloadGuards([]*domain.GuardConfig{
			{ID: "ok", Expression: "amount < 0.0", Enabled: true},
			{ID: "broken", Expression: "((", Enabled: true},
		})
		if err == nil {
			t.Error("expected error for broken guard in reload set")
		}
	})
}

func TestDefaultGuards(t *testing.T) {
	engine := newTestEngine(t)
	guards := DefaultGuards()

	if len(guards) == 0 {
		t.Fatal("expected built-in guards")
	}
	for _, g := range guards {
		if !g.Enabled {
			t.Errorf("built-in guard %s should be enabled", g.ID)
		}
		if g.TenantID != "*" {
			t.Errorf("built-in guard %s should be global, got tenant %s", g.ID, g.TenantID)
		}
		if err := engine.ValidateGuard(g); err != nil {
			t.Errorf("built-in guard %s does not compile: %v", g.ID, err)
		}
	}
}

func TestEngineClose(t *testing.T) {
	engine := newTestEngine(t)
	if err := engine.LoadGuards(DefaultGuards()); err != nil {
		t.Fatalf("LoadGuards failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if engine.GuardsCount() != 0 {
		t.Error("Close should clear loaded guards")
	}
}
