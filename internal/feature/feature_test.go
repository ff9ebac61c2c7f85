package feature

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testRecord() *domain.Record {
	return &domain.Record{
		Amount:           120,
		HourOfDay:        14,
		DayOfWeek:        2,
		MerchantCategory: 5,
		NumTxn1h:         1,
		NumTxn24h:        4,
		AvgAmount30d:     85,
		DistanceFromHome: 12,
		IsOnline:         1,
		IsInternational:  0,
		CardPresent:      0,
		DaysSinceLastTxn: 1.5,
		CreditLimitUsed:  0.3,
		VelocityScore:    0.05,
		GeoRiskScore:     0.10,
	}
}

func TestNames(t *testing.T) {
	names := Names()

	if len(names) != 18 {
		t.Fatalf("expected 18 feature names, got %d", len(names))
	}

	for i, raw := range domain.RawFields {
		if names[i] != raw {
			t.Errorf("name %d: expected %s, got %s", i, raw, names[i])
		}
	}

	derived := names[len(domain.RawFields):]
	want := []string{NameAmountToAvgRatio, NameTxnBurst, NameRiskComposite}
	for i := range want {
		if derived[i] != want[i] {
			t.Errorf("derived name %d: expected %s, got %s", i, want[i], derived[i])
		}
	}
}

func TestEngineer(t *testing.T) {
	fields := Engineer(testRecord())

	if len(fields) != 18 {
		t.Fatalf("expected 18 engineered fields, got %d", len(fields))
	}

	cases := []struct {
		name string
		want float64
	}{
		{NameAmountToAvgRatio, 120.0 / 86.0},
		{NameTxnBurst, 1.0 / 5.0},
		{NameRiskComposite, 0.075},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fields[tc.name]; math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
			}
		})
	}

	t.Run("RawFieldsPassThrough", func(t *testing.T) {
		if fields[domain.FieldAmount] != 120 {
			t.Errorf("raw amount changed: got %v", fields[domain.FieldAmount])
		}
		if fields[domain.FieldVelocityScore] != 0.05 {
			t.Errorf("raw velocity score changed: got %v", fields[domain.FieldVelocityScore])
		}
	})
}

func TestVector(t *testing.T) {
	t.Run("CanonicalOrder", func(t *testing.T) {
		rec := testRecord()
		vec, err := Vector(rec, Names())
		if err != nil {
			t.Fatalf("Vector failed: %v", err)
		}
		if len(vec) != 18 {
			t.Fatalf("expected 18 values, got %d", len(vec))
		}
		if vec[0] != rec.Amount {
			t.Errorf("position 0 should be amount, got %v", vec[0])
		}
		if math.Abs(vec[17]-0.075) > 1e-12 {
			t.Errorf("position 17 should be risk composite 0.075, got %v", vec[17])
		}
	})

	t.Run("UnknownName", func(t *testing.T) {
		_, err := Vector(testRecord(), []string{"no_such_feature"})
		if err == nil {
			t.Fatal("expected error for unknown feature name")
		}
		var missing *domain.MissingFieldError
		if !errors.As(err, &missing) {
			t.Errorf("expected wrapped MissingFieldError, got %T", err)
		}
	})

	t.Run("CustomOrder", func(t *testing.T) {
		vec, err := Vector(testRecord(), []string{NameRiskComposite, domain.FieldAmount})
		if err != nil {
			t.Fatalf("Vector failed: %v", err)
		}
		if math.Abs(vec[0]-0.075) > 1e-12 || vec[1] != 120 {
			t.Errorf("unexpected vector %v", vec)
		}
	})
}

func TestMatrix(t *testing.T) {
	records := []domain.LabeledRecord{
		{Record: *testRecord(), Label: 0},
		{Record: *testRecord(), Label: 1},
	}

	x, y, err := Matrix(records, Names())
	if err != nil {
		t.Fatalf("Matrix failed: %v", err)
	}

	if len(x) != 2 || len(y) != 2 {
		t.Fatalf("expected 2 rows, got %d/%d", len(x), len(y))
	}
	if y[0] != 0 || y[1] != 1 {
		t.Errorf("labels not preserved: %v", y)
	}
	for i, row := range x {
		if len(row) != 18 {
			t.Errorf("row %d: expected 18 features, got %d", i, len(row))
		}
	}
}
