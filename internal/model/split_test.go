package model

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func labeledSet(nLegit, nFraud int) []domain.LabeledRecord {
	records := make([]domain.LabeledRecord, 0, nLegit+nFraud)
	for i := 0; i < nLegit; i++ {
		records = append(records, domain.LabeledRecord{
			Record: domain.Record{Amount: float64(i + 1)},
			Label:  0,
		})
	}
	for i := 0; i < nFraud; i++ {
		records = append(records, domain.LabeledRecord{
			Record: domain.Record{Amount: float64(1000 + i)},
			Label:  1,
		})
	}
	return records
}

func countLabels(records []domain.LabeledRecord) (legit, fraud int) {
	for _, r := range records {
		if r.Label == 1 {
			fraud++
		} else {
			legit++
		}
	}
	return legit, fraud
}

func TestStratifiedSplit(t *testing.T) {
	t.Run("PreservesClassProportions", func(t *testing.T) {
		train, test, err := StratifiedSplit(labeledSet(80, 20), 0.2, 42)
		if err != nil {
			t.Fatalf("StratifiedSplit failed: %v", err)
		}

		testLegit, testFraud := countLabels(test)
		if testLegit != 16 || testFraud != 4 {
			t.Errorf("test partition: expected 16 legit / 4 fraud, got %d/%d", testLegit, testFraud)
		}

		trainLegit, trainFraud := countLabels(train)
		if trainLegit != 64 || trainFraud != 16 {
			t.Errorf("train partition: expected 64 legit / 16 fraud, got %d/%d", trainLegit, trainFraud)
		}
	})

	t.Run("NoRecordLostOrDuplicated", func(t *testing.T) {
		records := labeledSet(50, 10)
		train, test, err := StratifiedSplit(records, 0.25, 7)
		if err != nil {
			t.Fatalf("StratifiedSplit failed: %v", err)
		}

		if len(train)+len(test) != len(records) {
			t.Fatalf("partition sizes %d + %d != %d", len(train), len(test), len(records))
		}

		seen := make(map[float64]int)
		for _, r := range append(append([]domain.LabeledRecord{}, train...), test...) {
			seen[r.Record.Amount]++
		}
		for amount, count := range seen {
			if count != 1 {
				t.Errorf("record with amount %v appears %d times", amount, count)
			}
		}
	})

	t.Run("DeterministicForSeed", func(t *testing.T) {
		records := labeledSet(40, 10)
		trainA, testA, err := StratifiedSplit(records, 0.2, 99)
		if err != nil {
			t.Fatalf("first split failed: %v", err)
		}
		trainB, testB, err := StratifiedSplit(labeledSet(40, 10), 0.2, 99)
		if err != nil {
			t.Fatalf("second split failed: %v", err)
		}

		for i := range trainA {
			if trainA[i] != trainB[i] {
				t.Fatalf("train partitions diverge at %d with identical seed", i)
			}
		}
		for i := range testA {
			if testA[i] != testB[i] {
				t.Fatalf("test partitions diverge at %d with identical seed", i)
			}
		}
	})

	t.Run("InvalidFraction", func(t *testing.T) {
		for _, frac := range []float64{0, 1, -0.5, 1.5} {
			if _, _, err := StratifiedSplit(labeledSet(10, 5), frac, 42); err == nil {
				t.Errorf("expected error for test fraction %v", frac)
			}
		}
	})
}
