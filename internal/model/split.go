package model

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// StratifiedSplit partitions records into train and test sets, preserving
// class proportions in both. The split is deterministic for a given seed.
func StratifiedSplit(records []domain.LabeledRecord, testFraction float64, seed uint64) (train, test []domain.LabeledRecord, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("invalid test fraction %v: must be in (0, 1)", testFraction)
	}

	byClass := make(map[int][]domain.LabeledRecord)
	for _, rec := range records {
		byClass[rec.Label] = append(byClass[rec.Label], rec)
	}

	rng := rand.New(rand.NewSource(seed))

	// Iterate classes in label order so the split is reproducible.
	for _, label := range []int{0, 1} {
		group := byClass[label]
		if len(group) == 0 {
			continue
		}
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		nTest := int(float64(len(group)) * testFraction)
		test = append(test, group[:nTest]...)
		train = append(train, group[nTest:]...)
	}

	// Re-shuffle so class runs from the per-class grouping do not survive
	// into the partitions.
	rng.Shuffle(len(train), func(i, j int) {
		train[i], train[j] = train[j], train[i]
	})
	rng.Shuffle(len(test), func(i, j int) {
		test[i], test[j] = test[j], test[i]
	})

	return train, test, nil
}
