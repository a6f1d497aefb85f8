package service

import "github.com/tigertrust/lendgate/internal/model"

// ResolveTier returns the highest tier whose MinScore <= score. ok is false
// when the score is below every tier.
func ResolveTier(table *model.TierTable, score int) (tier model.LoanTier, ok bool) {
	if table == nil {
		return model.LoanTier{}, false
	}
	for i := table.Len() - 1; i >= 0; i-- {
		if t := table.At(i); t.MinScore <= score {
			return t, true
		}
	}
	return model.LoanTier{}, false
}
