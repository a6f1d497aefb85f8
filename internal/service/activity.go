package service

import (
	"math"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/money"
)

const (
	// MaxActivitySignatures caps how many recent signatures are inspected.
	MaxActivitySignatures = 500
	ActivityWindow        = 30 * 24 * time.Hour
)

// ComputeActivityStats summarises signature times seen in the 30 days before now.
func ComputeActivityStats(stamps []time.Time, now time.Time) model.ActivityStats {
	cutoff := now.Add(-ActivityWindow)
	days := make(map[string]struct{})
	count := 0
	for _, ts := range stamps {
		if ts.Before(cutoff) || ts.After(now) {
			continue
		}
		count++
		days[ts.UTC().Format("2006-01-02")] = struct{}{}
	}

	activeDays := len(days)
	avg := 0.0
	if activeDays > 0 {
		avg = money.Round2(float64(count) / float64(activeDays))
	}
	regularity := math.Min(float64(activeDays)*3+avg*10, 100)

	return model.ActivityStats{
		ActiveDaysLast30:        activeDays,
		AvgTxPerActiveDay:       avg,
		ActivityRegularityScore: int(math.Round(regularity)),
		SignaturesConsidered:    count,
	}
}
