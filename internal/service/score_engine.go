package service

import "github.com/tigertrust/lendgate/internal/model"

const (
	MinTrustScore = 0
	MaxTrustScore = 1000

	scoreBase = 300

	// MaxHistoryCount bounds successful_repayments and defaults. Larger counts
	// saturate; at this size either term alone already pins the score.
	MaxHistoryCount = 1_000_000
)

// ComputeScore applies the additive point model to f. The full sum is taken
// before clamping to [0, 1000]. Only non-zero terms appear in Factors.
func ComputeScore(f model.WalletFeatures) model.ScoreResult {
	factors := []model.ScoreFactor{{Name: "base", Points: scoreBase}}
	add := func(name string, points int) {
		if points != 0 {
			factors = append(factors, model.ScoreFactor{Name: name, Points: points})
		}
	}

	if f.HumanVerified {
		add("human_verified", 80)
	}
	if f.WalletAgeDays > 180 {
		add("wallet_age", 40)
	}
	if f.TransactionCount > 100 {
		add("transaction_count", 40)
	}
	if f.NFTCount > 0 {
		add("nft_holder", 20)
	}
	add("successful_repayments", saturate(f.SuccessfulRepayments)*60)
	add("defaults", -saturate(f.Defaults)*120)
	if f.HasVerifiedCredential {
		add("verified_credential", 30)
	}
	if f.ActivityRegularityScore != nil && *f.ActivityRegularityScore > 40 {
		add("activity_regularity", 40)
	}

	sum := 0
	for _, factor := range factors {
		sum += factor.Points
	}
	score := clampScore(sum)

	return model.ScoreResult{
		Score:        score,
		Label:        ScoreLabel(score),
		RiskCategory: RiskCategory(score),
		Factors:      factors,
	}
}

func saturate(n int) int {
	if n > MaxHistoryCount {
		return MaxHistoryCount
	}
	return n
}

func clampScore(v int) int {
	if v < MinTrustScore {
		return MinTrustScore
	}
	if v > MaxTrustScore {
		return MaxTrustScore
	}
	return v
}

// ScoreLabel names the band a score falls in.
func ScoreLabel(score int) string {
	switch {
	case score >= 850:
		return "Diamond"
	case score >= 700:
		return "Platinum"
	case score >= 500:
		return "Gold"
	case score >= 300:
		return "Silver"
	default:
		return "Bronze"
	}
}

// RiskCategory uses the same cut points as ScoreLabel.
func RiskCategory(score int) string {
	switch {
	case score >= 850:
		return "Very Low"
	case score >= 700:
		return "Low"
	case score >= 500:
		return "Medium"
	case score >= 300:
		return "Medium-High"
	default:
		return "High"
	}
}
