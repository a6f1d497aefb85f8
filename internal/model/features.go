package model

import "time"

// WalletFeatures is the per-request input to the score engine. The three
// activity fields are optional and stay nil when no activity stats were
// collected.
type WalletFeatures struct {
	TransactionCount        int      `json:"transaction_count" binding:"gte=0"`
	WalletAgeDays           int      `json:"wallet_age_days" binding:"gte=0"`
	NFTCount                int      `json:"nft_count" binding:"gte=0"`
	TokenCount              int      `json:"token_count" binding:"gte=0"`
	SuccessfulRepayments    int      `json:"successful_repayments" binding:"gte=0,lte=1000000"`
	Defaults                int      `json:"defaults" binding:"gte=0,lte=1000000"`
	HumanVerified           bool     `json:"human_verified"`
	HasVerifiedCredential   bool     `json:"has_verified_credential"`
	ActiveDaysLast30        *int     `json:"active_days_last_30,omitempty" binding:"omitempty,gte=0,lte=30"`
	AvgTxPerActiveDay       *float64 `json:"avg_tx_per_active_day,omitempty" binding:"omitempty,gte=0"`
	ActivityRegularityScore *int     `json:"activity_regularity_score,omitempty" binding:"omitempty,gte=0,lte=100"`
}

type IncomeBracket string

const (
	IncomeLow  IncomeBracket = "low"
	IncomeMid  IncomeBracket = "mid"
	IncomeHigh IncomeBracket = "high"
)

// IncomeFeatures is derived from caller-declared income and debt.
type IncomeFeatures struct {
	MonthlyIncome   float64       `json:"monthly_income"`
	OutstandingDebt float64       `json:"outstanding_debt"`
	IncomeVerified  bool          `json:"income_verified"`
	IncomeBracket   IncomeBracket `json:"income_bracket"`
	IncomeDebtRatio float64       `json:"income_debt_ratio"`
}

// NewIncomeFeatures derives bracket and ratio. Negative inputs are clamped to 0.
func NewIncomeFeatures(monthlyIncome, debt float64) IncomeFeatures {
	if monthlyIncome < 0 {
		monthlyIncome = 0
	}
	if debt < 0 {
		debt = 0
	}
	ratio := monthlyIncome
	if debt > 0 {
		ratio = monthlyIncome / debt
	}
	return IncomeFeatures{
		MonthlyIncome:   monthlyIncome,
		OutstandingDebt: debt,
		IncomeVerified:  monthlyIncome > 0,
		IncomeBracket:   BracketFor(monthlyIncome),
		IncomeDebtRatio: ratio,
	}
}

func BracketFor(monthlyIncome float64) IncomeBracket {
	switch {
	case monthlyIncome < 2000:
		return IncomeLow
	case monthlyIncome <= 5000:
		return IncomeMid
	default:
		return IncomeHigh
	}
}

// FeatureRecord is the merged output of one aggregation. It is built once and
// never modified afterwards.
type FeatureRecord struct {
	Wallet      string         `json:"wallet"`
	Activity    ActivityStats  `json:"activity"`
	Features    WalletFeatures `json:"features"`
	Income      IncomeFeatures `json:"income"`
	CollectedAt time.Time      `json:"collected_at"`
}

// ActivityStats summarises signatures seen over the trailing 30 days.
type ActivityStats struct {
	ActiveDaysLast30        int     `json:"active_days_last_30"`
	AvgTxPerActiveDay       float64 `json:"avg_tx_per_active_day"`
	ActivityRegularityScore int     `json:"activity_regularity_score"`
	SignaturesConsidered    int     `json:"signatures_considered"`
}

// WalletActivity is what the chain reports about a wallet's history.
type WalletActivity struct {
	TxCount       int `json:"tx_count"`
	WalletAgeDays int `json:"wallet_age_days"`
}

// Holdings counts the token accounts a wallet owns.
type Holdings struct {
	TokenCount int `json:"token_count"`
	NFTCount   int `json:"nft_count"`
}

// Reputation is the off-chain borrowing history and verification state.
type Reputation struct {
	SuccessfulRepayments  int  `json:"successful_repayments"`
	Defaults              int  `json:"defaults"`
	HumanVerified         bool `json:"human_verified"`
	HasVerifiedCredential bool `json:"has_verified_credential"`
}
