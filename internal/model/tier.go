package model

import (
	"errors"
	"fmt"
	"sort"
)

// LoanTier is one row of the lending configuration.
type LoanTier struct {
	Level                    int     `json:"level" mapstructure:"level"`
	MinScore                 int     `json:"min_score" mapstructure:"min_score"`
	MaxLoanLimit             float64 `json:"max_loan_limit" mapstructure:"max_loan_limit"`
	BaseInterestRate         float64 `json:"base_interest_rate" mapstructure:"base_interest_rate"` // percent per year
	MaxDTIRatio              float64 `json:"max_dti_ratio" mapstructure:"max_dti_ratio"`
	ApplicationVelocityLimit int     `json:"application_velocity_limit" mapstructure:"application_velocity_limit"`
	Description              string  `json:"description" mapstructure:"description"`
}

// TierSummary is the short form embedded in decisions.
type TierSummary struct {
	Level       int    `json:"level"`
	Description string `json:"description"`
}

func (t LoanTier) Summary() TierSummary {
	return TierSummary{Level: t.Level, Description: t.Description}
}

// TierTable is an immutable, versioned tier configuration ordered by MinScore
// ascending. Build it with NewTierTable; the zero value has no tiers.
type TierTable struct {
	version string
	tiers   []LoanTier
}

// NewTierTable validates and freezes a copy of tiers.
func NewTierTable(version string, tiers []LoanTier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, errors.New("tier table is empty")
	}
	sorted := make([]LoanTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	seenLevel := make(map[int]bool, len(sorted))
	for i, t := range sorted {
		if seenLevel[t.Level] {
			return nil, fmt.Errorf("duplicate tier level %d", t.Level)
		}
		seenLevel[t.Level] = true
		if t.MinScore < 0 || t.MinScore > 1000 {
			return nil, fmt.Errorf("tier %d: min_score %d outside 0-1000", t.Level, t.MinScore)
		}
		if i > 0 && t.MinScore == sorted[i-1].MinScore {
			return nil, fmt.Errorf("tier %d: min_score %d shared with tier %d", t.Level, t.MinScore, sorted[i-1].Level)
		}
		if t.MaxLoanLimit <= 0 {
			return nil, fmt.Errorf("tier %d: max_loan_limit must be positive", t.Level)
		}
		if t.BaseInterestRate < 0 {
			return nil, fmt.Errorf("tier %d: base_interest_rate must not be negative", t.Level)
		}
		if t.MaxDTIRatio < 0 || t.MaxDTIRatio > 1 {
			return nil, fmt.Errorf("tier %d: max_dti_ratio %.2f outside 0-1", t.Level, t.MaxDTIRatio)
		}
		if t.ApplicationVelocityLimit < 0 {
			return nil, fmt.Errorf("tier %d: application_velocity_limit must not be negative", t.Level)
		}
	}
	if version == "" {
		version = "unversioned"
	}
	return &TierTable{version: version, tiers: sorted}, nil
}

// DefaultTierTable is the stock four-tier configuration.
func DefaultTierTable() *TierTable {
	table, err := NewTierTable("2024-default", DefaultTiers())
	if err != nil {
		panic(err)
	}
	return table
}

func DefaultTiers() []LoanTier {
	return []LoanTier{
		{Level: 0, MinScore: 0, MaxLoanLimit: 50, BaseInterestRate: 15, MaxDTIRatio: 0.20, ApplicationVelocityLimit: 3, Description: "Entry-level micro-loan"},
		{Level: 1, MinScore: 200, MaxLoanLimit: 150, BaseInterestRate: 10, MaxDTIRatio: 0.30, ApplicationVelocityLimit: 2, Description: "Intermediate borrower"},
		{Level: 2, MinScore: 400, MaxLoanLimit: 500, BaseInterestRate: 7, MaxDTIRatio: 0.40, ApplicationVelocityLimit: 1, Description: "Trusted borrower"},
		{Level: 3, MinScore: 600, MaxLoanLimit: 1000, BaseInterestRate: 5, MaxDTIRatio: 0.50, ApplicationVelocityLimit: 1, Description: "Elite borrower"},
	}
}

func (t *TierTable) Version() string {
	return t.version
}

// Tiers returns a copy in ascending MinScore order.
func (t *TierTable) Tiers() []LoanTier {
	out := make([]LoanTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

func (t *TierTable) Len() int {
	return len(t.tiers)
}

// At returns the i-th tier in ascending order.
func (t *TierTable) At(i int) LoanTier {
	return t.tiers[i]
}

// Lowest returns the tier with the smallest MinScore.
func (t *TierTable) Lowest() LoanTier {
	return t.tiers[0]
}
