package model

import "time"

// BorrowerProfile is owned by the identity store. The lending core only reads it.
type BorrowerProfile struct {
	Wallet           string    `json:"wallet"`
	TrustScore       int       `json:"trust_score"`
	TierLevel        int       `json:"tier_level"`
	DID              string    `json:"did"`
	VerificationHash string    `json:"verification_hash,omitempty"`
	CredentialCount  int       `json:"credential_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsVerified reports whether the borrower completed identity verification.
func (p *BorrowerProfile) IsVerified() bool {
	return p != nil && p.VerificationHash != ""
}

// BorrowerSummary is the borrower block embedded in approvals and eligibility reports.
type BorrowerSummary struct {
	TrustScore        int      `json:"trust_score"`
	ScoreLabel        string   `json:"score_label"`
	VerifiedIncome    float64  `json:"verified_income"`
	OutstandingDebt   float64  `json:"outstanding_debt"`
	CurrentDTIPercent *float64 `json:"current_dti_percent"`
}
