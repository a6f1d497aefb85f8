package model

// ApplyRequest is the body of POST /v1/loans/apply.
type ApplyRequest struct {
	Wallet        string  `json:"wallet_address"`
	LoanAmount    float64 `json:"loan_amount"`
	RepaymentTerm string  `json:"repayment_term"`
}

func (r ApplyRequest) Application() LoanApplication {
	return LoanApplication{
		Wallet:           r.Wallet,
		RequestedAmount:  r.LoanAmount,
		RepaymentTermKey: r.RepaymentTerm,
	}
}

// ScoreRequest is the body of POST /v1/score.
type ScoreRequest struct {
	Wallet   string         `json:"wallet_address,omitempty"`
	Features WalletFeatures `json:"features"`
}

// BatchScoreRequest is the body of POST /v1/score/batch.
type BatchScoreRequest struct {
	Items []ScoreRequest `json:"items" binding:"required"`
}

// BatchScoreItem is one line of a batch response; Error is set instead of
// Result when the item could not be scored.
type BatchScoreItem struct {
	Wallet string       `json:"wallet_address,omitempty"`
	Result *ScoreResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// WalletScoreRequest carries the caller-declared income for POST /v1/wallets/:wallet/score.
type WalletScoreRequest struct {
	MonthlyIncome float64 `json:"monthly_income" binding:"gte=0"`
	Debt          float64 `json:"debt" binding:"gte=0"`
}

// WalletScoreResponse pairs the aggregated features with their score.
type WalletScoreResponse struct {
	Record *FeatureRecord `json:"record"`
	Score  *ScoreResult   `json:"score"`
}

// RecalcRequest is the body of POST /v1/score/recalculate.
type RecalcRequest struct {
	Wallet        string  `json:"wallet_address" binding:"required"`
	EventType     string  `json:"event_type"`
	MonthlyIncome float64 `json:"monthly_income" binding:"gte=0"`
	Debt          float64 `json:"debt" binding:"gte=0"`
}

// RecalcAccepted acknowledges a queued recalculation.
type RecalcAccepted struct {
	JobID     string `json:"job_id"`
	Wallet    string `json:"wallet_address"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
}
