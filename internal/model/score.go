package model

import "time"

// ScoreFactor is one term of the additive score model.
type ScoreFactor struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// ScoreResult is the outcome of ComputeScore.
type ScoreResult struct {
	Score        int           `json:"trust_score"`
	Label        string        `json:"tier"`
	RiskCategory string        `json:"risk_category"`
	Factors      []ScoreFactor `json:"factors"`
}

// ScoreEvent is pushed to stream subscribers when a recalculation finishes.
type ScoreEvent struct {
	JobID     string       `json:"job_id"`
	Wallet    string       `json:"wallet_address"`
	EventType string       `json:"event_type"`
	Result    *ScoreResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}
