package model

import "time"

type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanRepaid    LoanStatus = "repaid"
	LoanDefaulted LoanStatus = "defaulted"
)

// LoanRecord is a disbursed loan as the ledger knows it. Amount is the unpaid
// balance in currency units.
type LoanRecord struct {
	ID        string     `json:"id"`
	Wallet    string     `json:"wallet"`
	Amount    float64    `json:"amount"`
	Status    LoanStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}
