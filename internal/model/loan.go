package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LoanApplication is one request for credit.
type LoanApplication struct {
	Wallet           string  `json:"wallet_address"`
	RequestedAmount  float64 `json:"loan_amount"`
	RepaymentTermKey string  `json:"repayment_term"`
}

// RepaymentTerms maps the accepted term keys to a number of days.
type RepaymentTerms map[string]int

func DefaultRepaymentTerms() RepaymentTerms {
	return RepaymentTerms{
		"7_days":  7,
		"15_days": 15,
		"30_days": 30,
		"60_days": 60,
		"90_days": 90,
	}
}

// Days looks up a term key.
func (r RepaymentTerms) Days(key string) (int, bool) {
	days, ok := r[key]
	return days, ok && days > 0
}

// Keys returns the term keys ordered by duration.
func (r RepaymentTerms) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if r[keys[i]] == r[keys[j]] {
			return keys[i] < keys[j]
		}
		return r[keys[i]] < r[keys[j]]
	})
	return keys
}

func (r RepaymentTerms) String() string {
	return strings.Join(r.Keys(), ", ")
}

type ReasonCode string

const (
	ReasonInvalidInput       ReasonCode = "InvalidInput"
	ReasonProfileNotFound    ReasonCode = "ProfileNotFound"
	ReasonInsufficientScore  ReasonCode = "InsufficientScore"
	ReasonInsufficientIncome ReasonCode = "InsufficientIncome"
	ReasonHighDebtToIncome   ReasonCode = "HighDebtToIncome"
	ReasonVelocityExceeded   ReasonCode = "VelocityExceeded"
	ReasonAmountTooLow       ReasonCode = "AmountTooLow"
)

// Rejection is a business decline. It is a normal outcome, not a fault.
type Rejection struct {
	Reason  ReasonCode `json:"reason_code"`
	Message string     `json:"message"`
}

func Reject(reason ReasonCode, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (r *Rejection) Error() string {
	return string(r.Reason) + ": " + r.Message
}

// LoanTerms is the binding offer returned with an approval. Currency figures
// are rounded to two decimals.
type LoanTerms struct {
	ApprovedAmount  float64         `json:"approved_amount"`
	RequestedAmount float64         `json:"requested_amount"`
	InterestRate    float64         `json:"interest_rate"`
	RepaymentTerm   string          `json:"repayment_term"`
	RepaymentDays   int             `json:"repayment_days"`
	InterestAmount  float64         `json:"interest_amount"`
	TotalRepayment  float64         `json:"total_repayment_amount"`
	DailyPayment    float64         `json:"daily_payment"`
	DueTimestamp    int64           `json:"repayment_due_date"`
	Tier            TierSummary     `json:"tier"`
	Borrower        BorrowerSummary `json:"borrower_info"`
}

// LoanDecision carries exactly one of Terms or Rejection.
type LoanDecision struct {
	ID        string     `json:"decision_id"`
	Wallet    string     `json:"wallet_address"`
	Approved  bool       `json:"success"`
	Terms     *LoanTerms `json:"proposed_terms,omitempty"`
	Rejection *Rejection `json:"rejection,omitempty"`
	DecidedAt time.Time  `json:"decided_at"`
}

func NewApproval(id, wallet string, terms *LoanTerms, at time.Time) *LoanDecision {
	return &LoanDecision{ID: id, Wallet: wallet, Approved: true, Terms: terms, DecidedAt: at}
}

func NewRejection(id, wallet string, rej *Rejection, at time.Time) *LoanDecision {
	return &LoanDecision{ID: id, Wallet: wallet, Rejection: rej, DecidedAt: at}
}

// ReasonLabel is the metrics label for the decision.
func (d *LoanDecision) ReasonLabel() string {
	if d.Rejection == nil {
		return ""
	}
	return string(d.Rejection.Reason)
}

// EligibilityReport previews borrowing power without submitting an application.
// Fields are filled up to the gate that stopped the evaluation.
type EligibilityReport struct {
	Wallet              string       `json:"wallet_address"`
	TrustScore          int          `json:"trust_score"`
	ScoreLabel          string       `json:"score_label,omitempty"`
	Tier                *TierSummary `json:"tier,omitempty"`
	MaxEligibleAmount   float64      `json:"max_eligible_amount"`
	VerifiedIncome      float64      `json:"verified_income"`
	OutstandingDebt     float64      `json:"outstanding_debt"`
	CurrentDTIPercent   *float64     `json:"current_dti_percent"`
	ApplicationsLast24h int          `json:"applications_last_24h"`
	IsEligible          bool         `json:"is_eligible"`
	Rejection           *Rejection   `json:"rejection,omitempty"`
}
