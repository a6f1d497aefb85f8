package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
	"github.com/tigertrust/lendgate/internal/pkg/metrics"
	"github.com/tigertrust/lendgate/internal/pkg/money"
)

// LendingRules are the global limits applied on top of the tier table.
type LendingRules struct {
	MinMonthlyIncome float64
	MinLoanAmount    float64
	Terms            model.RepaymentTerms
}

func DefaultLendingRules() LendingRules {
	return LendingRules{
		MinMonthlyIncome: 100,
		MinLoanAmount:    10,
		Terms:            model.DefaultRepaymentTerms(),
	}
}

// DecisionPipeline turns a loan application into approved terms or a
// reasoned rejection. Gates run in a fixed order and the first failing gate
// decides; nothing is retried and nothing is written.
type DecisionPipeline struct {
	tiers       *model.TierTable
	rules       LendingRules
	eligibility *EligibilityCalculator
	history     ApplicationHistory
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
}

func NewDecisionPipeline(tiers *model.TierTable, rules LendingRules, eligibility *EligibilityCalculator, history ApplicationHistory, timeout time.Duration) *DecisionPipeline {
	if rules.Terms == nil {
		rules.Terms = model.DefaultRepaymentTerms()
	}
	return &DecisionPipeline{
		tiers:       tiers,
		rules:       rules,
		eligibility: eligibility,
		history:     history,
		timeout:     timeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (p *DecisionPipeline) WithClock(now func() time.Time) *DecisionPipeline {
	p.now = now
	return p
}

func (p *DecisionPipeline) WithIDGenerator(newID func() string) *DecisionPipeline {
	p.newID = newID
	return p
}

// Tiers returns the injected tier table.
func (p *DecisionPipeline) Tiers() *model.TierTable {
	return p.tiers
}

func (p *DecisionPipeline) Terms() model.RepaymentTerms {
	return p.rules.Terms
}

// assessment carries what gates 2-7 learned, filled up to the gate that stopped.
type assessment struct {
	financials   *BorrowerFinancials
	tier         model.LoanTier
	hasTier      bool
	dti          float64
	applications int
	maxEligible  float64
}

// ApplyForLoan runs every gate. The error is non-nil only for system faults;
// business declines come back as a rejected decision.
func (p *DecisionPipeline) ApplyForLoan(ctx context.Context, app model.LoanApplication) (*model.LoanDecision, error) {
	decidedAt := p.now()

	// 1. 输入校验
	wallet, days, rej := p.validate(app)
	if rej != nil {
		return p.reject(app.Wallet, rej, decidedAt), nil
	}

	a, rej, err := p.assess(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return p.reject(wallet, rej, decidedAt), nil
	}

	// 8. 计算还款条款 (simple interest, rounded only on output)
	// approved is floored to cents so it never exceeds the request
	approved := money.FloorCents(math.Min(app.RequestedAmount, a.maxEligible))
	interest := approved * a.tier.BaseInterestRate * float64(days) / (100 * 365)
	total := approved + interest
	daily := total / float64(days)

	terms := &model.LoanTerms{
		ApprovedAmount:  approved,
		RequestedAmount: app.RequestedAmount,
		InterestRate:    a.tier.BaseInterestRate,
		RepaymentTerm:   app.RepaymentTermKey,
		RepaymentDays:   days,
		InterestAmount:  money.Round2(interest),
		TotalRepayment:  money.Round2(total),
		DailyPayment:    money.Round2(daily),
		DueTimestamp:    decidedAt.Unix() + int64(days)*86400,
		Tier:            a.tier.Summary(),
		Borrower:        borrowerSummary(a),
	}

	decision := model.NewApproval(p.newID(), wallet, terms, decidedAt.UTC())
	metrics.Decisions.WithLabelValues("approved", "").Inc()
	logger.Info("loan approved",
		"decision_id", decision.ID,
		"wallet", wallet,
		"tier", a.tier.Level,
		"approved_amount", terms.ApprovedAmount,
		"repayment_days", days,
	)
	return decision, nil
}

// CheckEligibility previews borrowing power by running gates 2-7 without
// building terms.
func (p *DecisionPipeline) CheckEligibility(ctx context.Context, wallet string) (*model.EligibilityReport, error) {
	wallet, err := model.NormalizeWallet(wallet)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(err.Error())
	}

	a, rej, err := p.assess(ctx, wallet)
	if err != nil {
		return nil, err
	}

	report := &model.EligibilityReport{
		Wallet:              wallet,
		MaxEligibleAmount:   a.maxEligible,
		ApplicationsLast24h: a.applications,
		IsEligible:          rej == nil,
		Rejection:           rej,
	}
	if a.financials != nil {
		summary := borrowerSummary(a)
		report.TrustScore = summary.TrustScore
		report.ScoreLabel = summary.ScoreLabel
		report.VerifiedIncome = summary.VerifiedIncome
		report.OutstandingDebt = summary.OutstandingDebt
		report.CurrentDTIPercent = summary.CurrentDTIPercent
	}
	if a.hasTier {
		tier := a.tier.Summary()
		report.Tier = &tier
	}
	return report, nil
}

func (p *DecisionPipeline) validate(app model.LoanApplication) (string, int, *model.Rejection) {
	wallet, err := model.NormalizeWallet(app.Wallet)
	if err != nil {
		return "", 0, model.Reject(model.ReasonInvalidInput, "%s", err.Error())
	}
	if math.IsNaN(app.RequestedAmount) || math.IsInf(app.RequestedAmount, 0) || money.FloorCents(app.RequestedAmount) <= 0 {
		return "", 0, model.Reject(model.ReasonInvalidInput, "Invalid loan amount. Must be a positive number.")
	}
	days, ok := p.rules.Terms.Days(app.RepaymentTermKey)
	if !ok {
		return "", 0, model.Reject(model.ReasonInvalidInput, "Invalid repayment term %q. Supported: %s", app.RepaymentTermKey, p.rules.Terms)
	}
	return wallet, days, nil
}

func (p *DecisionPipeline) assess(ctx context.Context, wallet string) (*assessment, *model.Rejection, error) {
	a := &assessment{}

	// 2. Profile
	fin, err := p.eligibility.Load(ctx, wallet)
	if errors.Is(err, ErrProfileNotFound) {
		return a, model.Reject(model.ReasonProfileNotFound, "No borrower profile for wallet %s. Complete identity verification first.", wallet), nil
	}
	if err != nil {
		return nil, nil, err
	}
	a.financials = fin
	a.dti = fin.DTI()
	score := fin.Profile.TrustScore

	// 3. Tier
	tier, ok := ResolveTier(p.tiers, score)
	if !ok {
		return a, model.Reject(model.ReasonInsufficientScore, "Insufficient trust score (%d). Minimum required: %d", score, p.tiers.Lowest().MinScore), nil
	}
	a.tier, a.hasTier = tier, true

	// 4. Income
	if fin.VerifiedIncome < p.rules.MinMonthlyIncome {
		return a, model.Reject(model.ReasonInsufficientIncome, "Insufficient verified income (%s). Minimum required: %s/month",
			money.Format(fin.VerifiedIncome), money.Format(p.rules.MinMonthlyIncome)), nil
	}

	// 5. DTI, strictly greater than the ceiling
	if a.dti > tier.MaxDTIRatio {
		return a, model.Reject(model.ReasonHighDebtToIncome, "High debt-to-income ratio (%s). Maximum allowed: %s",
			money.Percent(a.dti), money.Percent(tier.MaxDTIRatio)), nil
	}

	// 6. Velocity
	cctx, cancel := boundedContext(ctx, p.timeout)
	count, err := p.history.FetchApplicationCount24h(cctx, wallet)
	cancel()
	if err != nil {
		return nil, nil, upstreamError(SourceHistory, err)
	}
	a.applications = count
	if count >= tier.ApplicationVelocityLimit {
		return a, model.Reject(model.ReasonVelocityExceeded, "Too many applications in the last 24 hours (%d). Tier %d allows %d",
			count, tier.Level, tier.ApplicationVelocityLimit), nil
	}

	// 7. Amount
	a.maxEligible = MaxEligibleAmount(tier, score, fin.VerifiedIncome)
	if a.maxEligible < p.rules.MinLoanAmount {
		return a, model.Reject(model.ReasonAmountTooLow, "Maximum approved amount (%s) is too low. Minimum loan: %s",
			money.Format(a.maxEligible), money.Format(p.rules.MinLoanAmount)), nil
	}
	return a, nil, nil
}

func (p *DecisionPipeline) reject(wallet string, rej *model.Rejection, at time.Time) *model.LoanDecision {
	decision := model.NewRejection(p.newID(), wallet, rej, at.UTC())
	metrics.Decisions.WithLabelValues("rejected", string(rej.Reason)).Inc()
	logger.Info("loan rejected",
		"decision_id", decision.ID,
		"wallet", wallet,
		"reason", rej.Reason,
		"message", rej.Message,
	)
	return decision
}

func borrowerSummary(a *assessment) model.BorrowerSummary {
	fin := a.financials
	return model.BorrowerSummary{
		TrustScore:        fin.Profile.TrustScore,
		ScoreLabel:        ScoreLabel(fin.Profile.TrustScore),
		VerifiedIncome:    money.Round2(fin.VerifiedIncome),
		OutstandingDebt:   money.Round2(fin.OutstandingDebt),
		CurrentDTIPercent: DTIPercent(a.dti),
	}
}
