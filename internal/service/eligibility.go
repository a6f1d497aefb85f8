package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/money"
)

// BorrowerFinancials is what the eligibility gates need about one borrower.
type BorrowerFinancials struct {
	Profile         *model.BorrowerProfile
	VerifiedIncome  float64
	OutstandingDebt float64
}

// DTI is debt over verified income. Zero income yields +Inf, which exceeds
// every tier ceiling.
func (f BorrowerFinancials) DTI() float64 {
	return DebtToIncome(f.OutstandingDebt, f.VerifiedIncome)
}

func DebtToIncome(debt, income float64) float64 {
	if income <= 0 {
		return math.Inf(1)
	}
	return debt / income
}

// DTIPercent renders a ratio as a percentage with one decimal. It returns nil
// for an undefined ratio so JSON shows null.
func DTIPercent(ratio float64) *float64 {
	if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil
	}
	pct := money.Round1(ratio * 100)
	return &pct
}

// MaxEligibleAmount is min(tier cap, floor(score*0.8), floor(income*0.3)).
func MaxEligibleAmount(tier model.LoanTier, trustScore int, verifiedIncome float64) float64 {
	scoreCap := float64(trustScore * 8 / 10)
	if trustScore < 0 {
		scoreCap = 0
	}
	incomeCap := money.FloorShare(math.Max(verifiedIncome, 0), 3, 10)
	return math.Min(tier.MaxLoanLimit, math.Min(scoreCap, incomeCap))
}

// EligibilityCalculator loads a borrower's profile, debt and verified income.
type EligibilityCalculator struct {
	profiles ProfileStore
	debts    DebtSource
	income   IncomeOracle
	timeout  time.Duration
}

func NewEligibilityCalculator(profiles ProfileStore, debts DebtSource, income IncomeOracle, timeout time.Duration) *EligibilityCalculator {
	return &EligibilityCalculator{profiles: profiles, debts: debts, income: income, timeout: timeout}
}

// Load reads the profile and the debt concurrently, then asks the income
// oracle. A missing profile is reported as ErrProfileNotFound even when the
// debt read failed too.
func (c *EligibilityCalculator) Load(ctx context.Context, wallet string) (*BorrowerFinancials, error) {
	var (
		wg         sync.WaitGroup
		profile    *model.BorrowerProfile
		debt       float64
		profileErr error
		debtErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cctx, cancel := boundedContext(ctx, c.timeout)
		defer cancel()
		profile, profileErr = c.profiles.FetchProfile(cctx, wallet)
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := boundedContext(ctx, c.timeout)
		defer cancel()
		debt, debtErr = c.debts.FetchOutstandingDebt(cctx, wallet)
	}()
	wg.Wait()

	if profileErr != nil {
		if errors.Is(profileErr, ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, upstreamError(SourceProfile, profileErr)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if debtErr != nil {
		return nil, upstreamError(SourceDebt, debtErr)
	}

	cctx, cancel := boundedContext(ctx, c.timeout)
	defer cancel()
	income, err := c.income.VerifiedIncome(cctx, profile)
	if err != nil {
		return nil, upstreamError(SourceIncome, err)
	}

	return &BorrowerFinancials{
		Profile:         profile,
		VerifiedIncome:  math.Max(income, 0),
		OutstandingDebt: math.Max(debt, 0),
	}, nil
}
