package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/metrics"
)

// ErrProfileNotFound is returned by a ProfileStore when no profile exists.
var ErrProfileNotFound = errors.New("borrower profile not found")

// ChainReader reads wallet statistics from the chain.
type ChainReader interface {
	FetchWalletActivity(ctx context.Context, wallet string) (model.WalletActivity, error)
	FetchHoldings(ctx context.Context, wallet string) (model.Holdings, error)
	// FetchRecentActivity returns block times of up to limit recent
	// signatures, newest first.
	FetchRecentActivity(ctx context.Context, wallet string, limit int) ([]time.Time, error)
}

type ProfileStore interface {
	FetchProfile(ctx context.Context, wallet string) (*model.BorrowerProfile, error)
}

// DebtSource sums active loan balances in currency units.
type DebtSource interface {
	FetchOutstandingDebt(ctx context.Context, wallet string) (float64, error)
}

// ApplicationHistory counts loan applications over a rolling 24h window.
type ApplicationHistory interface {
	FetchApplicationCount24h(ctx context.Context, wallet string) (int, error)
	RecordApplication(ctx context.Context, wallet string, at time.Time) error
}

type IncomeOracle interface {
	VerifiedIncome(ctx context.Context, profile *model.BorrowerProfile) (float64, error)
}

type ReputationSource interface {
	FetchReputation(ctx context.Context, wallet string) (model.Reputation, error)
}

// Upstream source names, used as metric labels and in error messages.
const (
	SourceChain      = "chain"
	SourceProfile    = "profile_store"
	SourceDebt       = "debt_source"
	SourceHistory    = "application_history"
	SourceIncome     = "income_oracle"
	SourceReputation = "reputation"
)

// upstreamError counts the failure and hides the cause behind an AppError.
func upstreamError(source string, err error) error {
	metrics.UpstreamErrors.WithLabelValues(source).Inc()
	return apperrors.NewUpstream(source, err)
}

// boundedContext applies the per-call upstream timeout. A non-positive
// timeout only inherits the caller's deadline.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// ProfileIncomeOracle derives a monthly income from a verified profile:
// Floor + PerPoint*trustScore, capped at Cap. Unverified profiles earn 0.
type ProfileIncomeOracle struct {
	Floor    float64
	PerPoint float64
	Cap      float64
}

func (o ProfileIncomeOracle) VerifiedIncome(_ context.Context, profile *model.BorrowerProfile) (float64, error) {
	if !profile.IsVerified() {
		return 0, nil
	}
	income := o.Floor + o.PerPoint*float64(profile.TrustScore)
	if o.Cap > 0 {
		income = math.Min(income, o.Cap)
	}
	return math.Max(income, 0), nil
}
