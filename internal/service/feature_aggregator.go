package service

import (
	"context"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"golang.org/x/sync/errgroup"
)

// FeatureAggregator merges chain statistics, repayment reputation and
// caller-declared income into one FeatureRecord.
type FeatureAggregator struct {
	chain          ChainReader
	reputation     ReputationSource
	timeout        time.Duration
	signatureLimit int
	now            func() time.Time
}

func NewFeatureAggregator(chain ChainReader, reputation ReputationSource, timeout time.Duration) *FeatureAggregator {
	return &FeatureAggregator{
		chain:          chain,
		reputation:     reputation,
		timeout:        timeout,
		signatureLimit: MaxActivitySignatures,
		now:            time.Now,
	}
}

// WithClock replaces the clock used for the 30-day activity window.
func (a *FeatureAggregator) WithClock(now func() time.Time) *FeatureAggregator {
	a.now = now
	return a
}

// WithSignatureLimit lowers the number of recent signatures inspected.
// Values outside 1..500 are ignored.
func (a *FeatureAggregator) WithSignatureLimit(limit int) *FeatureAggregator {
	if limit > 0 && limit <= MaxActivitySignatures {
		a.signatureLimit = limit
	}
	return a
}

// Aggregate fetches everything in parallel. Any failed read fails the whole
// aggregation; a partial record is never returned.
func (a *FeatureAggregator) Aggregate(ctx context.Context, wallet string, monthlyIncome, debt float64) (*model.FeatureRecord, error) {
	wallet, err := model.NormalizeWallet(wallet)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(err.Error())
	}

	var (
		activity   model.WalletActivity
		holdings   model.Holdings
		stamps     []time.Time
		reputation model.Reputation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := boundedContext(gctx, a.timeout)
		defer cancel()
		var err error
		if activity, err = a.chain.FetchWalletActivity(cctx, wallet); err != nil {
			return upstreamError(SourceChain, err)
		}
		return nil
	})
	g.Go(func() error {
		cctx, cancel := boundedContext(gctx, a.timeout)
		defer cancel()
		var err error
		if holdings, err = a.chain.FetchHoldings(cctx, wallet); err != nil {
			return upstreamError(SourceChain, err)
		}
		return nil
	})
	g.Go(func() error {
		cctx, cancel := boundedContext(gctx, a.timeout)
		defer cancel()
		var err error
		if stamps, err = a.chain.FetchRecentActivity(cctx, wallet, a.signatureLimit); err != nil {
			return upstreamError(SourceChain, err)
		}
		return nil
	})
	if a.reputation != nil {
		g.Go(func() error {
			cctx, cancel := boundedContext(gctx, a.timeout)
			defer cancel()
			var err error
			if reputation, err = a.reputation.FetchReputation(cctx, wallet); err != nil {
				return upstreamError(SourceReputation, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := a.now()
	stats := ComputeActivityStats(stamps, now)
	activeDays := stats.ActiveDaysLast30
	avg := stats.AvgTxPerActiveDay
	regularity := stats.ActivityRegularityScore

	return &model.FeatureRecord{
		Wallet:   wallet,
		Activity: stats,
		Features: model.WalletFeatures{
			TransactionCount:        activity.TxCount,
			WalletAgeDays:           activity.WalletAgeDays,
			NFTCount:                holdings.NFTCount,
			TokenCount:              holdings.TokenCount,
			SuccessfulRepayments:    reputation.SuccessfulRepayments,
			Defaults:                reputation.Defaults,
			HumanVerified:           reputation.HumanVerified,
			HasVerifiedCredential:   reputation.HasVerifiedCredential,
			ActiveDaysLast30:        &activeDays,
			AvgTxPerActiveDay:       &avg,
			ActivityRegularityScore: &regularity,
		},
		Income:      model.NewIncomeFeatures(monthlyIncome, debt),
		CollectedAt: now.UTC(),
	}, nil
}
