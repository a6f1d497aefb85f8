package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
)

func TestComputeActivityStats(t *testing.T) {
	stamps := []time.Time{
		fixedNow.Add(-1 * time.Hour),
		fixedNow.Add(-2 * time.Hour),
		fixedNow.Add(-26 * time.Hour),
		fixedNow.Add(-31 * 24 * time.Hour), // outside the window
	}
	stats := ComputeActivityStats(stamps, fixedNow)
	assert.Equal(t, 2, stats.ActiveDaysLast30)
	assert.Equal(t, 3, stats.SignaturesConsidered)
	assert.Equal(t, 1.5, stats.AvgTxPerActiveDay)
	assert.Equal(t, 21, stats.ActivityRegularityScore) // 2*3 + 1.5*10
}

func TestComputeActivityStatsRoundsAverage(t *testing.T) {
	// 3 days, 10 signatures: 3.333... -> 3.33, score 9 + 33.3 = 42.3 -> 42
	var stamps []time.Time
	for i := 0; i < 4; i++ {
		stamps = append(stamps, fixedNow.Add(-time.Duration(i)*time.Minute))
	}
	for i := 0; i < 3; i++ {
		stamps = append(stamps, fixedNow.Add(-24*time.Hour-time.Duration(i)*time.Minute))
		stamps = append(stamps, fixedNow.Add(-48*time.Hour-time.Duration(i)*time.Minute))
	}
	stats := ComputeActivityStats(stamps, fixedNow)
	assert.Equal(t, 3, stats.ActiveDaysLast30)
	assert.Equal(t, 3.33, stats.AvgTxPerActiveDay)
	assert.Equal(t, 42, stats.ActivityRegularityScore)
}

func TestComputeActivityStatsCapsAt100(t *testing.T) {
	var stamps []time.Time
	for day := 0; day < 25; day++ {
		for n := 0; n < 10; n++ {
			stamps = append(stamps, fixedNow.Add(-time.Duration(day)*24*time.Hour-time.Duration(n)*time.Minute))
		}
	}
	stats := ComputeActivityStats(stamps, fixedNow)
	assert.Equal(t, 25, stats.ActiveDaysLast30)
	assert.Equal(t, 10.0, stats.AvgTxPerActiveDay)
	assert.Equal(t, 100, stats.ActivityRegularityScore)
}

func TestComputeActivityStatsEmpty(t *testing.T) {
	stats := ComputeActivityStats(nil, fixedNow)
	assert.Equal(t, model.ActivityStats{}, stats)
}

func newTestAggregator(chain *MemoryChainReader, profiles *MemoryProfileStore, ledger *MemoryLoanLedger) *FeatureAggregator {
	if ledger == nil {
		ledger = NewMemoryLoanLedger()
	}
	return NewFeatureAggregator(chain, NewReputationService(profiles, ledger), time.Second).
		WithClock(func() time.Time { return fixedNow })
}

func TestAggregateMergesAllSources(t *testing.T) {
	chain := NewMemoryChainReader()
	chain.Set(walletA,
		model.WalletActivity{TxCount: 240, WalletAgeDays: 400},
		model.Holdings{TokenCount: 5, NFTCount: 2},
		fixedNow.Add(-time.Hour), fixedNow.Add(-2*time.Hour), fixedNow.Add(-25*time.Hour),
	)
	profiles := NewMemoryProfileStore(&model.BorrowerProfile{Wallet: walletA, TrustScore: 500, VerificationHash: "h", CredentialCount: 2})
	ledger := NewMemoryLoanLedger()
	ledger.Add(model.LoanRecord{ID: "1", Wallet: walletA, Amount: 10, Status: model.LoanRepaid})
	ledger.Add(model.LoanRecord{ID: "2", Wallet: walletA, Amount: 10, Status: model.LoanRepaid})
	ledger.Add(model.LoanRecord{ID: "3", Wallet: walletA, Amount: 10, Status: model.LoanDefaulted})

	record, err := newTestAggregator(chain, profiles, ledger).Aggregate(context.Background(), walletA, 3000, 600)
	require.NoError(t, err)

	f := record.Features
	assert.Equal(t, walletA, record.Wallet)
	assert.Equal(t, 240, f.TransactionCount)
	assert.Equal(t, 400, f.WalletAgeDays)
	assert.Equal(t, 5, f.TokenCount)
	assert.Equal(t, 2, f.NFTCount)
	assert.Equal(t, 2, f.SuccessfulRepayments)
	assert.Equal(t, 1, f.Defaults)
	assert.True(t, f.HumanVerified)
	assert.True(t, f.HasVerifiedCredential)
	require.NotNil(t, f.ActiveDaysLast30)
	assert.Equal(t, 2, *f.ActiveDaysLast30)
	require.NotNil(t, f.ActivityRegularityScore)
	assert.Equal(t, 21, *f.ActivityRegularityScore)

	assert.Equal(t, model.IncomeMid, record.Income.IncomeBracket)
	assert.True(t, record.Income.IncomeVerified)
	assert.Equal(t, 5.0, record.Income.IncomeDebtRatio)
	assert.Equal(t, fixedNow, record.CollectedAt)
}

func TestAggregateFailsWholeOnChainError(t *testing.T) {
	chain := NewMemoryChainReader()
	chain.FailWith(errors.New("rpc 503"))

	record, err := newTestAggregator(chain, NewMemoryProfileStore(), NewMemoryLoanLedger()).
		Aggregate(context.Background(), walletA, 1000, 0)
	require.Error(t, err)
	assert.Nil(t, record)
	assert.True(t, apperrors.IsType(err, apperrors.ErrUpstream))
}

func TestAggregateUnknownWalletReadsEmpty(t *testing.T) {
	record, err := newTestAggregator(NewMemoryChainReader(), NewMemoryProfileStore(), NewMemoryLoanLedger()).
		Aggregate(context.Background(), walletB, 0, 0)
	require.NoError(t, err)
	assert.False(t, record.Features.HumanVerified)
	assert.Equal(t, 300, ComputeScore(record.Features).Score)
	assert.False(t, record.Income.IncomeVerified)
	assert.Equal(t, model.IncomeLow, record.Income.IncomeBracket)
}

func TestAggregateRejectsMalformedWallet(t *testing.T) {
	_, err := newTestAggregator(NewMemoryChainReader(), NewMemoryProfileStore(), nil).
		Aggregate(context.Background(), "0xnope", 0, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestAggregateRespectsSignatureLimit(t *testing.T) {
	chain := NewMemoryChainReader()
	var stamps []time.Time
	for i := 0; i < 10; i++ {
		stamps = append(stamps, fixedNow.Add(-time.Duration(i)*24*time.Hour))
	}
	chain.Set(walletA, model.WalletActivity{}, model.Holdings{}, stamps...)

	agg := newTestAggregator(chain, NewMemoryProfileStore(), nil).WithSignatureLimit(4)
	record, err := agg.Aggregate(context.Background(), walletA, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, record.Activity.SignaturesConsidered)
	assert.Equal(t, 4, record.Activity.ActiveDaysLast30)
}
