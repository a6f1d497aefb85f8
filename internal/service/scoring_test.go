package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
)

func newTestScoring(batchMax int) (*ScoringService, *MemoryChainReader) {
	chain := NewMemoryChainReader()
	agg := newTestAggregator(chain, NewMemoryProfileStore(), nil)
	return NewScoringService(agg, batchMax), chain
}

func TestScoreRejectsOutOfRangeFeatures(t *testing.T) {
	svc, _ := newTestScoring(0)

	_, err := svc.Score(model.WalletFeatures{Defaults: -1})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))

	_, err = svc.Score(model.WalletFeatures{ActivityRegularityScore: intPtr(101)})
	require.Error(t, err)

	result, err := svc.Score(model.WalletFeatures{HumanVerified: true})
	require.NoError(t, err)
	assert.Equal(t, 380, result.Score)
}

func TestScoreBatchReportsPerItemErrors(t *testing.T) {
	svc, _ := newTestScoring(10)

	items := []model.ScoreRequest{
		{Wallet: walletA, Features: model.WalletFeatures{SuccessfulRepayments: 3}},
		{Wallet: "bad wallet", Features: model.WalletFeatures{}},
		{Features: model.WalletFeatures{TransactionCount: -3}},
		{Features: model.WalletFeatures{}},
	}
	out, err := svc.ScoreBatch(items)
	require.NoError(t, err)
	require.Len(t, out, 4)

	require.NotNil(t, out[0].Result)
	assert.Equal(t, 480, out[0].Result.Score)
	assert.Equal(t, walletA, out[0].Wallet)

	assert.Nil(t, out[1].Result)
	assert.NotEmpty(t, out[1].Error)

	assert.Nil(t, out[2].Result)
	assert.Contains(t, out[2].Error, "transaction_count")

	require.NotNil(t, out[3].Result)
	assert.Equal(t, 300, out[3].Result.Score)
}

func TestScoreBatchLimits(t *testing.T) {
	svc, _ := newTestScoring(2)

	_, err := svc.ScoreBatch(nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))

	_, err = svc.ScoreBatch(make([]model.ScoreRequest, 3))
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestScoreWallet(t *testing.T) {
	svc, chain := newTestScoring(0)
	chain.Set(walletA, model.WalletActivity{TxCount: 150, WalletAgeDays: 200}, model.Holdings{NFTCount: 1})

	resp, err := svc.ScoreWallet(context.Background(), walletA, 2500, 0)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.Score.Score) // 300 + 40 + 40 + 20
	assert.Equal(t, "Silver", resp.Score.Label)
	assert.Equal(t, model.IncomeMid, resp.Record.Income.IncomeBracket)
}

type captureSink struct {
	events chan model.ScoreEvent
}

func (c *captureSink) Broadcast(event model.ScoreEvent) {
	c.events <- event
}

func TestRecalcWorkerScoresAndBroadcasts(t *testing.T) {
	svc, chain := newTestScoring(0)
	chain.Set(walletA, model.WalletActivity{TxCount: 101}, model.Holdings{})
	sink := &captureSink{events: make(chan model.ScoreEvent, 1)}

	worker := NewRecalcWorker(svc, sink, 2, 4)
	worker.Start(context.Background())
	defer worker.Stop()

	ack, err := worker.Enqueue(model.RecalcRequest{Wallet: walletA, EventType: "loan_repaid"})
	require.NoError(t, err)
	assert.Equal(t, "queued", ack.Status)
	assert.Equal(t, "loan_repaid", ack.EventType)
	assert.NotEmpty(t, ack.JobID)

	select {
	case event := <-sink.events:
		assert.Equal(t, ack.JobID, event.JobID)
		assert.Equal(t, walletA, event.Wallet)
		require.NotNil(t, event.Result)
		assert.Equal(t, 340, event.Result.Score)
		assert.Empty(t, event.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("no score event broadcast")
	}
}

func TestRecalcWorkerBroadcastsFailures(t *testing.T) {
	svc, chain := newTestScoring(0)
	chain.FailWith(os.ErrDeadlineExceeded)
	sink := &captureSink{events: make(chan model.ScoreEvent, 1)}

	worker := NewRecalcWorker(svc, sink, 1, 1)
	worker.Start(context.Background())
	defer worker.Stop()

	_, err := worker.Enqueue(model.RecalcRequest{Wallet: walletB})
	require.NoError(t, err)

	select {
	case event := <-sink.events:
		assert.Nil(t, event.Result)
		assert.Equal(t, "chain unavailable", event.Error)
		assert.Equal(t, "manual", event.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure event broadcast")
	}
}

func TestRecalcWorkerQueueFull(t *testing.T) {
	svc, _ := newTestScoring(0)
	worker := NewRecalcWorker(svc, nil, 1, 1) // not started, nothing drains

	_, err := worker.Enqueue(model.RecalcRequest{Wallet: walletA})
	require.NoError(t, err)

	_, err = worker.Enqueue(model.RecalcRequest{Wallet: walletA})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrQueueFull))

	_, err = worker.Enqueue(model.RecalcRequest{Wallet: "nope"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestRecalcWorkerRejectsAfterStop(t *testing.T) {
	svc, _ := newTestScoring(0)
	worker := NewRecalcWorker(svc, nil, 1, 1)
	worker.Start(context.Background())
	worker.Stop()
	worker.Stop()

	_, err := worker.Enqueue(model.RecalcRequest{Wallet: walletA})
	assert.True(t, apperrors.IsType(err, apperrors.ErrQueueFull))
}
