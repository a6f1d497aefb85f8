package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tigertrust/lendgate/internal/model"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

var decidedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func approval() *model.LoanDecision {
	return model.NewApproval("d1", "walletA", &model.LoanTerms{
		ApprovedAmount:  97,
		RequestedAmount: 100,
		RepaymentDays:   30,
		Tier:            model.TierSummary{Level: 2},
	}, decidedAt)
}

func TestNewDecisionEvent(t *testing.T) {
	ev := NewDecisionEvent(approval())
	assert.Equal(t, "approved", ev.Outcome)
	assert.Equal(t, 97.0, ev.ApprovedAmount)
	require.NotNil(t, ev.TierLevel)
	assert.Equal(t, 2, *ev.TierLevel)

	rej := model.NewRejection("d2", "walletB", model.Reject(model.ReasonVelocityExceeded, "too many"), decidedAt)
	ev = NewDecisionEvent(rej)
	assert.Equal(t, "rejected", ev.Outcome)
	assert.Equal(t, model.ReasonVelocityExceeded, ev.ReasonCode)
	assert.Nil(t, ev.TierLevel)
}

func TestKafkaPublisherFlushesOnClose(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, "lending.decisions", 8)

	p.Publish(approval())
	p.Publish(nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.True(t, w.closed)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "walletA", string(w.msgs[0].Key))
	assert.Equal(t, "outcome", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "approved", string(w.msgs[0].Headers[0].Value))

	var ev DecisionEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "d1", ev.DecisionID)

	// after close: dropped silently
	p.Publish(approval())
}

func TestKafkaPublisherSurvivesWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, "t", 8)
	p.Publish(approval())
	p.Publish(approval())
	require.NoError(t, p.Close())
	assert.Len(t, w.msgs, 2)
}

func TestNoopPublisher(t *testing.T) {
	var p DecisionPublisher = NoopPublisher{}
	p.Publish(approval())
	assert.NoError(t, p.Close())
}
