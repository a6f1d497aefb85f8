// Package messaging publishes loan decisions to Kafka for downstream
// disbursement and analytics consumers.
package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
)

// DecisionPublisher is best effort: Publish never blocks the request path.
type DecisionPublisher interface {
	Publish(decision *model.LoanDecision)
	Close() error
}

// DecisionEvent is the wire form of a decision on the topic.
type DecisionEvent struct {
	DecisionID      string           `json:"decision_id"`
	Wallet          string           `json:"wallet_address"`
	Outcome         string           `json:"outcome"`
	ReasonCode      model.ReasonCode `json:"reason_code,omitempty"`
	ApprovedAmount  float64          `json:"approved_amount,omitempty"`
	RequestedAmount float64          `json:"requested_amount,omitempty"`
	RepaymentDays   int              `json:"repayment_days,omitempty"`
	TierLevel       *int             `json:"tier_level,omitempty"`
	DecidedAt       time.Time        `json:"decided_at"`
}

func NewDecisionEvent(d *model.LoanDecision) DecisionEvent {
	ev := DecisionEvent{
		DecisionID: d.ID,
		Wallet:     d.Wallet,
		Outcome:    "rejected",
		DecidedAt:  d.DecidedAt,
	}
	if d.Approved && d.Terms != nil {
		level := d.Terms.Tier.Level
		ev.Outcome = "approved"
		ev.ApprovedAmount = d.Terms.ApprovedAmount
		ev.RequestedAmount = d.Terms.RequestedAmount
		ev.RepaymentDays = d.Terms.RepaymentDays
		ev.TierLevel = &level
	}
	if d.Rejection != nil {
		ev.ReasonCode = d.Rejection.Reason
	}
	return ev
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher hands decisions to a single writer goroutine through a
// bounded channel. When the channel is full the event is dropped.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	ch      chan kafkago.Message
	timeout time.Duration
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, topic string, buffer int) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{}, // 同一钱包落同一分区，保证顺序
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
	return newKafkaPublisher(w, topic, buffer)
}

func newKafkaPublisher(w messageWriter, topic string, buffer int) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 1000
	}
	p := &KafkaPublisher{
		writer:  w,
		topic:   topic,
		ch:      make(chan kafkago.Message, buffer),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) Publish(decision *model.LoanDecision) {
	if decision == nil {
		return
	}
	ev := NewDecisionEvent(decision)
	value, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("decision event encode failed", "decision_id", decision.ID, "error", err)
		return
	}
	msg := kafkago.Message{
		Key:   []byte(decision.Wallet),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(ev.Outcome)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- msg:
	default:
		logger.Warn("decision event dropped, publisher queue full", "decision_id", decision.ID, "topic", p.topic)
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for msg := range p.ch {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			logger.Warn("decision event publish failed", "topic", p.topic, "key", string(msg.Key), "error", err)
		}
		cancel()
	}
}

// Close flushes queued events and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(decision *model.LoanDecision) {
	if decision != nil {
		logger.Debug("decision event not published, kafka disabled", "decision_id", decision.ID)
	}
}

func (NoopPublisher) Close() error { return nil }
