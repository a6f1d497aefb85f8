package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
	"github.com/tigertrust/lendgate/internal/pkg/metrics"
)

// ScoreBroadcaster receives finished recalculations.
type ScoreBroadcaster interface {
	Broadcast(event model.ScoreEvent)
}

type recalcJob struct {
	id            string
	wallet        string
	eventType     string
	monthlyIncome float64
	debt          float64
}

// RecalcWorker runs score recalculations on a bounded queue. It never writes
// the profile; results only go to the broadcaster.
type RecalcWorker struct {
	scoring *ScoringService
	sink    ScoreBroadcaster
	jobs    chan recalcJob
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecalcWorker(scoring *ScoringService, sink ScoreBroadcaster, workers, queueSize int) *RecalcWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &RecalcWorker{
		scoring: scoring,
		sink:    sink,
		jobs:    make(chan recalcJob, queueSize),
		workers: workers,
	}
}

// Start launches the workers. They exit when Stop drains the queue.
func (w *RecalcWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Enqueue validates the request and queues it, failing fast when full.
func (w *RecalcWorker) Enqueue(req model.RecalcRequest) (*model.RecalcAccepted, error) {
	wallet, err := model.NormalizeWallet(req.Wallet)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(err.Error())
	}
	eventType := req.EventType
	if eventType == "" {
		eventType = "manual"
	}
	job := recalcJob{
		id:            uuid.NewString(),
		wallet:        wallet,
		eventType:     eventType,
		monthlyIncome: req.MonthlyIncome,
		debt:          req.Debt,
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil, apperrors.New(apperrors.ErrQueueFull, "recalculation queue is closed", nil)
	}
	select {
	case w.jobs <- job:
		metrics.RecalcQueueDepth.Inc()
	default:
		return nil, apperrors.New(apperrors.ErrQueueFull, "recalculation queue is full", nil)
	}
	return &model.RecalcAccepted{
		JobID:     job.id,
		Wallet:    wallet,
		EventType: eventType,
		Status:    "queued",
	}, nil
}

// Stop closes the queue and waits for queued jobs to finish.
func (w *RecalcWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *RecalcWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for job := range w.jobs {
		metrics.RecalcQueueDepth.Dec()
		w.process(ctx, job)
	}
}

func (w *RecalcWorker) process(ctx context.Context, job recalcJob) {
	event := model.ScoreEvent{
		JobID:     job.id,
		Wallet:    job.wallet,
		EventType: job.eventType,
	}
	resp, err := w.scoring.ScoreWallet(ctx, job.wallet, job.monthlyIncome, job.debt)
	if err != nil {
		logger.LogError(ctx, err, "score recalculation failed", "job_id", job.id, "wallet", job.wallet)
		event.Error = apperrors.Wrap(err).Message
	} else {
		event.Result = resp.Score
		logger.Info("score recalculated", "job_id", job.id, "wallet", job.wallet, "score", resp.Score.Score)
	}
	event.At = time.Now().UTC()
	if w.sink != nil {
		w.sink.Broadcast(event)
	}
}
