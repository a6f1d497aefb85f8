package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/metrics"
)

const DefaultBatchMax = 100

// ScoringService exposes ComputeScore on caller-supplied or aggregated features.
type ScoringService struct {
	aggregator *FeatureAggregator
	batchMax   int
}

func NewScoringService(aggregator *FeatureAggregator, batchMax int) *ScoringService {
	if batchMax <= 0 {
		batchMax = DefaultBatchMax
	}
	return &ScoringService{aggregator: aggregator, batchMax: batchMax}
}

func (s *ScoringService) Score(features model.WalletFeatures) (*model.ScoreResult, error) {
	if err := ValidateFeatures(features); err != nil {
		return nil, apperrors.NewInvalidRequest(err.Error())
	}
	result := ComputeScore(features)
	metrics.Scores.Observe(float64(result.Score))
	return &result, nil
}

// ScoreBatch scores every item. A bad item gets an error line; the batch
// itself only fails when it is empty or too large.
func (s *ScoringService) ScoreBatch(items []model.ScoreRequest) ([]model.BatchScoreItem, error) {
	if len(items) == 0 {
		return nil, apperrors.NewInvalidRequest("batch is empty")
	}
	if len(items) > s.batchMax {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("batch has %d items, maximum is %d", len(items), s.batchMax))
	}

	out := make([]model.BatchScoreItem, len(items))
	for i, item := range items {
		out[i].Wallet = item.Wallet
		if item.Wallet != "" {
			wallet, err := model.NormalizeWallet(item.Wallet)
			if err != nil {
				out[i].Error = err.Error()
				continue
			}
			out[i].Wallet = wallet
		}
		result, err := s.Score(item.Features)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				out[i].Error = appErr.Message
			} else {
				out[i].Error = err.Error()
			}
			continue
		}
		out[i].Result = result
	}
	return out, nil
}

// ScoreWallet aggregates live features for wallet and scores them.
func (s *ScoringService) ScoreWallet(ctx context.Context, wallet string, monthlyIncome, debt float64) (*model.WalletScoreResponse, error) {
	record, err := s.aggregator.Aggregate(ctx, wallet, monthlyIncome, debt)
	if err != nil {
		return nil, err
	}
	result := ComputeScore(record.Features)
	metrics.Scores.Observe(float64(result.Score))
	return &model.WalletScoreResponse{Record: record, Score: &result}, nil
}

// ValidateFeatures checks the ranges gin binding enforces on single requests,
// for inputs that arrive without binding (batch items).
func ValidateFeatures(f model.WalletFeatures) error {
	counts := []struct {
		name  string
		value int
	}{
		{"transaction_count", f.TransactionCount},
		{"wallet_age_days", f.WalletAgeDays},
		{"nft_count", f.NFTCount},
		{"token_count", f.TokenCount},
		{"successful_repayments", f.SuccessfulRepayments},
		{"defaults", f.Defaults},
	}
	for _, c := range counts {
		if c.value < 0 {
			return fmt.Errorf("%s must not be negative", c.name)
		}
	}
	if f.SuccessfulRepayments > MaxHistoryCount || f.Defaults > MaxHistoryCount {
		return fmt.Errorf("successful_repayments and defaults must not exceed %d", MaxHistoryCount)
	}
	if d := f.ActiveDaysLast30; d != nil && (*d < 0 || *d > 30) {
		return errors.New("active_days_last_30 must be between 0 and 30")
	}
	if avg := f.AvgTxPerActiveDay; avg != nil && *avg < 0 {
		return errors.New("avg_tx_per_active_day must not be negative")
	}
	if r := f.ActivityRegularityScore; r != nil && (*r < 0 || *r > 100) {
		return errors.New("activity_regularity_score must be between 0 and 100")
	}
	return nil
}
