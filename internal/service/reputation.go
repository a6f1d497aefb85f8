package service

import (
	"context"
	"errors"

	"github.com/tigertrust/lendgate/internal/model"
)

// RepaymentHistory counts closed loans for a wallet.
type RepaymentHistory interface {
	FetchRepaymentCounts(ctx context.Context, wallet string) (repaid, defaulted int, err error)
}

// ReputationService combines the identity profile with the loan ledger.
// A wallet with no profile has no verification but may still have loans.
type ReputationService struct {
	profiles ProfileStore
	history  RepaymentHistory
}

func NewReputationService(profiles ProfileStore, history RepaymentHistory) *ReputationService {
	return &ReputationService{profiles: profiles, history: history}
}

func (s *ReputationService) FetchReputation(ctx context.Context, wallet string) (model.Reputation, error) {
	var rep model.Reputation

	profile, err := s.profiles.FetchProfile(ctx, wallet)
	switch {
	case errors.Is(err, ErrProfileNotFound):
	case err != nil:
		return model.Reputation{}, err
	default:
		rep.HumanVerified = profile.IsVerified()
		rep.HasVerifiedCredential = profile.CredentialCount > 0
	}

	if s.history != nil {
		repaid, defaulted, err := s.history.FetchRepaymentCounts(ctx, wallet)
		if err != nil {
			return model.Reputation{}, err
		}
		rep.SuccessfulRepayments = repaid
		rep.Defaults = defaulted
	}
	return rep, nil
}
