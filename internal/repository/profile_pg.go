package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/service"
	"gorm.io/gorm"
)

// profileRow mirrors the identity service's borrower_profiles table.
type profileRow struct {
	Wallet           string `gorm:"primaryKey;size:64"`
	TrustScore       int
	TierLevel        int
	DID              string `gorm:"column:did"`
	VerificationHash string
	CredentialCount  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (profileRow) TableName() string { return "borrower_profiles" }

func (r profileRow) toModel() *model.BorrowerProfile {
	return &model.BorrowerProfile{
		Wallet:           r.Wallet,
		TrustScore:       r.TrustScore,
		TierLevel:        r.TierLevel,
		DID:              r.DID,
		VerificationHash: r.VerificationHash,
		CredentialCount:  r.CredentialCount,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

type PostgresProfileStore struct {
	db *gorm.DB
}

func NewPostgresProfileStore(db *gorm.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) FetchProfile(ctx context.Context, wallet string) (*model.BorrowerProfile, error) {
	var row profileRow
	err := s.db.WithContext(ctx).Scopes(byWallet(wallet)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, service.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// byWallet matches hex addresses case-insensitively; rows may carry either
// the checksummed or the lowercase form.
func byWallet(wallet string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if model.IsHexWallet(wallet) {
			return db.Where("lower(wallet) = ?", model.WalletKey(wallet))
		}
		return db.Where("wallet = ?", wallet)
	}
}
