package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tigertrust/lendgate/internal/model"
	"gorm.io/gorm"
)

// Loan balances are stored in lamports; 1 SOL = 1e9 lamports.
const lamportsExp = -9

type loanRow struct {
	ID             string `gorm:"primaryKey;size:64"`
	Wallet         string `gorm:"size:64;index:idx_loans_wallet_status"`
	AmountLamports int64
	Status         string `gorm:"size:16;index:idx_loans_wallet_status"`
	CreatedAt      time.Time
}

func (loanRow) TableName() string { return "loans" }

// LamportsToUnits converts a lamport balance into currency units.
func LamportsToUnits(lamports int64) float64 {
	return decimal.New(lamports, lamportsExp).InexactFloat64()
}

// PostgresLoanLedger reads disbursed loans. It serves both the debt source and
// the repayment history used for reputation.
type PostgresLoanLedger struct {
	db *gorm.DB
}

func NewPostgresLoanLedger(db *gorm.DB) *PostgresLoanLedger {
	return &PostgresLoanLedger{db: db}
}

func (l *PostgresLoanLedger) FetchOutstandingDebt(ctx context.Context, wallet string) (float64, error) {
	var total int64
	err := l.db.WithContext(ctx).Model(&loanRow{}).
		Scopes(byWallet(wallet)).
		Where("status = ?", string(model.LoanActive)).
		Select("COALESCE(SUM(amount_lamports), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return LamportsToUnits(total), nil
}

func (l *PostgresLoanLedger) FetchRepaymentCounts(ctx context.Context, wallet string) (repaid, defaulted int, err error) {
	var rows []struct {
		Status string
		N      int
	}
	err = l.db.WithContext(ctx).Model(&loanRow{}).
		Select("status, COUNT(*) AS n").
		Scopes(byWallet(wallet)).
		Where("status IN ?", []string{string(model.LoanRepaid), string(model.LoanDefaulted)}).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	for _, r := range rows {
		switch model.LoanStatus(r.Status) {
		case model.LoanRepaid:
			repaid = r.N
		case model.LoanDefaulted:
			defaulted = r.N
		}
	}
	return repaid, defaulted, nil
}
