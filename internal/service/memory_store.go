package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
)

// In-memory collaborators. cmd/server falls back to these when Postgres or
// Redis are not configured; tests use them as deterministic doubles.

// MemoryProfileStore 按钱包地址保存借款人档案
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*model.BorrowerProfile
}

func NewMemoryProfileStore(profiles ...*model.BorrowerProfile) *MemoryProfileStore {
	s := &MemoryProfileStore{profiles: make(map[string]*model.BorrowerProfile)}
	for _, p := range profiles {
		s.Put(p)
	}
	return s
}

func (s *MemoryProfileStore) Put(profile *model.BorrowerProfile) {
	if profile == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[model.WalletKey(profile.Wallet)] = &cp
}

func (s *MemoryProfileStore) FetchProfile(ctx context.Context, wallet string) (*model.BorrowerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[model.WalletKey(wallet)]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

// MemoryLoanLedger keeps loan balances and statuses per wallet.
type MemoryLoanLedger struct {
	mu    sync.RWMutex
	loans map[string][]model.LoanRecord
}

func NewMemoryLoanLedger() *MemoryLoanLedger {
	return &MemoryLoanLedger{loans: make(map[string][]model.LoanRecord)}
}

func (l *MemoryLoanLedger) Add(loan model.LoanRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := model.WalletKey(loan.Wallet)
	l.loans[key] = append(l.loans[key], loan)
}

// FetchOutstandingDebt sums balances of active loans only.
func (l *MemoryLoanLedger) FetchOutstandingDebt(ctx context.Context, wallet string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, loan := range l.loans[model.WalletKey(wallet)] {
		if loan.Status == model.LoanActive {
			total += loan.Amount
		}
	}
	return total, nil
}

func (l *MemoryLoanLedger) FetchRepaymentCounts(ctx context.Context, wallet string) (repaid, defaulted int, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, loan := range l.loans[model.WalletKey(wallet)] {
		switch loan.Status {
		case model.LoanRepaid:
			repaid++
		case model.LoanDefaulted:
			defaulted++
		}
	}
	return repaid, defaulted, nil
}

// MemoryApplicationHistory is a rolling 24h window of application times.
type MemoryApplicationHistory struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

func NewMemoryApplicationHistory() *MemoryApplicationHistory {
	return &MemoryApplicationHistory{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to age out entries.
func (h *MemoryApplicationHistory) WithClock(now func() time.Time) *MemoryApplicationHistory {
	h.now = now
	return h
}

func (h *MemoryApplicationHistory) FetchApplicationCount24h(ctx context.Context, wallet string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	wallet = model.WalletKey(wallet)
	h.prune(wallet)
	return len(h.entries[wallet]), nil
}

func (h *MemoryApplicationHistory) RecordApplication(ctx context.Context, wallet string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	wallet = model.WalletKey(wallet)
	h.entries[wallet] = append(h.entries[wallet], at)
	h.prune(wallet)
	return nil
}

func (h *MemoryApplicationHistory) prune(wallet string) {
	cutoff := h.now().Add(-24 * time.Hour)
	kept := h.entries[wallet][:0]
	for _, ts := range h.entries[wallet] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(h.entries, wallet)
		return
	}
	h.entries[wallet] = kept
}

// MemoryChainReader serves fixed chain statistics per wallet. Wallets it does
// not know read as empty.
type MemoryChainReader struct {
	mu       sync.RWMutex
	activity map[string]model.WalletActivity
	holdings map[string]model.Holdings
	stamps   map[string][]time.Time
	err      error
}

func NewMemoryChainReader() *MemoryChainReader {
	return &MemoryChainReader{
		activity: make(map[string]model.WalletActivity),
		holdings: make(map[string]model.Holdings),
		stamps:   make(map[string][]time.Time),
	}
}

func (r *MemoryChainReader) Set(wallet string, activity model.WalletActivity, holdings model.Holdings, stamps ...time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity[wallet] = activity
	r.holdings[wallet] = holdings
	sorted := append([]time.Time(nil), stamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })
	r.stamps[wallet] = sorted
}

// FailWith makes every read return err until called again with nil.
func (r *MemoryChainReader) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryChainReader) FetchWalletActivity(ctx context.Context, wallet string) (model.WalletActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return model.WalletActivity{}, r.err
	}
	return r.activity[wallet], nil
}

func (r *MemoryChainReader) FetchHoldings(ctx context.Context, wallet string) (model.Holdings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return model.Holdings{}, r.err
	}
	return r.holdings[wallet], nil
}

func (r *MemoryChainReader) FetchRecentActivity(ctx context.Context, wallet string, limit int) ([]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	stamps := r.stamps[wallet]
	if limit > 0 && len(stamps) > limit {
		stamps = stamps[:limit]
	}
	return append([]time.Time(nil), stamps...), nil
}
