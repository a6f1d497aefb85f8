// Package chain reads wallet statistics from a Solana JSON-RPC node.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tigertrust/lendgate/internal/model"
)

// SPL token program; every fungible token and NFT account is owned by it.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

var ErrUnsupportedWallet = errors.New("chain reader only supports base58 wallets")

type SolanaReader struct {
	rpcURL       string
	historyLimit int
	timeout      time.Duration
	now          func() time.Time

	mu     sync.Mutex
	client *rpc.Client
}

func NewSolanaReader(rpcURL string, historyLimit int, timeout time.Duration) *SolanaReader {
	if historyLimit <= 0 || historyLimit > 1000 {
		historyLimit = 1000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SolanaReader{
		rpcURL:       strings.TrimSpace(rpcURL),
		historyLimit: historyLimit,
		timeout:      timeout,
		now:          time.Now,
	}
}

// WithClock replaces the clock used for wallet age.
func (r *SolanaReader) WithClock(now func() time.Time) *SolanaReader {
	r.now = now
	return r
}

type signatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
}

type tokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals int    `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// FetchWalletActivity counts up to historyLimit signatures and dates the
// wallet from the oldest one with a block time.
func (r *SolanaReader) FetchWalletActivity(ctx context.Context, wallet string) (model.WalletActivity, error) {
	sigs, err := r.signatures(ctx, wallet, r.historyLimit)
	if err != nil {
		return model.WalletActivity{}, err
	}
	activity := model.WalletActivity{TxCount: len(sigs)}

	var oldest int64
	for _, s := range sigs {
		if s.BlockTime == nil {
			continue
		}
		if oldest == 0 || *s.BlockTime < oldest {
			oldest = *s.BlockTime
		}
	}
	if oldest > 0 {
		age := r.now().Sub(time.Unix(oldest, 0))
		if age > 0 {
			activity.WalletAgeDays = int(age / (24 * time.Hour))
		}
	}
	return activity, nil
}

// FetchHoldings classifies SPL token accounts. An account with 0 decimals and
// an amount of exactly 1 is an NFT; any other non-empty account is a token.
func (r *SolanaReader) FetchHoldings(ctx context.Context, wallet string) (model.Holdings, error) {
	if err := checkWallet(wallet); err != nil {
		return model.Holdings{}, err
	}
	var result tokenAccountsResult
	err := r.call(ctx, &result, "getTokenAccountsByOwner",
		wallet,
		map[string]string{"programId": TokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	)
	if err != nil {
		return model.Holdings{}, err
	}

	var h model.Holdings
	for _, acc := range result.Value {
		amount := acc.Account.Data.Parsed.Info.TokenAmount
		switch {
		case amount.Decimals == 0 && amount.Amount == "1":
			h.NFTCount++
		case amount.Amount != "" && strings.Trim(amount.Amount, "0") != "":
			h.TokenCount++
		}
	}
	return h, nil
}

// FetchRecentActivity returns block times of the newest signatures, newest first.
func (r *SolanaReader) FetchRecentActivity(ctx context.Context, wallet string, limit int) ([]time.Time, error) {
	sigs, err := r.signatures(ctx, wallet, limit)
	if err != nil {
		return nil, err
	}
	stamps := make([]time.Time, 0, len(sigs))
	for _, s := range sigs {
		if s.BlockTime != nil {
			stamps = append(stamps, time.Unix(*s.BlockTime, 0).UTC())
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].After(stamps[j]) })
	return stamps, nil
}

func (r *SolanaReader) signatures(ctx context.Context, wallet string, limit int) ([]signatureInfo, error) {
	if err := checkWallet(wallet); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var sigs []signatureInfo
	if err := r.call(ctx, &sigs, "getSignaturesForAddress", wallet, map[string]int{"limit": limit}); err != nil {
		return nil, err
	}
	return sigs, nil
}

// call issues one request under the reader timeout. Failures are not retried.
func (r *SolanaReader) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if r.rpcURL == "" {
		return fmt.Errorf("rpc url not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, err := r.getClient(callCtx)
	if err != nil {
		return err
	}
	if err := client.CallContext(callCtx, result, method, args...); err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return nil
}

func (r *SolanaReader) getClient(ctx context.Context) (*rpc.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	client, err := rpc.DialContext(ctx, r.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	r.client = client
	return r.client, nil
}

// Close releases the underlying connection.
func (r *SolanaReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

func checkWallet(wallet string) error {
	if model.IsHexWallet(wallet) {
		return ErrUnsupportedWallet
	}
	return nil
}
