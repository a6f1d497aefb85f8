// Command inspector prints what lendgate sees for a wallet on chain: raw
// activity, holdings, the derived recent-activity stats and the resulting score.
//
//	go run ./cmd/inspector -wallet <base58> [-rpc https://api.mainnet-beta.solana.com]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tigertrust/lendgate/internal/chain"
	"github.com/tigertrust/lendgate/internal/config"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/service"
)

type report struct {
	Wallet   string                `json:"wallet"`
	Activity model.WalletActivity  `json:"activity"`
	Holdings model.Holdings        `json:"holdings"`
	Recent   model.ActivityStats `json:"recent_activity"`
	Score    model.ScoreResult     `json:"score"`
}

func main() {
	wallet := flag.String("wallet", "", "base58 wallet address")
	rpcURL := flag.String("rpc", "", "Solana RPC url (default: chain.rpc_url from config)")
	flag.Parse()

	if err := run(*wallet, *rpcURL); err != nil {
		fmt.Fprintln(os.Stderr, "inspector:", err)
		os.Exit(1)
	}
}

func run(rawWallet, rpcURL string) error {
	wallet, err := model.NormalizeWallet(rawWallet)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if rpcURL == "" {
		rpcURL = cfg.Chain.RPCURL
	}

	reader := chain.NewSolanaReader(rpcURL, cfg.Chain.HistoryLimit, cfg.Upstream.Timeout())
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	activity, err := reader.FetchWalletActivity(ctx, wallet)
	if err != nil {
		return err
	}
	holdings, err := reader.FetchHoldings(ctx, wallet)
	if err != nil {
		return err
	}
	stamps, err := reader.FetchRecentActivity(ctx, wallet, cfg.Chain.SignatureLimit)
	if err != nil {
		return err
	}
	stats := service.ComputeActivityStats(stamps, time.Now())

	features := model.WalletFeatures{
		TransactionCount:        activity.TxCount,
		WalletAgeDays:           activity.WalletAgeDays,
		NFTCount:                holdings.NFTCount,
		TokenCount:              holdings.TokenCount,
		ActiveDaysLast30:        &stats.ActiveDaysLast30,
		AvgTxPerActiveDay:       &stats.AvgTxPerActiveDay,
		ActivityRegularityScore: &stats.ActivityRegularityScore,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report{
		Wallet:   wallet,
		Activity: activity,
		Holdings: holdings,
		Recent:   stats,
		Score:    service.ComputeScore(features),
	})
}
