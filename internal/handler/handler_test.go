package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tigertrust/lendgate/internal/middleware"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/service"
)

const (
	walletA = "So11111111111111111111111111111111111111112"
	walletB = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	walletD = "11111111111111111111111111111111"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type capturePublisher struct {
	mu        sync.Mutex
	decisions []*model.LoanDecision
}

func (p *capturePublisher) Publish(d *model.LoanDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
}

func (p *capturePublisher) Close() error { return nil }

type testServer struct {
	router    *gin.Engine
	profiles  *service.MemoryProfileStore
	ledger    *service.MemoryLoanLedger
	chain     *service.MemoryChainReader
	publisher *capturePublisher
	recalc    *service.RecalcWorker
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{
		profiles:  service.NewMemoryProfileStore(),
		ledger:    service.NewMemoryLoanLedger(),
		chain:     service.NewMemoryChainReader(),
		publisher: &capturePublisher{},
	}
	history := service.NewMemoryApplicationHistory()
	oracle := service.ProfileIncomeOracle{Floor: 200, PerPoint: 0.5, Cap: 5000}
	calc := service.NewEligibilityCalculator(s.profiles, s.ledger, oracle, time.Second)
	pipeline := service.NewDecisionPipeline(model.DefaultTierTable(), service.DefaultLendingRules(), calc, history, time.Second)

	reputation := service.NewReputationService(s.profiles, s.ledger)
	scoring := service.NewScoringService(service.NewFeatureAggregator(s.chain, reputation, time.Second), 3)
	s.recalc = service.NewRecalcWorker(scoring, nil, 1, 1) // not started
	t.Cleanup(s.recalc.Stop)

	loans := NewLoanHandler(pipeline, history, s.publisher)
	scores := NewScoreHandler(scoring, s.recalc)
	profiles := NewProfileHandler(s.profiles)

	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.ClientMiddleware())
	v1 := r.Group("/v1")
	v1.GET("/tiers", loans.ListTiers)
	v1.GET("/eligibility/:wallet", loans.Eligibility)
	v1.POST("/loans/apply", loans.Apply)
	v1.POST("/score", scores.Score)
	v1.POST("/score/batch", scores.Batch)
	v1.POST("/score/recalculate", scores.Recalculate)
	v1.POST("/wallets/:wallet/score", scores.WalletScore)
	v1.GET("/profiles/:wallet", profiles.Get)
	s.router = r
	return s
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) borrower(wallet string, score int, debt float64) {
	s.profiles.Put(&model.BorrowerProfile{Wallet: wallet, TrustScore: score, VerificationHash: "0xproof"})
	if debt > 0 {
		s.ledger.Add(model.LoanRecord{ID: "l-" + wallet, Wallet: wallet, Amount: debt, Status: model.LoanActive})
	}
}

func TestApplyApprovesAndCountsVelocity(t *testing.T) {
	s := newTestServer(t)
	s.borrower(walletA, 250, 40)
	body := model.ApplyRequest{Wallet: walletA, LoanAmount: 100, RepaymentTerm: "30_days"}

	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/v1/loans/apply", body)
		require.Equal(t, http.StatusOK, w.Code)
		d := decode[model.LoanDecision](t, w)
		require.True(t, d.Approved)
		assert.Equal(t, 97.0, d.Terms.ApprovedAmount)
	}

	// tier 1 allows 2 applications per 24h
	w := s.do(http.MethodPost, "/v1/loans/apply", body)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[model.LoanDecision](t, w)
	assert.False(t, d.Approved)
	require.NotNil(t, d.Rejection)
	assert.Equal(t, model.ReasonVelocityExceeded, d.Rejection.Reason)

	assert.Len(t, s.publisher.decisions, 3)
}

func TestApplyRejectionsAre200(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/loans/apply", model.ApplyRequest{Wallet: walletD, LoanAmount: 20, RepaymentTerm: "7_days"})
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[model.LoanDecision](t, w)
	assert.False(t, d.Approved)
	assert.Equal(t, model.ReasonProfileNotFound, d.Rejection.Reason)
}

func TestApplyInvalidInputIs400(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/loans/apply", model.ApplyRequest{Wallet: walletA, LoanAmount: -5, RepaymentTerm: "30_days"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	d := decode[model.LoanDecision](t, w)
	assert.Equal(t, model.ReasonInvalidInput, d.Rejection.Reason)
	assert.Empty(t, s.publisher.decisions, "invalid input is neither recorded nor published")

	w = s.do(http.MethodPost, "/v1/loans/apply", `{"wallet_address":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestEligibilityEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.borrower(walletA, 250, 40)

	w := s.do(http.MethodGet, "/v1/eligibility/"+walletA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[model.EligibilityReport](t, w)
	assert.True(t, report.IsEligible)
	assert.Equal(t, 97.0, report.MaxEligibleAmount)
	require.NotNil(t, report.Tier)
	assert.Equal(t, 1, report.Tier.Level)

	w = s.do(http.MethodGet, "/v1/eligibility/not-a-wallet", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTiers(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/v1/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[tiersResponse](t, w)
	assert.Equal(t, "2024-default", resp.Version)
	require.Len(t, resp.Tiers, 4)
	assert.Equal(t, 0, resp.Tiers[0].MinScore)
	assert.Equal(t, 30, resp.RepaymentTerms["30_days"])
}

func TestScoreEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/score", model.ScoreRequest{Wallet: walletA, Features: model.WalletFeatures{HumanVerified: true}})
	require.Equal(t, http.StatusOK, w.Code)
	item := decode[model.BatchScoreItem](t, w)
	assert.Equal(t, walletA, item.Wallet)
	assert.Equal(t, 380, item.Result.Score)

	w = s.do(http.MethodPost, "/v1/score", `{"features":{"transaction_count":-1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/score/batch", model.BatchScoreRequest{Items: []model.ScoreRequest{
		{Features: model.WalletFeatures{}},
		{Wallet: "bad", Features: model.WalletFeatures{}},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	batch := decode[struct {
		Items []model.BatchScoreItem `json:"items"`
	}](t, w)
	require.Len(t, batch.Items, 2)
	assert.Equal(t, 300, batch.Items[0].Result.Score)
	assert.NotEmpty(t, batch.Items[1].Error)

	w = s.do(http.MethodPost, "/v1/score/batch", model.BatchScoreRequest{Items: make([]model.ScoreRequest, 4)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletScoreEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.chain.Set(walletA, model.WalletActivity{TxCount: 150, WalletAgeDays: 200}, model.Holdings{NFTCount: 1})

	w := s.do(http.MethodPost, "/v1/wallets/"+walletA+"/score", model.WalletScoreRequest{MonthlyIncome: 2500})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[model.WalletScoreResponse](t, w)
	assert.Equal(t, 400, resp.Score.Score)

	w = s.do(http.MethodPost, "/v1/wallets/"+walletA+"/score", `{"monthly_income":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecalculateQueuesAndFillsUp(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/score/recalculate", model.RecalcRequest{Wallet: walletB, EventType: "loan_repaid"})
	require.Equal(t, http.StatusAccepted, w.Code)
	ack := decode[model.RecalcAccepted](t, w)
	assert.Equal(t, "queued", ack.Status)

	// queue of one, no workers running
	w = s.do(http.MethodPost, "/v1/score/recalculate", model.RecalcRequest{Wallet: walletB})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProfileLookup(t *testing.T) {
	s := newTestServer(t)
	s.borrower(walletA, 610, 0)

	w := s.do(http.MethodGet, "/v1/profiles/"+walletA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 610, decode[model.BorrowerProfile](t, w).TrustScore)

	w = s.do(http.MethodGet, "/v1/profiles/"+walletB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
