package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "So11111111111111111111111111111111111111112"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls from a method -> result table and records
// the params it saw.
type fakeNode struct {
	mu      sync.Mutex
	results map[string]interface{}
	errors  map[string]string
	seen    map[string][]json.RawMessage
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		results: make(map[string]interface{}),
		errors:  make(map[string]string),
		seen:    make(map[string][]json.RawMessage),
	}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.seen[req.Method] = req.Params
	result, ok := n.results[req.Method]
	errMsg := n.errors[req.Method]
	n.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case errMsg != "":
		resp["error"] = map[string]interface{}{"code": -32602, "message": errMsg}
	case !ok:
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	default:
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestReader(t *testing.T, node *fakeNode) *SolanaReader {
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	reader := NewSolanaReader(srv.URL, 1000, time.Second).WithClock(func() time.Time { return testNow })
	t.Cleanup(reader.Close)
	return reader
}

func sig(name string, at *time.Time) map[string]interface{} {
	entry := map[string]interface{}{"signature": name, "slot": 1, "err": nil, "blockTime": nil}
	if at != nil {
		entry["blockTime"] = at.Unix()
	}
	return entry
}

func ptr(t time.Time) *time.Time { return &t }

func TestFetchWalletActivity(t *testing.T) {
	node := newFakeNode()
	node.results["getSignaturesForAddress"] = []interface{}{
		sig("a", ptr(testNow.Add(-time.Hour))),
		sig("b", nil),
		sig("c", ptr(testNow.Add(-200*24*time.Hour-time.Hour))),
	}
	reader := newTestReader(t, node)

	activity, err := reader.FetchWalletActivity(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, 3, activity.TxCount)
	assert.Equal(t, 200, activity.WalletAgeDays)

	var params []interface{}
	for _, p := range node.seen["getSignaturesForAddress"] {
		var v interface{}
		require.NoError(t, json.Unmarshal(p, &v))
		params = append(params, v)
	}
	require.Len(t, params, 2)
	assert.Equal(t, testWallet, params[0])
	assert.Equal(t, map[string]interface{}{"limit": float64(1000)}, params[1])
}

func TestFetchRecentActivitySkipsMissingBlockTimes(t *testing.T) {
	node := newFakeNode()
	older := testNow.Add(-48 * time.Hour)
	newer := testNow.Add(-time.Hour)
	node.results["getSignaturesForAddress"] = []interface{}{
		sig("old", ptr(older)),
		sig("pending", nil),
		sig("new", ptr(newer)),
	}
	reader := newTestReader(t, node)

	stamps, err := reader.FetchRecentActivity(context.Background(), testWallet, 500)
	require.NoError(t, err)
	require.Len(t, stamps, 2)
	assert.True(t, stamps[0].Equal(newer))
	assert.True(t, stamps[1].Equal(older))
}

func TestFetchHoldingsClassifiesNFTs(t *testing.T) {
	account := func(amount string, decimals int) map[string]interface{} {
		return map[string]interface{}{
			"pubkey": "acc",
			"account": map[string]interface{}{
				"data": map[string]interface{}{
					"program": "spl-token",
					"parsed": map[string]interface{}{
						"type": "account",
						"info": map[string]interface{}{
							"mint":        "mint",
							"tokenAmount": map[string]interface{}{"amount": amount, "decimals": decimals},
						},
					},
				},
			},
		}
	}
	node := newFakeNode()
	node.results["getTokenAccountsByOwner"] = map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": []interface{}{
			account("1", 0),       // NFT
			account("1", 0),       // NFT
			account("2", 0),       // semi-fungible, counted as token
			account("1", 6),       // dust of a 6-decimal token
			account("5000000", 6), // token
			account("0", 9),       // empty account
		},
	}
	reader := newTestReader(t, node)

	holdings, err := reader.FetchHoldings(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, holdings.NFTCount)
	assert.Equal(t, 3, holdings.TokenCount)

	params := node.seen["getTokenAccountsByOwner"]
	require.Len(t, params, 3)
	assert.JSONEq(t, `{"programId":"`+TokenProgramID+`"}`, string(params[1]))
	assert.JSONEq(t, `{"encoding":"jsonParsed"}`, string(params[2]))
}

func TestRPCErrorIsReturned(t *testing.T) {
	node := newFakeNode()
	node.errors["getSignaturesForAddress"] = "Invalid param: WrongSize"
	reader := newTestReader(t, node)

	_, err := reader.FetchWalletActivity(context.Background(), testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getSignaturesForAddress")
}

func TestRejectsHexWalletsAndMissingURL(t *testing.T) {
	reader := newTestReader(t, newFakeNode())
	_, err := reader.FetchHoldings(context.Background(), "0x52908400098527886E0F7030069857D2E4169EE7")
	assert.ErrorIs(t, err, ErrUnsupportedWallet)

	_, err = NewSolanaReader("", 0, 0).FetchRecentActivity(context.Background(), testWallet, 10)
	require.Error(t, err)
}

func TestCallHonoursTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	reader := NewSolanaReader(srv.URL, 10, 50*time.Millisecond)
	defer reader.Close()

	start := time.Now()
	_, err := reader.FetchWalletActivity(context.Background(), testWallet)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
