package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
)

type recorded struct {
	chainID uint64
	tier    routing.NodeTier
	status  int
	err     error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (f *fakeRecorder) ObserveUpstream(chainID uint64, tier routing.NodeTier, status int, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recorded{chainID, tier, status, err})
}

func testConfig(baseURL string, chains ...config.Chain) *config.Config {
	return &config.Config{
		Upstream: config.Upstream{BaseURL: baseURL, APIKey: "test-key"},
		Chains:   chains,
		Defaults: config.Defaults{Timeout: time.Second},
	}
}

func TestEndpoint(t *testing.T) {
	b := New(testConfig("https://api.example.com/web3", config.Chain{
		ID:         137,
		ArchiveURL: "https://polygon-archive.example.com",
	}))

	tests := []struct {
		chainID uint64
		tier    routing.NodeTier
		want    string
	}{
		{1, routing.TierFull, "https://api.example.com/web3/1/full"},
		{1, routing.TierArchive, "https://api.example.com/web3/1/archive"},
		{137, routing.TierFull, "https://api.example.com/web3/137/full"},
		{137, routing.TierArchive, "https://polygon-archive.example.com"},
	}
	for _, tt := range tests {
		got, err := b.Endpoint(tt.chainID, tt.tier)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := b.Endpoint(0, routing.TierFull)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestSupportsWithoutBaseURL(t *testing.T) {
	b := New(testConfig("", config.Chain{ID: 10, FullURL: "http://f", ArchiveURL: "http://a"}))

	assert.True(t, b.Supports(10))
	assert.False(t, b.Supports(1))
	assert.False(t, b.Supports(0))

	_, err := b.Dispatch(context.Background(), 1, routing.TierFull, []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestDispatchForwardsToTierPath(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	b := New(testConfig(srv.URL), WithRecorder(rec))

	in := []byte(`{"jsonrpc":"2.0","id":9,"method":"eth_getBalance","params":["0xabc","0x1"]}`)
	reply, err := b.Dispatch(context.Background(), 1, routing.TierArchive, in)
	require.NoError(t, err)
	assert.True(t, reply.OK())
	assert.JSONEq(t, string(in), string(reply.Body))

	_, err = b.Dispatch(context.Background(), 5, routing.TierFull, in)
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"/1/archive", "/5/full"}, paths)
	mu.Unlock()
	require.Len(t, rec.calls, 2)
	assert.Equal(t, recorded{chainID: 1, tier: routing.TierArchive, status: 200}, rec.calls[0])
}

func TestDispatchPassesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	b := New(testConfig(srv.URL), WithRecorder(rec))

	reply, err := b.Dispatch(context.Background(), 1, routing.TierFull, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, reply.StatusCode)
	assert.Contains(t, string(reply.Body), "rate limited")
	require.Len(t, rec.calls, 1)
	assert.Equal(t, http.StatusTooManyRequests, rec.calls[0].status)
}

func TestCallImplementsCaller(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "/1/full", r.URL.Path)
		assert.Equal(t, "eth_blockNumber", req.Method)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x10"}`))
	}))
	defer srv.Close()

	var caller routing.Caller = New(testConfig(srv.URL))
	head := routing.NewResolver(caller).ResolveHead(context.Background(), 1)

	assert.Equal(t, uint64(16), head.BlockNumber)
	assert.Equal(t, routing.HeadFromRPC, head.Source)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCallDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Defaults.MaxRetries = 3
	cfg.Defaults.BackoffInitial = time.Millisecond

	rec := &fakeRecorder{}
	b := New(cfg, WithRecorder(rec))
	_, err := b.Call(context.Background(), 1, routing.TierFull, "eth_blockNumber")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, 0, rec.calls[0].status)
	assert.False(t, errors.Is(rec.calls[0].err, ErrUnsupportedChain))
}
