package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
	"github.com/dmagro/eth-rpc-tier-router/internal/normalize"
	"github.com/dmagro/eth-rpc-tier-router/internal/output"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
)

func uint64Ptr(n uint64) *uint64 { return &n }

func TestBuildPolicies(t *testing.T) {
	cfg := &config.Config{
		Routing: config.Routing{ArchiveThreshold: uint64Ptr(256)},
		Chains: []config.Chain{
			{ID: 1},
			{ID: 137, ArchiveThreshold: uint64Ptr(32)},
			{ID: 10, HistoricalMethods: map[string]config.MethodRule{
				"eth_getProof": {BlockParam: 2},
			}},
		},
	}

	def, perChain := buildPolicies(cfg)

	assert.Equal(t, uint64(256), def.ArchiveThreshold)
	assert.Equal(t, routing.DefaultMethodTable(), def.Methods)

	require.Len(t, perChain, 2)
	assert.Equal(t, uint64(32), perChain[137].ArchiveThreshold)
	assert.Equal(t, routing.DefaultMethodTable(), perChain[137].Methods)
	assert.Equal(t, uint64(256), perChain[10].ArchiveThreshold)
	assert.Equal(t, routing.MethodTable{"eth_getProof": {Index: 2}}, perChain[10].Methods)
}

func TestNormalizeRules(t *testing.T) {
	rules, err := normalizeRules(nil)
	require.NoError(t, err)
	assert.Nil(t, rules)

	rules, err = normalizeRules(map[string]string{"eth_gasPrice": "decimal"})
	require.NoError(t, err)
	assert.Equal(t, normalize.Rules{"eth_gasPrice": normalize.Decimal}, rules)

	_, err = normalizeRules(map[string]string{"eth_gasPrice": "gwei"})
	assert.Error(t, err)
}

// headNode answers eth_blockNumber with a fixed head per tier path suffix.
func headNode(t *testing.T, full, archive string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		head := full
		if strings.HasSuffix(r.URL.Path, "/archive") {
			head = archive
		}
		if head == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` + head + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testApp(t *testing.T, baseURL string) *app {
	t.Helper()
	cfg, err := config.Parse([]byte(`
upstream:
  base_url: ` + baseURL + `
  api_key: k
chains:
  - id: 1
    name: ethereum
defaults:
  timeout: 2s
log:
  level: error
`))
	require.NoError(t, err)

	a, err := buildApp(cfg, false)
	require.NoError(t, err)
	return a
}

func TestRunRouteWithPinnedHead(t *testing.T) {
	output.DisableColors()
	a := testApp(t, "https://api.example.com/web3")

	router := routing.NewRouter(routing.RouterOpts{
		Resolver:   routing.FixedResolver{Head: 300},
		Classifier: a.classifier,
	})

	var buf bytes.Buffer
	err := runRoute(context.Background(), &buf, a, router,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":["0xabc","0x64"]}`), 1, "json")
	require.NoError(t, err)

	var got output.RouteReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, routing.TierArchive, got.Decision.Tier)
	assert.Equal(t, uint64(200), got.Decision.Classification.BlocksAgo)
	assert.Equal(t, "https://api.example.com/web3/1/archive", got.Endpoint)
}

func TestRunRouteFetchesHead(t *testing.T) {
	output.DisableColors()
	srv := headNode(t, "0xc8", "0xc8")
	a := testApp(t, srv.URL)

	var buf bytes.Buffer
	err := runRoute(context.Background(), &buf, a, a.router,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":["0xabc","0x64"]}`), 1, "terminal")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "within_threshold")
	assert.Contains(t, buf.String(), "/1/full")
}

func TestRunRouteRejectsInvalidRequest(t *testing.T) {
	a := testApp(t, "https://api.example.com/web3")
	err := runRoute(context.Background(), io.Discard, a, a.router, []byte(`{"method":"eth_call"}`), 1, "json")
	assert.Error(t, err)
}

func TestRunHeads(t *testing.T) {
	output.DisableColors()
	srv := headNode(t, "0x64", "0x60")
	a := testApp(t, srv.URL)

	var buf bytes.Buffer
	require.NoError(t, runHeads(context.Background(), &buf, a, 2, 0, "json"))

	var report output.HeadsReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report.Chains, 1)

	ch := report.Chains[0]
	assert.Equal(t, uint64(100), ch.Full.HighestBlock)
	assert.Equal(t, uint64(96), ch.Archive.HighestBlock)
	assert.Equal(t, 2, ch.Full.Samples)
	assert.Equal(t, int64(4), ch.Drift.Blocks)
	assert.False(t, ch.Drift.Consistent)
}

func TestRunHeadsArchiveDown(t *testing.T) {
	output.DisableColors()
	srv := headNode(t, "0x64", "")
	a := testApp(t, srv.URL)

	var buf bytes.Buffer
	require.NoError(t, runHeads(context.Background(), &buf, a, 1, 2, "terminal"))
	assert.Contains(t, buf.String(), "DOWN")
	assert.Contains(t, buf.String(), "HTTP 503")
}

func TestRootCommandRoute(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upstream:
  base_url: https://api.example.com/web3
  api_key: k
defaults:
  timeout: 1s
log:
  level: error
`), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"--config", path,
		"route", "--head", "1000", "--format", "json",
		`{"jsonrpc":"2.0","id":1,"method":"eth_call","params":[{"to":"0x1","blockNumber":"0x10"},"latest"]}`,
	})
	root.SetContext(context.Background())

	done := make(chan error, 1)
	go func() { done <- root.Execute() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("route command hung")
	}

	var got output.RouteReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, routing.TierArchive, got.Decision.Tier)
	assert.Equal(t, uint64(984), got.Decision.Classification.BlocksAgo)
}
