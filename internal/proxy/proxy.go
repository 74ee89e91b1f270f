// Package proxy serves the JSON-RPC relay over HTTP. Each POST /rpc request
// is routed to a node tier, forwarded upstream unchanged and the reply is
// normalized on the way back.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/uptrace/bunrouter"

	"github.com/dmagro/eth-rpc-tier-router/internal/metrics"
	"github.com/dmagro/eth-rpc-tier-router/internal/normalize"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

const (
	rpcPath    = "/rpc"
	healthPath = "/health"

	// HeaderNodeTier and HeaderChainHead describe the routing decision on
	// successful replies.
	HeaderNodeTier  = "X-Node-Tier"
	HeaderChainHead = "X-Chain-Head"
)

// Dispatcher forwards encoded requests to a node tier.
type Dispatcher interface {
	Supports(chainID uint64) bool
	Dispatch(ctx context.Context, chainID uint64, tier routing.NodeTier, body []byte) (*rpc.Reply, error)
}

// Opts wires a Server.
type Opts struct {
	Router         *routing.Router
	Backend        Dispatcher
	Normalizer     *normalize.Normalizer
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	DefaultChainID uint64
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	MetricsPath    string
}

// Server is the HTTP face of the relay.
type Server struct {
	opts   Opts
	router *bunrouter.Router
	logger *slog.Logger
}

func New(opts Opts) *Server {
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.DefaultChainID == 0 {
		opts.DefaultChainID = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	s := &Server{opts: opts, logger: opts.Logger.With("component", "proxy")}

	s.router = bunrouter.New(bunrouter.Use(s.instrument))
	s.router.POST(rpcPath, s.handleRPC)
	s.router.GET(healthPath, healthHandler())
	if opts.Metrics != nil {
		s.router.GET(opts.MetricsPath, bunrouter.HTTPHandler(opts.Metrics.Handler()))
	}

	return s
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler { return s.router }

func healthHandler() bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, _ bunrouter.Request) error {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
		return nil
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, req bunrouter.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, "body_too_large", http.StatusRequestEntityTooLarge, nil, rpc.CodeInvalidRequest,
				"Request body too large", fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
			return nil
		}
		s.reject(w, "read_error", http.StatusBadRequest, nil, rpc.CodeInvalidRequest, "Invalid Request", err.Error())
		return nil
	}

	rpcReq, err := rpc.DecodeRequest(body)
	if err != nil {
		s.reject(w, "invalid_request", http.StatusBadRequest, peekID(body), rpc.CodeInvalidRequest, "Invalid Request", err.Error())
		return nil
	}
	id := rpcReq.IDOrNull()

	chainID, err := s.chainID(req)
	if err != nil {
		s.reject(w, "invalid_chain", http.StatusBadRequest, id, rpc.CodeInvalidParams, "Invalid chain id", err.Error())
		return nil
	}

	ctx := req.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	decision, err := s.opts.Router.Route(ctx, rpcReq, chainID)
	if err != nil {
		s.reject(w, "invalid_request", http.StatusBadRequest, id, rpc.CodeInvalidRequest, "Invalid Request", err.Error())
		return nil
	}

	reply, err := s.opts.Backend.Dispatch(ctx, chainID, decision.Tier, body)
	if err != nil {
		s.logger.Error("upstream call failed",
			"chain_id", chainID, "method", rpcReq.Method, "tier", decision.Tier.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError,
			rpc.NewErrorResponse(id, rpc.CodeInternalError, "Internal error", err.Error()))
		return nil
	}

	if !reply.OK() {
		s.logger.Warn("upstream returned error status",
			"chain_id", chainID, "method", rpcReq.Method, "tier", decision.Tier.String(), "status", reply.StatusCode)
		writeJSON(w, reply.StatusCode, rpc.NewErrorResponse(id, reply.StatusCode,
			fmt.Sprintf("RPC call failed: %d", reply.StatusCode), string(reply.Body)))
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderNodeTier, decision.Tier.String())
	if !decision.Head.IsSentinel() {
		w.Header().Set(HeaderChainHead, strconv.FormatUint(decision.Head.BlockNumber, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.opts.Normalizer.Normalize(rpcReq.Method, reply.Body))
	return nil
}

// chainID reads ?chainId, falling back to the configured default.
func (s *Server) chainID(req bunrouter.Request) (uint64, error) {
	raw := req.URL.Query().Get("chainId")
	if raw == "" {
		raw = strconv.FormatUint(s.opts.DefaultChainID, 10)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("chainId %q is not a positive integer", raw)
	}
	if !s.opts.Backend.Supports(id) {
		return 0, fmt.Errorf("chain %d is not configured", id)
	}
	return id, nil
}

func (s *Server) reject(w http.ResponseWriter, reason string, status int, id json.RawMessage, code int, msg, data string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveInvalidRequest(reason)
	}
	s.logger.Debug("rejected request", "reason", reason, "detail", data)
	writeJSON(w, status, rpc.NewErrorResponse(id, code, msg, data))
}

// peekID recovers the id of a request that failed validation, so the error
// can still be correlated by the caller.
func peekID(body []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	return probe.ID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
