// Package rpc serves a ledger and its script registry over JSON-RPC 2.0.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/ledger"
	klog "github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/metrics"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// maxBodySize bounds a request body; a batch transaction fits easily.
	maxBodySize = 1 << 20
	// maxBatchCalls bounds the calls in one JSON-RPC batch.
	maxBatchCalls = 32
)

// Backend is the ledger surface the server exposes.
type Backend interface {
	ledger.Ledger
	scripts.Registry
}

// Faucet creates outputs on a development ledger without spending anything.
type Faucet interface {
	Fund(ctx context.Context, addr types.Address, value uint64) (types.Outpoint, error)
	PlaceOrder(ctx context.Context, req codec.MintRequest, lovelace uint64) (types.Outpoint, error)
}

// Relay gossips applied transactions to peers.
type Relay interface {
	BroadcastTx(transaction *tx.Transaction) error
}

// method serves one JSON-RPC method.
type method func(ctx context.Context, req *Request) (any, *Error)

// Server serves a ledger over JSON-RPC 2.0 on HTTP POST.
type Server struct {
	addr    string
	backend Backend
	faucet  Faucet // nil disables dev_* endpoints.
	relay   Relay  // nil = no gossip after submit.
	methods map[string]method
	access  access
	server  *http.Server
	ln      net.Listener
	logger  zerolog.Logger
}

// New creates a server for backend. The optional rpcCfg controls IP
// filtering and CORS; without it every IP is allowed and CORS is off.
func New(addr string, backend Backend, rpcCfg ...config.RPCConfig) *Server {
	s := &Server{
		addr:    addr,
		backend: backend,
		logger:  klog.WithComponent("rpc"),
	}
	if len(rpcCfg) > 0 {
		s.access = newAccess(rpcCfg[0].AllowedIPs, rpcCfg[0].CORSOrigins)
	}
	s.methods = map[string]method{
		MethodGetParams:      s.handleGetParams,
		MethodUTXOsAt:        s.handleUTXOsAt,
		MethodUTXOsWithAsset: s.handleUTXOsWithAsset,
		MethodSubmit:         s.handleSubmit,
		MethodEvaluate:       s.handleEvaluate,
		MethodScriptsLookup:  s.handleScriptsLookup,
		MethodDevFund:        s.handleDevFund,
		MethodDevPlaceOrder:  s.handleDevPlaceOrder,
	}

	mux := http.NewServeMux()
	mux.Handle("/", s.access.wrap(http.HandlerFunc(s.serveRPC)))
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
	}
	return s
}

// SetFaucet enables the dev_* endpoints.
func (s *Server) SetFaucet(f Faucet) {
	s.faucet = f
}

// SetRelay sets the peer relay that receives every applied transaction.
func (s *Server) SetRelay(r Relay) {
	s.relay = r
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("faucet", s.faucet != nil).
		Bool("relay", s.relay != nil).
		Msg("RPC server listening")
	return nil
}

// Addr returns the bound address once started, so ":0" resolves.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down, waiting up to 5s for in-flight calls.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// serveRPC decodes a single call or a batch and writes the responses.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, errorResponse(nil, CodeInvalidRequest, "only POST method is allowed"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeJSON(w, errorResponse(nil, CodeParseError, "failed to read request body"))
		return
	}
	if len(body) > maxBodySize {
		writeJSON(w, errorResponse(nil, CodeInvalidRequest, "request body too large"))
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var calls []json.RawMessage
		if err := json.Unmarshal(body, &calls); err != nil {
			writeJSON(w, errorResponse(nil, CodeParseError, "invalid JSON"))
			return
		}
		switch {
		case len(calls) == 0:
			writeJSON(w, errorResponse(nil, CodeInvalidRequest, "empty batch"))
			return
		case len(calls) > maxBatchCalls:
			writeJSON(w, errorResponse(nil, CodeInvalidRequest, fmt.Sprintf("batch exceeds %d calls", maxBatchCalls)))
			return
		}
		resps := make([]Response, len(calls))
		for i, raw := range calls {
			resps[i] = s.call(r.Context(), raw)
		}
		writeJSON(w, resps)
		return
	}
	writeJSON(w, s.call(r.Context(), body))
}

// call serves one encoded request.
func (s *Server) call(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	start := time.Now()
	result, rpcErr := s.dispatch(ctx, &req)
	if rpcErr != nil {
		metrics.RPCCall(req.Method, rpcErr.Code, time.Since(start))
		s.logger.Debug().Str("method", req.Method).Int("code", rpcErr.Code).Msg(rpcErr.Message)
		return Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID}
	}
	metrics.RPCCall(req.Method, 0, time.Since(start))
	return Response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

// dispatch routes a request to its method.
func (s *Server) dispatch(ctx context.Context, req *Request) (any, *Error) {
	m, ok := s.methods[req.Method]
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	return m(ctx, req)
}

func errorResponse(id any, code int, message string) Response {
	return Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message}, ID: id}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseParams unmarshals the request params into target.
func parseParams(req *Request, target any) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
