package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"checksvault/core/state"
	"checksvault/native/vault"
	"checksvault/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000

	codeSupplyCeiling       = -32030
	codeInsufficientBalance = -32031
	codeInvalidOrder        = -32032
	codeNotAuthorized       = -32033
	codeItemNotFound        = -32034
	codeNotInCustody        = -32035
	codeRegistryRejected    = -32036
	codeUnsolicitedValue    = -32037
)

// Server exposes the vault over JSON-RPC 2.0.
type Server struct {
	engine  *vault.Engine
	state   *state.Manager
	logger  *slog.Logger
	metrics *metrics.VaultMetrics
}

// NewServer wires the engine and the read-only state views into an RPC
// server.
func NewServer(engine *vault.Engine, st *state.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		state:   st,
		logger:  logger,
		metrics: metrics.Vault(),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "checksvault-rpc")
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC payload", nil)
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		s.logger.Warn("rpc request failed",
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("reason", rpcErr.Message))
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

type handlerFunc func(params []json.RawMessage) (interface{}, *RPCError)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"vault_deposit":        s.handleDeposit,
		"vault_redeem":         s.handleRedeem,
		"vault_mergePair":      s.handleMergePair,
		"vault_mergeAggregate": s.handleMergeAggregate,
		"vault_receiveValue":   s.handleReceiveValue,
		"vault_maxSupply":      s.handleMaxSupply,
		"vault_totalIssued":    s.handleTotalIssued,
		"token_balanceOf":      s.handleBalanceOf,
		"registry_getItem":     s.handleGetItem,
		"registry_ownerOf":     s.handleOwnerOf,
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeSingleParam(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected exactly one parameter object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "malformed parameter object"}
	}
	return nil
}
