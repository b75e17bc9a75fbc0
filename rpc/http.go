package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tradelock/native/common"
	"tradelock/native/escrow"
	"tradelock/native/lock"
	"tradelock/native/swap"
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
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeGuardFailed    = -32010
	codeModulePaused   = -32020
)

// Server exposes every protocol operation over JSON-RPC 2.0. Live lock and
// key handles are linear in-memory objects, so the server keeps them in a
// vault and callers reference them by id.
type Server struct {
	custodian *swap.Engine
	listings  *swap.ListingEngine
	escrows   *escrow.Engine
	vault     *handleVault
	log       *slog.Logger
}

// NewServer wires the three protocol engines behind the RPC surface.
func NewServer(custodian *swap.Engine, listings *swap.ListingEngine, escrows *escrow.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		custodian: custodian,
		listings:  listings,
		escrows:   escrows,
		vault:     newHandleVault(),
		log:       logger,
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
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

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "unable to read request body", err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.handlers()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method", req.Method)
		return
	}
	result, err := handler(req.Params)
	if err != nil {
		s.log.Warn("rpc call failed", "method", req.Method, "error", err)
		status, code := errorCode(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, result)
}

type handlerFunc func(params []json.RawMessage) (interface{}, error)

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"lock_create":                s.handleLockCreate,
		"swap_custodianDeposit":      s.handleCustodianDeposit,
		"swap_custodianSettle":       s.handleCustodianSettle,
		"swap_custodianReturn":       s.handleCustodianReturn,
		"swap_listingCreate":         s.handleListingCreate,
		"swap_listingSwap":           s.handleListingSwap,
		"swap_listingReturn":         s.handleListingReturn,
		"escrow_createTrade":         s.handleEscrowCreate,
		"escrow_deposit":             s.handleEscrowDeposit,
		"escrow_submitBuyerChannel":  s.handleEscrowSubmitBuyer,
		"escrow_submitSellerChannel": s.handleEscrowSubmitSeller,
		"escrow_claim":               s.handleEscrowClaim,
		"escrow_cancel":              s.handleEscrowCancel,
		"escrow_get":                 s.handleEscrowGet,
	}
}

type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func invalidParams(msg string) error { return &paramError{msg: msg} }

func errorCode(err error) (int, int) {
	var pErr *paramError
	switch {
	case errors.As(err, &pErr):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable, codeModulePaused
	case errors.Is(err, swap.ErrRecordNotFound),
		errors.Is(err, swap.ErrListingNotFound),
		errors.Is(err, escrow.ErrEscrowNotFound),
		errors.Is(err, errHandleNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, swap.ErrUnauthorizedCustodian),
		errors.Is(err, escrow.ErrInvalidCaller):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, swap.ErrMismatchedSenderRecipient),
		errors.Is(err, swap.ErrMismatchedExchangeObject),
		errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrAlreadySubmitted),
		errors.Is(err, escrow.ErrInsufficientPayment),
		errors.Is(err, escrow.ErrInsufficientBalance),
		errors.Is(err, escrow.ErrTransferNotCompleted),
		errors.Is(err, escrow.ErrTransferAlreadyCompleted),
		errors.Is(err, lock.ErrKeyMismatch),
		errors.Is(err, lock.ErrLockConsumed),
		errors.Is(err, lock.ErrKeySpent):
		return http.StatusConflict, codeGuardFailed
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func decodeParams(params []json.RawMessage, out interface{}) error {
	if len(params) != 1 {
		return invalidParams("expected a single params object")
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return invalidParams("malformed params: " + err.Error())
	}
	return nil
}
