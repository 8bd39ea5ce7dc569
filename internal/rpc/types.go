package rpc

import (
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeRejected       = -32001 // The ledger refused the transaction.
	CodeScriptFailed   = -32002 // A script failed during evaluation; Data carries the logs.
)

// Method names.
const (
	MethodGetParams      = "ledger_getParams"
	MethodUTXOsAt        = "ledger_getUTXOsAt"
	MethodUTXOsWithAsset = "ledger_getUTXOsWithAsset"
	MethodSubmit         = "ledger_submit"
	MethodEvaluate       = "ledger_evaluate"
	MethodScriptsLookup  = "scripts_lookup"
	MethodDevFund        = "dev_fund"
	MethodDevPlaceOrder  = "dev_placeOrder"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      any    `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// AddressParam is used by ledger_getUTXOsAt.
type AddressParam struct {
	Address string `json:"address"`
}

// AssetParam is used by ledger_getUTXOsWithAsset. Unit is hex(policy)
// followed by hex(name).
type AssetParam struct {
	Unit string `json:"unit"`
}

// TxParam is used by ledger_submit and ledger_evaluate.
type TxParam struct {
	Tx string `json:"tx"` // Hex of the canonical encoding.
}

// RoleParam is used by scripts_lookup.
type RoleParam struct {
	Role string `json:"role"`
}

// FundParam is used by dev_fund.
type FundParam struct {
	Address string `json:"address"`
	Value   uint64 `json:"value"`
}

// PlaceOrderParam is used by dev_placeOrder.
type PlaceOrderParam struct {
	Owner       string `json:"owner"` // Key hash, hex.
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Lovelace    uint64 `json:"lovelace"`
}

// ── Result types ────────────────────────────────────────────────────────

// SubmitResult is returned by ledger_submit.
type SubmitResult struct {
	Hash types.Hash `json:"hash"`
}

// EvaluateResult is returned by ledger_evaluate, and carried as error data
// when a script fails.
type EvaluateResult struct {
	Logs []string `json:"logs"`
}

// OutpointResult is returned by the dev_* endpoints.
type OutpointResult struct {
	Outpoint types.Outpoint `json:"outpoint"`
}
