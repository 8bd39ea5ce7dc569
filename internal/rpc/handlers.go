package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

func (s *Server) handleGetParams(ctx context.Context, _ *Request) (any, *Error) {
	params, err := s.backend.Params(ctx)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("params: %v", err)}
	}
	return params, nil
}

func (s *Server) handleUTXOsAt(ctx context.Context, req *Request) (any, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address: %v", err)}
	}

	utxos, err := s.backend.UTXOsAt(ctx, addr)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("get utxos: %v", err)}
	}
	return nonNil(utxos), nil
}

func (s *Server) handleUTXOsWithAsset(ctx context.Context, req *Request) (any, *Error) {
	var params AssetParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	asset, err := types.ParseUnit(params.Unit)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid unit: %v", err)}
	}

	utxos, err := s.backend.UTXOsWithAsset(ctx, asset)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("get utxos: %v", err)}
	}
	return nonNil(utxos), nil
}

func (s *Server) handleSubmit(ctx context.Context, req *Request) (any, *Error) {
	transaction, rpcErr := decodeTx(req)
	if rpcErr != nil {
		return nil, rpcErr
	}

	hash, err := s.backend.Submit(ctx, transaction)
	if err != nil {
		return nil, &Error{Code: CodeRejected, Message: fmt.Sprintf("rejected: %v", err)}
	}
	s.logger.Info().Str("tx", hash.String()).Msg("Transaction applied")

	if s.relay != nil {
		if err := s.relay.BroadcastTx(transaction); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to broadcast transaction")
		}
	}
	return &SubmitResult{Hash: hash}, nil
}

func (s *Server) handleEvaluate(ctx context.Context, req *Request) (any, *Error) {
	transaction, rpcErr := decodeTx(req)
	if rpcErr != nil {
		return nil, rpcErr
	}

	logs, err := s.backend.Evaluate(ctx, transaction)
	if logs == nil {
		logs = []string{}
	}
	if err != nil {
		return nil, &Error{Code: CodeScriptFailed, Message: err.Error(), Data: &EvaluateResult{Logs: logs}}
	}
	return &EvaluateResult{Logs: logs}, nil
}

func (s *Server) handleScriptsLookup(ctx context.Context, req *Request) (any, *Error) {
	var params RoleParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	role := scripts.Role(params.Role)
	if !role.Valid() {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown role %q", params.Role)}
	}

	ref, err := s.backend.Lookup(ctx, role)
	if errors.Is(err, scripts.ErrUnknownRole) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("script %s not deployed", role)}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("lookup: %v", err)}
	}
	return ref, nil
}

func (s *Server) handleDevFund(ctx context.Context, req *Request) (any, *Error) {
	if s.faucet == nil {
		return nil, &Error{Code: CodeNotFound, Message: "faucet not enabled"}
	}
	var params FundParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address: %v", err)}
	}

	op, err := s.faucet.Fund(ctx, addr, params.Value)
	if err != nil {
		return nil, &Error{Code: CodeRejected, Message: fmt.Sprintf("fund: %v", err)}
	}
	return &OutpointResult{Outpoint: op}, nil
}

func (s *Server) handleDevPlaceOrder(ctx context.Context, req *Request) (any, *Error) {
	if s.faucet == nil {
		return nil, &Error{Code: CodeNotFound, Message: "faucet not enabled"}
	}
	var params PlaceOrderParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := types.HexToHash28(params.Owner)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid owner: %v", err)}
	}
	dest, err := types.ParseAddress(params.Destination)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid destination: %v", err)}
	}

	request := codec.MintRequest{Owner: owner, Name: []byte(params.Name), Destination: dest}
	op, err := s.faucet.PlaceOrder(ctx, request, params.Lovelace)
	if err != nil {
		return nil, &Error{Code: CodeRejected, Message: fmt.Sprintf("place order: %v", err)}
	}
	s.logger.Info().Str("name", params.Name).Str("outpoint", op.String()).Msg("Order placed")
	return &OutpointResult{Outpoint: op}, nil
}

func decodeTx(req *Request) (*tx.Transaction, *Error) {
	var params TxParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Tx == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "tx is required"}
	}
	transaction, err := tx.FromHex(params.Tx)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid tx: %v", err)}
	}
	return transaction, nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil(utxos []*utxo.UTXO) []*utxo.UTXO {
	if utxos == nil {
		return []*utxo.UTXO{}
	}
	return utxos
}
