package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/internal/rpc"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

var (
	_ ledger.Ledger    = (*Client)(nil)
	_ scripts.Registry = (*Client)(nil)
	_ rpc.Faucet       = (*Client)(nil)
)

// Params implements ledger.Querier.
func (c *Client) Params(ctx context.Context) (ledger.Params, error) {
	var params ledger.Params
	if err := c.CallContext(ctx, rpc.MethodGetParams, nil, &params); err != nil {
		return ledger.Params{}, ledger.FetchError("params", err)
	}
	return params, nil
}

// UTXOsAt implements ledger.Querier.
func (c *Client) UTXOsAt(ctx context.Context, addr types.Address) ([]*utxo.UTXO, error) {
	var utxos []*utxo.UTXO
	if err := c.CallContext(ctx, rpc.MethodUTXOsAt, rpc.AddressParam{Address: addr.String()}, &utxos); err != nil {
		return nil, ledger.FetchError("utxos at "+addr.String(), err)
	}
	return utxos, nil
}

// UTXOsWithAsset implements ledger.Querier.
func (c *Client) UTXOsWithAsset(ctx context.Context, asset types.Asset) ([]*utxo.UTXO, error) {
	var utxos []*utxo.UTXO
	if err := c.CallContext(ctx, rpc.MethodUTXOsWithAsset, rpc.AssetParam{Unit: asset.Unit()}, &utxos); err != nil {
		return nil, ledger.FetchError("utxos with "+asset.Unit(), err)
	}
	return utxos, nil
}

// Submit implements ledger.Submitter. A server-side rejection is returned
// as *RPCError; transport failures as *ledger.NetworkFetchError.
func (c *Client) Submit(ctx context.Context, transaction *tx.Transaction) (types.Hash, error) {
	var result rpc.SubmitResult
	err := c.CallContext(ctx, rpc.MethodSubmit, rpc.TxParam{Tx: transaction.Hex()}, &result)
	if err != nil {
		if rpcErr := asRPCError(err); rpcErr != nil && rpcErr.Code == rpc.CodeRejected {
			return types.Hash{}, rpcErr
		}
		return types.Hash{}, ledger.FetchError("submit", err)
	}
	return result.Hash, nil
}

// Evaluate implements ledger.Evaluator. When a script fails the logs
// are returned together with the *RPCError.
func (c *Client) Evaluate(ctx context.Context, transaction *tx.Transaction) ([]string, error) {
	var result rpc.EvaluateResult
	err := c.CallContext(ctx, rpc.MethodEvaluate, rpc.TxParam{Tx: transaction.Hex()}, &result)
	if err == nil {
		return result.Logs, nil
	}
	rpcErr := asRPCError(err)
	if rpcErr == nil || rpcErr.Code != rpc.CodeScriptFailed {
		return nil, ledger.FetchError("evaluate", err)
	}
	if len(rpcErr.Data) > 0 {
		var failed rpc.EvaluateResult
		if json.Unmarshal(rpcErr.Data, &failed) == nil {
			return failed.Logs, rpcErr
		}
	}
	return nil, rpcErr
}

// Lookup implements scripts.Registry.
func (c *Client) Lookup(ctx context.Context, role scripts.Role) (scripts.Ref, error) {
	var ref scripts.Ref
	err := c.CallContext(ctx, rpc.MethodScriptsLookup, rpc.RoleParam{Role: string(role)}, &ref)
	if err != nil {
		if rpcErr := asRPCError(err); rpcErr != nil && rpcErr.Code == rpc.CodeNotFound {
			return scripts.Ref{}, fmt.Errorf("%w: %s", scripts.ErrUnknownRole, role)
		}
		return scripts.Ref{}, ledger.FetchError("lookup "+string(role), err)
	}
	return ref, nil
}

// Fund asks a development ledger to create an output of value at addr.
func (c *Client) Fund(ctx context.Context, addr types.Address, value uint64) (types.Outpoint, error) {
	var result rpc.OutpointResult
	params := rpc.FundParam{Address: addr.String(), Value: value}
	if err := c.CallContext(ctx, rpc.MethodDevFund, params, &result); err != nil {
		return types.Outpoint{}, err
	}
	return result.Outpoint, nil
}

// PlaceOrder asks a development ledger to lock a mint request at the order script.
func (c *Client) PlaceOrder(ctx context.Context, req codec.MintRequest, lovelace uint64) (types.Outpoint, error) {
	var result rpc.OutpointResult
	params := rpc.PlaceOrderParam{
		Owner:       req.Owner.String(),
		Name:        string(req.Name),
		Destination: req.Destination.String(),
		Lovelace:    lovelace,
	}
	if err := c.CallContext(ctx, rpc.MethodDevPlaceOrder, params, &result); err != nil {
		return types.Outpoint{}, err
	}
	return result.Outpoint, nil
}

func asRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return nil
}
