package wallet

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no UTXOs available")
	ErrZeroTarget        = errors.New("target must be positive")
)

// UTXO is a spendable lovelace-only output owned by the wallet.
type UTXO struct {
	Outpoint types.Outpoint
	Value    uint64
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []UTXO // Selected UTXOs to spend.
	Total  uint64 // Sum of selected input values.
	Change uint64 // Total - target.
}

// Outpoints returns the selected outpoints in selection order.
func (s *CoinSelection) Outpoints() []types.Outpoint {
	ops := make([]types.Outpoint, len(s.Inputs))
	for i, u := range s.Inputs {
		ops[i] = u.Outpoint
	}
	return ops
}

// Coins keeps the outputs coin selection may spend: plain lovelace with
// no assets, datum or reference script.
func Coins(utxos []*utxo.UTXO) []UTXO {
	coins := make([]UTXO, 0, len(utxos))
	for _, u := range utxos {
		out := u.Output
		if len(out.Assets) > 0 || len(out.Datum) > 0 || len(out.Script) > 0 {
			continue
		}
		coins = append(coins, UTXO{Outpoint: u.Outpoint, Value: out.Value})
	}
	return coins
}

// SelectCoins chooses UTXOs worth at least target. It compares the
// smallest single UTXO covering target with a largest-first accumulation
// and returns whichever leaves less change.
func SelectCoins(utxos []UTXO, target uint64) (*CoinSelection, error) {
	if target == 0 {
		return nil, ErrZeroTarget
	}
	candidates := make([]UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.Value > 0 {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoUTXOs
	}
	slices.SortFunc(candidates, func(a, b UTXO) int {
		return cmp.Or(cmp.Compare(a.Value, b.Value), a.Outpoint.Compare(b.Outpoint))
	})

	var single *CoinSelection
	for _, u := range candidates {
		if u.Value >= target {
			single = &CoinSelection{Inputs: []UTXO{u}, Total: u.Value, Change: u.Value - target}
			break
		}
	}

	var accum *CoinSelection
	var selected []UTXO
	var total uint64
	for i := len(candidates) - 1; i >= 0; i-- {
		selected = append(selected, candidates[i])
		total += candidates[i].Value
		if total >= target {
			accum = &CoinSelection{Inputs: selected, Total: total, Change: total - target}
			break
		}
	}

	switch {
	case single != nil && accum != nil:
		if single.Change <= accum.Change {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, target)
	}
}
