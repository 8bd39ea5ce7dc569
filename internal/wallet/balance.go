package wallet

import "github.com/Klingon-tech/handlemint/internal/utxo"

// Balance summarizes the outputs at an address.
type Balance struct {
	Lovelace  uint64 `json:"lovelace"`
	Spendable uint64 `json:"spendable"`
	Coins     int    `json:"coins"`
	Assets    int    `json:"assets"`
}

// Summarize totals utxos. Spendable counts only what coin selection may use.
func Summarize(utxos []*utxo.UTXO) Balance {
	var b Balance
	for _, u := range utxos {
		b.Lovelace += u.Output.Value
		b.Assets += len(u.Output.Assets)
	}
	for _, c := range Coins(utxos) {
		b.Spendable += c.Value
		b.Coins++
	}
	return b
}
