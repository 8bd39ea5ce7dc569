package assembler

import (
	"fmt"
	"strings"

	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/tx"
)

// Dump renders a transaction for audit logs: every input, output, mint
// entry and redeemer, with plutus payloads in diagnostic notation.
func Dump(t *tx.Transaction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tx %s fee %s\n", t.Hash(), fees.FormatLovelace(t.Fee))
	for i, in := range t.Inputs {
		fmt.Fprintf(&sb, "  in[%d]  %s\n", i, in.PrevOut)
	}
	for i, ref := range t.ReferenceInputs {
		fmt.Fprintf(&sb, "  ref[%d] %s\n", i, ref)
	}
	for i, out := range t.Outputs {
		fmt.Fprintf(&sb, "  out[%d] %s %s", i, out.Address, fees.FormatLovelace(out.Value))
		for _, a := range out.Assets {
			fmt.Fprintf(&sb, " +%d %s", a.Quantity, a.Asset.Unit())
		}
		if len(out.Datum) > 0 {
			fmt.Fprintf(&sb, " datum %s", plutus.Diagnose(out.Datum))
		}
		sb.WriteByte('\n')
	}
	for _, m := range t.Mint {
		fmt.Fprintf(&sb, "  mint   %+d %s\n", m.Quantity, m.Asset.Unit())
	}
	for _, w := range t.Withdrawals {
		fmt.Fprintf(&sb, "  withdraw %s %d\n", w.Script, w.Amount)
	}
	for _, s := range t.RequiredSigners {
		fmt.Fprintf(&sb, "  signer %s\n", s)
	}
	for _, r := range t.Redeemers {
		fmt.Fprintf(&sb, "  redeemer %s[%d] %s\n", r.Purpose, r.Index, plutus.Diagnose(r.Data))
	}
	return sb.String()
}
