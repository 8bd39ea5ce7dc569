// Package assembler turns a mint batch plan into one balanced ledger
// transaction: the commitment and order inputs, the handle mint, the new
// commitment, fee and handle outputs, and the governor invocation.
package assembler

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/handle"
	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/internal/wallet"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// maxFeeRounds bounds the fee fixpoint iteration.
const maxFeeRounds = 8

// Plan errors.
var (
	ErrEmptyPlan        = errors.New("plan has nothing to do")
	ErrPlanOrder        = errors.New("accepted orders are not in input order")
	ErrGovernanceChange = errors.New("plan changes governance")
	ErrMissingScript    = errors.New("plan lacks a script reference")
	ErrFeeNotConverged  = errors.New("fee did not converge")
)

// ScriptValidationError reports an assembled transaction the validators
// rejected. TxHex is the complete failing transaction.
type ScriptValidationError struct {
	TxHex string
	Logs  []string
	Err   error
}

func (e *ScriptValidationError) Error() string {
	return fmt.Sprintf("script validation failed: %v (%d trace lines)", e.Err, len(e.Logs))
}

func (e *ScriptValidationError) Unwrap() error {
	return e.Err
}

// Accepted is one order the batch mints.
type Accepted struct {
	Order   *utxo.UTXO
	Request codec.MintRequest
	Proof   mpf.Proof
}

// Plan is a mint batch ready to assemble.
type Plan struct {
	Commitment *utxo.UTXO
	Record     codec.CommitmentRecord
	NewRecord  codec.CommitmentRecord
	// Accepted is in ascending outpoint order; each proof was taken right
	// after its name was inserted.
	Accepted []Accepted
	Scripts  map[scripts.Role]scripts.Ref
}

// UpdatePlan is an index update that mints nothing.
type UpdatePlan struct {
	Commitment *utxo.UTXO
	Record     codec.CommitmentRecord
	NewRecord  codec.CommitmentRecord
	Names      [][]byte
	Proofs     []mpf.Proof
	Scripts    map[scripts.Role]scripts.Ref
}

// Candidate is an evaluated, unsigned transaction.
type Candidate struct {
	Tx   *tx.Transaction
	Fee  uint64
	Logs []string
	Dump string
}

// Assembler builds batch transactions funded by one minter.
type Assembler struct {
	querier   ledger.Querier
	evaluator ledger.Evaluator
	minter    types.Hash28
}

// New returns an assembler funding and signing batches as minter.
func New(querier ledger.Querier, evaluator ledger.Evaluator, minter types.Hash28) *Assembler {
	return &Assembler{querier: querier, evaluator: evaluator, minter: minter}
}

// Minter returns the minter key hash.
func (a *Assembler) Minter() types.Hash28 {
	return a.minter
}

// scriptInput is a script-locked input with its redeemer.
type scriptInput struct {
	utxo     *utxo.UTXO
	redeemer []byte
}

// draft is the fixed part of a transaction; coins, change and fee are
// added by balance.
type draft struct {
	inputs   []scriptInput
	refs     []types.Outpoint
	outputs  []tx.Output
	mint     []types.Asset
	policy   []byte // mint redeemer
	governor types.Hash28
	redeemer []byte // governor redeemer
}

// Assemble builds, balances and evaluates the transaction for plan.
func (a *Assembler) Assemble(ctx context.Context, plan Plan) (*Candidate, error) {
	if len(plan.Accepted) == 0 {
		return nil, ErrEmptyPlan
	}
	if err := checkPlan(plan.Commitment, plan.Record, plan.NewRecord, plan.Scripts); err != nil {
		return nil, err
	}
	for i := 1; i < len(plan.Accepted); i++ {
		if plan.Accepted[i-1].Order.Outpoint.Compare(plan.Accepted[i].Order.Outpoint) >= 0 {
			return nil, fmt.Errorf("%w: %s before %s", ErrPlanOrder, plan.Accepted[i-1].Order.Outpoint, plan.Accepted[i].Order.Outpoint)
		}
	}
	params, err := a.querier.Params(ctx)
	if err != nil {
		return nil, ledger.FetchError("params", err)
	}

	g := plan.Record.Governance
	sched := g.Schedule()
	d, err := a.baseDraft(plan.Commitment, plan.NewRecord, plan.Scripts)
	if err != nil {
		return nil, err
	}
	execute := plutus.MustEncode(codec.OrderExecute.ToData())
	refAddr := types.ScriptAddress(g.PolicyID)
	proofs := make([]mpf.Proof, len(plan.Accepted))
	names := make([][]byte, len(plan.Accepted))
	for i, acc := range plan.Accepted {
		name := acc.Request.Name
		proofs[i], names[i] = acc.Proof, name
		d.inputs = append(d.inputs, scriptInput{utxo: acc.Order, redeemer: execute})

		ref, user := handle.ReferenceAsset(g.PolicyID, name), handle.UserAsset(g.PolicyID, name)
		datum, err := codec.Marshal(codec.NewHandleDatum(name))
		if err != nil {
			return nil, err
		}
		d.outputs = append(d.outputs,
			tx.Output{Address: refAddr, Value: params.MinUTxO, Assets: one(ref), Datum: datum},
			tx.Output{Address: acc.Request.Destination, Value: params.MinUTxO, Assets: one(user)},
		)
		d.mint = append(d.mint, ref, user)
	}
	d.policy = plutus.MustEncode(codec.Unit)

	treasury, minterFee := sched.Split(sched.Total(names))
	d.outputs = append(d.outputs,
		tx.Output{Address: g.TreasuryAddress, Value: max(treasury, params.MinUTxO)},
		tx.Output{Address: types.KeyAddress(a.minter), Value: max(minterFee, params.MinUTxO)},
	)
	if d.redeemer, err = codec.Marshal(codec.MintBatch{Proofs: proofs, Minter: a.minter}); err != nil {
		return nil, err
	}

	c, err := a.finish(ctx, d, params)
	if err != nil {
		return nil, err
	}
	log.Batch.Info().
		Str("tx", c.Tx.Hash().String()).
		Int("handles", len(names)).
		Uint64("treasury", treasury).
		Uint64("minter_fee", minterFee).
		Uint64("fee", c.Fee).
		Msg("Assembled mint batch")
	return c, nil
}

// AssembleUpdateOnly builds the index update variant: the commitment moves
// to a root covering plan.Names and nothing is minted.
func (a *Assembler) AssembleUpdateOnly(ctx context.Context, plan UpdatePlan) (*Candidate, error) {
	if len(plan.Names) == 0 {
		return nil, ErrEmptyPlan
	}
	if err := checkPlan(plan.Commitment, plan.Record, plan.NewRecord, plan.Scripts); err != nil {
		return nil, err
	}
	params, err := a.querier.Params(ctx)
	if err != nil {
		return nil, ledger.FetchError("params", err)
	}
	d, err := a.baseDraft(plan.Commitment, plan.NewRecord, plan.Scripts)
	if err != nil {
		return nil, err
	}
	red := codec.UpdateOnly{Proofs: plan.Proofs, Names: plan.Names, Minter: a.minter}
	if d.redeemer, err = codec.Marshal(red); err != nil {
		return nil, err
	}
	c, err := a.finish(ctx, d, params)
	if err != nil {
		return nil, err
	}
	log.Batch.Info().
		Str("tx", c.Tx.Hash().String()).
		Int("names", len(plan.Names)).
		Uint64("fee", c.Fee).
		Msg("Assembled index update")
	return c, nil
}

func checkPlan(commitment *utxo.UTXO, old, next codec.CommitmentRecord, refs map[scripts.Role]scripts.Ref) error {
	if commitment == nil {
		return fmt.Errorf("%w: no commitment output", ErrEmptyPlan)
	}
	if !next.Governance.Equal(old.Governance) {
		return ErrGovernanceChange
	}
	for _, role := range scripts.Roles {
		if _, ok := refs[role]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingScript, role)
		}
	}
	return nil
}

// baseDraft spends the commitment into its successor and invokes the governor.
func (a *Assembler) baseDraft(commitment *utxo.UTXO, next codec.CommitmentRecord, refs map[scripts.Role]scripts.Ref) (*draft, error) {
	datum, err := codec.Marshal(next)
	if err != nil {
		return nil, err
	}
	d := &draft{governor: refs[scripts.RoleGovernor].Hash}
	for _, role := range scripts.Roles {
		d.refs = append(d.refs, refs[role].Outpoint)
	}
	d.inputs = append(d.inputs, scriptInput{utxo: commitment, redeemer: plutus.MustEncode(codec.Unit)})
	d.outputs = append(d.outputs, tx.Output{
		Address: commitment.Output.Address,
		Value:   commitment.Output.Value,
		Assets:  commitment.Output.Assets,
		Datum:   datum,
	})
	return d, nil
}

// finish balances d with the minter's coins, iterating until the declared
// fee covers the transaction, then evaluates it.
func (a *Assembler) finish(ctx context.Context, d *draft, params ledger.Params) (*Candidate, error) {
	minterAddr := types.KeyAddress(a.minter)
	held, err := a.querier.UTXOsAt(ctx, minterAddr)
	if err != nil {
		return nil, ledger.FetchError("minter utxos", err)
	}
	coins := wallet.Coins(held)

	var fixedIn, fixedOut uint64
	for _, in := range d.inputs {
		fixedIn += in.utxo.Output.Value
	}
	for _, out := range d.outputs {
		fixedOut += out.Value
	}

	var fee uint64
	for round := 0; round < maxFeeRounds; round++ {
		// The change output always exists and carries at least MinUTxO.
		need := fixedOut + fee + params.MinUTxO
		var sel *wallet.CoinSelection
		if need > fixedIn {
			if sel, err = wallet.SelectCoins(coins, need-fixedIn); err != nil {
				return nil, fmt.Errorf("fund batch: %w", err)
			}
		} else {
			sel = &wallet.CoinSelection{}
		}
		change := fixedIn + sel.Total - fixedOut - fee

		t := d.build(sel.Outpoints(), tx.Output{Address: minterAddr, Value: change}, fee, a.minter)
		required := tx.RequiredFee(t, params.Fee)
		if required <= fee {
			return a.evaluate(ctx, t, fee)
		}
		fee = required
	}
	return nil, ErrFeeNotConverged
}

func (d *draft) build(coins []types.Outpoint, change tx.Output, fee uint64, minter types.Hash28) *tx.Transaction {
	b := tx.NewBuilder()
	for _, in := range d.inputs {
		b.AddScriptInput(in.utxo.Outpoint, in.redeemer)
	}
	for _, op := range coins {
		b.AddInput(op)
	}
	for _, op := range d.refs {
		b.AddReferenceInput(op)
	}
	for _, out := range d.outputs {
		b.AddOutput(out)
	}
	b.AddOutput(change)
	for _, asset := range d.mint {
		b.Mint(asset, 1, d.policy)
	}
	b.Withdraw(d.governor, 0, d.redeemer)
	b.RequireSigner(minter)
	b.SetFee(fee)
	return b.Build()
}

func (a *Assembler) evaluate(ctx context.Context, t *tx.Transaction, fee uint64) (*Candidate, error) {
	logs, err := a.evaluator.Evaluate(ctx, t)
	if err != nil {
		var fetch *ledger.NetworkFetchError
		if errors.As(err, &fetch) {
			return nil, err
		}
		return nil, &ScriptValidationError{TxHex: t.Hex(), Logs: logs, Err: err}
	}
	return &Candidate{Tx: t, Fee: fee, Logs: logs, Dump: Dump(t)}, nil
}

// Sign attaches a witness from each key to the candidate's transaction.
func Sign(c *Candidate, keys ...crypto.Signer) (*tx.Transaction, error) {
	for i, k := range keys {
		if err := c.Tx.Sign(k); err != nil {
			return nil, fmt.Errorf("sign candidate with key %d: %w", i, err)
		}
	}
	return c.Tx, nil
}

func one(asset types.Asset) []types.AssetQuantity {
	return []types.AssetQuantity{{Asset: asset, Quantity: 1}}
}
