// Package batch runs mint batches: it reconciles pending orders against the
// name index, proves every accepted name and submits one transaction that
// moves the ledger commitment to the new root.
//
// A batch is a state machine over Phase. Each phase is a method that reads
// and extends the batch State and names the next phase; Run drives it from
// PhaseCollect to PhaseDone. The index is only written in PhaseSubmit, right
// before the transaction is handed to the ledger.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Klingon-tech/handlemint/internal/assembler"
	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/handle"
	"github.com/Klingon-tech/handlemint/internal/index"
	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/metrics"
	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Config parameterizes an Orchestrator.
type Config struct {
	// StateAsset identifies the commitment output.
	StateAsset types.Asset
	Collision  CollisionPolicy
	// MaxOrders caps the orders taken per batch. Zero means no cap.
	MaxOrders int
	// DryRun stops after assembly without touching the index or the ledger.
	DryRun bool
}

// State is everything a batch has learned so far.
type State struct {
	Phase Phase

	Params     ledger.Params
	Commitment *utxo.UTXO
	Record     codec.CommitmentRecord
	Scripts    map[scripts.Role]scripts.Ref
	Orders     []Order

	Session   *index.Session
	Accepted  []assembler.Accepted
	Rejected  []Rejection
	NewRecord codec.CommitmentRecord

	Plan      *assembler.Plan
	Candidate *assembler.Candidate
	Tx        *tx.Transaction
	TxHash    types.Hash

	committed bool
}

// Names returns the accepted names in batch order.
func (s *State) Names() [][]byte {
	names := make([][]byte, len(s.Accepted))
	for i, a := range s.Accepted {
		names[i] = a.Request.Name
	}
	return names
}

type step func(ctx context.Context, s *State) (Phase, error)

// Orchestrator runs mint batches for one minter.
type Orchestrator struct {
	cfg       Config
	idx       *index.Index
	querier   ledger.Querier
	submitter ledger.Submitter
	registry  scripts.Registry
	asm       *assembler.Assembler
	signer    crypto.Signer
	steps     map[Phase]step
}

// New returns an orchestrator. signer must hold the assembler's minter key.
func New(cfg Config, idx *index.Index, querier ledger.Querier, submitter ledger.Submitter,
	registry scripts.Registry, asm *assembler.Assembler, signer crypto.Signer) *Orchestrator {
	if cfg.Collision == "" {
		cfg.Collision = CollisionExclude
	}
	o := &Orchestrator{
		cfg:       cfg,
		idx:       idx,
		querier:   querier,
		submitter: submitter,
		registry:  registry,
		asm:       asm,
		signer:    signer,
	}
	o.steps = map[Phase]step{
		PhaseCollect:  o.collect,
		PhaseOrder:    o.order,
		PhaseApply:    o.apply,
		PhaseFinalize: o.finalize,
		PhaseAssemble: o.assemble,
		PhaseSubmit:   o.submit,
	}
	return o
}

// Run executes one batch. The returned state is populated as far as the
// batch got, also on error.
func (o *Orchestrator) Run(ctx context.Context) (*State, error) {
	start := time.Now()
	s := &State{Phase: PhaseCollect}
	defer func() {
		if s.Session != nil && !s.committed {
			s.Session.Discard()
		}
	}()

	for s.Phase != PhaseDone {
		if err := ctx.Err(); err != nil {
			metrics.BatchDone(metrics.OutcomeFailed, time.Since(start))
			return s, fmt.Errorf("batch cancelled in %s: %w", s.Phase, err)
		}
		log.Batch.Debug().Str("phase", s.Phase.String()).Msg("Entering phase")
		next, err := o.steps[s.Phase](ctx, s)
		if err != nil {
			outcome := metrics.OutcomeFailed
			if errors.Is(err, ErrNothingToMint) {
				outcome = metrics.OutcomeEmpty
			}
			metrics.BatchDone(outcome, time.Since(start))
			log.Batch.Warn().Err(err).Str("phase", s.Phase.String()).Msg("Batch failed")
			return s, fmt.Errorf("%s: %w", s.Phase, err)
		}
		s.Phase = next
	}

	outcome := metrics.OutcomeSubmitted
	if o.cfg.DryRun {
		outcome = metrics.OutcomeDryRun
	}
	metrics.BatchDone(outcome, time.Since(start))
	return s, nil
}

// collect reads the commitment, the deployed scripts and the pending orders.
func (o *Orchestrator) collect(ctx context.Context, s *State) (Phase, error) {
	params, err := o.querier.Params(ctx)
	if err != nil {
		return 0, ledger.FetchError("params", err)
	}
	s.Params = params

	if err := o.readCommitment(ctx, s); err != nil {
		return 0, err
	}

	orderAddr := s.Scripts[scripts.RoleOrder].Address()
	pending, err := o.querier.UTXOsAt(ctx, orderAddr)
	if err != nil {
		return 0, ledger.FetchError("orders", err)
	}
	for _, u := range pending {
		req, err := codec.UnmarshalMintRequest(u.Output.Datum)
		if err != nil {
			return 0, fmt.Errorf("order %s: %w", u.Outpoint, err)
		}
		s.Orders = append(s.Orders, Order{UTXO: u, Request: req})
	}

	if err := o.checkRoot(s.Record); err != nil {
		return 0, err
	}
	if len(s.Orders) == 0 {
		return 0, ErrNothingToMint
	}

	log.Batch.Info().
		Int("orders", len(s.Orders)).
		Str("commitment", s.Commitment.Outpoint.String()).
		Str("root", s.Record.Root.String()).
		Msg("Collected orders")
	return PhaseOrder, nil
}

// readCommitment fills in the commitment output, its record and the
// script references, checking they belong together.
func (o *Orchestrator) readCommitment(ctx context.Context, s *State) error {
	held, err := o.querier.UTXOsWithAsset(ctx, o.cfg.StateAsset)
	if err != nil {
		return ledger.FetchError("commitment", err)
	}
	switch len(held) {
	case 0:
		return fmt.Errorf("%w: %s", ErrNoCommitment, o.cfg.StateAsset.Unit())
	case 1:
	default:
		return fmt.Errorf("%w: %d outputs hold %s", ErrManyCommitments, len(held), o.cfg.StateAsset.Unit())
	}
	s.Commitment = held[0]

	record, err := codec.UnmarshalCommitmentRecord(s.Commitment.Output.Datum)
	if err != nil {
		return fmt.Errorf("commitment %s: %w", s.Commitment.Outpoint, err)
	}
	s.Record = record

	refs, err := scripts.LookupAll(ctx, o.registry)
	if err != nil {
		return ledger.FetchError("scripts", err)
	}
	g := record.Governance
	for role, want := range map[scripts.Role]types.Hash28{
		scripts.RoleOrder:    g.OrderScript,
		scripts.RolePolicy:   g.PolicyID,
		scripts.RoleGovernor: g.GovernorScript,
	} {
		if refs[role].Hash != want {
			return fmt.Errorf("%w: %s is %s, record has %s", ErrScriptMismatch, role, refs[role].Hash, want)
		}
	}
	s.Scripts = refs

	if !g.IsMinter(o.asm.Minter()) {
		return fmt.Errorf("%w: %s", ErrNotMinter, o.asm.Minter())
	}
	return nil
}

func (o *Orchestrator) checkRoot(record codec.CommitmentRecord) error {
	if local := o.idx.Root(); local != record.Root {
		return &PreconditionMismatchError{Local: local, Ledger: record.Root}
	}
	return nil
}

// order puts the orders in ledger input order, which is also the order
// the governor checks the proofs in.
func (o *Orchestrator) order(_ context.Context, s *State) (Phase, error) {
	sortOrders(s.Orders)
	if o.cfg.MaxOrders > 0 && len(s.Orders) > o.cfg.MaxOrders {
		log.Batch.Info().
			Int("orders", len(s.Orders)).
			Int("max", o.cfg.MaxOrders).
			Msg("Deferring orders to a later batch")
		s.Orders = s.Orders[:o.cfg.MaxOrders]
	}
	return PhaseApply, nil
}

// apply stages every acceptable name in a session and proves it right
// after its insertion.
func (o *Orchestrator) apply(_ context.Context, s *State) (Phase, error) {
	s.Session = o.idx.Begin()
	sched := s.Record.Governance.Schedule()

	for _, ord := range s.Orders {
		name := ord.Request.Name
		if err := handle.ValidateName(name); err != nil {
			o.reject(s, ord, ReasonInvalidName, err)
			continue
		}
		if need := sched.Price(name) + s.Params.MinUTxO; ord.UTXO.Output.Value < need {
			o.reject(s, ord, ReasonUnderpaid, fmt.Errorf("order %s pays %d, needs %d", ord.UTXO.Outpoint, ord.UTXO.Output.Value, need))
			continue
		}

		if err := s.Session.Insert(name, handle.IndexValue); err != nil {
			if !errors.Is(err, index.ErrDuplicateKey) {
				return 0, err
			}
			if o.cfg.Collision == CollisionAbort {
				metrics.Rejected(ReasonDuplicate)
				return 0, fmt.Errorf("order %s: %w", ord.UTXO.Outpoint, err)
			}
			o.reject(s, ord, ReasonDuplicate, err)
			continue
		}
		proof, err := s.Session.Prove(name)
		if err != nil {
			return 0, fmt.Errorf("prove %q: %w", name, err)
		}
		s.Accepted = append(s.Accepted, assembler.Accepted{Order: ord.UTXO, Request: ord.Request, Proof: proof})

		log.Batch.Debug().
			Str("name", string(name)).
			Str("outpoint", ord.UTXO.Outpoint.String()).
			Str("root", s.Session.Root().String()).
			Msg("Accepted order")
	}
	return PhaseFinalize, nil
}

func sortOrders(orders []Order) {
	slices.SortFunc(orders, func(a, b Order) int {
		return a.UTXO.Outpoint.Compare(b.UTXO.Outpoint)
	})
}

func (o *Orchestrator) reject(s *State, ord Order, reason string, err error) {
	s.Rejected = append(s.Rejected, Rejection{Order: ord, Reason: reason, Err: err})
	metrics.Rejected(reason)
	log.Batch.Info().
		Str("name", string(ord.Request.Name)).
		Str("outpoint", ord.UTXO.Outpoint.String()).
		Str("reason", reason).
		Err(err).
		Msg("Rejected order")
}

// finalize turns the accepted orders into a plan.
func (o *Orchestrator) finalize(_ context.Context, s *State) (Phase, error) {
	if len(s.Accepted) == 0 {
		last := s.Rejected[len(s.Rejected)-1]
		return 0, fmt.Errorf("%w: %w", ErrNothingToMint, last.Err)
	}
	s.NewRecord = s.Record.WithRoot(s.Session.Root())
	s.Plan = &assembler.Plan{
		Commitment: s.Commitment,
		Record:     s.Record,
		NewRecord:  s.NewRecord,
		Accepted:   s.Accepted,
		Scripts:    s.Scripts,
	}
	metrics.Accepted(len(s.Accepted))
	log.Batch.Info().
		Int("accepted", len(s.Accepted)).
		Int("rejected", len(s.Rejected)).
		Str("prev_root", s.Record.Root.String()).
		Str("root", s.NewRecord.Root.String()).
		Msg("Batch finalized")
	return PhaseAssemble, nil
}

func (o *Orchestrator) assemble(ctx context.Context, s *State) (Phase, error) {
	c, err := o.asm.Assemble(ctx, *s.Plan)
	if err != nil {
		return 0, err
	}
	s.Candidate = c
	if o.cfg.DryRun {
		log.Batch.Info().Str("tx", c.Tx.Hash().String()).Msg("Dry run, not submitting")
		return PhaseDone, nil
	}
	return PhaseSubmit, nil
}

// submit signs the candidate, commits the index and hands the transaction
// to the ledger.
func (o *Orchestrator) submit(ctx context.Context, s *State) (Phase, error) {
	signed, err := assembler.Sign(s.Candidate, o.signer)
	if err != nil {
		return 0, err
	}
	s.Tx = signed

	if err := o.commit(s); err != nil {
		return 0, err
	}
	hash, err := o.submitter.Submit(ctx, signed)
	if err != nil {
		log.Batch.Error().
			Err(err).
			Str("tx", signed.Hash().String()).
			Str("prev_root", s.Record.Root.String()).
			Msg("Submit failed after index commit; run `index revert` once the ledger shows prev_root")
		return 0, fmt.Errorf("submit: %w", err)
	}
	s.TxHash = hash

	log.Batch.Info().
		Str("tx", hash.String()).
		Int("handles", len(s.Accepted)).
		Str("root", s.NewRecord.Root.String()).
		Msg("Batch submitted")
	return PhaseDone, nil
}

func (o *Orchestrator) commit(s *State) error {
	if err := s.Session.Commit(); err != nil {
		return err
	}
	s.committed = true
	metrics.IndexSize(o.idx.Len())
	return nil
}

// Backfill moves the commitment to a root that also covers names, without
// minting anything. It is used to bring the ledger up to names indexed out
// of band.
func (o *Orchestrator) Backfill(ctx context.Context, names [][]byte) (*State, error) {
	s := &State{Phase: PhaseCollect}
	defer func() {
		if s.Session != nil && !s.committed {
			s.Session.Discard()
		}
	}()
	if len(names) == 0 {
		return s, ErrNothingToMint
	}
	if err := o.readCommitment(ctx, s); err != nil {
		return s, err
	}
	if err := o.checkRoot(s.Record); err != nil {
		return s, err
	}

	s.Phase = PhaseApply
	s.Session = o.idx.Begin()
	proofs := make([]mpf.Proof, 0, len(names))
	for _, name := range names {
		if err := handle.ValidateName(name); err != nil {
			return s, fmt.Errorf("backfill %q: %w", name, err)
		}
		if err := s.Session.Insert(name, handle.IndexValue); err != nil {
			return s, fmt.Errorf("backfill: %w", err)
		}
		proof, err := s.Session.Prove(name)
		if err != nil {
			return s, fmt.Errorf("prove %q: %w", name, err)
		}
		proofs = append(proofs, proof)
	}
	s.NewRecord = s.Record.WithRoot(s.Session.Root())

	s.Phase = PhaseAssemble
	c, err := o.asm.AssembleUpdateOnly(ctx, assembler.UpdatePlan{
		Commitment: s.Commitment,
		Record:     s.Record,
		NewRecord:  s.NewRecord,
		Names:      slices.Clone(names),
		Proofs:     proofs,
		Scripts:    s.Scripts,
	})
	if err != nil {
		return s, err
	}
	s.Candidate = c
	if o.cfg.DryRun {
		s.Phase = PhaseDone
		return s, nil
	}

	s.Phase = PhaseSubmit
	if _, err := o.submit(ctx, s); err != nil {
		return s, err
	}
	s.Phase = PhaseDone
	return s, nil
}

// Pending returns the names waiting at the order address, in input order.
// Undecodable orders are skipped.
func Pending(ctx context.Context, querier ledger.Querier, registry scripts.Registry) ([]Order, error) {
	ref, err := registry.Lookup(ctx, scripts.RoleOrder)
	if err != nil {
		return nil, ledger.FetchError("scripts", err)
	}
	held, err := querier.UTXOsAt(ctx, ref.Address())
	if err != nil {
		return nil, ledger.FetchError("orders", err)
	}
	var orders []Order
	for _, u := range held {
		req, err := codec.UnmarshalMintRequest(u.Output.Datum)
		if err != nil {
			continue
		}
		orders = append(orders, Order{UTXO: u, Request: req})
	}
	sortOrders(orders)
	return orders, nil
}
