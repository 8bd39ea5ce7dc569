package batch

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Phase is a step of the batch state machine.
type Phase uint8

const (
	PhaseCollect Phase = iota
	PhaseOrder
	PhaseApply
	PhaseFinalize
	PhaseAssemble
	PhaseSubmit
	PhaseDone
)

var phaseNames = [...]string{
	PhaseCollect:  "collect",
	PhaseOrder:    "order",
	PhaseApply:    "apply",
	PhaseFinalize: "finalize",
	PhaseAssemble: "assemble",
	PhaseSubmit:   "submit",
	PhaseDone:     "done",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// CollisionPolicy decides what a name collision does to the batch.
type CollisionPolicy string

const (
	// CollisionExclude rejects the colliding request and continues.
	CollisionExclude CollisionPolicy = "exclude"
	// CollisionAbort fails the whole batch on the first collision.
	CollisionAbort CollisionPolicy = "abort"
)

// ParseCollisionPolicy parses a policy name. The empty string selects
// CollisionExclude.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case "", CollisionExclude:
		return CollisionExclude, nil
	case CollisionAbort:
		return CollisionAbort, nil
	}
	return "", fmt.Errorf("unknown collision policy %q (want %q or %q)", s, CollisionExclude, CollisionAbort)
}

// Batch errors.
var (
	ErrNothingToMint   = errors.New("nothing to mint")
	ErrNoCommitment    = errors.New("commitment output not found")
	ErrManyCommitments = errors.New("more than one commitment output")
	ErrScriptMismatch  = errors.New("deployed script does not match commitment record")
	ErrNotMinter       = errors.New("key is not an allowed minter")
)

// PreconditionMismatchError reports a local index whose root differs from
// the root committed on the ledger.
type PreconditionMismatchError struct {
	Local  types.Hash
	Ledger types.Hash
}

func (e *PreconditionMismatchError) Error() string {
	return fmt.Sprintf("index root %s does not match ledger root %s", e.Local, e.Ledger)
}

// Rejection reasons.
const (
	ReasonInvalidName = "invalid_name"
	ReasonUnderpaid   = "underpaid"
	ReasonDuplicate   = "duplicate"
)

// Order is a pending mint request and the output carrying it.
type Order struct {
	UTXO    *utxo.UTXO
	Request codec.MintRequest
}

// Rejection is an order left out of the batch.
type Rejection struct {
	Order  Order
	Reason string
	Err    error
}
