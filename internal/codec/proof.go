package codec

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// Proof step constructor indices.
const (
	stepBranch = 0
	stepFork   = 1
	stepLeaf   = 2
)

// neighborsSize is the packed length of a branch step's four digests.
const neighborsSize = 4 * types.HashSize

// ProofData returns the plutus form of p: a list of steps.
func ProofData(p mpf.Proof) plutus.Data {
	l := make(plutus.List, len(p))
	for i, s := range p {
		l[i] = stepData(s)
	}
	return l
}

func stepData(s mpf.Step) plutus.Data {
	switch st := s.(type) {
	case mpf.BranchStep:
		packed := make([]byte, 0, neighborsSize)
		for _, h := range st.Neighbors {
			packed = append(packed, h[:]...)
		}
		return plutus.NewConstr(stepBranch, plutus.NewInt(int64(st.Skip)), plutus.Bytes(packed))
	case mpf.ForkStep:
		n := plutus.NewConstr(0,
			plutus.NewInt(int64(st.Neighbor.Nibble)),
			plutus.Bytes(st.Neighbor.Prefix),
			hashData(st.Neighbor.Root),
		)
		return plutus.NewConstr(stepFork, plutus.NewInt(int64(st.Skip)), n)
	case mpf.LeafStep:
		return plutus.NewConstr(stepLeaf, plutus.NewInt(int64(st.Skip)), hashData(st.Key), hashData(st.Value))
	}
	panic(fmt.Sprintf("codec: unknown proof step %T", s))
}

// ProofFromData decodes a proof.
func ProofFromData(d plutus.Data) (mpf.Proof, error) {
	l, err := plutus.AsList(d)
	if err != nil {
		return nil, err
	}
	p := make(mpf.Proof, len(l))
	for i, item := range l {
		s, err := stepFromData(item)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		p[i] = s
	}
	return p, nil
}

func stepFromData(d plutus.Data) (mpf.Step, error) {
	c, ok := d.(plutus.Constr)
	if !ok {
		return nil, fmt.Errorf("proof step is %T, not a constructor", d)
	}
	switch c.Index {
	case stepBranch:
		f, err := plutus.AsConstr(d, stepBranch, 2)
		if err != nil {
			return nil, err
		}
		skip, err := asSkip(f[0])
		if err != nil {
			return nil, err
		}
		packed, err := plutus.AsBytes(f[1], neighborsSize)
		if err != nil {
			return nil, err
		}
		st := mpf.BranchStep{Skip: skip}
		for i := range st.Neighbors {
			copy(st.Neighbors[i][:], packed[i*types.HashSize:])
		}
		return st, nil

	case stepFork:
		f, err := plutus.AsConstr(d, stepFork, 2)
		if err != nil {
			return nil, err
		}
		skip, err := asSkip(f[0])
		if err != nil {
			return nil, err
		}
		n, err := neighborFromData(f[1])
		if err != nil {
			return nil, err
		}
		return mpf.ForkStep{Skip: skip, Neighbor: n}, nil

	case stepLeaf:
		f, err := plutus.AsConstr(d, stepLeaf, 3)
		if err != nil {
			return nil, err
		}
		skip, err := asSkip(f[0])
		if err != nil {
			return nil, err
		}
		key, err := asHash(f[1])
		if err != nil {
			return nil, err
		}
		value, err := asHash(f[2])
		if err != nil {
			return nil, err
		}
		return mpf.LeafStep{Skip: skip, Key: key, Value: value}, nil
	}
	return nil, fmt.Errorf("unknown proof step %d", c.Index)
}

func neighborFromData(d plutus.Data) (mpf.Neighbor, error) {
	f, err := plutus.AsConstr(d, 0, 3)
	if err != nil {
		return mpf.Neighbor{}, err
	}
	nib, err := plutus.AsInt(f[0])
	if err != nil {
		return mpf.Neighbor{}, err
	}
	if nib < 0 || nib >= mpf.Radix {
		return mpf.Neighbor{}, fmt.Errorf("neighbor nibble %d out of range", nib)
	}
	prefix, err := plutus.AsBytes(f[1], -1)
	if err != nil {
		return mpf.Neighbor{}, err
	}
	for _, p := range prefix {
		if p >= mpf.Radix {
			return mpf.Neighbor{}, fmt.Errorf("neighbor prefix digit %d out of range", p)
		}
	}
	root, err := asHash(f[2])
	if err != nil {
		return mpf.Neighbor{}, err
	}
	return mpf.Neighbor{Nibble: byte(nib), Prefix: prefix, Root: root}, nil
}

func asSkip(d plutus.Data) (int, error) {
	v, err := plutus.AsInt(d)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 2*types.HashSize {
		return 0, fmt.Errorf("skip %d out of range", v)
	}
	return v, nil
}

// MarshalProof encodes a single proof.
func MarshalProof(p mpf.Proof) ([]byte, error) {
	return plutus.Encode(ProofData(p))
}

// UnmarshalProof decodes a single proof.
func UnmarshalProof(b []byte) (mpf.Proof, error) {
	return unmarshal("proof", b, ProofFromData)
}

func proofsData(ps []mpf.Proof) plutus.List {
	l := make(plutus.List, len(ps))
	for i, p := range ps {
		l[i] = ProofData(p)
	}
	return l
}

func proofsFromData(d plutus.Data) ([]mpf.Proof, error) {
	l, err := plutus.AsList(d)
	if err != nil {
		return nil, err
	}
	ps := make([]mpf.Proof, len(l))
	for i, item := range l {
		if ps[i], err = ProofFromData(item); err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
	}
	return ps, nil
}
