package codec

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/Klingon-tech/handlemint/internal/mpf"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

func h28(b byte) types.Hash28 {
	var h types.Hash28
	for i := range h {
		h[i] = b
	}
	return h
}

func h32(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func testGovernance() Governance {
	return Governance{
		AllowedMinters:     []types.Hash28{h28(0x01), h28(0x02)},
		TreasuryAddress:    types.KeyAddress(h28(0x03)),
		TreasuryFeePercent: 10,
		MinTreasuryFee:     1_000_000,
		MinMinterFee:       1_000_000,
		Prices:             [4]uint64{450_000_000, 175_000_000, 35_000_000, 10_000_000},
		PolicyID:           h28(0x04),
		OrderScript:        h28(0x05),
		GovernorScript:     h28(0x06),
	}
}

// testTrie returns a trie holding count names and a proof for each.
func testTrie(t *testing.T, count int) (*mpf.Trie, map[string]mpf.Proof) {
	t.Helper()
	trie := mpf.New()
	var err error
	for i := 0; i < count; i++ {
		if trie, err = trie.Insert([]byte(fmt.Sprintf("name-%d", i)), nil); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	proofs := make(map[string]mpf.Proof)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("name-%d", i)
		p, err := trie.Prove([]byte(name))
		if err != nil {
			t.Fatalf("Prove(%s): %v", name, err)
		}
		proofs[name] = p
	}
	return trie, proofs
}

func TestCommitmentRecord_RoundTrip(t *testing.T) {
	rec := CommitmentRecord{Root: h32(0xab), Governance: testGovernance()}
	enc, err := Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalCommitmentRecord(enc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip = %+v, want %+v", got, rec)
	}
	again, _ := Marshal(got)
	if !bytes.Equal(again, enc) {
		t.Fatal("re-encoding changed bytes")
	}
}

func TestCommitmentRecord_EmptyRoot(t *testing.T) {
	rec := CommitmentRecord{Governance: testGovernance()}
	got, err := UnmarshalCommitmentRecord(mustMarshal(t, rec))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Root.IsZero() {
		t.Fatalf("root = %s, want zero", got.Root)
	}
}

func TestCommitmentRecord_WithRoot(t *testing.T) {
	rec := CommitmentRecord{Root: h32(1), Governance: testGovernance()}
	next := rec.WithRoot(h32(2))
	if rec.Root != h32(1) || next.Root != h32(2) {
		t.Fatalf("WithRoot mutated the original")
	}
	next.Governance.AllowedMinters[0] = h28(0xff)
	if rec.Governance.AllowedMinters[0] == h28(0xff) {
		t.Fatal("WithRoot shares the minter slice")
	}
}

func TestGovernance_Helpers(t *testing.T) {
	g := testGovernance()
	if !g.IsMinter(h28(0x02)) || g.IsMinter(h28(0x09)) {
		t.Error("IsMinter mismatch")
	}
	s := g.Schedule()
	if s.Prices != g.Prices || s.TreasuryPercent != 10 || s.MinTreasury != g.MinTreasuryFee {
		t.Errorf("Schedule = %+v", s)
	}
}

func TestMintRequest_RoundTrip(t *testing.T) {
	req := MintRequest{
		Owner:       h28(0x11),
		Name:        []byte("abc"),
		Destination: types.KeyAddress(h28(0x12)),
	}
	got, err := UnmarshalMintRequest(mustMarshal(t, req))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Fatalf("round trip = %+v, want %+v", got, req)
	}
}

func TestFeeSchedule_RoundTrip(t *testing.T) {
	s := FeeSchedule(testGovernance().Schedule())
	got, err := UnmarshalFeeSchedule(mustMarshal(t, s))
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Fatalf("round trip = %+v, want %+v", got, s)
	}
}

func TestProof_RoundTripAndVerify(t *testing.T) {
	trie, proofs := testTrie(t, 40)
	root := trie.Root()

	for name, p := range proofs {
		enc, err := MarshalProof(p)
		if err != nil {
			t.Fatalf("MarshalProof(%s): %v", name, err)
		}
		got, err := UnmarshalProof(enc)
		if err != nil {
			t.Fatalf("UnmarshalProof(%s): %v", name, err)
		}
		if again, _ := MarshalProof(got); !bytes.Equal(again, enc) {
			t.Fatalf("proof %s changed through the codec", name)
		}
		if len(got) != len(p) {
			t.Fatalf("proof %s has %d steps, want %d", name, len(got), len(p))
		}
		if err := got.VerifyMembership(root, []byte(name), nil); err != nil {
			t.Fatalf("decoded proof for %s does not verify: %v", name, err)
		}
	}
}

func TestProof_StepKinds(t *testing.T) {
	p := mpf.Proof{
		mpf.BranchStep{Skip: 1, Neighbors: [4]types.Hash{h32(1), h32(2), h32(3), h32(4)}},
		mpf.ForkStep{Skip: 0, Neighbor: mpf.Neighbor{Nibble: 7, Prefix: []byte{1, 2, 3}, Root: h32(5)}},
		mpf.LeafStep{Skip: 2, Key: h32(6), Value: h32(7)},
	}
	d := ProofData(p)
	l := d.(plutus.List)
	for i, want := range []uint64{stepBranch, stepFork, stepLeaf} {
		if c := l[i].(plutus.Constr); c.Index != want {
			t.Errorf("step %d constr = %d, want %d", i, c.Index, want)
		}
	}
	branch := l[0].(plutus.Constr).Fields[1].(plutus.Bytes)
	if len(branch) != 128 || branch[0] != 1 || branch[127] != 4 {
		t.Errorf("branch neighbors not packed top-down: %x", branch)
	}

	got, err := ProofFromData(d)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("ProofFromData = %#v", got)
	}
}

func TestRedeemers_RoundTrip(t *testing.T) {
	_, proofs := testTrie(t, 3)
	list := []mpf.Proof{proofs["name-0"], proofs["name-1"]}

	tests := []GovernorRedeemer{
		MintBatch{Proofs: list, Minter: h28(0x21)},
		MintBatch{Proofs: []mpf.Proof{}, Minter: h28(0x21)},
		Administrative{NewRoot: h32(0x22), Minter: h28(0x23)},
		UpdateOnly{Proofs: list, Names: [][]byte{[]byte("name-0"), []byte("name-1")}, Minter: h28(0x24)},
	}
	for _, r := range tests {
		enc := mustMarshal(t, r)
		got, err := UnmarshalGovernorRedeemer(enc)
		if err != nil {
			t.Fatalf("%T: %v", r, err)
		}
		if !bytes.Equal(mustMarshal(t, got), enc) {
			t.Fatalf("%T: re-encoding changed bytes", r)
		}
		if got.MinterKey() != r.MinterKey() {
			t.Fatalf("%T: minter = %s", r, got.MinterKey())
		}
	}
}

func TestUpdateOnly_NameCountMismatch(t *testing.T) {
	_, proofs := testTrie(t, 1)
	r := UpdateOnly{Proofs: []mpf.Proof{proofs["name-0"]}, Minter: h28(1)}
	if _, err := UnmarshalGovernorRedeemer(mustMarshal(t, r)); err == nil {
		t.Fatal("accepted redeemer with fewer names than proofs")
	}
}

func TestOrderAction(t *testing.T) {
	for _, a := range []OrderAction{OrderExecute, OrderCancel} {
		got, err := OrderActionFromData(a.ToData())
		if err != nil || got != a {
			t.Errorf("OrderAction %d round trip = %d, %v", a, got, err)
		}
	}
	if _, err := OrderActionFromData(plutus.NewConstr(2)); err == nil {
		t.Error("accepted unknown order action")
	}
}

func TestHandleDatum(t *testing.T) {
	h := NewHandleDatum([]byte("demi-2"))
	enc := mustMarshal(t, h)
	got, err := UnmarshalHandleDatum(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Name, h.Name) || got.OG != 0 || got.Version != DatumVersion {
		t.Fatalf("datum = %+v", got)
	}
	if !plutus.Equal(got.Extra, Unit) {
		t.Fatalf("extra = %s", got.Extra)
	}

	if !bytes.Equal(mustMarshal(t, got), enc) {
		t.Fatal("re-encoding changed bytes")
	}

	name := plutus.Pair{Key: keyName, Value: plutus.Bytes("x")}
	og := plutus.Pair{Key: keyOG, Value: plutus.NewInt(0)}
	tests := []struct {
		name string
		meta plutus.Map
	}{
		{"missing og", plutus.Map{name}},
		{"extra key", plutus.Map{name, og, {Key: plutus.Bytes("image"), Value: plutus.Bytes("ipfs://x")}}},
		{"int key", plutus.Map{name, og, {Key: plutus.NewInt(7), Value: plutus.NewInt(7)}}},
		{"swapped keys", plutus.Map{og, name}},
		{"duplicate name", plutus.Map{name, name}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := plutus.NewConstr(0, tt.meta, plutus.NewInt(1), Unit)
			if _, err := UnmarshalHandleDatum(plutus.MustEncode(bad)); err == nil {
				t.Fatal("accepted non-canonical metadata")
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := mustMarshal(t, MintRequest{Owner: h28(1), Name: []byte("a"), Destination: types.KeyAddress(h28(2))})

	tests := []struct {
		name string
		in   []byte
	}{
		{"garbage", []byte{0xff, 0x00}},
		{"trailing", append(append([]byte{}, valid...), 0x00)},
		{"wrong constructor", plutus.MustEncode(plutus.NewConstr(1, plutus.Bytes(h28(1).Bytes()), plutus.Bytes("a"), plutus.Bytes(types.KeyAddress(h28(2)).Bytes())))},
		{"short owner", plutus.MustEncode(plutus.NewConstr(0, plutus.Bytes{1}, plutus.Bytes("a"), plutus.Bytes(types.KeyAddress(h28(2)).Bytes())))},
		{"bad address", plutus.MustEncode(plutus.NewConstr(0, plutus.Bytes(h28(1).Bytes()), plutus.Bytes("a"), plutus.Bytes{0x01}))},
		{"missing field", plutus.MustEncode(plutus.NewConstr(0, plutus.Bytes(h28(1).Bytes())))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMintRequest(tt.in)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
			if de.Record != "mint request" {
				t.Fatalf("record = %q", de.Record)
			}
		})
	}
}

func TestDecodeErrors_Proof(t *testing.T) {
	tests := []struct {
		name string
		data plutus.Data
	}{
		{"not a list", plutus.NewConstr(0)},
		{"unknown step", plutus.List{plutus.NewConstr(3, plutus.NewInt(0))}},
		{"short neighbors", plutus.List{plutus.NewConstr(0, plutus.NewInt(0), plutus.Bytes{1, 2})}},
		{"negative skip", plutus.List{plutus.NewConstr(2, plutus.NewInt(-1), plutus.Bytes(h32(1).Bytes()), plutus.Bytes(h32(1).Bytes()))}},
		{"nibble out of range", plutus.List{plutus.NewConstr(1, plutus.NewInt(0),
			plutus.NewConstr(0, plutus.NewInt(16), plutus.Bytes{}, plutus.Bytes(h32(1).Bytes())))}},
		{"prefix digit out of range", plutus.List{plutus.NewConstr(1, plutus.NewInt(0),
			plutus.NewConstr(0, plutus.NewInt(1), plutus.Bytes{0x10}, plutus.Bytes(h32(1).Bytes())))}},
	}
	for _, tt := range tests {
		if _, err := UnmarshalProof(plutus.MustEncode(tt.data)); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
}

func mustMarshal(t *testing.T, r Record) []byte {
	t.Helper()
	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal(%T): %v", r, err)
	}
	return b
}
