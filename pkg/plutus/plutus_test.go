package plutus

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestEncode_Vectors(t *testing.T) {
	two64 := new(big.Int).Lsh(big.NewInt(1), 64)
	long := bytes.Repeat([]byte{0xaa}, 65)

	tests := []struct {
		name string
		data Data
		want string
	}{
		{"empty constr", NewConstr(0), "d879 80"},
		{"constr fields", NewConstr(0, NewInt(1), Bytes("ab")), "d879 9f 01 42 6162 ff"},
		{"constr 6", NewConstr(6), "d87f 80"},
		{"constr 7", NewConstr(7), "d90500 80"},
		{"constr 127", NewConstr(127), "d90578 80"},
		{"constr 200", NewConstr(200), "d866 82 18c8 80"},
		{"empty list", List{}, "80"},
		{"list", List{NewInt(1), NewInt(2)}, "9f 01 02 ff"},
		{"negative", NewInt(-1), "20"},
		{"big", Int{Value: two64}, "c2 49 010000000000000000"},
		{"short bytes", Bytes{0x01, 0x02}, "42 0102"},
		{"chunked bytes", Bytes(long), "5f 5840" + strings.Repeat("aa", 64) + " 41aa ff"},
		{"map sorted", Map{{Bytes{0x02}, NewInt(2)}, {Bytes{0x01}, NewInt(1)}}, "a2 4101 01 4102 02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.data)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			want := mustHex(t, tt.want)
			if !bytes.Equal(got, want) {
				t.Fatalf("Encode = %x, want %x", got, want)
			}

			back, err := Decode(got)
			if err != nil {
				t.Fatalf("Decode(Encode(x)): %v", err)
			}
			if !Equal(back, tt.data) {
				t.Fatalf("Decode(Encode(x)) = %s, want %s", back, tt.data)
			}
			again, _ := Encode(back)
			if !bytes.Equal(again, got) {
				t.Fatalf("Encode(Decode(b)) = %x, want %x", again, got)
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"definite list", "82 01 02"},
		{"definite constr fields", "d879 81 01"},
		{"trailing data", "01 02"},
		{"unsorted map", "a2 4102 02 4101 01"},
		{"text string", "61 61"},
		{"unknown tag", "d903e7 80"},
		{"unchunked long bytes", "5841" + strings.Repeat("aa", 65)},
		{"non-minimal int", "1801"},
		{"truncated", "d879 9f 01"},
		{"empty input", ""},
		{"float", "f93c00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(mustHex(t, tt.in))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode(%s) err = %v, want *DecodeError", tt.in, err)
			}
		})
	}
}

func TestDecode_NestedRecord(t *testing.T) {
	rec := NewConstr(0,
		Bytes(bytes.Repeat([]byte{0x11}, 32)),
		NewConstr(0,
			List{Bytes(bytes.Repeat([]byte{0x22}, 28))},
			NewInt(10),
			List{NewInt(1), NewInt(2), NewInt(3), NewInt(4)},
		),
		NewConstr(1, NewConstr(300)),
	)
	enc, err := Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.String() != rec.String() {
		t.Fatalf("Decode = %s, want %s", got, rec)
	}
}

func TestAccessors(t *testing.T) {
	c := NewConstr(2, Bytes{1, 2, 3}, NewInt(-5), List{}, Map{})

	fields, err := AsConstr(c, 2, 4)
	if err != nil {
		t.Fatalf("AsConstr: %v", err)
	}
	if _, err := AsConstr(c, 1, 4); err == nil {
		t.Error("AsConstr accepted wrong index")
	}
	if _, err := AsConstr(c, 2, 3); err == nil {
		t.Error("AsConstr accepted wrong arity")
	}
	if _, err := AsBytes(fields[0], 3); err != nil {
		t.Errorf("AsBytes: %v", err)
	}
	if _, err := AsBytes(fields[0], 28); err == nil {
		t.Error("AsBytes accepted wrong size")
	}
	if v, err := AsInt64(fields[1]); err != nil || v != -5 {
		t.Errorf("AsInt64 = %d, %v", v, err)
	}
	if _, err := AsUint64(fields[1]); err == nil {
		t.Error("AsUint64 accepted a negative")
	}
	if _, err := AsList(fields[2]); err != nil {
		t.Errorf("AsList: %v", err)
	}
	if _, err := AsMap(fields[3]); err != nil {
		t.Errorf("AsMap: %v", err)
	}
	if _, err := AsList(fields[0]); err == nil {
		t.Error("AsList accepted bytes")
	}
}

func TestDiagnose(t *testing.T) {
	s := Diagnose(MustEncode(NewConstr(0, NewInt(1))))
	if !strings.Contains(s, "121(") {
		t.Fatalf("Diagnose = %q, want tag 121", s)
	}
}
