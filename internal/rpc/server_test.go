package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/internal/ledger/emulator"
	klog "github.com/Klingon-tech/handlemint/internal/log"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/internal/storage"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/pkg/crypto"
	"github.com/Klingon-tech/handlemint/pkg/plutus"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
)

// testEnv holds all components for an RPC test.
type testEnv struct {
	server  *Server
	emu     *emulator.Emulator
	genesis *emulator.Genesis
	minter  *crypto.PrivateKey
	url     string
}

func setupTestEnv(t *testing.T, rpcCfg ...config.RPCConfig) *testEnv {
	t.Helper()
	klog.Init("error", false, klog.FileOptions{})

	emu, err := emulator.New(storage.NewMemory(), emulator.DefaultParams)
	if err != nil {
		t.Fatalf("emulator: %v", err)
	}
	minter, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	g, err := emu.Genesis(context.Background(), emulator.GenesisConfig{
		Network:  "rpc",
		Minters:  []types.Hash28{minter.KeyHash()},
		Treasury: types.KeyAddress(crypto.KeyHash([]byte("treasury"))),
		Fees: fees.Schedule{
			Prices:          [4]uint64{40_000_000, 20_000_000, 8_000_000, 4_000_000},
			TreasuryPercent: 25,
			MinTreasury:     1_000_000,
			MinMinter:       1_000_000,
		},
		Funds: []emulator.Allocation{{Address: minter.Address(), Value: 100_000_000}},
	})
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}

	// Create and start RPC server on random port.
	srv := New("127.0.0.1:0", emu, rpcCfg...)
	srv.SetFaucet(emu)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		server:  srv,
		emu:     emu,
		genesis: g,
		minter:  minter,
		url:     fmt.Sprintf("http://%s/", srv.Addr()),
	}
}

func rpcCall(t *testing.T, url, method string, params any) Response {
	t.Helper()
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

// decodeResult re-decodes a generic result into a typed value.
func decodeResult(t *testing.T, resp Response, target any) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

// transfer builds a signed transaction moving the minter's first coin to dest.
func (env *testEnv) transfer(t *testing.T, dest types.Address) *tx.Transaction {
	t.Helper()
	coins, err := env.emu.UTXOsAt(context.Background(), env.minter.Address())
	if err != nil || len(coins) == 0 {
		t.Fatalf("minter coins: %v", err)
	}
	in := coins[0]
	var fee uint64
	for range 8 {
		b := tx.NewBuilder()
		b.AddInput(in.Outpoint)
		b.Pay(dest, in.Output.Value-fee)
		b.SetFee(fee)
		t0 := b.Build()
		if err := t0.Sign(env.minter); err != nil {
			t.Fatalf("sign: %v", err)
		}
		if required := tx.RequiredFee(t0, emulator.DefaultParams.Fee); required > fee {
			fee = required
			continue
		}
		return t0
	}
	t.Fatal("fee did not converge")
	return nil
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestRPC_GetParams(t *testing.T) {
	env := setupTestEnv(t)

	var params ledger.Params
	decodeResult(t, rpcCall(t, env.url, MethodGetParams, nil), &params)
	if params.Fee != emulator.DefaultParams.Fee {
		t.Errorf("fee params = %+v", params.Fee)
	}
	if params.MinUTxO != emulator.DefaultParams.MinUTxO {
		t.Errorf("minUtxo = %d", params.MinUTxO)
	}
	if params.Slot != 1 {
		t.Errorf("slot = %d, want 1", params.Slot)
	}
}

func TestRPC_UTXOsAt(t *testing.T) {
	env := setupTestEnv(t)

	var utxos []*utxo.UTXO
	decodeResult(t, rpcCall(t, env.url, MethodUTXOsAt, AddressParam{Address: env.minter.Address().String()}), &utxos)
	if len(utxos) != 1 || utxos[0].Output.Value != 100_000_000 {
		t.Fatalf("utxos = %+v", utxos)
	}

	var empty []*utxo.UTXO
	resp := rpcCall(t, env.url, MethodUTXOsAt, AddressParam{Address: types.KeyAddress(crypto.KeyHash([]byte("nobody"))).String()})
	decodeResult(t, resp, &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty address result = %v, want []", empty)
	}
}

func TestRPC_UTXOsWithAsset(t *testing.T) {
	env := setupTestEnv(t)

	var utxos []*utxo.UTXO
	unit := env.genesis.Deployment.StateAsset.Unit()
	decodeResult(t, rpcCall(t, env.url, MethodUTXOsWithAsset, AssetParam{Unit: unit}), &utxos)
	if len(utxos) != 1 || utxos[0].Outpoint != env.genesis.State {
		t.Fatalf("state holders = %+v", utxos)
	}
	record, err := codec.UnmarshalCommitmentRecord(utxos[0].Output.Datum)
	if err != nil {
		t.Fatalf("datum did not survive the round trip: %v", err)
	}
	if !record.Governance.Equal(env.genesis.Record.Governance) {
		t.Error("governance mismatch")
	}
}

func TestRPC_ScriptsLookup(t *testing.T) {
	env := setupTestEnv(t)

	for _, role := range scripts.Roles {
		var ref scripts.Ref
		decodeResult(t, rpcCall(t, env.url, MethodScriptsLookup, RoleParam{Role: string(role)}), &ref)
		if ref != env.genesis.Refs[role] {
			t.Errorf("lookup %s = %+v, want %+v", role, ref, env.genesis.Refs[role])
		}
	}

	resp := rpcCall(t, env.url, MethodScriptsLookup, RoleParam{Role: "treasury"})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("unknown role error = %+v", resp.Error)
	}
}

func TestRPC_Submit(t *testing.T) {
	relay := &recordingRelay{}
	env := setupTestEnv(t)
	env.server.SetRelay(relay)
	dest := types.KeyAddress(crypto.KeyHash([]byte("dest")))
	transfer := env.transfer(t, dest)

	var result SubmitResult
	decodeResult(t, rpcCall(t, env.url, MethodSubmit, TxParam{Tx: transfer.Hex()}), &result)
	if result.Hash != transfer.Hash() {
		t.Errorf("hash = %s, want %s", result.Hash, transfer.Hash())
	}
	if got, _ := env.emu.UTXOsAt(context.Background(), dest); len(got) != 1 {
		t.Errorf("dest outputs = %d", len(got))
	}
	if relay.count() != 1 {
		t.Errorf("relayed %d transactions, want 1", relay.count())
	}

	resp := rpcCall(t, env.url, MethodSubmit, TxParam{Tx: transfer.Hex()})
	if resp.Error == nil || resp.Error.Code != CodeRejected {
		t.Fatalf("double spend error = %+v", resp.Error)
	}
	if relay.count() != 1 {
		t.Error("rejected transaction was relayed")
	}
}

func TestRPC_Submit_InvalidTx(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		params any
	}{
		{"no params", nil},
		{"empty", TxParam{}},
		{"not hex", TxParam{Tx: "zz"}},
		{"not a tx", TxParam{Tx: "deadbeef"}},
	}
	for _, tt := range tests {
		resp := rpcCall(t, env.url, MethodSubmit, tt.params)
		if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
			t.Errorf("%s: error = %+v, want invalid params", tt.name, resp.Error)
		}
	}
}

func TestRPC_Evaluate_ScriptFailure(t *testing.T) {
	env := setupTestEnv(t)
	state, err := env.emu.UTXO(env.genesis.State)
	if err != nil {
		t.Fatal(err)
	}
	b := tx.NewBuilder()
	b.AddScriptInput(env.genesis.State, plutus.MustEncode(codec.Unit))
	b.AddReferenceInput(env.genesis.Refs[scripts.RoleState].Outpoint)
	b.AddOutput(tx.Output{Address: env.minter.Address(), Value: state.Output.Value, Assets: state.Output.Assets})
	steal := b.Build()

	resp := rpcCall(t, env.url, MethodEvaluate, TxParam{Tx: steal.Hex()})
	if resp.Error == nil || resp.Error.Code != CodeScriptFailed {
		t.Fatalf("error = %+v, want script failure", resp.Error)
	}
	data, _ := json.Marshal(resp.Error.Data)
	var result EvaluateResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	if len(result.Logs) == 0 {
		t.Error("script failure carries no logs")
	}
}

func TestRPC_DevPlaceOrder(t *testing.T) {
	env := setupTestEnv(t)
	owner := crypto.KeyHash([]byte("owner"))
	dest := types.KeyAddress(owner)

	var result OutpointResult
	decodeResult(t, rpcCall(t, env.url, MethodDevPlaceOrder, PlaceOrderParam{
		Owner:       owner.String(),
		Name:        "demi",
		Destination: dest.String(),
		Lovelace:    12_000_000,
	}), &result)

	u, err := env.emu.UTXO(result.Outpoint)
	if err != nil {
		t.Fatalf("order output: %v", err)
	}
	if u.Output.Address != env.genesis.Refs[scripts.RoleOrder].Address() {
		t.Error("order not locked at the order script")
	}
	req, err := codec.UnmarshalMintRequest(u.Output.Datum)
	if err != nil {
		t.Fatalf("order datum: %v", err)
	}
	if string(req.Name) != "demi" || req.Owner != owner || req.Destination != dest {
		t.Errorf("request = %+v", req)
	}

	resp := rpcCall(t, env.url, MethodDevPlaceOrder, PlaceOrderParam{Owner: "xyz", Name: "a", Destination: dest.String()})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("bad owner error = %+v", resp.Error)
	}
}

func TestRPC_DevFund(t *testing.T) {
	env := setupTestEnv(t)
	addr := types.KeyAddress(crypto.KeyHash([]byte("funded")))

	var result OutpointResult
	decodeResult(t, rpcCall(t, env.url, MethodDevFund, FundParam{Address: addr.String(), Value: 3_000_000}), &result)
	u, err := env.emu.UTXO(result.Outpoint)
	if err != nil || u.Output.Value != 3_000_000 || u.Output.Address != addr {
		t.Errorf("funded output = %+v, err %v", u, err)
	}

	resp := rpcCall(t, env.url, MethodDevFund, FundParam{Address: addr.String(), Value: 1})
	if resp.Error == nil || resp.Error.Code != CodeRejected {
		t.Errorf("dust fund error = %+v", resp.Error)
	}
}

func TestRPC_DevDisabled(t *testing.T) {
	env := setupTestEnv(t)
	env.server.SetFaucet(nil)

	resp := rpcCall(t, env.url, MethodDevFund, FundParam{Address: env.minter.Address().String(), Value: 5_000_000})
	if resp.Error == nil || resp.Error.Code != CodeNotFound {
		t.Errorf("error = %+v, want not found", resp.Error)
	}
}

func TestRPC_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "chain_getInfo", nil)
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestRPC_InvalidAddress(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, MethodUTXOsAt, AddressParam{Address: "not-an-address"})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("error = %+v, want invalid params", resp.Error)
	}
}

func TestRPC_InvalidJSON(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Post(env.url, "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	if rpcResp.Error == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if rpcResp.Error.Code != CodeParseError {
		t.Errorf("error code = %d, want %d", rpcResp.Error.Code, CodeParseError)
	}
}

func TestRPC_GetMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	if rpcResp.Error == nil {
		t.Fatal("expected error for GET request")
	}
	if rpcResp.Error.Code != CodeInvalidRequest {
		t.Errorf("error code = %d, want %d", rpcResp.Error.Code, CodeInvalidRequest)
	}
}

// --- IP Filtering ---

func TestRPC_IPFilter(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		want    int
	}{
		{"loopback allowed", []string{"127.0.0.1"}, http.StatusOK},
		{"cidr allowed", []string{"127.0.0.0/8"}, http.StatusOK},
		{"blocked", []string{"10.0.0.0/8"}, http.StatusForbidden},
		{"empty allows all", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, config.RPCConfig{AllowedIPs: tt.allowed})
			body, _ := json.Marshal(Request{JSONRPC: "2.0", Method: MethodGetParams, ID: 1})
			resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestParseAllowedIPs(t *testing.T) {
	nets := parseAllowedIPs([]string{"192.168.1.0/24", "10.1.2.3", "::1", "garbage"})
	if len(nets) != 3 {
		t.Fatalf("parsed %d networks, want 3", len(nets))
	}
	if ones, _ := nets[1].Mask.Size(); ones != 32 {
		t.Errorf("single IPv4 mask = /%d", ones)
	}
	if ones, _ := nets[2].Mask.Size(); ones != 128 {
		t.Errorf("single IPv6 mask = /%d", ones)
	}
}

// --- CORS ---

func TestRPC_CORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "http://example.com", "*"},
		{"specific", []string{"http://allowed.com"}, "http://allowed.com", "http://allowed.com"},
		{"not listed", []string{"http://allowed.com"}, "http://evil.com", ""},
		{"disabled", nil, "http://example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, config.RPCConfig{CORSOrigins: tt.origins})
			body, _ := json.Marshal(Request{JSONRPC: "2.0", Method: MethodGetParams, ID: 1})
			httpReq, _ := http.NewRequest(http.MethodPost, env.url, bytes.NewReader(body))
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Origin", tt.origin)
			resp, err := http.DefaultClient.Do(httpReq)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			resp.Body.Close()
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRPC_CORS_Preflight(t *testing.T) {
	env := setupTestEnv(t, config.RPCConfig{CORSOrigins: []string{"*"}})

	httpReq, _ := http.NewRequest(http.MethodOptions, env.url, nil)
	httpReq.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

type recordingRelay struct {
	mu  sync.Mutex
	txs []*tx.Transaction
}

func (r *recordingRelay) BroadcastTx(transaction *tx.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, transaction)
	return nil
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

// --- Batches ---

func rpcBatch(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRPC_Batch(t *testing.T) {
	env := setupTestEnv(t)

	body, _ := json.Marshal([]Request{
		{JSONRPC: "2.0", Method: MethodGetParams, ID: 1},
		{JSONRPC: "2.0", Method: "chain_getInfo", ID: 2},
		{JSONRPC: "2.0", Method: MethodScriptsLookup, Params: RoleParam{Role: string(scripts.RoleOrder)}, ID: 3},
	})
	var resps []Response
	if err := json.NewDecoder(rpcBatch(t, env.url, body).Body).Decode(&resps); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(resps) != 3 {
		t.Fatalf("got %d responses, want 3", len(resps))
	}
	if resps[0].Error != nil || resps[2].Error != nil {
		t.Errorf("unexpected errors: %+v, %+v", resps[0].Error, resps[2].Error)
	}
	if resps[1].Error == nil || resps[1].Error.Code != CodeMethodNotFound {
		t.Errorf("unknown method in batch: %+v", resps[1].Error)
	}
	for i, r := range resps {
		if id, _ := r.ID.(float64); int(id) != i+1 {
			t.Errorf("response %d has id %v", i, r.ID)
		}
	}
}

func TestRPC_Batch_Invalid(t *testing.T) {
	env := setupTestEnv(t)

	tooMany := make([]Request, maxBatchCalls+1)
	for i := range tooMany {
		tooMany[i] = Request{JSONRPC: "2.0", Method: MethodGetParams, ID: i}
	}
	big, _ := json.Marshal(tooMany)

	tests := []struct {
		name string
		body []byte
		code int
	}{
		{"empty", []byte("[]"), CodeInvalidRequest},
		{"too many", big, CodeInvalidRequest},
		{"broken", []byte("[{"), CodeParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			if err := json.NewDecoder(rpcBatch(t, env.url, tt.body).Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %d", resp.Error, tt.code)
			}
		})
	}
}

func TestAccess(t *testing.T) {
	a := newAccess([]string{"10.0.0.0/8", "192.168.1.7"}, []string{"http://app.local"})
	tests := []struct {
		remote string
		want   bool
	}{
		{"10.1.2.3:5000", true},
		{"192.168.1.7:80", true},
		{"192.168.1.8:80", false},
		{"no-port", false},
	}
	for _, tt := range tests {
		if got := a.allows(tt.remote); got != tt.want {
			t.Errorf("allows(%q) = %v, want %v", tt.remote, got, tt.want)
		}
	}
	if !(access{}).allows("203.0.113.9:1") {
		t.Error("zero access should allow everyone")
	}
	if got := a.allowOrigin("http://app.local"); got != "http://app.local" {
		t.Errorf("allowOrigin = %q", got)
	}
	if got := a.allowOrigin("http://other"); got != "" {
		t.Errorf("allowOrigin(other) = %q, want empty", got)
	}
}
