package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/spf13/pflag"
)

func TestDefaults_Validate(t *testing.T) {
	for _, network := range []NetworkType{Mainnet, Preview, Devnet} {
		cfg := Default(network)
		if cfg.Network != network {
			t.Errorf("Default(%s).Network = %s", network, cfg.Network)
		}
		if err := Validate(cfg); err != nil {
			t.Errorf("Default(%s) does not validate: %v", network, err)
		}
	}
}

func TestDirs(t *testing.T) {
	cfg := DefaultDevnet()
	cfg.DataDir = "/data"
	tests := []struct {
		got, want string
	}{
		{cfg.IndexDir(), "/data/devnet/index"},
		{cfg.LedgerDir(), "/data/devnet/ledger"},
		{cfg.KeystoreDir(), "/data/devnet/keystore"},
		{cfg.P2PDir(), "/data/devnet/p2p"},
		{cfg.ConfigFile(), "/data/handlemint.toml"},
	}
	for _, tt := range tests {
		if tt.got != filepath.FromSlash(tt.want) {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handlemint.toml")

	cfg := DefaultDevnet()
	cfg.Batch.Interval = Duration{45 * time.Second}
	cfg.P2P.Seeds = []string{"/ip4/127.0.0.1/tcp/30405/p2p/12D3KooWExample"}
	cfg.Protocol.Minters = []types.Hash28{{0x01}, {0x02}}
	cfg.Protocol.Treasury = types.KeyAddress(types.Hash28{0x03})
	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := DefaultMainnet()
	if err := LoadFile(path, got); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Batch.Interval.Duration != 45*time.Second {
		t.Errorf("interval = %s, want 45s", got.Batch.Interval)
	}
	if got.Ledger.Backend != LedgerEmulator || !got.RPC.Faucet {
		t.Errorf("ledger/rpc not restored: %+v %+v", got.Ledger, got.RPC)
	}
	if len(got.P2P.Seeds) != 1 || got.P2P.Seeds[0] != cfg.P2P.Seeds[0] {
		t.Errorf("seeds = %v", got.P2P.Seeds)
	}
	if len(got.Protocol.Minters) != 2 || got.Protocol.Minters[1] != (types.Hash28{0x02}) {
		t.Errorf("minters = %v", got.Protocol.Minters)
	}
	if got.Protocol.Treasury != cfg.Protocol.Treasury {
		t.Errorf("treasury = %v, want %v", got.Protocol.Treasury, cfg.Protocol.Treasury)
	}
	if got.Protocol.Fees != cfg.Protocol.Fees {
		t.Errorf("fees = %+v, want %+v", got.Protocol.Fees, cfg.Protocol.Fees)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := DefaultMainnet()
	if err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"), cfg); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if cfg.Batch.Collision != "exclude" {
		t.Error("defaults changed by a missing file")
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[batch]\nintervall = \"5s\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	err := LoadFile(path, DefaultMainnet())
	if err == nil || !strings.Contains(err.Error(), "batch.intervall") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	file := DefaultDevnet()
	file.DataDir = dir
	file.Batch.MaxOrders = 7
	file.Batch.Collision = "abort"
	if err := WriteFile(filepath.Join(dir, "handlemint.toml"), file); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var f Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Register(fs)
	if err := fs.Parse([]string{"--network=devnet", "--datadir=" + dir, "--max-orders=3", "--seeds=/ip4/1.2.3.4/tcp/1, ,/ip4/5.6.7.8/tcp/2"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := Load(&f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Batch.MaxOrders != 3 {
		t.Errorf("max orders = %d, flag should win", cfg.Batch.MaxOrders)
	}
	if cfg.Batch.Collision != "abort" {
		t.Errorf("collision = %q, file value should survive unset flag", cfg.Batch.Collision)
	}
	if len(cfg.P2P.Seeds) != 2 {
		t.Errorf("seeds = %v, want 2 entries", cfg.P2P.Seeds)
	}
}

func TestApply_RemoteLedgerDisablesRPC(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"--ledger=rpc"}, false},
		{[]string{"--ledger=rpc", "--rpc=true"}, true},
		{[]string{"--ledger=emulator"}, true},
	}
	for _, tt := range tests {
		var f Flags
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		f.Register(fs)
		if err := fs.Parse(tt.args); err != nil {
			t.Fatalf("parse %v: %v", tt.args, err)
		}
		cfg := DefaultDevnet()
		f.Apply(cfg)
		if cfg.RPC.Enabled != tt.want {
			t.Errorf("%v: rpc.enabled = %v, want %v", tt.args, cfg.RPC.Enabled, tt.want)
		}
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"network", func(c *Config) { c.Network = "moonnet" }, "network"},
		{"storage", func(c *Config) { c.Storage.Backend = "leveldb" }, "storage.backend"},
		{"emulator on mainnet", func(c *Config) { c.Network = Mainnet }, "not available on mainnet"},
		{"rpc without url", func(c *Config) { c.Ledger.Backend = LedgerRPC; c.RPC.Enabled = false; c.Ledger.URL = "" }, "ledger.url"},
		{"rpc server on remote ledger", func(c *Config) { c.Ledger.Backend = LedgerRPC }, "rpc.enabled"},
		{"collision", func(c *Config) { c.Batch.Collision = "ignore" }, "batch.collision"},
		{"p2p submit", func(c *Config) { c.Batch.Submit = SubmitP2P }, "p2p.enabled"},
		{"interval", func(c *Config) { c.Batch.Interval = Duration{} }, "batch.interval"},
		{"state asset", func(c *Config) { c.Protocol.StateAsset = "zz" }, "protocol.state_asset"},
		{"fees", func(c *Config) { c.Protocol.Fees.TreasuryPercent = 101 }, "protocol.fees"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDevnet()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestProtocol_Asset(t *testing.T) {
	p := DefaultProtocol(Devnet)
	got, err := p.Asset(Devnet)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	want := scripts.NewDeployment(scripts.NetworkSeed("devnet")).StateAsset
	if got != want {
		t.Errorf("derived asset = %s, want %s", got.Unit(), want.Unit())
	}

	p.StateAsset = want.Unit()
	explicit, err := p.Asset(Mainnet)
	if err != nil || explicit != want {
		t.Errorf("explicit asset = %v, %v", explicit, err)
	}
}
