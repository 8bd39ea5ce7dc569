package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadFile overlays the TOML file at path onto cfg. A missing file leaves
// cfg unchanged. Keys that match no setting are an error.
func LoadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("parse %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// WriteFile writes cfg to path as TOML, creating parent directories.
func WriteFile(path string, cfg *Config) error {
	var buf bytes.Buffer
	buf.WriteString("# handlemint configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// Load builds the effective configuration: network defaults, then the
// config file, then any flags set on the command line.
func Load(f *Flags) (*Config, error) {
	network := NetworkType(f.Network)
	if network == "" {
		network = Mainnet
	}
	cfg := Default(network)
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	path := f.Config
	if path == "" {
		path = cfg.ConfigFile()
	}
	if err := LoadFile(path, cfg); err != nil {
		return nil, err
	}
	// The file may not move the network out from under the defaults.
	cfg.Network = network
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	f.Apply(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
