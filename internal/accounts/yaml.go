package accounts

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
)

type file struct {
	Accounts []model.AccountConfig `yaml:"accounts"`
}

// ReadConfigs reads accounts.yaml and validates every account's rules.
func ReadConfigs(r io.Reader) ([]model.AccountConfig, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}

	seen := make(map[string]bool, len(f.Accounts))
	for i, cfg := range f.Accounts {
		if cfg.ID == "" {
			return nil, fmt.Errorf("account %d: id is required", i+1)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("account %s: duplicate id", cfg.ID)
		}
		seen[cfg.ID] = true
		if err := rules.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return f.Accounts, nil
}

// WriteConfigs writes accounts.yaml.
func WriteConfigs(w io.Writer, configs []model.AccountConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file{Accounts: configs}); err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}
	return nil
}
