package accounts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cleared-dev/tally/internal/model"
)

// Service provides in-memory lookup over the configured import accounts.
type Service struct {
	configs []model.AccountConfig
	byID    map[string]model.AccountConfig
}

// NewService creates a Service from a slice of account configs.
func NewService(configs []model.AccountConfig) *Service {
	byID := make(map[string]model.AccountConfig, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
	}
	return &Service{configs: configs, byID: byID}
}

// Load reads an accounts.yaml file and returns a Service.
func Load(path string) (*Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	configs, err := ReadConfigs(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return NewService(configs), nil
}

// All returns all account configs.
func (s *Service) All() []model.AccountConfig {
	return s.configs
}

// Get returns an account config by ID.
func (s *Service) Get(id string) (model.AccountConfig, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Exists reports whether an account ID is configured.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Save writes the account configs to path.
func (s *Service) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteConfigs(f, s.configs); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return nil
}
