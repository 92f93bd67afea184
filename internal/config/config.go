package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TALLY_DATABASE_PATH.
const EnvPrefix = "TALLY"

// Config represents the top-level tally.yaml configuration.
type Config struct {
	User     UserConfig     `mapstructure:"user"`
	Database DatabaseConfig `mapstructure:"database"`
	Accounts AccountsConfig `mapstructure:"accounts"`
	Import   ImportConfig   `mapstructure:"import"`
	Recalc   RecalcConfig   `mapstructure:"recalc"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Log      LogConfig      `mapstructure:"log"`
}

// UserConfig names the user commands act as unless --user is given.
type UserConfig struct {
	ID string `mapstructure:"id"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AccountsConfig points at the account layouts and rules file.
type AccountsConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig holds the directory scanned by import --scan.
type ImportConfig struct {
	Dir string `mapstructure:"dir"`
}

// RecalcConfig tunes rollup recalculation.
type RecalcConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// RulesConfig tunes rule matching.
type RulesConfig struct {
	CaseInsensitive bool `mapstructure:"case_insensitive"`
}

// LogConfig sets the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("user.id", d.User.ID)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("accounts.path", d.Accounts.Path)
	v.SetDefault("import.dir", d.Import.Dir)
	v.SetDefault("recalc.batch_size", d.Recalc.BatchSize)
	v.SetDefault("rules.case_insensitive", d.Rules.CaseInsensitive)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads a tally.yaml file. TALLY_* environment variables override file
// values. Relative paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default(""))

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	base := filepath.Dir(path)
	c.Database.Path = resolve(base, c.Database.Path)
	c.Accounts.Path = resolve(base, c.Accounts.Path)
	c.Import.Dir = resolve(base, c.Import.Dir)
	return c, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("user.id", cfg.User.ID)
	v.Set("database.path", cfg.Database.Path)
	v.Set("accounts.path", cfg.Accounts.Path)
	v.Set("import.dir", cfg.Import.Dir)
	v.Set("recalc.batch_size", cfg.Recalc.BatchSize)
	v.Set("rules.case_insensitive", cfg.Rules.CaseInsensitive)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(userID string) Config {
	return Config{
		User:     UserConfig{ID: userID},
		Database: DatabaseConfig{Path: "tally.db"},
		Accounts: AccountsConfig{Path: "accounts.yaml"},
		Import:   ImportConfig{Dir: "import"},
		Recalc:   RecalcConfig{BatchSize: 150},
		Log:      LogConfig{Level: "info"},
	}
}
