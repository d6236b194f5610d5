// Package config provides Viper-based configuration loading for the planner tools.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EngineConfig holds settings for the per-tick evaluator.
type EngineConfig struct {
	// CatalogDir holds the strategy catalog YAML files.
	CatalogDir string `mapstructure:"catalog_dir"`
	// EncounterDir holds the encounter definition YAML files.
	EncounterDir string `mapstructure:"encounter_dir"`
	// DefaultPriority is used by decision points that declare no priority of their own.
	DefaultPriority float64 `mapstructure:"default_priority"`
	// TickBudget is the evaluation time after which a tick is logged as slow.
	TickBudget time.Duration `mapstructure:"tick_budget"`
	// PlayerLevel gates option availability when the snapshot carries no level.
	PlayerLevel int `mapstructure:"player_level"`
}

// PlansConfig holds plan file settings.
type PlansConfig struct {
	// Dir is the directory holding *.json plan documents.
	Dir string `mapstructure:"dir"`
	// Watch enables hot reload of Dir.
	Watch bool `mapstructure:"watch"`
	// Lint enables JSON-schema linting of plan documents on load.
	Lint bool `mapstructure:"lint"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StorageConfig selects where plans are persisted.
type StorageConfig struct {
	// Driver is "none", "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string         `mapstructure:"sqlite_path"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// ScriptingConfig holds Lua predicate sandbox settings.
type ScriptingConfig struct {
	// ScriptDir holds shared *.lua predicate files loaded into the global VM.
	ScriptDir string `mapstructure:"script_dir"`
	// InstructionLimit caps opcodes per VM; 0 uses the scripting default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Plans     PlansConfig     `mapstructure:"plans"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePlans(c.Plans); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.CatalogDir == "" {
		errs = append(errs, "engine.catalog_dir must not be empty")
	}
	if e.EncounterDir == "" {
		errs = append(errs, "engine.encounter_dir must not be empty")
	}
	if e.TickBudget < 0 {
		errs = append(errs, "engine.tick_budget must not be negative")
	}
	if e.PlayerLevel < 1 {
		errs = append(errs, fmt.Sprintf("engine.player_level must be >= 1, got %d", e.PlayerLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePlans(p PlansConfig) error {
	if p.Watch && p.Dir == "" {
		return errors.New("plans.dir must not be empty when plans.watch is enabled")
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Driver {
	case "none":
		return nil
	case "sqlite":
		if s.SQLitePath == "" {
			return errors.New("storage.sqlite_path must not be empty for the sqlite driver")
		}
		return nil
	case "postgres":
		return validateDatabase(s.Database)
	default:
		return fmt.Errorf("storage.driver must be one of [none, sqlite, postgres], got %q", s.Driver)
	}
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "storage.database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("storage.database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "storage.database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "storage.database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("storage.database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("storage.database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("storage.database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "storage.database.min_conns must not exceed storage.database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RAIDPLAN_ prefix
	v.SetEnvPrefix("RAIDPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.catalog_dir", "content/catalogs")
	v.SetDefault("engine.encounter_dir", "content/encounters")
	v.SetDefault("engine.default_priority", 0.0)
	v.SetDefault("engine.tick_budget", "1ms")
	v.SetDefault("engine.player_level", 100)

	v.SetDefault("plans.dir", "content/plans")
	v.SetDefault("plans.watch", false)
	v.SetDefault("plans.lint", true)

	v.SetDefault("storage.driver", "none")
	v.SetDefault("storage.sqlite_path", "raidplan.db")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.user", "raidplan")
	v.SetDefault("storage.database.password", "raidplan")
	v.SetDefault("storage.database.name", "raidplan")
	v.SetDefault("storage.database.sslmode", "disable")
	v.SetDefault("storage.database.max_conns", 10)
	v.SetDefault("storage.database.min_conns", 2)
	v.SetDefault("storage.database.max_conn_lifetime", "1h")

	v.SetDefault("scripting.script_dir", "")
	v.SetDefault("scripting.instruction_limit", 0)
}
