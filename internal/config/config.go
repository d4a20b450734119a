// Package config handles loading and resolving bankview configuration.
// Resolution order (later layers win):
//  1. built-in defaults (paths under the XDG data home)
//  2. config.json in the current working directory
//  3. .env in the current working directory
//  4. environment variables (BANKVIEW_*)
//  5. CLI flags, applied by the caller after Load
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile = "config.json"
	DefaultEnvFile    = ".env"
	DefaultFormat     = "table"
	DefaultTimeout    = 30 * time.Second
	DefaultRate       = 20.0
	DefaultBankTTL    = 10 * time.Minute
	DefaultCutoff     = "2022-01-01"
	DefaultUnit       = "USD"
	DefaultBankCount  = 10
	DefaultAddr       = "127.0.0.1:8050"
	DefaultLogLevel   = "warn"
	appDir            = "bankview"

	EnvWarehouse = "BANKVIEW_WAREHOUSE"
	EnvDBPath    = "BANKVIEW_DB_PATH"
	EnvLogLevel  = "BANKVIEW_LOG_LEVEL"
	EnvAddr      = "BANKVIEW_ADDR"
	EnvBankTTL   = "BANKVIEW_BANK_TTL"
)

// File is the on-disk representation of config.json.
type File struct {
	WarehousePath string  `json:"warehouse_path"`
	DBPath        string  `json:"db_path"`
	DefaultFormat string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Rate          float64 `json:"rate"`
	BankTTL       string  `json:"bank_ttl"`
	Cutoff        string  `json:"cutoff"`
	Unit          string  `json:"unit"`
	BankCount     int     `json:"default_bank_count"`
	Addr          string  `json:"addr"`
	LogLevel      string  `json:"log_level"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	WarehousePath string
	DBPath        string
	Format        string
	Timeout       time.Duration
	Rate          float64
	BankTTL       time.Duration
	Cutoff        string
	Unit          string
	BankCount     int
	Addr          string
	LogLevel      string
	ConfigPath    string // path of the config.json that was loaded (empty if none found)
	EnvPath       string // path of the .env that was read (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Refresh bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	dataDir := filepath.Join(xdg.DataHome, appDir)
	return &Config{
		WarehousePath: filepath.Join(dataDir, "warehouse.db"),
		DBPath:        filepath.Join(dataDir, "bankview.db"),
		Format:        DefaultFormat,
		Timeout:       DefaultTimeout,
		Rate:          DefaultRate,
		BankTTL:       DefaultBankTTL,
		Cutoff:        DefaultCutoff,
		Unit:          DefaultUnit,
		BankCount:     DefaultBankCount,
		Addr:          DefaultAddr,
		LogLevel:      DefaultLogLevel,
	}
}

// Load resolves configuration from all sources.
// A missing config.json or .env is not an error; a malformed one is.
func Load() (*Config, error) {
	cfg := Defaults()

	f, path, err := loadFile()
	if err != nil {
		return nil, err
	}
	if f != nil {
		applyFile(cfg, f, path)
	}

	env, envPath, err := loadEnv()
	if err != nil {
		return nil, err
	}
	cfg.EnvPath = envPath
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return env[key]
	}
	if v := lookup(EnvWarehouse); v != "" {
		cfg.WarehousePath = v
	}
	if v := lookup(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := lookup(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := lookup(EnvAddr); v != "" {
		cfg.Addr = v
	}
	if v := lookup(EnvBankTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvBankTTL, err)
		}
		cfg.BankTTL = d
	}

	return cfg, nil
}

// Validate returns an error if any resolved value is unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.WarehousePath == "" {
		errs = append(errs, errors.New("warehouse path is empty; set "+EnvWarehouse+" or warehouse_path"))
	}
	if c.BankCount < 0 {
		errs = append(errs, fmt.Errorf("default_bank_count must be >= 0, got %d", c.BankCount))
	}
	if c.BankTTL <= 0 {
		errs = append(errs, fmt.Errorf("bank_ttl must be positive, got %s", c.BankTTL))
	}
	if _, err := time.Parse("2006-01-02", c.Cutoff); err != nil {
		errs = append(errs, fmt.Errorf("cutoff %q must be YYYY-MM-DD", c.Cutoff))
	}
	return errors.Join(errs...)
}

// Values returns the resolved settings as ordered key/value pairs for display.
func (c *Config) Values() [][2]string {
	return [][2]string{
		{"warehouse_path", c.WarehousePath},
		{"db_path", c.DBPath},
		{"default_format", c.Format},
		{"timeout", c.Timeout.String()},
		{"rate", strconv.FormatFloat(c.Rate, 'f', -1, 64)},
		{"bank_ttl", c.BankTTL.String()},
		{"cutoff", c.Cutoff},
		{"unit", c.Unit},
		{"default_bank_count", strconv.Itoa(c.BankCount)},
		{"addr", c.Addr},
		{"log_level", c.LogLevel},
		{"config_file", c.ConfigPath},
		{"env_file", c.EnvPath},
	}
}

// Get returns a single resolved value by its config.json key.
func (c *Config) Get(key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, kv := range c.Values() {
		if kv[0] == key {
			return kv[1], true
		}
	}
	return "", false
}

// loadFile reads config.json from the current working directory.
// Returns (nil, "", nil) when the file does not exist.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// loadEnv reads .env from the current working directory without touching
// the process environment. Returns an empty map when the file does not exist.
func loadEnv() (map[string]string, string, error) {
	path, err := filepath.Abs(DefaultEnvFile)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, "", nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, "", fmt.Errorf("parsing .env: %w", err)
	}
	return env, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.WarehousePath != "" {
		cfg.WarehousePath = f.WarehousePath
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.BankTTL != "" {
		if d, err := time.ParseDuration(f.BankTTL); err == nil {
			cfg.BankTTL = d
		}
	}
	if f.Cutoff != "" {
		cfg.Cutoff = f.Cutoff
	}
	if f.Unit != "" {
		cfg.Unit = f.Unit
	}
	if f.BankCount > 0 {
		cfg.BankCount = f.BankCount
	}
	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `bankview config init`.
func Template() File {
	d := Defaults()
	return File{
		WarehousePath: d.WarehousePath,
		DBPath:        d.DBPath,
		DefaultFormat: DefaultFormat,
		Timeout:       DefaultTimeout.String(),
		Rate:          DefaultRate,
		BankTTL:       DefaultBankTTL.String(),
		Cutoff:        DefaultCutoff,
		Unit:          DefaultUnit,
		BankCount:     DefaultBankCount,
		Addr:          DefaultAddr,
		LogLevel:      DefaultLogLevel,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
