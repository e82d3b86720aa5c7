package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/pkg/logging"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MARKETSIM_ACCOUNT_CASH.
const EnvPrefix = "MARKETSIM"

var ErrInvalid = errors.New("invalid config")

// Config represents the complete simulator configuration
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account" toml:"account"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation" toml:"simulation"`
	Journal    JournalConfig    `json:"journal" yaml:"journal" toml:"journal"`
	Server     ServerConfig     `json:"server" yaml:"server" toml:"server"`
	Log        LogConfig        `json:"log" yaml:"log" toml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Cash     float64 `json:"cash" yaml:"cash" toml:"cash"`
	Leverage int     `json:"leverage" yaml:"leverage" toml:"leverage"`
}

// SimulationConfig contains simulation parameters. Delays are duration
// strings such as "70ms".
type SimulationConfig struct {
	Seed             uint64   `json:"seed" yaml:"seed" toml:"seed"`
	MinDelay         string   `json:"min_delay" yaml:"min_delay" toml:"min_delay" split_words:"true"`
	MaxDelay         string   `json:"max_delay" yaml:"max_delay" toml:"max_delay" split_words:"true"`
	PollInterval     string   `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval" split_words:"true"`
	TradeProbability float64  `json:"trade_probability" yaml:"trade_probability" toml:"trade_probability" split_words:"true"`
	CandleCapacity   int      `json:"candle_capacity" yaml:"candle_capacity" toml:"candle_capacity" split_words:"true"`
	Symbols          []string `json:"symbols,omitempty" yaml:"symbols,omitempty" toml:"symbols,omitempty"`

	// Instruments pins the starting state of individual symbols. Symbols
	// not listed here are seeded randomly.
	Instruments []InstrumentConfig `json:"instruments,omitempty" yaml:"instruments,omitempty" toml:"instruments,omitempty" ignored:"true"`
}

type InstrumentConfig struct {
	Symbol     string  `json:"symbol" yaml:"symbol" toml:"symbol"`
	Price      float64 `json:"price" yaml:"price" toml:"price"`
	Volatility float64 `json:"volatility" yaml:"volatility" toml:"volatility"`
	Trend      float64 `json:"trend" yaml:"trend" toml:"trend"`
}

// ParseMinDelay converts the min_delay string to time.Duration
func (s SimulationConfig) ParseMinDelay() (time.Duration, error) {
	return parseDuration("simulation.min_delay", s.MinDelay)
}

func (s SimulationConfig) ParseMaxDelay() (time.Duration, error) {
	return parseDuration("simulation.max_delay", s.MaxDelay)
}

func (s SimulationConfig) ParsePollInterval() (time.Duration, error) {
	return parseDuration("simulation.poll_interval", s.PollInterval)
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// AllSymbols lists the configured universe: Symbols first, then any
// instrument-only symbols, without duplicates.
func (s SimulationConfig) AllSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sym := range s.Symbols {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	for _, ic := range s.Instruments {
		if !seen[ic.Symbol] {
			seen[ic.Symbol] = true
			out = append(out, ic.Symbol)
		}
	}
	return out
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type string `json:"type" yaml:"type" toml:"type"` // "none", "csv" or "sqlite"
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
}

// ServerConfig configures the HTTP/WebSocket surface of `marketsim serve`.
type ServerConfig struct {
	Addr       string  `json:"addr" yaml:"addr" toml:"addr"`
	OrderRate  float64 `json:"order_rate" yaml:"order_rate" toml:"order_rate" split_words:"true"`
	OrderBurst int     `json:"order_burst" yaml:"order_burst" toml:"order_burst" split_words:"true"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Load builds the effective configuration: defaults, then the file at path
// (if any), then a .env file and MARKETSIM_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (TOML, JSON or YAML based on
// extension) on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse toml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	default:
		// Try YAML first, fall back to JSON
		if err := yaml.Unmarshal(data, c); err != nil {
			if jerr := json.Unmarshal(data, c); jerr != nil {
				return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
			}
		}
	}
	return nil
}

// ApplyEnv overlays MARKETSIM_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a file (TOML, JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Cash < 0 {
		return fmt.Errorf("%w: account.cash must not be negative", ErrInvalid)
	}
	if c.Account.Leverage <= 0 {
		return fmt.Errorf("%w: account.leverage must be positive", ErrInvalid)
	}

	if err := c.Simulation.validate(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("%w: journal.path required for %s journal", ErrInvalid, c.Journal.Type)
		}
	default:
		return fmt.Errorf("%w: journal.type must be 'none', 'csv' or 'sqlite'", ErrInvalid)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	if c.Server.OrderRate <= 0 {
		return fmt.Errorf("%w: server.order_rate must be positive", ErrInvalid)
	}
	if c.Server.OrderBurst <= 0 {
		return fmt.Errorf("%w: server.order_burst must be positive", ErrInvalid)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		return fmt.Errorf("%w: log.format must be 'console' or 'json'", ErrInvalid)
	}
	return nil
}

func (s SimulationConfig) validate() error {
	minDelay, err := s.ParseMinDelay()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	maxDelay, err := s.ParseMaxDelay()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	poll, err := s.ParsePollInterval()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if minDelay <= 0 {
		return fmt.Errorf("%w: simulation.min_delay must be positive", ErrInvalid)
	}
	if maxDelay <= minDelay {
		return fmt.Errorf("%w: simulation.max_delay must be greater than min_delay", ErrInvalid)
	}
	if poll <= 0 {
		return fmt.Errorf("%w: simulation.poll_interval must be positive", ErrInvalid)
	}

	if s.TradeProbability < 0 || s.TradeProbability > 1 {
		return fmt.Errorf("%w: simulation.trade_probability must be between 0 and 1", ErrInvalid)
	}
	if s.CandleCapacity <= 0 {
		return fmt.Errorf("%w: simulation.candle_capacity must be positive", ErrInvalid)
	}

	if len(s.AllSymbols()) == 0 {
		return fmt.Errorf("%w: simulation.symbols is empty", ErrInvalid)
	}
	for _, sym := range s.Symbols {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("%w: simulation.symbols contains an empty symbol", ErrInvalid)
		}
	}
	seen := make(map[string]bool)
	for _, ic := range s.Instruments {
		if ic.Symbol == "" {
			return fmt.Errorf("%w: simulation.instruments entry without symbol", ErrInvalid)
		}
		if seen[ic.Symbol] {
			return fmt.Errorf("%w: simulation.instruments: duplicate symbol %s", ErrInvalid, ic.Symbol)
		}
		seen[ic.Symbol] = true
		if ic.Price <= 0 {
			return fmt.Errorf("%w: simulation.instruments: %s price must be positive", ErrInvalid, ic.Symbol)
		}
		if ic.Volatility < 0 {
			return fmt.Errorf("%w: simulation.instruments: %s volatility must not be negative", ErrInvalid, ic.Symbol)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Cash:     10000,
			Leverage: 1000,
		},
		Simulation: SimulationConfig{
			MinDelay:         "70ms",
			MaxDelay:         "200ms",
			PollInterval:     "60ms",
			TradeProbability: 0.92,
			CandleCapacity:   market.CandleCapacity,
			Symbols:          append([]string(nil), market.DefaultSymbols...),
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			OrderRate:  20,
			OrderBurst: 40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
