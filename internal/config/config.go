package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/headsup/poker"
)

// Config represents the complete holdem configuration
type Config struct {
	Equity EquityConfig
	Table  TableConfig
	Server ServerConfig
	Log    LogConfig
}

// file mirrors Config with every block optional
type file struct {
	Equity *EquityConfig `hcl:"equity,block"`
	Table  *TableConfig  `hcl:"table,block"`
	Server *ServerConfig `hcl:"server,block"`
	Log    *LogConfig    `hcl:"log,block"`
}

// EquityConfig controls the Monte-Carlo estimator
type EquityConfig struct {
	Trials   int    `hcl:"trials,optional"`
	Workers  int    `hcl:"workers,optional"`
	AceOrder string `hcl:"ace_order,optional"`
}

// TableConfig describes the heads-up table
type TableConfig struct {
	SmallBlind int `hcl:"small_blind,optional"`
	BigBlind   int `hcl:"big_blind,optional"`
	Stack      int `hcl:"stack,optional"`
	Hands      int `hcl:"hands,optional"`
	BotTrials  int `hcl:"bot_trials,optional"`
}

// ServerConfig contains websocket server settings
type ServerConfig struct {
	Address         string `hcl:"address,optional"`
	Port            int    `hcl:"port,optional"`
	DecisionTimeout string `hcl:"decision_timeout,optional"`
	HistoryFile     string `hcl:"history_file,optional"`
	// Database is a SQLite path or postgres:// DSN for storing hands
	Database string `hcl:"database,optional"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
}

const (
	defaultTrials          = 10000
	defaultAceOrder        = "low"
	defaultSmallBlind      = 1
	defaultBigBlind        = 2
	defaultHands           = 10
	defaultBotTrials       = 500
	defaultAddress         = "localhost"
	defaultPort            = 8080
	defaultDecisionTimeout = "30s"
	defaultLogLevel        = "info"
)

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads an HCL configuration file. A missing file yields Default().
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var decoded file
	diags = gohcl.DecodeBody(hclFile.Body, nil, &decoded)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	var cfg Config
	if decoded.Equity != nil {
		cfg.Equity = *decoded.Equity
	}
	if decoded.Table != nil {
		cfg.Table = *decoded.Table
	}
	if decoded.Server != nil {
		cfg.Server = *decoded.Server
	}
	if decoded.Log != nil {
		cfg.Log = *decoded.Log
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in missing values
func (c *Config) applyDefaults() {
	if c.Equity.Trials == 0 {
		c.Equity.Trials = defaultTrials
	}
	if c.Equity.Workers == 0 {
		c.Equity.Workers = min(runtime.NumCPU(), 8)
	}
	if c.Equity.AceOrder == "" {
		c.Equity.AceOrder = defaultAceOrder
	}

	if c.Table.SmallBlind == 0 {
		c.Table.SmallBlind = defaultSmallBlind
	}
	if c.Table.BigBlind == 0 {
		c.Table.BigBlind = max(defaultBigBlind, c.Table.SmallBlind*2)
	}
	if c.Table.Stack == 0 {
		c.Table.Stack = c.Table.BigBlind * 100 // 100 big blinds
	}
	if c.Table.Hands == 0 {
		c.Table.Hands = defaultHands
	}
	if c.Table.BotTrials == 0 {
		c.Table.BotTrials = defaultBotTrials
	}

	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.DecisionTimeout == "" {
		c.Server.DecisionTimeout = defaultDecisionTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Equity.Trials <= 0 {
		return fmt.Errorf("equity: trials must be positive, got %d", c.Equity.Trials)
	}
	if c.Equity.Workers <= 0 {
		return fmt.Errorf("equity: workers must be positive, got %d", c.Equity.Workers)
	}
	if _, err := c.AceOrder(); err != nil {
		return fmt.Errorf("equity: %w", err)
	}

	if c.Table.SmallBlind <= 0 {
		return fmt.Errorf("table: small blind must be positive")
	}
	if c.Table.BigBlind <= c.Table.SmallBlind {
		return fmt.Errorf("table: big blind must be greater than small blind")
	}
	if c.Table.Stack < c.Table.BigBlind {
		return fmt.Errorf("table: stack must cover the big blind")
	}
	if c.Table.Hands <= 0 {
		return fmt.Errorf("table: hands must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := c.DecisionTimeout(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	return nil
}

// AceOrder parses the configured ace ordering
func (c *Config) AceOrder() (poker.AceOrder, error) {
	return poker.ParseAceOrder(c.Equity.AceOrder)
}

// DecisionTimeout parses how long a remote player has to act
func (c *Config) DecisionTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.DecisionTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid decision timeout %q: %w", c.Server.DecisionTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("decision timeout must be positive, got %s", d)
	}
	return d, nil
}

// ServerAddress returns the full server address
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
