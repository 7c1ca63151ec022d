package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/asaskevich/govalidator"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/crypto/address"
)

var ErrInvalidConfig = errors.New("invalid config")

// Participant is a funded account. A non-zero Stake makes it a validator.
type Participant struct {
	Name    string        `json:"name" valid:"required"`
	Address string        `json:"address,omitempty"`
	Balance amount.Amount `json:"balance"`
	Stake   amount.Amount `json:"stake,omitempty"`
}

type Config struct {
	// Strategy is used by serve and seal; Strategies by bench.
	Strategy   string   `json:"strategy" valid:"required,in(random|age|hybrid)"`
	Strategies []string `json:"strategies"`
	// Seed fixes the weighted random source; 0 selects crypto/rand.
	Seed            uint64        `json:"seed"`
	Rounds          int           `json:"rounds"`
	AgePolicy       string        `json:"agePolicy" valid:"in(increment-all|reset-winner)"`
	HybridAgeWeight string        `json:"hybridAgeWeight" valid:"required"`
	BlockReward     amount.Amount `json:"blockReward"`
	GenesisTime     int64         `json:"genesisTime"`
	// DataDir holds the Badger database; empty keeps everything in memory.
	DataDir        string        `json:"dataDir"`
	Listen         string        `json:"listen" valid:"required"`
	AllowedOrigins []string      `json:"allowedOrigins"`
	LogLevel       string        `json:"logLevel" valid:"in(debug|info|warn|error)"`
	LogDevelopment bool          `json:"logDevelopment"`
	CSVPath        string        `json:"csvPath"`
	Nodes          []Participant `json:"nodes"`
	Accounts       []Participant `json:"accounts"`
}

// Default mirrors the classic demo: three funded nodes of which two stake
// 200 and 100, plus two plain accounts that trade with each other.
func Default() *Config {
	return &Config{
		Strategy:        "age",
		Strategies:      []string{"random", "hybrid", "age"},
		Rounds:          1000,
		AgePolicy:       "increment-all",
		HybridAgeWeight: "0.1",
		GenesisTime:     1700000000000,
		Listen:          "localhost:8080",
		AllowedOrigins:  []string{"http://localhost:3000"},
		LogLevel:        "info",
		CSVPath:         "all_timers.csv",
		Nodes: []Participant{
			{Name: "node-1", Balance: 1000, Stake: 200},
			{Name: "node-2", Balance: 1000, Stake: 100},
			{Name: "node-3", Balance: 1000},
		},
		Accounts: []Participant{
			{Name: "account-1", Balance: 1000},
			{Name: "account-2", Balance: 1000},
		},
	}
}

// LoadConfig reads a JSON file over the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	configFile, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer configFile.Close()

	if err := json.NewDecoder(configFile).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", configPath, err)
	}
	return cfg, nil
}

// Environment keys understood by LoadEnv.
const (
	EnvStrategy    = "POSSEAL_STRATEGY"
	EnvSeed        = "POSSEAL_SEED"
	EnvRounds      = "POSSEAL_ROUNDS"
	EnvDataDir     = "POSSEAL_DATA_DIR"
	EnvListen      = "POSSEAL_LISTEN"
	EnvAgePolicy   = "POSSEAL_AGE_POLICY"
	EnvLogLevel    = "POSSEAL_LOG_LEVEL"
	EnvBlockReward = "POSSEAL_BLOCK_REWARD"
)

// LoadEnv applies overrides from a .env file (if it exists) and then from
// the process environment, which wins.
func (c *Config) LoadEnv(envPath string) error {
	values := map[string]string{}
	if envPath != "" {
		fileValues, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, key := range []string{EnvStrategy, EnvSeed, EnvRounds, EnvDataDir, EnvListen, EnvAgePolicy, EnvLogLevel, EnvBlockReward} {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}

	if v, ok := values[EnvStrategy]; ok {
		c.Strategy = v
	}
	if v, ok := values[EnvDataDir]; ok {
		c.DataDir = v
	}
	if v, ok := values[EnvListen]; ok {
		c.Listen = v
	}
	if v, ok := values[EnvAgePolicy]; ok {
		c.AgePolicy = v
	}
	if v, ok := values[EnvLogLevel]; ok {
		c.LogLevel = v
	}
	if v, ok := values[EnvSeed]; ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvSeed, err)
		}
		c.Seed = seed
	}
	if v, ok := values[EnvRounds]; ok {
		rounds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRounds, err)
		}
		c.Rounds = rounds
	}
	if v, ok := values[EnvBlockReward]; ok {
		reward, err := amount.FromString(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvBlockReward, err)
		}
		c.BlockReward = reward
	}
	return nil
}

// Validate checks field formats and cross-field rules, and fills in
// participant addresses derived from their names.
func (c *Config) Validate() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, s := range c.Strategies {
		if !govalidator.IsIn(s, "random", "age", "hybrid") {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
		}
	}
	if c.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidConfig)
	}
	weight, err := decimal.NewFromString(c.HybridAgeWeight)
	if err != nil || !weight.IsPositive() {
		return fmt.Errorf("%w: hybridAgeWeight must be a positive number, got %q", ErrInvalidConfig, c.HybridAgeWeight)
	}

	seen := map[string]string{}
	resolve := func(p *Participant) error {
		if p.Name == "" {
			return fmt.Errorf("%w: participant without a name", ErrInvalidConfig)
		}
		if p.Address == "" {
			addr, err := address.New([]byte(p.Name))
			if err != nil {
				return err
			}
			p.Address = addr
		}
		if other, dup := seen[p.Address]; dup {
			return fmt.Errorf("%w: %s and %s share address %s", ErrInvalidConfig, other, p.Name, p.Address)
		}
		seen[p.Address] = p.Name
		if p.Stake > p.Balance {
			return fmt.Errorf("%w: %s stakes %s but holds %s", ErrInvalidConfig, p.Name, p.Stake, p.Balance)
		}
		return nil
	}
	for i := range c.Nodes {
		if err := resolve(&c.Nodes[i]); err != nil {
			return err
		}
	}
	for i := range c.Accounts {
		if c.Accounts[i].Stake > 0 {
			return fmt.Errorf("%w: account %s cannot stake, list it under nodes", ErrInvalidConfig, c.Accounts[i].Name)
		}
		if err := resolve(&c.Accounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// AgeWeight parses HybridAgeWeight; call after Validate.
func (c *Config) AgeWeight() decimal.Decimal {
	return decimal.RequireFromString(c.HybridAgeWeight)
}

// Allocations maps every participant address to its starting balance.
func (c *Config) Allocations() map[string]amount.Amount {
	out := make(map[string]amount.Amount, len(c.Nodes)+len(c.Accounts))
	for _, p := range c.Nodes {
		out[p.Address] = p.Balance
	}
	for _, p := range c.Accounts {
		out[p.Address] = p.Balance
	}
	return out
}
