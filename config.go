package orderbook

import (
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultInitialLevels = 1024
	defaultCommandBuffer = 32768
	defaultQueryTimeout  = time.Second

	// MaxInitialLevels caps pre-allocation well inside the price index arena limit.
	MaxInitialLevels = math.MaxInt32 / 2
)

// Config holds the tunables of an OrderBook and its Engine.
type Config struct {
	InitialLevels int32         `env:"INITIAL_LEVELS" envDefault:"1024"`  // Pre-allocated price levels per side
	CommandBuffer int           `env:"COMMAND_BUFFER" envDefault:"32768"` // Engine command channel capacity
	QueryTimeout  time.Duration `env:"QUERY_TIMEOUT" envDefault:"1s"`     // Upper bound on waiting for the engine
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		InitialLevels: defaultInitialLevels,
		CommandBuffer: defaultCommandBuffer,
		QueryTimeout:  defaultQueryTimeout,
	}
}

// LoadConfig reads LOB_* environment variables. Any files given are loaded
// as .env files first; variables already set in the environment win.
func LoadConfig(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LOB_"}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.InitialLevels < 0 || cfg.CommandBuffer < 0 || cfg.QueryTimeout < 0 {
		return fmt.Errorf("%w: negative config value", ErrInvalidParam)
	}
	if cfg.InitialLevels > MaxInitialLevels {
		return fmt.Errorf("%w: initial levels %d exceed %d", ErrInvalidParam, cfg.InitialLevels, MaxInitialLevels)
	}
	return nil
}

// withDefaults fills zero fields.
func (cfg Config) withDefaults() Config {
	if cfg.InitialLevels <= 0 {
		cfg.InitialLevels = defaultInitialLevels
	}
	cfg.InitialLevels = min(cfg.InitialLevels, MaxInitialLevels)
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = defaultCommandBuffer
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	return cfg
}
