package pathopt

import "github.com/yungbote/neurobridge-pathopt/internal/platform/envutil"

type Config struct {
	// Value of a learning object that terminates at least one prerequisite
	// chain (a foundational object).
	FoundationalValue int `yaml:"foundational_value"`
	// Value of every other learning object.
	DefaultValue int `yaml:"default_value"`
	// Upper bound on a request's time budget in minutes; the DP table is
	// (closure size + 1) x (budget + 1).
	MaxTimeBudget int `yaml:"max_time_budget"`
	// Parallel calls in OptimizeBatch.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

func DefaultConfig() Config {
	return Config{
		FoundationalValue: 5,
		DefaultValue:      1,
		MaxTimeBudget:     7 * 24 * 60,
		BatchConcurrency:  4,
	}
}

func LoadConfigFromEnv() Config {
	return ConfigFromEnv(DefaultConfig())
}

// ConfigFromEnv overlays PATHOPT_* variables onto base.
func ConfigFromEnv(base Config) Config {
	cfg := Config{
		FoundationalValue: envutil.Int("PATHOPT_FOUNDATIONAL_VALUE", base.FoundationalValue),
		DefaultValue:      envutil.Int("PATHOPT_DEFAULT_VALUE", base.DefaultValue),
		MaxTimeBudget:     envutil.Int("PATHOPT_MAX_TIME_BUDGET", base.MaxTimeBudget),
		BatchConcurrency:  envutil.Int("PATHOPT_BATCH_CONCURRENCY", base.BatchConcurrency),
	}
	return cfg.normalized()
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.FoundationalValue <= 0 {
		c.FoundationalValue = def.FoundationalValue
	}
	if c.DefaultValue <= 0 {
		c.DefaultValue = def.DefaultValue
	}
	if c.MaxTimeBudget <= 0 {
		c.MaxTimeBudget = def.MaxTimeBudget
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = def.BatchConcurrency
	}
	return c
}
