// Package config loads the footprint aggregator configuration from a YAML
// file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	defaultBarInterval           = 5 * time.Minute
	defaultNumberOfBins          = 10
	defaultImbalanceThresholdPct = 300.0
	defaultValueAreaPct          = 70.0
	defaultCacheSize             = 500
	defaultStorage               = "wal"
	defaultWALDir                = "./waldata"
)

// Config holds the runtime parameters of the aggregator.
type Config struct {
	// Symbol is the instrument symbol, e.g. BTCUSDT.
	Symbol string
	// TickSize is the instrument's minimum price increment.
	TickSize decimal.Decimal
	// BarInterval is the candlestick interval bars are aggregated over.
	BarInterval time.Duration
	// NumberOfBins enables bin aggregation when positive.
	NumberOfBins int
	// ImbalanceThresholdPct is the dominance ratio in percent (300 = 3x).
	ImbalanceThresholdPct float64
	// ValueAreaPct is the value-area coverage target in percent.
	ValueAreaPct float64
	// CacheSize bounds the number of cached bars.
	CacheSize int
	// Storage selects the persistence substrate: "wal" or "redis".
	Storage string
	// WALDir is the WAL directory for the "wal" substrate.
	WALDir string
	// RedisAddr is the address for the "redis" substrate.
	RedisAddr string
}

type configTmp struct {
	Symbol                string        `yaml:"symbol"`
	TickSize              string        `yaml:"tick_size"`
	BarInterval           time.Duration `yaml:"bar_interval"`
	NumberOfBins          int           `yaml:"number_of_bins"`
	ImbalanceThresholdPct float64       `yaml:"imbalance_threshold_pct"`
	ValueAreaPct          float64       `yaml:"value_area_pct"`
	CacheSize             int           `yaml:"cache_size"`
	Storage               string        `yaml:"storage"`
	WALDir                string        `yaml:"wal_dir"`
	RedisAddr             string        `yaml:"redis_addr"`
}

// Get loads the configuration from the --config YAML file when provided,
// otherwise from CLI flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	symbol := flag.String("symbol", "BTCUSDT", "instrument symbol, example: BTCUSDT")
	tickSize := flag.String("ticksize", "0.1", "instrument tick size")
	barInterval := flag.Duration("barinterval", defaultBarInterval, "bar interval")
	bins := flag.Int("bins", defaultNumberOfBins, "number of footprint bins, 0 disables binning")
	imbalance := flag.Float64("imbalance", defaultImbalanceThresholdPct, "imbalance threshold in percent, 300 means 3x")
	valueArea := flag.Float64("valuearea", defaultValueAreaPct, "value area volume coverage in percent")
	cacheSize := flag.Int("cachesize", defaultCacheSize, "maximum cached bars")
	storage := flag.String("storage", defaultStorage, "persistence substrate: wal or redis")
	walDir := flag.String("waldir", defaultWALDir, "WAL directory for wal storage")
	redisAddr := flag.String("redisaddr", "localhost:6379", "redis address for redis storage")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	ts, err := decimal.NewFromString(*tickSize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --ticksize provided, --ticksize=%s", *tickSize)
	}

	cfg := Config{
		Symbol:                *symbol,
		TickSize:              ts,
		BarInterval:           *barInterval,
		NumberOfBins:          *bins,
		ImbalanceThresholdPct: *imbalance,
		ValueAreaPct:          *valueArea,
		CacheSize:             *cacheSize,
		Storage:               *storage,
		WALDir:                *walDir,
		RedisAddr:             *redisAddr,
	}
	return cfg, validate(cfg)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	tmp := configTmp{
		BarInterval:           defaultBarInterval,
		NumberOfBins:          defaultNumberOfBins,
		ImbalanceThresholdPct: defaultImbalanceThresholdPct,
		ValueAreaPct:          defaultValueAreaPct,
		CacheSize:             defaultCacheSize,
		Storage:               defaultStorage,
		WALDir:                defaultWALDir,
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	ts, err := decimal.NewFromString(tmp.TickSize)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'tick_size' param in yaml config: %s, error: %w", tmp.TickSize, err)
	}

	cfg := Config{
		Symbol:                tmp.Symbol,
		TickSize:              ts,
		BarInterval:           tmp.BarInterval,
		NumberOfBins:          tmp.NumberOfBins,
		ImbalanceThresholdPct: tmp.ImbalanceThresholdPct,
		ValueAreaPct:          tmp.ValueAreaPct,
		CacheSize:             tmp.CacheSize,
		Storage:               tmp.Storage,
		WALDir:                tmp.WALDir,
		RedisAddr:             tmp.RedisAddr,
	}
	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if cfg.TickSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("tick_size must be positive, got %s", cfg.TickSize.String())
	}
	if cfg.BarInterval <= 0 {
		return fmt.Errorf("bar_interval must be positive, got %s", cfg.BarInterval)
	}
	if cfg.NumberOfBins < 0 {
		return fmt.Errorf("number_of_bins must not be negative, got %d", cfg.NumberOfBins)
	}
	if cfg.ValueAreaPct <= 0 || cfg.ValueAreaPct > 100 {
		return fmt.Errorf("value_area_pct must be in (0, 100], got %v", cfg.ValueAreaPct)
	}
	if cfg.ImbalanceThresholdPct < 100 {
		return fmt.Errorf("imbalance_threshold_pct must be at least 100, got %v", cfg.ImbalanceThresholdPct)
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", cfg.CacheSize)
	}
	switch cfg.Storage {
	case "wal", "redis":
	default:
		return fmt.Errorf("storage must be wal or redis, got %q", cfg.Storage)
	}
	return nil
}
