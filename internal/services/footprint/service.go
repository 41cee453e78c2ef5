package footprint

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mauriziolobello/footprint/internal/domain"
	"github.com/mauriziolobello/footprint/internal/storage/ticks"
)

const (
	// storeMaxGap discards the whole loaded tick log when the process was
	// offline too long for continuity to be meaningful.
	storeMaxGap = 2 * time.Hour
	// barMaxGap discards stored ticks for a single bar when they are too
	// far from the bar's open time.
	barMaxGap = time.Hour
	// saveEveryTicks bounds persistence I/O frequency.
	saveEveryTicks = 500
)

// BarWindow describes one bar to process.
type BarWindow struct {
	Open  time.Time
	Close time.Time
	High  decimal.Decimal
	Low   decimal.Decimal
}

// Service is the host shell around the aggregation pipeline: it owns the
// tick store, the builder and the bar cache, applies the staleness policies
// and persists classified ticks in batches. Not safe for concurrent use.
type Service struct {
	l       *zap.Logger
	symbol  string
	kv      ticks.KV
	store   *ticks.Store
	builder *Builder
	cache   *BarCache

	imbalanceThresholdPct float64
	valueAreaPct          float64
	numberOfBins          int

	ticksSinceSave int
	now            func() time.Time
}

// ServiceConfig carries the aggregation parameters for a service instance.
type ServiceConfig struct {
	Symbol                string
	TickSize              decimal.Decimal
	ImbalanceThresholdPct float64
	ValueAreaPct          float64
	NumberOfBins          int
	CacheSize             int
}

// NewService loads the persisted tick log for the symbol (falling back to an
// empty one on parse failure or when the log is stale) and wires the builder
// so every classified live tick lands in the store.
func NewService(ctx context.Context, l *zap.Logger, cfg ServiceConfig, kv ticks.KV) (*Service, error) {
	if cfg.TickSize.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Errorf("tick size must be positive, got %s", cfg.TickSize.String())
	}

	s := &Service{
		l:                     l,
		symbol:                cfg.Symbol,
		kv:                    kv,
		cache:                 NewBarCache(cfg.CacheSize),
		imbalanceThresholdPct: cfg.ImbalanceThresholdPct,
		valueAreaPct:          cfg.ValueAreaPct,
		numberOfBins:          cfg.NumberOfBins,
		now:                   time.Now,
	}
	s.store = s.loadStore(ctx)
	s.builder = NewBuilder(cfg.TickSize, s.recordTick)

	return s, nil
}

// loadStore fetches and parses the persisted tick log. Persistence is
// best-effort: any failure falls back to an empty store.
func (s *Service) loadStore(ctx context.Context) *ticks.Store {
	key := ticks.GenerateStorageKey(s.symbol)

	blob, ok, err := s.kv.Load(ctx, key)
	if err != nil {
		s.l.Warn("failed to load tick log, starting empty", zap.String("key", key), zap.Error(err))
		return ticks.NewStore(s.symbol)
	}
	if !ok {
		return ticks.NewStore(s.symbol)
	}

	store, err := ticks.Deserialize(blob)
	if err != nil {
		s.l.Warn("failed to parse tick log, starting empty", zap.String("key", key), zap.Error(err))
		return ticks.NewStore(s.symbol)
	}

	if gap := s.now().Sub(store.LastTickTime()); gap > storeMaxGap {
		s.l.Info("discarding stale tick log",
			zap.String("symbol", s.symbol),
			zap.Duration("gap", gap))
		return ticks.NewStore(s.symbol)
	}

	s.l.Info("loaded tick log",
		zap.String("symbol", s.symbol),
		zap.Int("ticks", store.Count()))
	return store
}

func (s *Service) recordTick(ts time.Time, price decimal.Decimal, side domain.Side) {
	s.store.AddTick(ts, price, domain.TickTypeFromSide(side))
	s.ticksSinceSave++
}

// ProcessBar builds, finalizes and caches the footprint bar for one window.
// Stored ticks for the window are replayed first unless they fail the
// per-bar gap check; live ticks are classified and recorded afterwards.
func (s *Service) ProcessBar(ctx context.Context, window BarWindow, live []domain.Tick) *domain.FootprintBar {
	stored := s.store.TicksForBar(window.Open, window.Close)
	if len(stored) > 0 {
		last := stored[len(stored)-1].Time
		gap := last.Sub(window.Open)
		if gap < 0 {
			gap = -gap
		}
		if gap > barMaxGap {
			s.l.Debug("discarding stale stored ticks for bar",
				zap.Time("bar", window.Open),
				zap.Duration("gap", gap))
			stored = nil
		}
	}

	bar := s.builder.Build(BuildParams{
		BarOpen:               window.Open,
		BarClose:              window.Close,
		BarHigh:               window.High,
		BarLow:                window.Low,
		ImbalanceThresholdPct: s.imbalanceThresholdPct,
		ValueAreaPct:          s.valueAreaPct,
		NumberOfBins:          s.numberOfBins,
	}, stored, live)

	s.cache.Put(bar)

	if s.ticksSinceSave >= saveEveryTicks {
		if err := s.Flush(ctx); err != nil {
			s.l.Warn("failed to persist tick log", zap.Error(err))
		}
	}

	return bar
}

// Bar returns the cached bar for a bar open time, or nil.
func (s *Service) Bar(barTime time.Time) *domain.FootprintBar {
	return s.cache.Get(barTime)
}

// Flush serializes the tick log into the key-value substrate.
func (s *Service) Flush(ctx context.Context) error {
	key := ticks.GenerateStorageKey(s.symbol)
	if err := s.kv.Save(ctx, key, s.store.Serialize()); err != nil {
		return errors.Wrap(err, "save tick log")
	}
	s.ticksSinceSave = 0
	return nil
}

// Close flushes the log and releases the substrate.
func (s *Service) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		s.l.Warn("failed to flush tick log on close", zap.Error(err))
	}
	return s.kv.Close()
}
