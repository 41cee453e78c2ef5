// Command footprint aggregates live ticks into footprint (volume profile)
// bars: each tick is classified as buy or sell pressure by the
// uptick/downtick rule, bucketed by price level, and summarized into point
// of control, value area and imbalance statistics per bar. Classified ticks
// are persisted so aggregation resumes across restarts.
//
// Usage:
//
//	footprint --config config.yaml
//	footprint --symbol BTCUSDT --ticksize 0.1 --barinterval 5m
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mauriziolobello/footprint/config"
	"github.com/mauriziolobello/footprint/internal/domain"
	"github.com/mauriziolobello/footprint/internal/services/footprint"
	"github.com/mauriziolobello/footprint/internal/services/market"
	"github.com/mauriziolobello/footprint/internal/storage/ticks"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var kv ticks.KV
	switch cfg.Storage {
	case "redis":
		kv, err = ticks.NewRedisKV(ctx, cfg.RedisAddr)
	default:
		kv, err = ticks.NewWALKV(cfg.WALDir)
	}
	if err != nil {
		logger.Fatal("failed to init tick storage", zap.Error(err))
	}

	svc, err := footprint.NewService(ctx, logger, footprint.ServiceConfig{
		Symbol:                cfg.Symbol,
		TickSize:              cfg.TickSize,
		ImbalanceThresholdPct: cfg.ImbalanceThresholdPct,
		ValueAreaPct:          cfg.ValueAreaPct,
		NumberOfBins:          cfg.NumberOfBins,
		CacheSize:             cfg.CacheSize,
	}, kv)
	if err != nil {
		logger.Fatal("failed to create footprint service", zap.Error(err))
	}

	source := market.NewBinanceTickSource(logger, cfg.Symbol)
	tickC := make(chan domain.Tick, 1024)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(tickC)
		return source.Subscribe(gctx, func(t domain.Tick) {
			select {
			case tickC <- t:
			default:
				logger.Warn("tick buffer full, dropping tick")
			}
		})
	})
	g.Go(func() error {
		return runBars(gctx, logger, svc, cfg.BarInterval, tickC)
	})

	if err := g.Wait(); err != nil {
		logger.Error("aggregator stopped", zap.Error(err))
	}

	if err := svc.Close(context.Background()); err != nil {
		logger.Error("failed to close footprint service", zap.Error(err))
	}
}

// runBars drains the tick channel into wall-clock bar windows and hands each
// closed window to the service.
func runBars(ctx context.Context, l *zap.Logger, svc *footprint.Service, interval time.Duration, tickC <-chan domain.Tick) error {
	barOpen := time.Now().UTC().Truncate(interval)
	var pending []domain.Tick

	timer := time.NewTimer(time.Until(barOpen.Add(interval)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			processBar(ctx, l, svc, barOpen, barOpen.Add(interval), pending)
			return nil
		case t, ok := <-tickC:
			if !ok {
				return nil
			}
			pending = append(pending, t)
		case <-timer.C:
			barClose := barOpen.Add(interval)
			processBar(ctx, l, svc, barOpen, barClose, pending)
			pending = pending[:0]
			barOpen = barClose
			timer.Reset(time.Until(barOpen.Add(interval)))
		}
	}
}

func processBar(ctx context.Context, l *zap.Logger, svc *footprint.Service, open, barClose time.Time, live []domain.Tick) {
	window := footprint.BarWindow{Open: open, Close: barClose}
	for i, t := range live {
		mid := t.Mid()
		if i == 0 || mid.GreaterThan(window.High) {
			window.High = mid
		}
		if i == 0 || mid.LessThan(window.Low) {
			window.Low = mid
		}
	}

	bar := svc.ProcessBar(ctx, window, live)
	if bar.Empty() {
		return
	}

	fields := []zap.Field{
		zap.Time("bar", bar.BarTime),
		zap.Uint64("volume", bar.TotalVolume()),
		zap.Int64("delta", bar.Delta()),
		zap.Int("levels", bar.LevelCount()),
		zap.Int("imbalances", len(bar.Imbalances)),
	}
	if bar.PointOfControl != nil {
		fields = append(fields,
			zap.String("poc", bar.PointOfControl.Price.String()),
			zap.String("value_area_low", bar.ValueAreaLow.String()),
			zap.String("value_area_high", bar.ValueAreaHigh.String()))
	}
	l.Info("bar finalized", fields...)
}
