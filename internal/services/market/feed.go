// Package market provides live quote sources for the aggregation pipeline.
package market

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mauriziolobello/footprint/internal/domain"
	"github.com/mauriziolobello/footprint/pkg/retrier"
)

// TickSource streams live quote observations to a handler until the context
// is canceled.
type TickSource interface {
	Subscribe(ctx context.Context, handler func(domain.Tick)) error
}

// BinanceTickSource streams best bid/ask book-ticker events from Binance as
// ticks. Disconnects are retried with exponential backoff.
type BinanceTickSource struct {
	symbol  string
	l       *zap.Logger
	retrier *retrier.Retrier
}

// NewBinanceTickSource creates a source for one symbol, e.g. "BTCUSDT".
func NewBinanceTickSource(l *zap.Logger, symbol string) *BinanceTickSource {
	return &BinanceTickSource{
		symbol: symbol,
		l:      l,
		retrier: retrier.New(
			retrier.WithInitialInterval(time.Second),
			retrier.WithMaxInterval(time.Minute),
			retrier.WithMaxRetries(10),
		),
	}
}

// Subscribe connects to the book-ticker stream and invokes handler for each
// event until ctx is canceled. Reconnects are attempted with backoff; the
// last connection error is returned when retries are exhausted.
func (s *BinanceTickSource) Subscribe(ctx context.Context, handler func(domain.Tick)) error {
	for {
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.serve(ctx, handler)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "book ticker stream for %s", s.symbol)
		}
		s.l.Info("book ticker stream closed, reconnecting", zap.String("symbol", s.symbol))
	}
}

func (s *BinanceTickSource) serve(ctx context.Context, handler func(domain.Tick)) error {
	streamErr := make(chan error, 1)

	wsHandler := func(event *binance.WsBookTickerEvent) {
		bid, err := decimal.NewFromString(event.BestBidPrice)
		if err != nil {
			s.l.Debug("skipping tick with bad bid price", zap.String("bid", event.BestBidPrice))
			return
		}
		ask, err := decimal.NewFromString(event.BestAskPrice)
		if err != nil {
			s.l.Debug("skipping tick with bad ask price", zap.String("ask", event.BestAskPrice))
			return
		}
		handler(domain.Tick{Time: time.Now().UTC(), Bid: bid, Ask: ask})
	}
	errHandler := func(err error) {
		select {
		case streamErr <- err:
		default:
		}
	}

	doneC, stopC, err := binance.WsBookTickerServe(s.symbol, wsHandler, errHandler)
	if err != nil {
		return errors.Wrap(err, "connect book ticker stream")
	}

	select {
	case <-ctx.Done():
		close(stopC)
		<-doneC
		return nil
	case err := <-streamErr:
		return err
	case <-doneC:
		return errors.New("book ticker stream ended")
	}
}
