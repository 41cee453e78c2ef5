// Package ticks persists classified ticks in a bounded, replayable log.
// The serialized form is a compact versioned text format that survives
// process restarts through a pluggable key-value substrate.
package ticks

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mauriziolobello/footprint/internal/domain"
)

const (
	formatVersion = "FP1"
	keyPrefix     = "Footprint"

	maxTickAge      = 7 * 24 * time.Hour
	maxTickCount    = 100000
	cleanupInterval = 1000

	priceDecimals = 8
)

// ErrBadHeader is returned when a serialized blob has a missing, malformed
// or wrong-version header. Individual malformed records never cause it.
var ErrBadHeader = errors.New("bad tick log header")

// Store is an append-friendly log of classified ticks for one symbol. It is
// not safe for concurrent use; a single owning context must serialize all
// calls.
type Store struct {
	symbol           string
	ticks            []domain.StoredTick
	lastTickTime     time.Time
	addsSinceCleanup int
}

// NewStore creates an empty store for the given symbol.
func NewStore(symbol string) *Store {
	return &Store{symbol: symbol}
}

// Symbol returns the symbol the store was created for.
func (s *Store) Symbol() string {
	return s.symbol
}

// Count returns the number of stored ticks.
func (s *Store) Count() int {
	return len(s.ticks)
}

// LastTickTime returns the timestamp of the most recently added tick, used
// by callers to enforce the staleness gap policy.
func (s *Store) LastTickTime() time.Time {
	return s.lastTickTime
}

// AddTick appends a classified tick. Unknown classifications are silently
// dropped. Every 1000 additions the store prunes itself.
func (s *Store) AddTick(ts time.Time, price decimal.Decimal, tickType domain.TickType) {
	if tickType == domain.TickTypeUnknown {
		return
	}

	s.ticks = append(s.ticks, domain.StoredTick{Time: ts, Price: price, Type: tickType})
	s.lastTickTime = ts

	s.addsSinceCleanup++
	if s.addsSinceCleanup >= cleanupInterval {
		s.Cleanup()
	}
}

// Cleanup removes ticks older than the max-age window, then trims the
// oldest excess if the count bound is still exceeded.
func (s *Store) Cleanup() {
	s.addsSinceCleanup = 0

	cutoff := time.Now().Add(-maxTickAge)
	firstFresh := 0
	for firstFresh < len(s.ticks) && s.ticks[firstFresh].Time.Before(cutoff) {
		firstFresh++
	}
	if firstFresh > 0 {
		s.ticks = append(s.ticks[:0], s.ticks[firstFresh:]...)
	}

	if excess := len(s.ticks) - maxTickCount; excess > 0 {
		s.ticks = append(s.ticks[:0], s.ticks[excess:]...)
	}
}

// TicksForBar returns all stored ticks with open <= time < close, in
// insertion order.
func (s *Store) TicksForBar(open, close time.Time) []domain.StoredTick {
	var out []domain.StoredTick
	for _, t := range s.ticks {
		if !t.Time.Before(open) && t.Time.Before(close) {
			out = append(out, t)
		}
	}
	return out
}

// Serialize prunes the store and emits the versioned pipe-delimited text
// form. Timestamps are 100ns ticks since the Unix epoch; prices carry a
// fixed 8 decimal places with an invariant '.' separator.
func (s *Store) Serialize() string {
	s.Cleanup()

	var sb strings.Builder
	sb.WriteString(formatVersion)
	sb.WriteByte('|')
	sb.WriteString(s.symbol)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(toTicks(s.lastTickTime), 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(len(s.ticks)))

	for _, t := range s.ticks {
		sb.WriteByte('\n')
		sb.WriteString(strconv.FormatInt(toTicks(t.Time), 10))
		sb.WriteByte('|')
		sb.WriteString(t.Price.StringFixed(priceDecimals))
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(int(t.Type)))
	}

	return sb.String()
}

// Deserialize parses a serialized blob back into a store. A bad header
// rejects the whole blob; malformed individual records are skipped. The
// loaded store is pruned before being returned.
func Deserialize(blob string) (*Store, error) {
	lines := strings.Split(blob, "\n")
	if len(lines) == 0 {
		return nil, ErrBadHeader
	}

	header := strings.Split(lines[0], "|")
	if len(header) != 4 || header[0] != formatVersion {
		return nil, ErrBadHeader
	}

	lastTicks, err := strconv.ParseInt(header[2], 10, 64)
	if err != nil {
		return nil, errors.Wrap(ErrBadHeader, "last tick time")
	}
	if _, err := strconv.Atoi(header[3]); err != nil {
		return nil, errors.Wrap(ErrBadHeader, "tick count")
	}

	s := NewStore(header[1])
	s.lastTickTime = fromTicks(lastTicks)

	for _, line := range lines[1:] {
		fields := strings.Split(line, "|")
		if len(fields) != 3 {
			continue
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(fields[1])
		if err != nil {
			continue
		}
		class, err := strconv.Atoi(fields[2])
		if err != nil || !domain.TickType(class).IsValid() {
			continue
		}
		s.ticks = append(s.ticks, domain.StoredTick{
			Time:  fromTicks(ts),
			Price: price,
			Type:  domain.TickType(class),
		})
	}

	s.Cleanup()
	return s, nil
}

// GenerateStorageKey derives the key-value store key for a symbol. The
// substrate rejects punctuation in keys, so everything except letters and
// digits is stripped: "EUR/USD" becomes "Footprint EURUSD".
func GenerateStorageKey(symbol string) string {
	var sb strings.Builder
	sb.WriteString(keyPrefix)
	sb.WriteByte(' ')
	for _, r := range symbol {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// toTicks converts a time to 100ns ticks since the Unix epoch.
func toTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / 100
}

func fromTicks(ticks int64) time.Time {
	if ticks == 0 {
		return time.Time{}
	}
	return time.Unix(0, ticks*100).UTC()
}
