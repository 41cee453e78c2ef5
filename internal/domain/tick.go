// Package domain defines core data structures for footprint aggregation.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the inferred aggressor side of a classified tick.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// TickType is the persisted classification of a tick. The integer values are
// part of the storage format and must not be reordered.
type TickType int

const (
	TickTypeUnknown TickType = iota
	TickTypeUptick
	TickTypeDowntick
	TickTypeZero
)

// IsValid reports whether the value is one of the known tick types.
func (t TickType) IsValid() bool {
	return t >= TickTypeUnknown && t <= TickTypeZero
}

// TickTypeFromSide maps a live classification to its persisted form.
func TickTypeFromSide(s Side) TickType {
	switch s {
	case SideBuy:
		return TickTypeUptick
	case SideSell:
		return TickTypeDowntick
	default:
		return TickTypeUnknown
	}
}

// Tick is a single live quote observation from the feed.
type Tick struct {
	// Time is the observation timestamp.
	Time time.Time
	// Bid is the best bid price.
	Bid decimal.Decimal
	// Ask is the best ask price.
	Ask decimal.Decimal
}

// Mid returns the bid/ask midpoint used for classification.
func (t Tick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

// StoredTick is a classified tick as kept in the persistence store.
type StoredTick struct {
	Time  time.Time
	Price decimal.Decimal
	Type  TickType
}
