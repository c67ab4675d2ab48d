// Package models provides domain models for the auction trading application.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InstrumentKind is the payoff type of a contract.
type InstrumentKind string

const (
	KindCall       InstrumentKind = "Call"
	KindPut        InstrumentKind = "Put"
	KindBinaryCall InstrumentKind = "BinaryCall"
	KindBinaryPut  InstrumentKind = "BinaryPut"
	KindForward    InstrumentKind = "Forward"
	KindSpot       InstrumentKind = "Spot"
)

// AllKinds lists the tradeable instrument kinds in display order.
var AllKinds = []InstrumentKind{KindCall, KindPut, KindBinaryCall, KindBinaryPut, KindForward}

// ParseInstrumentKind parses a payoff name, case-insensitively. The short
// aliases C, P, BC, BP and F are accepted for CLI input.
func ParseInstrumentKind(s string) (InstrumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return KindCall, nil
	case "put", "p":
		return KindPut, nil
	case "binarycall", "binary_call", "digitalcall", "bc":
		return KindBinaryCall, nil
	case "binaryput", "binary_put", "digitalput", "bp":
		return KindBinaryPut, nil
	case "forward", "f", "fwd":
		return KindForward, nil
	case "spot":
		return KindSpot, nil
	}
	return "", fmt.Errorf("unknown instrument kind %q", s)
}

// IsBinary reports whether the kind pays a fixed digital amount.
func (k InstrumentKind) IsBinary() bool {
	return k == KindBinaryCall || k == KindBinaryPut
}

// IsForward reports whether the kind is a linear delta-one contract.
func (k InstrumentKind) IsForward() bool {
	return k == KindForward || k == KindSpot
}

// HasStrike reports whether contracts of this kind are keyed by strike.
func (k InstrumentKind) HasStrike() bool {
	return !k.IsForward()
}

// ForwardTenor selects which forward a forward leg refers to.
type ForwardTenor string

const (
	// TenorNextAuction is the forward settling at the next auction, priced as of today.
	TenorNextAuction ForwardTenor = "NEXT_AUCTION"
	// TenorCurrent is the forward expiring with the selected option expiry.
	TenorCurrent ForwardTenor = "CURRENT"
)

// ParseForwardTenor parses a forward tenor name.
func ParseForwardTenor(s string) (ForwardTenor, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEXT_AUCTION", "NEXT":
		return TenorNextAuction, nil
	case "CURRENT", "":
		return TenorCurrent, nil
	}
	return "", fmt.Errorf("unknown forward tenor %q", s)
}

// Side represents the side of a leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide parses BUY/SELL (or B/S).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "LONG":
		return SideBuy, nil
	case "SELL", "S", "SHORT":
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign is +1 for BUY and -1 for SELL.
func (s Side) Sign() decimal.Decimal {
	if s == SideBuy {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// PriceSource records where a leg premium came from.
type PriceSource string

const (
	SourceLive     PriceSource = "live"
	SourceFallback PriceSource = "fallback"
	SourceManual   PriceSource = "manual"
	SourceNone     PriceSource = "none"
)
