package strategy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
	"auction-trader/internal/pricing"
)

// Direction is the side of the strike the barrier sits on.
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

// Mode says whether touching the barrier activates or cancels the option.
type Mode string

const (
	KnockIn  Mode = "IN"
	KnockOut Mode = "OUT"
)

// ParseDirection parses UP or DOWN.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("unknown barrier direction %q", s)
}

// ParseMode parses IN or OUT.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case KnockIn:
		return KnockIn, nil
	case KnockOut:
		return KnockOut, nil
	}
	return "", fmt.Errorf("unknown barrier mode %q", s)
}

// BarrierSpec is a knock-in or knock-out option replicated with vanilla
// and digital legs.
type BarrierSpec struct {
	Side      models.Side
	Direction Direction
	Mode      Mode
	Strike    string
	Barrier   string
	Size      string
}

type barrierCase struct {
	Direction Direction
	Mode      Mode
}

type anchor int

const (
	atStrike anchor = iota
	atBarrier
)

// legRule is one row of the barrier decision table.
type legRule struct {
	kind models.InstrumentKind
	at   anchor
	// digital legs are scaled by the strike to barrier distance
	scaled bool
	// cancelling legs take the opposite of the selected side
	invert bool
}

var barrierTable = map[barrierCase][]legRule{
	{Up, KnockIn}: {
		{kind: models.KindCall, at: atBarrier},
		{kind: models.KindBinaryCall, at: atBarrier, scaled: true},
	},
	{Up, KnockOut}: {
		{kind: models.KindCall, at: atStrike},
		{kind: models.KindCall, at: atBarrier, invert: true},
		{kind: models.KindBinaryCall, at: atBarrier, scaled: true, invert: true},
	},
	{Down, KnockIn}: {
		{kind: models.KindPut, at: atBarrier},
		{kind: models.KindBinaryPut, at: atBarrier, scaled: true},
	},
	{Down, KnockOut}: {
		{kind: models.KindPut, at: atStrike},
		{kind: models.KindPut, at: atBarrier, invert: true},
		{kind: models.KindBinaryPut, at: atBarrier, scaled: true, invert: true},
	},
}

var barrierNames = map[barrierCase]string{
	{Up, KnockIn}:    "The Sniper",
	{Up, KnockOut}:   "The Highwire Act",
	{Down, KnockIn}:  "Guardian Angel Depth Charge",
	{Down, KnockOut}: "The Bungee Jumper",
}

// Name implements Description.
func (b BarrierSpec) Name() string {
	name, ok := barrierNames[barrierCase{b.Direction, b.Mode}]
	if !ok {
		name = "Barrier"
	}
	return fmt.Sprintf("%s (%s %s-%s K=%s B=%s x%s)", name, b.Side, b.Direction, b.Mode, b.Strike, b.Barrier, b.Size)
}

// Nickname returns the marketing name of the barrier structure.
func (b BarrierSpec) Nickname() string {
	return barrierNames[barrierCase{b.Direction, b.Mode}]
}

// UnitSize returns the parsed size, or zero when it is invalid.
func (b BarrierSpec) UnitSize() decimal.Decimal {
	v, err := ParsePositive("size", b.Size)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// Plan implements Description.
func (b BarrierSpec) Plan(book *models.ContractBook) ([]LegPlan, error) {
	rules, ok := barrierTable[barrierCase{b.Direction, b.Mode}]
	if !ok {
		return nil, apperrors.NewValidationError("barrier", fmt.Sprintf("%s/%s", b.Direction, b.Mode), "unknown barrier type")
	}
	if b.Side != models.SideBuy && b.Side != models.SideSell {
		return nil, apperrors.NewValidationError("side", b.Side, "must be BUY or SELL")
	}
	size, err := ParsePositive("size", b.Size)
	if err != nil {
		return nil, err
	}
	strike, err := ParseStrike(b.Strike)
	if err != nil {
		return nil, err
	}
	barrier, err := ParseStrike(b.Barrier)
	if err != nil {
		return nil, apperrors.NewValidationError("barrier", b.Barrier, "not set")
	}
	switch {
	case b.Direction == Up && !barrier.GreaterThan(strike):
		return nil, apperrors.NewValidationError("barrier", b.Barrier, "must be above the strike for UP barriers")
	case b.Direction == Down && !barrier.LessThan(strike):
		return nil, apperrors.NewValidationError("barrier", b.Barrier, "must be below the strike for DOWN barriers")
	}

	notional := size.Mul(barrier.Sub(strike).Abs())

	plans := make([]LegPlan, 0, len(rules))
	for _, r := range rules {
		at := strike
		if r.at == atBarrier {
			at = barrier
		}
		c, ok := book.Lookup(r.kind, at)
		if !ok {
			return nil, apperrors.NewValidationError("strike", at.String(), fmt.Sprintf("no listed %s contract", r.kind))
		}
		side := b.Side
		if r.invert {
			side = side.Opposite()
		}
		qty := size
		if r.scaled {
			qty = notional
		}
		k := at
		plans = append(plans, LegPlan{
			Contract: c,
			Leg:      models.Leg{ContractID: c.ID, Quantity: qty, Side: side},
			Request: pricing.PriceRequest{
				Instrument: pricing.Instrument{Kind: r.kind, Expiry: book.Expiry, Strike: &k},
				Side:       pricing.SidePtr(side),
			},
			BinarySpread: true,
		})
	}
	return plans, nil
}

// StrikeChoices lists the strikes selectable for a barrier level: listed
// call strikes without the outermost two, at or below the barrier for UP
// and at or above it for DOWN. An empty barrier allows every inner strike.
func StrikeChoices(book *models.ContractBook, barrier string, dir Direction) []decimal.Decimal {
	all := book.Strikes(models.KindCall)
	if len(all) <= 2 {
		return nil
	}
	inner := all[1 : len(all)-1]
	b, err := decimal.NewFromString(strings.TrimSpace(barrier))
	if err != nil {
		return append([]decimal.Decimal(nil), inner...)
	}
	var out []decimal.Decimal
	for _, k := range inner {
		if (dir == Up && k.LessThanOrEqual(b)) || (dir == Down && k.GreaterThanOrEqual(b)) {
			out = append(out, k)
		}
	}
	return out
}

// BarrierChoices lists the barrier levels valid for a strike: listed call
// strikes strictly above it for UP and strictly below it for DOWN.
func BarrierChoices(book *models.ContractBook, strike string, dir Direction) []decimal.Decimal {
	all := book.Strikes(models.KindCall)
	k, err := decimal.NewFromString(strings.TrimSpace(strike))
	if err != nil {
		return all
	}
	var out []decimal.Decimal
	for _, s := range all {
		if (dir == Up && s.GreaterThan(k)) || (dir == Down && s.LessThan(k)) {
			out = append(out, s)
		}
	}
	return out
}
