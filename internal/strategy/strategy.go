// Package strategy describes multi-leg option strategies and assembles them
// into priced legs.
package strategy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
	"auction-trader/internal/pricing"
)

// DefaultMaxLegs is the leg limit of a custom strategy.
const DefaultMaxLegs = 5

// NoStrike is the strike placeholder of forward legs.
const NoStrike = "-"

// Description is anything the assembler can turn into legs.
type Description interface {
	// Name is the human readable order description.
	Name() string
	// Plan maps the description onto listed contracts. Missing or invalid
	// user input yields an error wrapping ErrInsufficientInput.
	Plan(book *models.ContractBook) ([]LegPlan, error)
}

// LegPlan is a leg whose contract is known but whose price is not yet resolved.
type LegPlan struct {
	Contract models.Contract
	Leg      models.Leg
	Request  pricing.PriceRequest
	// BinarySpread forces the binary spread onto the price request.
	BinarySpread bool
	// Manual carries a user supplied unit price. ManualInvalid marks input
	// that could not be used, leaving the leg unpriced.
	Manual        *decimal.Decimal
	ManualInvalid bool
}

// LegSpec is one user-edited leg of a custom strategy. Size, strike and
// unit price are kept as entered.
type LegSpec struct {
	Kind      models.InstrumentKind
	Tenor     models.ForwardTenor // forwards only
	Side      models.Side
	Size      string
	Strike    string // "" when unset, NoStrike for forwards
	UnitPrice string // optional manual price
	Linked    bool
}

func (l LegSpec) String() string {
	target := l.Strike
	if l.Kind.IsForward() {
		target = string(l.Tenor)
	}
	return fmt.Sprintf("%s %s %s x%s", l.Side, l.Kind, target, l.Size)
}

// Strategy is an ordered list of independent legs. Strategy values are
// immutable; editing methods return a modified copy.
type Strategy struct {
	Label   string
	Legs    []LegSpec
	MaxLegs int
}

// New creates an empty strategy.
func New(label string) Strategy {
	return Strategy{Label: label, MaxLegs: DefaultMaxLegs}
}

// Name implements Description.
func (s Strategy) Name() string {
	if s.Label != "" {
		return s.Label
	}
	parts := make([]string, len(s.Legs))
	for i, l := range s.Legs {
		parts[i] = l.String()
	}
	return strings.Join(parts, " / ")
}

func (s Strategy) maxLegs() int {
	if s.MaxLegs <= 0 {
		return DefaultMaxLegs
	}
	return s.MaxLegs
}

func (s Strategy) clone() Strategy {
	out := s
	out.Legs = append([]LegSpec(nil), s.Legs...)
	return out
}

// CanAddLeg reports whether another leg fits.
func (s Strategy) CanAddLeg() bool {
	return len(s.Legs) < s.maxLegs()
}

// WithLeg appends a leg.
func (s Strategy) WithLeg(leg LegSpec) (Strategy, error) {
	if !s.CanAddLeg() {
		return s, apperrors.ErrMaxLegs
	}
	out := s.clone()
	out.Legs = append(out.Legs, leg)
	return out, nil
}

// AddLeg appends the default new leg: a linked long call at the strike
// closest to spot, sized like the largest linked leg.
func (s Strategy) AddLeg(book *models.ContractBook, spot decimal.Decimal) (Strategy, error) {
	size := s.largestLinkedSize()
	if size.IsZero() {
		size = decimal.NewFromInt(1)
	}
	return s.WithLeg(LegSpec{
		Kind:   models.KindCall,
		Side:   models.SideBuy,
		Size:   size.String(),
		Strike: StrikeAtOffset(book, models.KindCall, spot, 0),
		Linked: true,
	})
}

// RemoveLeg drops the leg at index i.
func (s Strategy) RemoveLeg(i int) (Strategy, error) {
	if i < 0 || i >= len(s.Legs) {
		return s, fmt.Errorf("leg index %d out of range", i)
	}
	out := s.clone()
	out.Legs = append(out.Legs[:i], out.Legs[i+1:]...)
	out.Label = ""
	return out, nil
}

// UpdateLeg replaces the leg at index i. Changing the size of a linked leg
// resizes every linked leg.
func (s Strategy) UpdateLeg(i int, leg LegSpec) (Strategy, error) {
	if i < 0 || i >= len(s.Legs) {
		return s, fmt.Errorf("leg index %d out of range", i)
	}
	out := s.clone()
	prev := out.Legs[i]
	out.Legs[i] = leg
	if leg.Linked && leg.Size != prev.Size {
		out = out.SetSharedSize(leg.Size)
	}
	return out, nil
}

// InvertSides flips the side of every leg.
func (s Strategy) InvertSides() Strategy {
	out := s.clone()
	for i := range out.Legs {
		out.Legs[i].Side = out.Legs[i].Side.Opposite()
	}
	return out
}

// SetLinked links or unlinks leg i. A newly linked leg adopts the size of
// the largest already linked leg.
func (s Strategy) SetLinked(i int, linked bool) (Strategy, error) {
	if i < 0 || i >= len(s.Legs) {
		return s, fmt.Errorf("leg index %d out of range", i)
	}
	out := s.clone()
	if linked && !out.Legs[i].Linked {
		if largest := out.largestLinkedSize(); largest.IsPositive() {
			out.Legs[i].Size = largest.String()
		}
	}
	out.Legs[i].Linked = linked
	return out, nil
}

// SetSharedSize sets the size of every linked leg.
func (s Strategy) SetSharedSize(size string) Strategy {
	out := s.clone()
	for i := range out.Legs {
		if out.Legs[i].Linked {
			out.Legs[i].Size = size
		}
	}
	return out
}

// Clear removes all legs.
func (s Strategy) Clear() Strategy {
	return Strategy{MaxLegs: s.MaxLegs}
}

func (s Strategy) largestLinkedSize() decimal.Decimal {
	largest := decimal.Zero
	for _, l := range s.Legs {
		if !l.Linked {
			continue
		}
		if v, err := decimal.NewFromString(strings.TrimSpace(l.Size)); err == nil && v.GreaterThan(largest) {
			largest = v
		}
	}
	return largest
}

// Plan implements Description.
func (s Strategy) Plan(book *models.ContractBook) ([]LegPlan, error) {
	if len(s.Legs) == 0 {
		return nil, apperrors.NewValidationError("legs", 0, "strategy has no legs")
	}
	if len(s.Legs) > s.maxLegs() {
		return nil, apperrors.ErrMaxLegs
	}

	plans := make([]LegPlan, 0, len(s.Legs))
	for i, spec := range s.Legs {
		p, err := planLeg(book, spec)
		if err != nil {
			return nil, apperrors.Wrapf(err, "leg %d", i+1)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func planLeg(book *models.ContractBook, spec LegSpec) (LegPlan, error) {
	size, err := ParsePositive("size", spec.Size)
	if err != nil {
		return LegPlan{}, err
	}
	side := spec.Side
	if side != models.SideBuy && side != models.SideSell {
		return LegPlan{}, apperrors.NewValidationError("side", spec.Side, "must be BUY or SELL")
	}

	var (
		contract models.Contract
		inst     = pricing.Instrument{Kind: spec.Kind, Expiry: book.Expiry}
	)
	if spec.Kind.IsForward() {
		tenor := spec.Tenor
		if tenor == "" {
			tenor = models.TenorCurrent
		}
		c, ok := book.Forward(tenor)
		if !ok {
			return LegPlan{}, apperrors.NewValidationError("tenor", tenor, "no listed forward")
		}
		contract = c
		inst.Kind = models.KindForward
		inst.Tenor = tenor
	} else {
		strike, err := ParseStrike(spec.Strike)
		if err != nil {
			return LegPlan{}, err
		}
		c, ok := book.Lookup(spec.Kind, strike)
		if !ok {
			return LegPlan{}, apperrors.NewValidationError("strike", spec.Strike, fmt.Sprintf("no listed %s contract", spec.Kind))
		}
		contract = c
		inst.Strike = &strike
	}

	plan := LegPlan{
		Contract: contract,
		Leg:      models.Leg{ContractID: contract.ID, Quantity: size, Side: side},
		Request:  pricing.PriceRequest{Instrument: inst, Side: pricing.SidePtr(side)},
	}

	if manual := strings.TrimSpace(spec.UnitPrice); manual != "" {
		v, err := decimal.NewFromString(manual)
		if err != nil || v.IsNegative() {
			plan.ManualInvalid = true
		} else {
			plan.Manual = &v
		}
	}
	return plan, nil
}

// ParsePositive parses a strictly positive decimal from user input.
func ParsePositive(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, apperrors.NewValidationError(field, raw, "not set")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError(field, raw, "not a number")
	}
	if !v.IsPositive() {
		return decimal.Zero, apperrors.NewValidationError(field, raw, "must be positive")
	}
	return v, nil
}

// ParseStrike parses a strike selection. Unset and placeholder strikes are
// insufficient input.
func ParseStrike(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == NoStrike {
		return decimal.Zero, apperrors.NewValidationError("strike", raw, "not set")
	}
	return ParsePositive("strike", raw)
}

// StrikeAtOffset returns the listed strike offset positions away from the
// strike closest to spot, clamped to the ends of the list. It returns ""
// when the kind has no listed strikes.
func StrikeAtOffset(book *models.ContractBook, kind models.InstrumentKind, spot decimal.Decimal, offset int) string {
	strikes := book.Strikes(kind)
	atm := book.ClosestStrikeIndex(kind, spot)
	if atm < 0 {
		return ""
	}
	i := atm + offset
	if i < 0 {
		i = 0
	}
	if i >= len(strikes) {
		i = len(strikes) - 1
	}
	return strikes[i].String()
}
