// Package payoff computes expiry payoff curves for priced legs.
package payoff

import (
	"sort"

	"github.com/shopspring/decimal"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

// DefaultPoints is the number of evenly spaced samples.
const DefaultPoints = 101

var (
	defaultPadding = decimal.RequireFromString("0.2")
	one            = decimal.NewFromInt(1)
)

// Options controls the sampled spot range.
type Options struct {
	// Points is the number of evenly spaced samples, at least 2.
	Points int
	// Padding extends the range on both sides by this fraction of the
	// highest anchor, or by the anchor width when that is larger.
	Padding decimal.Decimal
	// Spot, when set, is included in the range anchors.
	Spot *decimal.Decimal
}

// DefaultOptions returns the standard sampling options.
func DefaultOptions() Options {
	return Options{Points: DefaultPoints, Padding: defaultPadding}
}

// Intrinsic is a contract's value at expiry per unit for a spot price.
func Intrinsic(c models.Contract, spot decimal.Decimal) decimal.Decimal {
	k := c.StrikeValue()
	switch c.Kind {
	case models.KindCall:
		return decimal.Max(spot.Sub(k), decimal.Zero)
	case models.KindPut:
		return decimal.Max(k.Sub(spot), decimal.Zero)
	case models.KindBinaryCall:
		if spot.GreaterThanOrEqual(k) {
			return one
		}
		return decimal.Zero
	case models.KindBinaryPut:
		if spot.LessThanOrEqual(k) {
			return one
		}
		return decimal.Zero
	default:
		// forwards and spot are linear with no floor
		return spot.Sub(k)
	}
}

// Contribution is a leg's net value at a spot price:
// (intrinsic - premium) * quantity * side sign.
func Contribution(leg models.PricedLeg, spot decimal.Decimal) decimal.Decimal {
	return Intrinsic(leg.Contract, spot).
		Sub(*leg.Premium).
		Mul(leg.Leg.Quantity).
		Mul(leg.Leg.Side.Sign())
}

// Estimate samples the combined payoff of legs across a spot range that
// covers every strike. Each strike is sampled exactly so kinks are not
// smoothed away. Every leg must carry a premium.
func Estimate(legs []models.PricedLeg, opts Options) ([]models.PayoffPoint, error) {
	if len(legs) == 0 {
		return nil, nil
	}
	for i, l := range legs {
		if l.Premium == nil {
			return nil, apperrors.Wrapf(apperrors.ErrUnpricedLeg, "leg %d (contract %d)", i+1, l.Contract.ID)
		}
	}

	spots := SpotRange(legs, opts)
	points := make([]models.PayoffPoint, len(spots))
	for i, s := range spots {
		p := models.PayoffPoint{Spot: s, Total: decimal.Zero, Legs: make([]decimal.Decimal, len(legs))}
		for j, l := range legs {
			v := Contribution(l, s)
			p.Legs[j] = v
			p.Total = p.Total.Add(v)
		}
		points[i] = p
	}
	return points, nil
}

// SpotRange returns the ascending spot prices Estimate samples.
func SpotRange(legs []models.PricedLeg, opts Options) []decimal.Decimal {
	n := opts.Points
	if n < 2 {
		n = DefaultPoints
	}
	padding := opts.Padding
	if !padding.IsPositive() {
		padding = defaultPadding
	}

	var anchors []decimal.Decimal
	for _, l := range legs {
		if l.Contract.Economics.Strike != nil {
			anchors = append(anchors, *l.Contract.Economics.Strike)
		}
	}
	strikes := len(anchors)
	if opts.Spot != nil && opts.Spot.IsPositive() {
		anchors = append(anchors, *opts.Spot)
	}
	if len(anchors) == 0 {
		// forwards only: centre on their traded levels
		for _, l := range legs {
			if l.Premium != nil && l.Premium.IsPositive() {
				anchors = append(anchors, *l.Premium)
			}
		}
	}
	if len(anchors) == 0 {
		anchors = append(anchors, decimal.NewFromInt(100))
	}

	lo, hi := decimal.Min(anchors[0], anchors[1:]...), decimal.Max(anchors[0], anchors[1:]...)
	pad := decimal.Max(hi.Sub(lo), hi.Mul(padding))
	lo = decimal.Max(lo.Sub(pad), decimal.Zero)
	hi = hi.Add(pad)

	step := hi.Sub(lo).Div(decimal.NewFromInt(int64(n - 1))).Round(8)
	out := make([]decimal.Decimal, 0, n+strikes)
	for i := 0; i < n-1; i++ {
		out = append(out, lo.Add(step.Mul(decimal.NewFromInt(int64(i)))))
	}
	out = append(out, hi)

	for _, a := range anchors[:strikes] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })

	dedup := out[:1]
	for _, s := range out[1:] {
		if !s.Equal(dedup[len(dedup)-1]) {
			dedup = append(dedup, s)
		}
	}
	return dedup
}

// Summarize extracts the extreme values and breakevens of a sampled curve.
func Summarize(points []models.PayoffPoint) models.PayoffSummary {
	var s models.PayoffSummary
	if len(points) == 0 {
		return s
	}

	s.MaxProfit, s.MaxLoss = points[0].Total, points[0].Total
	for i, p := range points {
		if p.Total.GreaterThan(s.MaxProfit) {
			s.MaxProfit = p.Total
		}
		if p.Total.LessThan(s.MaxLoss) {
			s.MaxLoss = p.Total
		}
		if p.Total.IsZero() {
			s.Breakevens = appendUnique(s.Breakevens, p.Spot)
			continue
		}
		if i == 0 {
			continue
		}
		prev := points[i-1]
		if prev.Total.IsZero() || prev.Total.Sign() == p.Total.Sign() {
			continue
		}
		// linear interpolation between the two samples
		frac := prev.Total.Neg().Div(p.Total.Sub(prev.Total))
		be := prev.Spot.Add(p.Spot.Sub(prev.Spot).Mul(frac)).Round(4)
		s.Breakevens = appendUnique(s.Breakevens, be)
	}

	if n := len(points); n >= 2 {
		s.UpsideUnbounded = !points[n-1].Total.Equal(points[n-2].Total)
		s.DownsideUnbounded = points[0].Spot.IsPositive() && !points[0].Total.Equal(points[1].Total)
	}
	return s
}

func appendUnique(xs []decimal.Decimal, v decimal.Decimal) []decimal.Decimal {
	for _, x := range xs {
		if x.Equal(v) {
			return xs
		}
	}
	return append(xs, v)
}
