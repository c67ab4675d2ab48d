package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Economics describes what a contract pays.
type Economics struct {
	CurrencyPair  string
	Expiry        time.Time
	Strike        *decimal.Decimal // nil for forwards and spot
	PriceCurrency string
	QtyCurrency   string
}

// Contract is an immutable listed instrument.
type Contract struct {
	ID             int64
	Kind           InstrumentKind
	Economics      Economics
	ReferencePrice decimal.Decimal // last known server mid-price
	Tradeable      bool
}

// StrikeValue returns the strike or zero when the contract has none.
func (c Contract) StrikeValue() decimal.Decimal {
	if c.Economics.Strike == nil {
		return decimal.Zero
	}
	return *c.Economics.Strike
}

// StrikeKey is the canonical map key for a strike.
func StrikeKey(strike decimal.Decimal) string {
	return strike.String()
}

// ContractBook indexes the contracts of one currency pair and expiry.
type ContractBook struct {
	CurrencyPair string
	Expiry       time.Time

	byKind  map[InstrumentKind]map[string]Contract
	byID    map[int64]Contract
	forward *Contract
	spot    *Contract
}

// NewContractBook builds a book from a contract list. Contracts with a
// different expiry are ignored, except the spot contract which has none.
func NewContractBook(pair string, expiry time.Time, contracts []Contract) *ContractBook {
	b := &ContractBook{
		CurrencyPair: pair,
		Expiry:       expiry,
		byKind:       make(map[InstrumentKind]map[string]Contract),
		byID:         make(map[int64]Contract),
	}
	for _, c := range contracts {
		if pair != "" && c.Economics.CurrencyPair != "" && c.Economics.CurrencyPair != pair {
			continue
		}
		if c.Kind == KindSpot {
			c := c
			b.spot = &c
			b.byID[c.ID] = c
			continue
		}
		if !sameDay(c.Economics.Expiry, expiry) {
			continue
		}
		b.byID[c.ID] = c
		if c.Kind == KindForward {
			c := c
			b.forward = &c
			continue
		}
		if c.Economics.Strike == nil {
			continue
		}
		m, ok := b.byKind[c.Kind]
		if !ok {
			m = make(map[string]Contract)
			b.byKind[c.Kind] = m
		}
		m[StrikeKey(*c.Economics.Strike)] = c
	}
	return b
}

// Lookup finds the contract for a kind and strike.
func (b *ContractBook) Lookup(kind InstrumentKind, strike decimal.Decimal) (Contract, bool) {
	c, ok := b.byKind[kind][StrikeKey(strike)]
	return c, ok
}

// ByID finds a contract by id.
func (b *ContractBook) ByID(id int64) (Contract, bool) {
	c, ok := b.byID[id]
	return c, ok
}

// Forward returns the forward contract for a tenor. The next-auction forward
// trades as the spot contract.
func (b *ContractBook) Forward(tenor ForwardTenor) (Contract, bool) {
	if tenor == TenorNextAuction {
		if b.spot == nil {
			return Contract{}, false
		}
		return *b.spot, true
	}
	if b.forward == nil {
		return Contract{}, false
	}
	return *b.forward, true
}

// Strikes returns the listed strikes of a kind in ascending order.
func (b *ContractBook) Strikes(kind InstrumentKind) []decimal.Decimal {
	m := b.byKind[kind]
	out := make([]decimal.Decimal, 0, len(m))
	for _, c := range m {
		out = append(out, *c.Economics.Strike)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// ClosestStrikeIndex returns the index into Strikes(kind) of the strike
// nearest to spot, or -1 when the kind has no strikes. Ties go to the lower strike.
func (b *ContractBook) ClosestStrikeIndex(kind InstrumentKind, spot decimal.Decimal) int {
	strikes := b.Strikes(kind)
	best := -1
	var bestDist decimal.Decimal
	for i, s := range strikes {
		d := s.Sub(spot).Abs()
		if best < 0 || d.LessThan(bestDist) {
			best, bestDist = i, d
		}
	}
	return best
}

// Contracts returns every contract in the book ordered by id.
func (b *ContractBook) Contracts() []Contract {
	out := make([]Contract, 0, len(b.byID))
	for _, c := range b.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Expiries lists the distinct expiries found in a contract list, ascending.
func Expiries(contracts []Contract) []time.Time {
	seen := make(map[string]time.Time)
	for _, c := range contracts {
		if c.Kind == KindSpot || c.Economics.Expiry.IsZero() {
			continue
		}
		seen[c.Economics.Expiry.Format(DateLayout)] = c.Economics.Expiry
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// DateLayout is the pricing backend date format.
const DateLayout = "2006-01-02"

func sameDay(a, b time.Time) bool {
	return a.UTC().Format(DateLayout) == b.UTC().Format(DateLayout)
}
