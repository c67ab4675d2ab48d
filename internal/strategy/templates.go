package strategy

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"auction-trader/internal/models"
)

// TemplateFamily groups prepackaged strategies.
type TemplateFamily string

const (
	Linear     TemplateFamily = "LINEAR"
	Structured TemplateFamily = "STRUCTURED"
)

// TemplateLeg is a leg whose strike is an index offset from the listed
// strike closest to spot.
type TemplateLeg struct {
	Kind   models.InstrumentKind
	Tenor  models.ForwardTenor
	Side   models.Side
	Size   int64
	Offset int
	Linked bool
}

// Template is a prepackaged strategy.
type Template struct {
	Key    string
	Label  string
	Family TemplateFamily
	Legs   []TemplateLeg
}

func opt(kind models.InstrumentKind, side models.Side, size int64, offset int, linked bool) TemplateLeg {
	return TemplateLeg{Kind: kind, Side: side, Size: size, Offset: offset, Linked: linked}
}

func fwd(tenor models.ForwardTenor, side models.Side, size int64, linked bool) TemplateLeg {
	return TemplateLeg{Kind: models.KindForward, Tenor: tenor, Side: side, Size: size, Linked: linked}
}

const (
	call  = models.KindCall
	put   = models.KindPut
	bcall = models.KindBinaryCall
	bput  = models.KindBinaryPut
	buy   = models.SideBuy
	sell  = models.SideSell
)

var templates = []Template{
	{Key: "call-spread", Label: "Call Spread", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, 1, true), opt(call, sell, 1, 2, true),
	}},
	{Key: "put-spread", Label: "Put Spread", Family: Linear, Legs: []TemplateLeg{
		opt(put, buy, 1, 0, true), opt(put, sell, 1, -1, true),
	}},
	{Key: "risk-reversal", Label: "Risk Reversal", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, 1, true), opt(put, sell, 1, -1, true),
	}},
	{Key: "call-ladder", Label: "Call Ladder", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, -1, true), opt(call, sell, 1, 0, true), opt(call, sell, 1, 1, true),
	}},
	{Key: "put-ladder", Label: "Put Ladder", Family: Linear, Legs: []TemplateLeg{
		opt(put, buy, 1, 1, true), opt(put, sell, 1, 0, true), opt(put, sell, 1, -1, true),
	}},
	{Key: "straddle", Label: "Straddle", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, 0, true), opt(put, buy, 1, 0, true),
	}},
	{Key: "strangle", Label: "Strangle", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, 1, true), opt(put, buy, 1, -1, true),
	}},
	{Key: "call-condor", Label: "Call Condor", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, -2, true), opt(call, sell, 1, -1, true), opt(call, sell, 1, 1, true), opt(call, buy, 1, 2, true),
	}},
	{Key: "put-condor", Label: "Put Condor", Family: Linear, Legs: []TemplateLeg{
		opt(put, buy, 1, -2, true), opt(put, sell, 1, -1, true), opt(put, sell, 1, 1, true), opt(put, buy, 1, 2, true),
	}},
	{Key: "iron-condor", Label: "Iron Condor", Family: Linear, Legs: []TemplateLeg{
		opt(put, buy, 1, -2, true), opt(put, sell, 1, -1, true), opt(call, sell, 1, 1, true), opt(call, buy, 1, 2, true),
	}},
	{Key: "call-butterfly", Label: "Call Butterfly", Family: Linear, Legs: []TemplateLeg{
		opt(call, buy, 1, -1, true), opt(call, sell, 2, 0, false), opt(call, buy, 1, 1, true),
	}},
	{Key: "put-butterfly", Label: "Put Butterfly", Family: Linear, Legs: []TemplateLeg{
		opt(put, buy, 1, -1, true), opt(put, sell, 2, 0, false), opt(put, buy, 1, 1, true),
	}},

	{Key: "bet-inside", Label: "Bet (Inside)", Family: Structured, Legs: []TemplateLeg{
		opt(bcall, buy, 100, 0, true), opt(bcall, sell, 100, 2, true),
	}},
	{Key: "bet-outside", Label: "Bet (Outside)", Family: Structured, Legs: []TemplateLeg{
		opt(bput, buy, 100, 0, true), opt(bcall, buy, 100, 2, true),
	}},
	{Key: "bonus", Label: "Bonus", Family: Structured, Legs: []TemplateLeg{
		opt(put, buy, 1, -1, true), opt(put, sell, 1, -3, true), opt(bput, sell, 200, -3, false),
		fwd(models.TenorNextAuction, buy, 1, true),
	}},
	{Key: "twin-win", Label: "Twin-Win", Family: Structured, Legs: []TemplateLeg{
		opt(put, buy, 2, -1, true), opt(put, sell, 2, -3, true), opt(bput, sell, 400, -3, false),
		fwd(models.TenorNextAuction, buy, 1, false),
	}},
	{Key: "up-n-in-call", Label: "Up & In Call", Family: Structured, Legs: []TemplateLeg{
		opt(call, buy, 1, 0, false), opt(bcall, buy, 200, 0, false),
	}},
	{Key: "up-n-out-call", Label: "Up & Out Call", Family: Structured, Legs: []TemplateLeg{
		opt(call, buy, 1, -2, true), opt(call, sell, 1, 0, true), opt(bcall, sell, 200, 0, false),
	}},
	{Key: "down-in-put", Label: "Down & In Put", Family: Structured, Legs: []TemplateLeg{
		opt(put, buy, 1, -3, false), opt(bput, buy, 200, -3, false),
	}},
	{Key: "down-out-put", Label: "Down & Out Put", Family: Structured, Legs: []TemplateLeg{
		opt(put, buy, 1, -1, true), opt(put, sell, 1, -3, true), opt(bput, sell, 200, -3, false),
	}},
}

var templatesByKey = func() map[string]Template {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.Key] = t
	}
	return m
}()

// Templates returns all prepackaged strategies of a family, or every
// template when family is empty.
func Templates(family TemplateFamily) []Template {
	var out []Template
	for _, t := range templates {
		if family == "" || t.Family == family {
			out = append(out, t)
		}
	}
	return out
}

// TemplateKeys returns the sorted template keys.
func TemplateKeys() []string {
	keys := make([]string, 0, len(templatesByKey))
	for k := range templatesByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LookupTemplate finds a template by key.
func LookupTemplate(key string) (Template, bool) {
	t, ok := templatesByKey[key]
	return t, ok
}

// Instantiate places the template on the book's strikes around spot.
func (t Template) Instantiate(book *models.ContractBook, spot decimal.Decimal) Strategy {
	s := New(t.Label)
	if len(t.Legs) > s.MaxLegs {
		s.MaxLegs = len(t.Legs)
	}
	for _, tl := range t.Legs {
		leg := LegSpec{
			Kind:   tl.Kind,
			Tenor:  tl.Tenor,
			Side:   tl.Side,
			Size:   strconv.FormatInt(tl.Size, 10),
			Linked: tl.Linked,
		}
		if tl.Kind.IsForward() {
			leg.Strike = NoStrike
		} else {
			leg.Strike = StrikeAtOffset(book, tl.Kind, spot, tl.Offset)
		}
		s.Legs = append(s.Legs, leg)
	}
	return s
}
