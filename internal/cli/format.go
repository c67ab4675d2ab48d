package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"auction-trader/internal/models"
	"auction-trader/internal/notify"
)

// FormatAmount formats an amount with thousands separators and two
// decimals, e.g. "1,234.50 USDC".
func FormatAmount(amount decimal.Decimal, currency string) string {
	return notify.FormatAmount(amount, currency)
}

// FormatSigned formats a value with an explicit sign.
func FormatSigned(v decimal.Decimal) string {
	s := FormatAmount(v, "")
	if v.IsPositive() {
		s = "+" + s
	}
	return s
}

// FormatPrice formats a premium. Binary premiums are fractions of one unit
// and keep four decimals.
func FormatPrice(price decimal.Decimal, kind models.InstrumentKind) string {
	if kind.IsBinary() {
		return price.StringFixed(4)
	}
	return price.StringFixed(2)
}

// FormatPremium formats an optional premium; nil renders as a dash.
func FormatPremium(price *decimal.Decimal, kind models.InstrumentKind) string {
	if price == nil {
		return "-"
	}
	return FormatPrice(*price, kind)
}

// FormatStrike formats a contract's strike, or the tenor placeholder for
// forwards.
func FormatStrike(c models.Contract) string {
	if c.Economics.Strike == nil {
		return "-"
	}
	return c.Economics.Strike.String()
}

// FormatBidAsk formats a bid/ask pair.
func FormatBidAsk(bid, ask decimal.Decimal, kind models.InstrumentKind) string {
	return fmt.Sprintf("%s / %s", FormatPrice(bid, kind), FormatPrice(ask, kind))
}

// FormatDate formats an expiry date.
func FormatDate(t time.Time) string {
	return t.UTC().Format("02 Jan 2006")
}

// FormatDateTime formats a timestamp.
func FormatDateTime(t time.Time) string {
	return t.Local().Format("02 Jan 2006 15:04:05")
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// PadLeft pads a string to the left.
func PadLeft(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(" ", length-len(s)) + s
}

// Bar renders a horizontal bar of width cells scaled from value/maxAbs,
// growing right for gains and left for losses around a centre line.
func Bar(value, maxAbs decimal.Decimal, width int) string {
	if width < 2 {
		width = 2
	}
	half := width / 2
	cells := 0
	if maxAbs.IsPositive() {
		cells = int(value.Abs().Div(maxAbs).Mul(decimal.NewFromInt(int64(half))).Round(0).IntPart())
	}
	if cells > half {
		cells = half
	}

	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	if value.IsNegative() {
		left = strings.Repeat(" ", half-cells) + strings.Repeat("█", cells)
	} else if value.IsPositive() {
		right = strings.Repeat("█", cells) + strings.Repeat(" ", half-cells)
	}
	return left + "│" + right
}
