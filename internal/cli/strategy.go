package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
	"auction-trader/internal/order"
	"auction-trader/internal/strategy"
)

// payoffRows is the number of payoff samples printed in text mode.
const payoffRows = 21

func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "strategy",
		Aliases: []string{"strat"},
		Short:   "Build and price multi-leg strategies",
	}
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newBuildCmd(app))
	cmd.AddCommand(newBarrierCmd(app))
	rootCmd.AddCommand(cmd)
}

func newTemplatesCmd() *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List prepackaged strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tmpls := strategy.Templates(strategy.TemplateFamily(strings.ToUpper(family)))
			if output.IsJSON() {
				return output.JSON(tmpls)
			}

			table := NewTable(output, "KEY", "NAME", "FAMILY", "LEGS")
			for _, t := range tmpls {
				legs := make([]string, len(t.Legs))
				for i, l := range t.Legs {
					legs[i] = describeTemplateLeg(l)
				}
				table.AddRow(t.Key, t.Label, string(t.Family), strings.Join(legs, ", "))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "filter by family (LINEAR, STRUCTURED)")
	return cmd
}

func describeTemplateLeg(l strategy.TemplateLeg) string {
	side := "+"
	if l.Side == models.SideSell {
		side = "-"
	}
	if l.Kind.IsForward() {
		return fmt.Sprintf("%s%d %s", side, l.Size, l.Kind)
	}
	return fmt.Sprintf("%s%d %s@%+d", side, l.Size, l.Kind, l.Offset)
}

func newBuildCmd(app *App) *cobra.Command {
	var (
		legs     []string
		template string
		label    string
		size     string
		expiry   string
		submit   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Price a custom or template strategy",
		Long: `Price a strategy built from --leg flags or a template.

A leg is SIDE:KIND:STRIKE:SIZE[:PRICE]. KIND is C, P, BC, BP or F. For
forwards STRIKE is the tenor, CURRENT or NEXT. PRICE overrides the
resolved unit price.`,
		Example: `  trader strategy build --leg BUY:C:1900:1 --leg SELL:C:2000:1
  trader strategy build --template iron-condor --size 2
  trader strategy build --leg BUY:F:NEXT:0.5 --submit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if template == "" && len(legs) == 0 {
				return errStrategyRequired
			}
			ctx := cmd.Context()
			output := NewOutput(cmd)

			book, spot, err := app.LoadBook(ctx, expiry)
			if err != nil {
				return err
			}

			strat, err := buildStrategy(app, book, spot, strategyFlags{
				template: template, legs: legs, label: label, size: size,
			})
			if err != nil {
				return err
			}
			return priceAndRender(ctx, app, output, book, spot, strat, submit)
		},
	}

	cmd.Flags().StringArrayVar(&legs, "leg", nil, "leg as SIDE:KIND:STRIKE:SIZE[:PRICE] (repeatable)")
	cmd.Flags().StringVar(&template, "template", "", "prepackaged strategy key")
	cmd.Flags().StringVar(&label, "name", "", "order description for custom strategies")
	cmd.Flags().StringVar(&size, "size", "", "size of every linked leg")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD, default nearest)")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the order once priced")
	return cmd
}

func newBarrierCmd(app *App) *cobra.Command {
	var (
		side      string
		direction string
		mode      string
		strike    string
		barrier   string
		size      string
		expiry    string
		choices   bool
		submit    bool
	)

	cmd := &cobra.Command{
		Use:   "barrier",
		Short: "Price a knock-in or knock-out barrier option",
		Example: `  trader strategy barrier --direction UP --mode OUT --strike 1900 --barrier 2100
  trader strategy barrier --direction DOWN --mode IN --barrier 1700 --choices`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			s, err := models.ParseSide(side)
			if err != nil {
				return err
			}
			dir, err := strategy.ParseDirection(direction)
			if err != nil {
				return err
			}
			m, err := strategy.ParseMode(mode)
			if err != nil {
				return err
			}

			book, spot, err := app.LoadBook(ctx, expiry)
			if err != nil {
				return err
			}

			if choices {
				return renderBarrierChoices(output, book, strike, barrier, dir)
			}

			spec := strategy.BarrierSpec{
				Side:      s,
				Direction: dir,
				Mode:      m,
				Strike:    strike,
				Barrier:   barrier,
				Size:      size,
			}
			return priceAndRender(ctx, app, output, book, spot, spec, submit)
		},
	}

	cmd.Flags().StringVar(&side, "side", "BUY", "BUY or SELL")
	cmd.Flags().StringVar(&direction, "direction", "UP", "barrier direction (UP, DOWN)")
	cmd.Flags().StringVar(&mode, "mode", "OUT", "barrier mode (IN, OUT)")
	cmd.Flags().StringVar(&strike, "strike", "", "option strike")
	cmd.Flags().StringVar(&barrier, "barrier", "", "barrier level")
	cmd.Flags().StringVar(&size, "size", "1", "order size")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD, default nearest)")
	cmd.Flags().BoolVar(&choices, "choices", false, "list valid strikes and barriers instead of pricing")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the order once priced")
	return cmd
}

func renderBarrierChoices(output *Output, book *models.ContractBook, strike, barrier string, dir strategy.Direction) error {
	strikes := strategy.StrikeChoices(book, barrier, dir)
	barriers := strategy.BarrierChoices(book, strike, dir)
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{"strikes": strikes, "barriers": barriers})
	}
	output.Printf("Strikes:  %s\n", joinDecimals(strikes))
	output.Printf("Barriers: %s\n", joinDecimals(barriers))
	return nil
}

func joinDecimals(xs []decimal.Decimal) string {
	if len(xs) == 0 {
		return "-"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return strings.Join(parts, ", ")
}

var errStrategyRequired = errors.New("either --template or --leg is required")

// strategyFlags are the strategy inputs shared by build and watch.
type strategyFlags struct {
	template string
	legs     []string
	label    string
	size     string
}

func buildStrategy(app *App, book *models.ContractBook, spot decimal.Decimal, f strategyFlags) (strategy.Strategy, error) {
	var strat strategy.Strategy
	if f.template != "" {
		t, ok := strategy.LookupTemplate(f.template)
		if !ok {
			return strat, fmt.Errorf("unknown template %q (see 'trader strategy templates')", f.template)
		}
		strat = t.Instantiate(book, spot)
	} else {
		strat = strategy.New(f.label)
		strat.MaxLegs = app.Config.Trading.MaxLegs
		for _, raw := range f.legs {
			spec, err := parseLegFlag(raw)
			if err != nil {
				return strat, err
			}
			if strat, err = strat.WithLeg(spec); err != nil {
				return strat, err
			}
		}
	}
	if f.size != "" {
		strat = strat.SetSharedSize(f.size)
	}
	return strat, nil
}

// parseLegFlag parses SIDE:KIND:STRIKE:SIZE[:PRICE].
func parseLegFlag(raw string) (strategy.LegSpec, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 4 || len(parts) > 5 {
		return strategy.LegSpec{}, fmt.Errorf("leg %q: want SIDE:KIND:STRIKE:SIZE[:PRICE]", raw)
	}
	side, err := models.ParseSide(parts[0])
	if err != nil {
		return strategy.LegSpec{}, fmt.Errorf("leg %q: %w", raw, err)
	}
	kind, err := models.ParseInstrumentKind(parts[1])
	if err != nil {
		return strategy.LegSpec{}, fmt.Errorf("leg %q: %w", raw, err)
	}

	spec := strategy.LegSpec{
		Kind:   kind,
		Side:   side,
		Size:   strings.TrimSpace(parts[3]),
		Linked: true,
	}
	if kind.IsForward() {
		tenor, err := models.ParseForwardTenor(parts[2])
		if err != nil {
			return strategy.LegSpec{}, fmt.Errorf("leg %q: %w", raw, err)
		}
		spec.Kind = models.KindForward
		spec.Tenor = tenor
		spec.Strike = strategy.NoStrike
	} else {
		spec.Strike = strings.TrimSpace(parts[2])
	}
	if len(parts) == 5 {
		spec.UnitPrice = strings.TrimSpace(parts[4])
	}
	return spec, nil
}

func priceAndRender(ctx context.Context, app *App, output *Output, book *models.ContractBook, spot decimal.Decimal, desc strategy.Description, submit bool) error {
	desk := app.NewDesk("", nil, 0)
	defer desk.Close()
	desk.SetBook(book, spot)

	snap, err := desk.Update(ctx, desc)
	if err != nil {
		return err
	}

	if !submit {
		if output.IsJSON() {
			return output.JSON(snap)
		}
		renderSnapshot(output, snap, book, spot, app.Config.Trading.StrikePrecision)
		return nil
	}

	submitted, err := desk.Submit(ctx)
	if output.IsJSON() {
		if err != nil {
			return err
		}
		return output.JSON(desk.Snapshot())
	}
	renderSnapshot(output, snap, book, spot, app.Config.Trading.StrikePrecision)
	output.Println()
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrDraftIncomplete):
			output.Warning("Not submitted: every leg needs a price")
		case apperrors.Is(err, apperrors.ErrEstimateUnavailable):
			output.Warning("Not submitted: collateral and fee estimates are unavailable")
		}
		return err
	}
	output.Success("✓ Order submitted: %s (id %s, %s)", submitted.ClientOrderID, submitted.OrderID, submitted.Status)
	return nil
}

func renderSnapshot(output *Output, snap models.Snapshot, book *models.ContractBook, spot decimal.Decimal, precision int32) {
	title := snap.Description
	if title == "" {
		title = "Strategy"
	}
	output.Bold("%s", title)
	output.Printf("%s  %s  expiry %s  spot %s\n",
		output.StateText(snap.State), book.CurrencyPair, FormatDate(book.Expiry), spot.StringFixed(2))
	output.Println()

	if len(snap.Legs) == 0 {
		output.Dim("Strategy is incomplete: set every strike and size to price it.")
		return
	}

	table := NewTable(output, "#", "SIDE", "KIND", "STRIKE", "QTY", "PRICE", "SOURCE")
	for i, p := range snap.Legs {
		table.AddRow(
			fmt.Sprintf("%d", i+1),
			output.SideText(p.Leg.Side),
			string(p.Contract.Kind),
			FormatStrike(p.Contract),
			p.Leg.Quantity.String(),
			FormatPremium(p.Premium, p.Contract.Kind),
			output.SourceTag(p.Source),
		)
	}
	table.Render()
	output.Println()

	if snap.Draft == nil || !snap.Draft.Complete {
		output.Warning("Some legs have no price; the net price is not available.")
		return
	}
	renderDraft(output, snap, precision)

	if snap.Summary != nil {
		output.Println()
		renderPayoff(output, snap)
	}
}

func renderDraft(output *Output, snap models.Snapshot, precision int32) {
	draft := snap.Draft
	quote := ""
	if len(snap.Legs) > 0 {
		quote = snap.Legs[0].Contract.Economics.PriceCurrency
	}

	flow := "debit"
	if draft.TotalNetPrice.IsNegative() {
		flow = "credit"
	}
	output.Printf("  Net Price:  %s %s\n", FormatAmount(draft.TotalNetPrice, quote), output.DimText("("+flow+")"))
	if size := largestQuantity(draft.Legs); size.IsPositive() {
		output.Printf("  Unit Price: %s\n", order.UnitPrice(draft.TotalNetPrice, size, precision).String())
	}
	if draft.Lock != nil {
		output.Printf("  Collateral: %s\n", FormatAmount(*draft.Lock, quote))
	}
	if draft.Fees != nil {
		output.Printf("  Fees:       %s\n", FormatAmount(draft.Fees.NumberValue, draft.Fees.Currency))
	}
	if snap.EstimateWarning {
		output.Warning("  ⚠ Collateral and fee estimates are unavailable")
	}
	output.Dim("  Client order id: %s", draft.ClientOrderID)
}

func largestQuantity(legs []models.Leg) decimal.Decimal {
	largest := decimal.Zero
	for _, l := range legs {
		if l.Quantity.GreaterThan(largest) {
			largest = l.Quantity
		}
	}
	return largest
}

func renderPayoff(output *Output, snap models.Snapshot) {
	sum := snap.Summary
	output.Bold("Payoff at expiry")

	output.Printf("  Max Profit: %s\n", output.FormatPnL(sum.MaxProfit))
	output.Printf("  Max Loss:   %s\n", output.FormatPnL(sum.MaxLoss))
	output.Printf("  Breakevens: %s\n", joinDecimals(sum.Breakevens))
	if sum.UpsideUnbounded || sum.DownsideUnbounded {
		var edges []string
		if sum.DownsideUnbounded {
			edges = append(edges, "below range")
		}
		if sum.UpsideUnbounded {
			edges = append(edges, "above range")
		}
		output.Dim("  Keeps moving %s", strings.Join(edges, " and "))
	}
	output.Println()

	points := samplePayoff(snap.Payoff, payoffRows)
	maxAbs := decimal.Zero
	for _, p := range points {
		if a := p.Total.Abs(); a.GreaterThan(maxAbs) {
			maxAbs = a
		}
	}
	for _, p := range points {
		output.Printf("  %s %s %s\n",
			PadLeft(p.Spot.StringFixed(2), 10),
			Bar(p.Total, maxAbs, 40),
			output.FormatPnL(p.Total.Round(2)))
	}
}

// samplePayoff picks n evenly spaced points, always keeping both ends.
func samplePayoff(points []models.PayoffPoint, n int) []models.PayoffPoint {
	if len(points) <= n || n < 2 {
		return points
	}
	out := make([]models.PayoffPoint, 0, n)
	last := len(points) - 1
	for i := 0; i < n; i++ {
		out = append(out, points[i*last/(n-1)])
	}
	return out
}
