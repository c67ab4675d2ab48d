package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"

	"auction-trader/internal/logging"
	"auction-trader/internal/models"
	"auction-trader/internal/pricing"
	"auction-trader/internal/strategy"
)

type quoteRow struct {
	Kind   models.InstrumentKind `json:"kind"`
	Strike *decimal.Decimal      `json:"strike,omitempty"`
	Tenor  models.ForwardTenor   `json:"tenor,omitempty"`
	Mid    *decimal.Decimal      `json:"mid,omitempty"`
	Bid    *decimal.Decimal      `json:"bid,omitempty"`
	Ask    *decimal.Decimal      `json:"ask,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func newQuoteCmd(app *App) *cobra.Command {
	var (
		expiry string
		spread string
	)

	cmd := &cobra.Command{
		Use:   "quote <kind> [strike|tenor]",
		Short: "Show bid/ask quotes for a contract or a whole chain",
		Long: `Show bid/ask quotes from the pricing backend.

Without a strike every listed strike of the kind is quoted. Forwards take
a tenor, CURRENT or NEXT, instead of a strike.`,
		Example: `  trader quote call 1900
  trader quote bc
  trader quote forward NEXT`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			kind, err := models.ParseInstrumentKind(args[0])
			if err != nil {
				return err
			}
			var forced *decimal.Decimal
			if spread != "" {
				v, err := decimal.NewFromString(spread)
				if err != nil || v.IsNegative() {
					return fmt.Errorf("invalid spread %q", spread)
				}
				forced = &v
			}

			book, _, err := app.LoadBook(ctx, expiry)
			if err != nil {
				return err
			}

			var (
				insts     []pricing.Instrument
				contracts []models.Contract
			)
			switch {
			case kind.IsForward():
				raw := ""
				if len(args) == 2 {
					raw = args[1]
				}
				tenor, err := models.ParseForwardTenor(raw)
				if err != nil {
					return err
				}
				insts = append(insts, pricing.Instrument{Kind: models.KindForward, Tenor: tenor, Expiry: book.Expiry})
			case len(args) == 2:
				strike, err := strategy.ParseStrike(args[1])
				if err != nil {
					return err
				}
				insts = append(insts, pricing.Instrument{Kind: kind, Expiry: book.Expiry, Strike: &strike})
			default:
				for _, s := range book.Strikes(kind) {
					if c, ok := book.Lookup(kind, s); ok {
						contracts = append(contracts, c)
					}
					s := s
					insts = append(insts, pricing.Instrument{Kind: kind, Expiry: book.Expiry, Strike: &s})
				}
			}
			if len(insts) == 0 {
				return fmt.Errorf("no %s contracts listed for %s", kind, FormatDate(book.Expiry))
			}

			var rows []quoteRow
			if len(contracts) > 0 && len(contracts) == len(insts) {
				rows, err = quoteChain(ctx, app.Resolver, contracts, forced)
				if err != nil {
					logger := logging.FromContext(ctx)
					logger.Debug().Err(err).Msg("Batch quote failed, quoting contracts one by one")
					rows = nil
				}
			}
			if rows == nil {
				mapper := iter.Mapper[pricing.Instrument, quoteRow]{MaxGoroutines: 4}
				rows = mapper.Map(insts, func(inst *pricing.Instrument) quoteRow {
					row := quoteRow{Kind: inst.Kind, Strike: inst.Strike, Tenor: inst.Tenor}
					q, err := app.Resolver.Quote(ctx, *inst, forced)
					if err != nil {
						row.Error = err.Error()
						return row
					}
					row.Mid, row.Bid, row.Ask = &q.Mid, &q.Bid, &q.Ask
					return row
				})
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}

			output.Bold("%s %s  expiry %s", book.CurrencyPair, kind, FormatDate(book.Expiry))
			table := NewTable(output, "STRIKE", "BID", "MID", "ASK")
			for _, r := range rows {
				label := string(r.Tenor)
				if r.Strike != nil {
					label = r.Strike.String()
				}
				if r.Error != "" {
					table.AddRow(label, "-", output.Red(TruncateString(r.Error, 40)), "-")
					continue
				}
				table.AddRow(label,
					output.Red(FormatPrice(*r.Bid, r.Kind)),
					FormatPrice(*r.Mid, r.Kind),
					output.Green(FormatPrice(*r.Ask, r.Kind)))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD, default nearest)")
	cmd.Flags().StringVar(&spread, "spread", "", "override the bid/ask spread")
	return cmd
}

func quoteChain(ctx context.Context, resolver *pricing.Resolver, contracts []models.Contract, forced *decimal.Decimal) ([]quoteRow, error) {
	quotes, err := resolver.QuoteChain(ctx, contracts, forced)
	if err != nil {
		return nil, err
	}
	rows := make([]quoteRow, len(quotes))
	for i := range quotes {
		q := quotes[i]
		rows[i] = quoteRow{Kind: q.Kind, Strike: q.Strike}
		if q.Err != nil {
			rows[i].Error = q.Err.Error()
			continue
		}
		rows[i].Mid, rows[i].Bid, rows[i].Ask = &q.Mid, &q.Bid, &q.Ask
	}
	return rows, nil
}
