package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"auction-trader/internal/logging"
	"auction-trader/internal/models"
	"auction-trader/internal/sdk"
	"auction-trader/internal/stream"
	"auction-trader/internal/trading"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		flags         strategyFlags
		expiry        string
		refresh       time.Duration
		alerts        []string
		submitOnAlert bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a strategy priced and alert on its net price",
		Long: `Price a strategy, re-price it on the refresh interval and print every
update until interrupted. Alerts are CONDITION:PRICE with CONDITION one of
above, below, cross_above or cross_below, tested against the net price.`,
		Example: `  trader watch --template call-spread --alert below:80
  trader watch --leg BUY:BC:1900:10 --alert cross_below:4 --submit-on-alert`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.template == "" && len(flags.legs) == 0 {
				return errStrategyRequired
			}
			output := NewOutput(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			book, spot, err := app.LoadBook(ctx, expiry)
			if err != nil {
				return err
			}
			strat, err := buildStrategy(app, book, spot, flags)
			if err != nil {
				return err
			}

			if refresh <= 0 {
				refresh = app.Config.Pricing.RefreshInterval
			}

			hub := stream.NewHub()
			if err := hub.Start(ctx); err != nil {
				return err
			}
			defer hub.Stop()

			desk := app.NewDesk(trading.DefaultTopic, hub, refresh)
			defer desk.Close()
			desk.SetBook(book, spot)

			monitor := stream.NewDeskMonitor(app.Notifier)
			for _, raw := range alerts {
				cond, target, err := parseAlertFlag(raw)
				if err != nil {
					return err
				}
				monitor.CreateAlert(trading.DefaultTopic, cond, target)
			}
			if submitOnAlert {
				monitor.SetOnTrigger(func(a *stream.PriceAlert, _ models.Snapshot) {
					go func() {
						if _, err := desk.Submit(ctx); err != nil {
							logger := logging.FromContext(ctx)
							logger.Error().Err(err).Str("alert", a.ID).Msg("Alert submission failed")
						}
					}()
				})
			}
			hub.RegisterConsumer(monitor)
			defer hub.UnregisterConsumer(monitor)

			closeUpdates := app.watchOrderUpdates(ctx, desk)
			defer closeUpdates()

			updates := hub.Subscribe(trading.DefaultTopic)
			defer hub.Unsubscribe(trading.DefaultTopic, updates)

			if !output.IsJSON() {
				output.Info("Watching %s on %s (refresh %s). Press Ctrl+C to stop.", strat.Name(), book.CurrencyPair, refresh)
			}
			if _, err := desk.Update(ctx, strat); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					if !output.IsJSON() {
						output.Println()
						output.Dim("Stopped")
					}
					return nil
				case snap, ok := <-updates:
					if !ok {
						return nil
					}
					if output.IsJSON() {
						if err := output.JSON(snap); err != nil {
							return err
						}
						continue
					}
					output.Println(watchLine(output, snap))
				}
			}
		},
	}

	cmd.Flags().StringArrayVar(&flags.legs, "leg", nil, "leg as SIDE:KIND:STRIKE:SIZE[:PRICE] (repeatable)")
	cmd.Flags().StringVar(&flags.template, "template", "", "prepackaged strategy key")
	cmd.Flags().StringVar(&flags.label, "name", "", "order description for custom strategies")
	cmd.Flags().StringVar(&flags.size, "size", "", "size of every linked leg")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD, default nearest)")
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "re-pricing interval (default pricing.refresh_interval)")
	cmd.Flags().StringArrayVar(&alerts, "alert", nil, "net price alert as CONDITION:PRICE (repeatable)")
	cmd.Flags().BoolVar(&submitOnAlert, "submit-on-alert", false, "submit the order when an alert fires")
	return cmd
}

// watchOrderUpdates routes pushed order status changes to the desk and
// returns a function that stops them.
func (a *App) watchOrderUpdates(ctx context.Context, desk *trading.Desk) func() {
	handle := func(u models.OrderUpdate) { desk.HandleOrderUpdate(ctx, u) }

	if a.paper != nil {
		a.paper.OnUpdate(handle)
		return func() { a.paper.OnUpdate(nil) }
	}
	if a.Config.SDK.WSURL == "" {
		return func() {}
	}

	orders := sdk.NewOrderStream(sdk.OrderStreamConfig{
		URL:    a.Config.SDK.WSURL,
		APIKey: a.Config.Credentials.APIKey,
	}, a.Logger)
	orders.OnUpdate(handle)
	orders.OnError(func(err error) {
		a.Logger.Warn().Err(err).Msg("Order stream error")
	})
	orders.Start(ctx)
	return func() { orders.Close() }
}

func parseAlertFlag(raw string) (stream.AlertCondition, decimal.Decimal, error) {
	cond, price, ok := strings.Cut(raw, ":")
	if !ok {
		return "", decimal.Zero, fmt.Errorf("alert %q: want CONDITION:PRICE", raw)
	}
	c, err := stream.ParseAlertCondition(cond)
	if err != nil {
		return "", decimal.Zero, err
	}
	target, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("alert %q: invalid price", raw)
	}
	return c, target, nil
}

func watchLine(output *Output, snap models.Snapshot) string {
	parts := []string{
		output.DimText(snap.Timestamp.Local().Format("15:04:05")),
		output.StateText(snap.State),
	}
	if d := snap.Draft; d != nil && d.Complete {
		parts = append(parts, "net "+output.BoldText(d.TotalNetPrice.String()))
		if d.Lock != nil {
			parts = append(parts, "lock "+d.Lock.StringFixed(2))
		}
		if d.Fees != nil {
			parts = append(parts, "fees "+d.Fees.NumberValue.String())
		}
	}
	if snap.EstimateWarning {
		parts = append(parts, output.Yellow("⚠ estimates unavailable"))
	}
	if s := snap.Submitted; s != nil {
		parts = append(parts, output.Cyan(fmt.Sprintf("order %s %s", s.OrderID, s.Status)))
	}
	return strings.Join(parts, "  ")
}
