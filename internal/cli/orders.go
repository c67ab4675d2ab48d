package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"auction-trader/internal/models"
	"auction-trader/internal/store"
)

func newOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Browse the order journal",
	}
	cmd.AddCommand(newOrdersListCmd(app))
	cmd.AddCommand(newOrdersShowCmd(app))
	return cmd
}

func requireStore(app *App) (store.OrderStore, error) {
	if app.Store == nil {
		return nil, errors.New("order journal is not available (check store.path)")
	}
	return app.Store, nil
}

func newOrdersListCmd(app *App) *cobra.Command {
	var (
		status string
		days   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := requireStore(app)
			if err != nil {
				return err
			}

			filter := store.OrderFilter{
				CurrencyPair: app.Config.Trading.CurrencyPair,
				Status:       models.OrderStatus(strings.ToUpper(status)),
				Limit:        limit,
			}
			if days > 0 {
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}

			orders, err := st.GetOrders(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No orders")
				return nil
			}

			table := NewTable(output, "SUBMITTED", "CLIENT ID", "DESCRIPTION", "LEGS", "NET", "STATUS")
			for _, o := range orders {
				table.AddRow(
					FormatDateTime(o.SubmittedAt),
					TruncateString(o.ClientOrderID, 12),
					TruncateString(o.Description, 32),
					fmt.Sprintf("%d", len(o.Legs)),
					o.TotalNetPrice.String(),
					statusText(output, o.Status),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (OPEN, FILLED, CANCELLED, REJECTED)")
	cmd.Flags().IntVar(&days, "days", 0, "only orders from the last N days")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum orders to show")
	return cmd
}

func newOrdersShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <client-order-id>",
		Short: "Show one journaled order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := requireStore(app)
			if err != nil {
				return err
			}

			o, err := st.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(o)
			}

			content := []string{
				fmt.Sprintf("Order id:   %s", o.OrderID),
				fmt.Sprintf("Pair:       %s  expiry %s", o.CurrencyPair, FormatDate(o.Expiry)),
				fmt.Sprintf("Status:     %s", statusText(output, o.Status)),
				fmt.Sprintf("Net price:  %s", o.TotalNetPrice.String()),
				fmt.Sprintf("Collateral: %s", o.Lock.String()),
				fmt.Sprintf("Fees:       %s", o.Fees.String()),
				fmt.Sprintf("Submitted:  %s", FormatDateTime(o.SubmittedAt)),
				"",
			}
			for i, l := range o.Legs {
				content = append(content, fmt.Sprintf("%d. %s %s x contract %d", i+1, output.SideText(l.Side), l.Quantity.String(), l.ContractID))
			}
			output.Box(o.Description, content)
			return nil
		},
	}
}

func statusText(output *Output, status models.OrderStatus) string {
	switch status {
	case models.OrderStatusFilled:
		return output.Green(string(status))
	case models.OrderStatusCancelled, models.OrderStatusRejected:
		return output.Red(string(status))
	}
	return output.Yellow(string(status))
}
