package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jcieslar/webhooks/internal/httpapi"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Manage tracked orders",
}

var ordersCreateCmd = &cobra.Command{
	Use:   "create <identifier>",
	Short: "Start tracking an order by its courier identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		order, err := a.db.CreateOrder(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), httpapi.NewOrderView(order, nil))
	},
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <identifier>",
	Short: "Show an order's state and log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		order, err := a.db.FindOrderByIdentifier(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("finding order %s: %w", args[0], err)
		}
		logs, err := a.db.ListLogs(cmd.Context(), order.ID)
		if err != nil {
			return fmt.Errorf("listing log: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), httpapi.NewOrderView(order, logs))
	},
}

func init() {
	ordersCmd.AddCommand(ordersCreateCmd, ordersShowCmd)
	rootCmd.AddCommand(ordersCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
