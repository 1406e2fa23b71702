package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/recsizing/core/assembler"
	"github.com/kilianp07/recsizing/core/store"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/infra/sqlstore"
)

var orderFormat string

var orderCmd = &cobra.Command{
	Use:   "order <order_id>",
	Short: "Print the state or the result of an order from the configured store",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrder,
}

func init() {
	orderCmd.Flags().StringVar(&orderFormat, "format", "json", "result format: json, csv or xlsx")
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := sqlstore.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	l, err := assembler.New(s, nil, logger.New("order-command")).Lookup(ctx, args[0])
	if errors.Is(err, store.ErrOrderNotFound) {
		return fmt.Errorf("order %s not found", args[0])
	}
	if err != nil {
		return err
	}
	if l.Response == nil {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", l.Order.ID, l.Order.State(), l.Order.Message)
		return err
	}
	return write(cmd.OutOrStdout(), orderFormat, *l.Response)
}
