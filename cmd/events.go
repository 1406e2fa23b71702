package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/infra/journal"
)

var eventsOpts struct {
	order string
	state string
	since time.Duration
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List job outcomes recorded in the event journal",
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsOpts.order, "order", "", "only events of this order")
	eventsCmd.Flags().StringVar(&eventsOpts.state, "state", "", "only events in this state, e.g. COMPLETE")
	eventsCmd.Flags().DurationVar(&eventsOpts.since, "since", 0, "only events finished within this duration")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled() {
		return errors.New("journal.path is not configured")
	}
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	q := journal.Query{OrderID: eventsOpts.order, State: model.State(eventsOpts.state)}
	if eventsOpts.since > 0 {
		q.Start = time.Now().Add(-eventsOpts.since)
	}
	evs, err := j.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}
