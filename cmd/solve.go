package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/recsizing/app"
	"github.com/kilianp07/recsizing/core/assembler"
	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/store"
	"github.com/kilianp07/recsizing/pkg/export"
)

var solveOpts struct {
	request string
	data    string
	format  string
	out     string
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run one sizing request synchronously against a dataset file",
	RunE:  runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVar(&solveOpts.request, "request", "", "sizing request JSON (plain or with shared meter)")
	f.StringVar(&solveOpts.data, "data", "", "dataset JSON; the configured source is used when empty")
	f.StringVar(&solveOpts.format, "format", "json", "output format: json, csv or xlsx")
	f.StringVarP(&solveOpts.out, "out", "o", "", "output file (stdout when empty)")
	_ = solveCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := readRequest(solveOpts.request)
	if err != nil {
		return err
	}

	opts := []app.Option{app.WithStore(store.NewMemoryStore())}
	if solveOpts.data != "" {
		src, err := datasource.LoadFile(solveOpts.data)
		if err != nil {
			return err
		}
		opts = append(opts, app.WithSource(src))
	}
	svc, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	id, ev, err := svc.Runner.Execute(ctx, req)
	if err != nil {
		return err
	}
	if !ev.Succeeded() {
		return fmt.Errorf("order %s ended %s (%s): %s", id, ev.State, ev.ErrorCode, ev.Message)
	}
	l, err := svc.Assembler.Lookup(ctx, id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if solveOpts.out != "" {
		f, err := os.Create(solveOpts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return write(w, solveOpts.format, *l.Response)
}

// readRequest decodes a request file. Bodies carrying shared_meter_ids are
// read as the shared variant.
func readRequest(path string) (model.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Request{}, fmt.Errorf("read request: %w", err)
	}
	var probe struct {
		SharedMeterIDs []string `json:"shared_meter_ids"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return model.Request{}, fmt.Errorf("decode request: %w", err)
	}
	if len(probe.SharedMeterIDs) > 0 {
		var p model.SharedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return model.Request{}, fmt.Errorf("decode request: %w", err)
		}
		return p.Request(), nil
	}
	var p model.PlainPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return p.Request(), nil
}

func write(w io.Writer, format string, r assembler.Response) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		return export.WriteCSV(w, r)
	case "xlsx":
		return export.WriteXLSX(w, r)
	}
	return fmt.Errorf("unknown format %q", format)
}
