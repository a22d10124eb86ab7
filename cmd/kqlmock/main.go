package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/razeghi71/kqlmock/config"
	"github.com/razeghi71/kqlmock/engine"
	"github.com/razeghi71/kqlmock/fixtures"
	"github.com/razeghi71/kqlmock/loader"
	"github.com/razeghi71/kqlmock/logging"
	"github.com/razeghi71/kqlmock/metrics"
	"github.com/razeghi71/kqlmock/output"
	"github.com/razeghi71/kqlmock/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kqlmock",
		Short:         "Run KQL queries against mock fleet telemetry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("data-dir", "", "load tables from csv/json/jsonl/avro/parquet files in this directory instead of generating them")
	pf.Uint64("seed", 1, "seed for generated tables")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")

	root.AddCommand(newQueryCmd(), newTablesCmd(), newDumpCmd())
	return root
}

func setup(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path, cmd.Flags())
}

// openRegistry loads the data directory when one is configured and
// generates the demo tables otherwise.
func openRegistry(ctx context.Context, cfg *config.Config) (*registry.Registry, error) {
	if cfg.DataDir == "" {
		return fixtures.Registry(time.Now(), cfg.Seed), nil
	}
	tables, err := loader.LoadDir(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no supported files in %s", cfg.DataDir)
	}
	return registry.New(tables...), nil
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <kql>",
		Short: "Run one query and print the result",
		Example: `  kqlmock query 'BatteryReadings | where timestamp >= ago(24h) | summarize avg(voltage) by vesselName'
  kqlmock query --format csv 'AlertsAndEvents | where severity in ("high", "critical") and not resolved'`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	f := cmd.Flags()
	f.String("format", "table", "output format: table, json, csv")
	f.Bool("strict", false, "fail instead of silently passing rows on unsupported input")
	f.Bool("full-outer-join", false, "make kind=fullouter a real full outer join instead of left outer")
	f.Duration("latency-min", 100*time.Millisecond, "minimum simulated latency")
	f.Duration("latency-max", 300*time.Millisecond, "maximum simulated latency")
	f.Bool("metrics", false, "print query metrics to stderr when done")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	formatter, err := output.New(cfg.Format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	reg, err := openRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	eng := engine.New(reg, engine.Options{
		Strict:        cfg.Strict,
		FullOuterJoin: cfg.FullOuterJoin,
		LatencyMin:    cfg.LatencyMin,
		LatencyMax:    cfg.LatencyMax,
		Logger:        log,
		Metrics:       metrics.New(promReg),
	})

	res, err := eng.Run(cmd.Context(), args[0])
	if show, _ := cmd.Flags().GetBool("metrics"); show {
		if perr := printMetrics(cmd.ErrOrStderr(), promReg); perr != nil {
			log.Warn("cannot print metrics", "error", perr)
		}
	}
	if err != nil {
		return err
	}
	return formatter.Format(res.Columns, res.Rows)
}

// printMetrics writes every counter and histogram sample as name value.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s_count %d\n%s_sum %g\n", name, h.GetSampleCount(), name, h.GetSampleSum())
			}
		}
	}
	return nil
}

func newTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the available tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			formatter, err := output.New(cfg.Format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			reg, err := openRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return formatter.Format(schemaColumns, schemaRows(reg.Schemas()))
		},
	}
	cmd.Flags().String("format", "table", "output format: table, json, csv")
	return cmd
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the tables to files --data-dir can load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")
			reg, err := openRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			written, err := dump(reg, out, format)
			if err != nil {
				return err
			}
			sort.Strings(written)
			for _, f := range written {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().String("out", "", "directory to write into (created if missing)")
	cmd.Flags().String("format", "jsonl", "file format: jsonl, csv")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
