// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/berdachuk/medexpertmatch"
	"github.com/berdachuk/medexpertmatch/config"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/ingestion"
	"github.com/berdachuk/medexpertmatch/metrics"
	"github.com/berdachuk/medexpertmatch/reembed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// runtime is the state shared by the hooks and commands of one run.
type runtime struct {
	cfg      *config.Config
	recorder *metrics.Recorder
	server   *http.Server
}

func newApp(stdout, stderr io.Writer) *cli.App {
	rt := &runtime{}
	return &cli.App{
		Name:      "medexpertmatch",
		Usage:     "Match medical cases to specialists, prioritize the queue and route to facilities",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"MEDEXPERTMATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the configuration",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the BadgerDB directory; overrides storage.path",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while the command runs",
			},
		},
		Before: rt.setup,
		After:  rt.teardown,
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Store doctors, cases, experience and facilities from a YAML dataset",
				Action: rt.seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Dataset file", Required: true},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Analyze, describe and embed the cases of a YAML dataset",
				Action: rt.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Dataset file; only cases are read", Required: true},
				},
			},
			{
				Name:   "match",
				Usage:  "Rank doctors for a stored case",
				Action: rt.matchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "case", Usage: "Case ID", Required: true},
					&cli.IntFlag{Name: "max-results", Usage: "Maximum number of doctors (default from configuration)"},
					&cli.Float64Flag{Name: "min-score", Usage: "Drop doctors scoring lower"},
					&cli.StringSliceFlag{Name: "prefer-specialty", Usage: "Preferred specialty, mentioned in the rationale"},
					&cli.BoolFlag{Name: "telehealth", Usage: "Only telehealth-enabled doctors"},
					&cli.StringSliceFlag{Name: "facility", Usage: "Only doctors affiliated with this facility"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
			},
			{
				Name:   "prioritize",
				Usage:  "Order cases by urgency, complexity and waiting time",
				Action: rt.prioritizeCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "case", Usage: "Case IDs; all stored cases when omitted"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
			},
			{
				Name:   "route",
				Usage:  "Rank facilities for a stored case",
				Action: rt.routeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "case", Usage: "Case ID", Required: true},
					&cli.IntFlag{Name: "max-results", Usage: "Maximum number of facilities (default from configuration)"},
					&cli.Float64Flag{Name: "min-score", Usage: "Drop facilities scoring lower"},
					&cli.StringSliceFlag{Name: "capability", Usage: "Required capability, added to the case's own"},
					&cli.StringSliceFlag{Name: "type", Usage: "Preferred facility type"},
					&cli.Float64Flag{Name: "max-distance-km", Usage: "Drop facilities farther away"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed all stored cases with the configured embedding model",
				Action: rt.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "batch-size", Usage: "Number of cases to embed per call", Value: reembed.DefaultBatchSize},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N cases", Value: 100},
					&cli.BoolFlag{Name: "missing-only", Usage: "Skip cases that already have a vector"},
				},
			},
		},
	}
}

func (rt *runtime) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Backend = config.BackendBadger
		cfg.Storage.Path = db
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if err := setupLogger(c.App.ErrWriter, cfg.LogLevel); err != nil {
		return err
	}
	rt.cfg = cfg

	if cfg.Metrics.Addr != "" {
		rt.recorder = metrics.NewRecorder(prometheus.NewRegistry())
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.recorder.Handler())
		rt.server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
		slog.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}
	return nil
}

func (rt *runtime) teardown(*cli.Context) error {
	if rt.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rt.server.Shutdown(ctx)
}

func setupLogger(w io.Writer, levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

// withEngine opens the engine for one command and closes it afterwards.
func (rt *runtime) withEngine(c *cli.Context, fn func(ctx context.Context, e *medexpertmatch.Engine) error) error {
	var opts []medexpertmatch.Option
	if rt.recorder != nil {
		opts = append(opts, medexpertmatch.WithRecorder(rt.recorder))
	}
	e, err := medexpertmatch.Open(c.Context, rt.cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			slog.Error("error closing engine", "err", err)
		}
	}()
	return fn(c.Context, e)
}

func (rt *runtime) seedCommand(c *cli.Context) error {
	ds, err := medexpertmatch.LoadDataset(c.String("file"))
	if err != nil {
		return err
	}
	return rt.withEngine(c, func(ctx context.Context, e *medexpertmatch.Engine) error {
		if err := e.Seed(ctx, ds); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Seeded %d doctors, %d cases, %d experience records, %d facilities\n",
			len(ds.Doctors), len(ds.Cases), len(ds.Experiences), len(ds.Facilities))
		return nil
	})
}

func (rt *runtime) ingestCommand(c *cli.Context) error {
	ds, err := medexpertmatch.LoadDataset(c.String("file"))
	if err != nil {
		return err
	}
	cases := make([]*core.Case, len(ds.Cases))
	for i := range ds.Cases {
		cases[i] = &ds.Cases[i]
	}
	return rt.withEngine(c, func(ctx context.Context, e *medexpertmatch.Engine) error {
		var (
			mu     sync.Mutex
			failed []error
		)
		p, err := e.NewIngestionPipeline(ingestion.WithErrorHandler(func(ids []string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, fmt.Errorf("cases %v: %w", ids, err))
		}))
		if err != nil {
			return err
		}
		defer p.Release()

		if err := p.Ingest(ctx, cases, nil); err != nil {
			return err
		}
		p.Wait()
		fmt.Fprintf(c.App.Writer, "Ingested %d cases\n", len(cases))
		mu.Lock()
		defer mu.Unlock()
		return errors.Join(failed...)
	})
}

func (rt *runtime) matchCommand(c *cli.Context) error {
	opts := rt.cfg.Match
	if c.IsSet("max-results") {
		opts.MaxResults = c.Int("max-results")
	}
	if c.IsSet("min-score") {
		opts.MinScore = c.Float64("min-score")
	}
	if v := c.StringSlice("prefer-specialty"); len(v) > 0 {
		opts.PreferredSpecialties = v
	}
	if c.Bool("telehealth") {
		opts.RequireTelehealth = true
	}
	if v := c.StringSlice("facility"); len(v) > 0 {
		opts.PreferredFacilityIDs = v
	}

	return rt.withEngine(c, func(ctx context.Context, e *medexpertmatch.Engine) error {
		res, err := e.Match(ctx, c.String("case"), opts)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(c.App.Writer, res.Matches)
		}
		if res.NoCandidates {
			fmt.Fprintf(c.App.Writer, "No candidate doctors for case %s\n", res.CaseID)
			return nil
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tDOCTOR\tSCORE\tRATIONALE")
		for _, m := range res.Matches {
			fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\n", m.Rank, m.DoctorID, m.Score, m.Rationale)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, k := range res.Unavailable() {
			fmt.Fprintf(c.App.Writer, "warning: %s signal unavailable\n", k)
		}
		return nil
	})
}

func (rt *runtime) prioritizeCommand(c *cli.Context) error {
	return rt.withEngine(c, func(ctx context.Context, e *medexpertmatch.Engine) error {
		prios, err := e.Prioritize(ctx, c.StringSlice("case"))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			out := make([]priorityView, len(prios))
			for i, p := range prios {
				out[i] = priorityView{
					Position:    p.Position,
					CaseID:      p.CaseID,
					Urgency:     p.Urgency.String(),
					Score:       p.Score,
					WaitSeconds: int64(p.Wait.Seconds()),
					Complexity:  p.Complexity,
				}
			}
			return writeJSON(c.App.Writer, out)
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POS\tCASE\tURGENCY\tSCORE\tWAIT")
		for _, p := range prios {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%s\n", p.Position, p.CaseID, p.Urgency, p.Score, p.Wait.Round(time.Minute))
		}
		return tw.Flush()
	})
}

func (rt *runtime) routeCommand(c *cli.Context) error {
	opts := rt.cfg.Routing
	if c.IsSet("max-results") {
		opts.MaxResults = c.Int("max-results")
	}
	if c.IsSet("min-score") {
		opts.MinScore = c.Float64("min-score")
	}
	if v := c.StringSlice("capability"); len(v) > 0 {
		opts.RequiredCapabilities = v
	}
	if v := c.StringSlice("type"); len(v) > 0 {
		opts.PreferredFacilityTypes = v
	}
	if c.IsSet("max-distance-km") {
		opts.MaxDistanceKm = c.Float64("max-distance-km")
	}

	return rt.withEngine(c, func(ctx context.Context, e *medexpertmatch.Engine) error {
		res, err := e.Route(ctx, c.String("case"), opts)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(c.App.Writer, res.Facilities)
		}
		if res.NoFacilities {
			fmt.Fprintf(c.App.Writer, "No facility meets the requirements of case %s\n", res.CaseID)
			return nil
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tFACILITY\tSCORE\tRATIONALE")
		for _, f := range res.Facilities {
			fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\n", f.Rank, f.Facility.ID, f.Score, f.Rationale)
		}
		return tw.Flush()
	})
}

func (rt *runtime) reembedCommand(c *cli.Context) error {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Retry:          rt.cfg.Resilience.Retry,
		MissingOnly:    c.Bool("missing-only"),
	}
	return rt.withEngine(c, func(ctx context.Context, e *medexpertmatch.Engine) error {
		r, err := e.NewReembedder(cfg, c.App.ErrWriter)
		if err != nil {
			if errors.Is(err, medexpertmatch.ErrModelsDisabled) {
				return fmt.Errorf("%w: set ai.enabled in the configuration", err)
			}
			return err
		}
		sum, err := r.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Re-embedded %d of %d cases\n", sum.Embedded, sum.Total)
		return nil
	})
}

type priorityView struct {
	Position    int     `json:"position"`
	CaseID      string  `json:"caseId"`
	Urgency     string  `json:"urgency"`
	Score       float64 `json:"score"`
	WaitSeconds int64   `json:"waitSeconds"`
	Complexity  float64 `json:"complexity"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
