package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	app "github.com/okian/wheelsmith/internal/app"
	"github.com/okian/wheelsmith/internal/client"
	"github.com/okian/wheelsmith/internal/domain/bounds"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
)

const pollInterval = 200 * time.Millisecond

// engine is what the commands need, served either by an in-process service
// or by the HTTP client.
type engine interface {
	BuildWheel(ctx context.Context, req model.BuildRequest) (*model.Wheel, error)
	ComputeStats(ctx context.Context, n, k, m int) (bounds.Stats, error)
	SubmitVerification(ctx context.Context, req model.VerifyRequest) (string, error)
	PollVerification(ctx context.Context, id string) (model.Job, error)
}

type rootOptions struct {
	server   string
	logLevel string
	timeout  time.Duration
	maxSteps int
}

// problemFlags are the pool/k/m/constraint flags shared by several commands.
type problemFlags struct {
	pool   string
	k, m   int
	groups []string
	fixed  string
}

func (p *problemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.pool, "pool", "", `pool numbers, e.g. "1-49" or "1,3,5-9"`)
	cmd.Flags().IntVarP(&p.k, "k", "k", 0, "ticket size")
	cmd.Flags().IntVarP(&p.m, "m", "m", 0, "guarantee size")
	cmd.Flags().StringArrayVar(&p.groups, "group", nil, `group constraint "id=numbers:min:max" (repeatable)`)
	cmd.Flags().StringVar(&p.fixed, "fixed", "", "numbers every ticket must contain")
}

func (p *problemFlags) resolve() (pool []int, constraints []model.GroupConstraint, fixed []int, err error) {
	if pool, err = parseNumbers(p.pool); err != nil {
		return nil, nil, nil, fmt.Errorf("--pool: %w", err)
	}
	for _, raw := range p.groups {
		g, err := parseGroup(raw)
		if err != nil {
			return nil, nil, nil, err
		}
		constraints = append(constraints, g)
	}
	if fixed, err = parseNumbers(p.fixed); err != nil {
		return nil, nil, nil, fmt.Errorf("--fixed: %w", err)
	}
	return pool, constraints, fixed, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "wheelctl",
		Short:        "Build and verify lottery wheels",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			return logger.SetLevelString(opts.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", os.Getenv("WHEEL_SERVER"), "wheelsmith server URL; empty runs in-process")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "abort after this long (0 waits forever)")
	root.PersistentFlags().IntVar(&opts.maxSteps, "max-steps", 0, "greedy step ceiling for in-process builds")

	root.AddCommand(newBuildCmd(opts), newStatsCmd(opts), newVerifyCmd(opts), newSmokeCmd(opts))
	return root
}

// withEngine runs fn against the configured engine and tears it down after.
func withEngine(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, e engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	if opts.server != "" {
		return fn(ctx, client.New(opts.server, client.WithPollInterval(pollInterval)))
	}

	svc := app.New(
		app.WithLogger(logger.Named("wheelctl")),
		app.WithWorkerCount(1),
		app.WithMaxSteps(opts.maxSteps),
		app.WithJobRetention(0),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	err := fn(ctx, svc)
	return errors.Join(err, svc.Stop(context.WithoutCancel(ctx)))
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var (
		p       problemFlags
		req     model.BuildRequest
		mode    string
		reqFile string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a wheel",
		Example: `  wheelctl build --pool 1-20 -k 6 -m 3 --seed demo
  wheelctl build --pool 1-49 -k 6 -m 3 --mode lowerBound --group "low=1-24:2:4"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reqFile != "" {
				if err := readJSONFile(reqFile, &req); err != nil {
					return err
				}
			} else {
				pool, constraints, fixed, err := p.resolve()
				if err != nil {
					return err
				}
				req.Pool, req.K, req.M = pool, p.k, p.m
				req.Constraints, req.Fixed = constraints, fixed
				req.Mode = model.Mode(mode)
			}
			return withEngine(cmd, opts, func(ctx context.Context, e engine) error {
				w, err := e.BuildWheel(ctx, req)
				if err != nil {
					return err
				}
				return writeWheel(cmd.OutOrStdout(), w, format)
			})
		},
	}
	p.register(cmd)
	cmd.Flags().IntVar(&req.Effort, "effort", 0, "candidates sampled per step (server default when 0)")
	cmd.Flags().StringVar(&req.Seed, "seed", "", "random seed; empty uses the clock")
	cmd.Flags().StringVar(&mode, "mode", string(model.ModeGreedy), "greedy, scan, lowerBound, universeK or universeM")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "ticket count for scan mode")
	cmd.Flags().StringVar(&reqFile, "request", "", "read the whole build request from a JSON file")
	cmd.Flags().StringVar(&format, "format", "lines", "lines or json")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var n, k, m int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show lower bounds and problem sizes for (n, k, m)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e engine) error {
				st, err := e.ComputeStats(ctx, n, k, m)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "counting bound:   %s\n", st.CountingBound)
				fmt.Fprintf(out, "schoenheim bound: %s\n", st.SchoenheimBound)
				fmt.Fprintf(out, "lower bound:      %s\n", st.LowerBound)
				fmt.Fprintf(out, "target subsets:   %s\n", st.UniverseSize)
				fmt.Fprintf(out, "possible tickets: %s\n", st.AllTickets)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 0, "pool size")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "ticket size")
	cmd.Flags().IntVarP(&m, "m", "m", 0, "guarantee size")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var (
		p         problemFlags
		requestID string
		tickets   string
		reqFile   string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a ticket set covers every target subset",
		Example: `  wheelctl build --pool 1-12 -k 6 -m 3 > wheel.txt
  wheelctl verify --pool 1-12 -k 6 -m 3 --tickets wheel.txt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req model.VerifyRequest
			if reqFile != "" {
				if err := readJSONFile(reqFile, &req); err != nil {
					return err
				}
			} else {
				pool, constraints, fixed, err := p.resolve()
				if err != nil {
					return err
				}
				rows, err := readTicketsFile(tickets)
				if err != nil {
					return fmt.Errorf("--tickets: %w", err)
				}
				req = model.VerifyRequest{
					RequestID: requestID, Pool: pool, K: p.k, M: p.m,
					Tickets: rows, Constraints: constraints, Fixed: fixed,
				}
			}
			return withEngine(cmd, opts, func(ctx context.Context, e engine) error {
				id, err := e.SubmitVerification(ctx, req)
				if err != nil {
					return err
				}
				log := logger.Named("verify")
				j, err := waitJob(ctx, e, id, func(j model.Job) {
					log.Info(ctx, "progress", logger.String("job_id", id),
						logger.Uint64("examined", j.Progress), logger.Uint64("total", j.Total))
				})
				if err != nil {
					return err
				}
				if j.Status == model.JobError {
					return fmt.Errorf("verification %s failed: %s", id, j.Error)
				}
				if err := writeResult(cmd.OutOrStdout(), j, format); err != nil {
					return err
				}
				if !j.Result.Pass {
					return errUncovered
				}
				return nil
			})
		},
	}
	p.register(cmd)
	cmd.Flags().StringVar(&tickets, "tickets", "-", "ticket file, one ticket per line; - reads stdin")
	cmd.Flags().StringVar(&requestID, "request-id", "", "idempotency key for the submission")
	cmd.Flags().StringVar(&reqFile, "request", "", "read the whole verification request from a JSON file")
	cmd.Flags().StringVar(&format, "format", "text", "text or json")
	return cmd
}

func newSmokeCmd(opts *rootOptions) *cobra.Command {
	var (
		p       problemFlags
		rounds  int
		workers int
		effort  int
	)
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Build and verify many wheels against a server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.server == "" {
				return errors.New("smoke needs --server")
			}
			pool, constraints, fixed, err := p.resolve()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}
			rep, err := client.Smoke(ctx, client.New(opts.server, client.WithPollInterval(pollInterval)), client.SmokeConfig{
				Rounds:  rounds,
				Workers: workers,
				Build: model.BuildRequest{
					Pool: pool, K: p.k, M: p.m, Effort: effort,
					Constraints: constraints, Fixed: fixed,
				},
			}, logger.Named("smoke"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if rep.Passed != rep.Rounds {
				return fmt.Errorf("%d of %d rounds did not pass", rep.Rounds-rep.Passed, rep.Rounds)
			}
			return nil
		},
	}
	p.register(cmd)
	cmd.Flags().IntVar(&rounds, "rounds", 10, "number of wheels to build and verify")
	cmd.Flags().IntVar(&workers, "workers", 4, "rounds in flight")
	cmd.Flags().IntVar(&effort, "effort", 0, "candidates sampled per step")
	return cmd
}

var errUncovered = errors.New("wheel leaves target subsets uncovered")

// waitJob polls id until it reaches a terminal state.
func waitJob(ctx context.Context, e engine, id string, onProgress func(model.Job)) (model.Job, error) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	var last uint64
	for {
		j, err := e.PollVerification(ctx, id)
		if err != nil {
			return j, err
		}
		if j.Status.Terminal() {
			return j, nil
		}
		if onProgress != nil && j.Progress != last {
			last = j.Progress
			onProgress(j)
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-t.C:
		}
	}
}

func writeWheel(w io.Writer, wheel *model.Wheel, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(wheel)
	case "lines":
		for _, t := range wheel.Tickets {
			parts := make([]string, len(t))
			for i, v := range t {
				parts[i] = strconv.Itoa(v)
			}
			if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeResult(w io.Writer, j model.Job, format string) error {
	res := j.Result
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text":
		verdict := "PASS"
		if !res.Pass {
			verdict = "FAIL"
		}
		fmt.Fprintf(w, "%s: %d of %d target subsets uncovered (%d examined)\n",
			verdict, res.UncoveredCount, res.Total, res.RawTotal)
		for _, s := range res.Samples {
			fmt.Fprintf(w, "  uncovered: %v\n", s)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}
