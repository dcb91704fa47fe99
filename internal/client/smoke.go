package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
)

const maxSubmitAttempts = 20

// SmokeConfig describes an end-to-end run against a live server: every round
// builds a wheel with its own seed and verifies it.
type SmokeConfig struct {
	Rounds  int
	Workers int
	Build   model.BuildRequest
}

// SmokeReport summarizes a smoke run.
type SmokeReport struct {
	Rounds      int           `json:"rounds"`
	Built       int           `json:"built"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Errors      int           `json:"errors"`
	Backpressed int           `json:"backpressed"`
	Duration    time.Duration `json:"duration"`
}

// Smoke runs cfg.Rounds build-and-verify rounds with cfg.Workers in flight.
// Round failures are counted, not returned; the error is non-nil only when
// ctx ends first.
func Smoke(ctx context.Context, c *Client, cfg SmokeConfig, log logger.Logger) (SmokeReport, error) {
	if cfg.Rounds < 1 {
		cfg.Rounds = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	run := uuid.NewString()
	log.Info(ctx, "smoke run started",
		logger.String("run", run),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers))

	var built, passed, failed, errs, backpressed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range cfg.Rounds {
		g.Go(func() error {
			req := cfg.Build
			req.Seed = fmt.Sprintf("%s-%d", run, i)
			w, err := c.BuildWheel(gctx, req)
			if err != nil {
				errs.Add(1)
				log.Warn(gctx, "smoke build failed", logger.Int("round", i), logger.Error(err))
				return nil
			}
			built.Add(1)

			vreq := model.VerifyRequest{
				RequestID:   req.Seed,
				Pool:        req.Pool,
				K:           req.K,
				M:           req.M,
				Tickets:     rows(w.Tickets),
				Constraints: req.Constraints,
				Fixed:       req.Fixed,
			}
			id, err := submitWithRetry(gctx, c, vreq, &backpressed)
			if err != nil {
				errs.Add(1)
				log.Warn(gctx, "smoke submit failed", logger.Int("round", i), logger.Error(err))
				return nil
			}
			j, err := c.Wait(gctx, id, nil)
			switch {
			case err != nil || j.Status == model.JobError:
				errs.Add(1)
				log.Warn(gctx, "smoke verification failed",
					logger.Int("round", i), logger.String("job_id", id), logger.String("job_error", j.Error), logger.Error(err))
			case j.Result != nil && j.Result.Pass:
				passed.Add(1)
			default:
				failed.Add(1)
				log.Warn(gctx, "smoke wheel left subsets uncovered",
					logger.Int("round", i), logger.String("job_id", id), logger.String("termination", string(w.Termination)))
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := SmokeReport{
		Rounds:      cfg.Rounds,
		Built:       int(built.Load()),
		Passed:      int(passed.Load()),
		Failed:      int(failed.Load()),
		Errors:      int(errs.Load()),
		Backpressed: int(backpressed.Load()),
		Duration:    time.Since(start),
	}
	log.Info(ctx, "smoke run finished",
		logger.Int("passed", rep.Passed),
		logger.Int("failed", rep.Failed),
		logger.Int("errors", rep.Errors),
		logger.Duration("elapsed", rep.Duration))
	return rep, ctx.Err()
}

func submitWithRetry(ctx context.Context, c *Client, req model.VerifyRequest, backpressed *atomic.Int64) (string, error) {
	var err error
	for range maxSubmitAttempts {
		var id string
		id, err = c.SubmitVerification(ctx, req)
		if !errors.Is(err, model.ErrBackpressure) {
			return id, err
		}
		backpressed.Add(1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", err
}

func rows(tickets []model.Ticket) [][]int {
	out := make([][]int, len(tickets))
	for i, t := range tickets {
		out[i] = t
	}
	return out
}
