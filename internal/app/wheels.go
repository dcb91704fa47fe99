package service

import (
	"context"
	"time"

	"github.com/okian/wheelsmith/internal/domain/bounds"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/internal/domain/wheel"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/okian/wheelsmith/pkg/metrics"
)

// BuildWheel runs a wheel build synchronously. A zero effort is replaced by
// the configured default.
func (s *Service) BuildWheel(ctx context.Context, req model.BuildRequest) (*model.Wheel, error) {
	if req.Effort <= 0 {
		req.Effort = s.defaultEffort
	}
	start := time.Now()
	w, err := wheel.Build(ctx, req,
		wheel.WithLogger(s.logger.Named("wheel")),
		wheel.WithMaxSteps(s.maxSteps))
	if err != nil {
		metrics.RecordBuildError(kindLabel(err))
		s.logger.Debug(ctx, "wheel build rejected", logger.Error(err))
		return nil, err
	}
	elapsed := time.Since(start)
	metrics.RecordWheelBuilt(string(w.Mode), string(w.Termination), len(w.Tickets),
		float64(elapsed.Microseconds())/1000)
	s.logger.Info(ctx, "wheel built",
		logger.String("mode", string(w.Mode)),
		logger.String("termination", string(w.Termination)),
		logger.Int("tickets", len(w.Tickets)),
		logger.Duration("elapsed", elapsed))
	return w, nil
}

// ComputeStats returns the size bounds of a (n, k, m) problem.
func (s *Service) ComputeStats(_ context.Context, n, k, m int) (bounds.Stats, error) {
	st, err := bounds.Compute(n, k, m)
	if err != nil {
		metrics.RecordErrorByComponent("service", kindLabel(err))
	}
	return st, err
}
