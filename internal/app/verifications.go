package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/okian/wheelsmith/internal/adapters/mq/queue"
	"github.com/okian/wheelsmith/internal/adapters/repository"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/okian/wheelsmith/pkg/metrics"
)

// requestNamespace derives job ids from client request ids.
var requestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:wheelsmith:verification"))

// JobIDForRequest returns the job id a submission with requestID is stored
// under.
func JobIDForRequest(requestID string) string {
	return uuid.NewSHA1(requestNamespace, []byte(requestID)).String()
}

// SubmitVerification validates req, records a queued job and hands it to the
// worker pool. It returns the job id without waiting for the check. A
// resubmitted request id returns the job of the first submission.
func (s *Service) SubmitVerification(ctx context.Context, req model.VerifyRequest) (string, error) {
	const op = "service.submitVerification"

	total, err := s.verifier.Validate(req)
	if err != nil {
		metrics.RecordErrorByComponent("service", kindLabel(err))
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", ErrNotStarted
	}

	id := uuid.NewString()
	if req.RequestID != "" {
		id = JobIDForRequest(req.RequestID)
		if s.deduper.SeenAndRecord(ctx, req.RequestID) {
			metrics.RecordVerificationDuplicate()
			s.logger.Debug(ctx, "duplicate verification request",
				logger.String("request_id", req.RequestID), logger.String("job_id", id))
			return id, nil
		}
	}

	now := s.now()
	job := model.Job{ID: id, Status: model.JobQueued, Total: total, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Create(ctx, job); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			metrics.RecordVerificationDuplicate()
			return id, nil
		}
		s.forget(ctx, req.RequestID)
		return "", err
	}

	if err := s.queue.Enqueue(ctx, model.VerificationTask{JobID: id, Request: req}); err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), id); derr != nil {
			s.logger.Warn(ctx, "failed to drop rejected job", logger.String("job_id", id), logger.Error(derr))
		}
		s.forget(ctx, req.RequestID)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			metrics.RecordErrorByComponent("service", kindLabel(model.ErrBackpressure))
			return "", model.Errorf(op, model.ErrBackpressure, "%d verifications pending", s.queue.Len(ctx))
		}
		return "", err
	}

	metrics.RecordVerificationSubmitted()
	s.logger.Debug(ctx, "verification queued",
		logger.String("job_id", id), logger.Uint64("total", total))
	return id, nil
}

func (s *Service) forget(ctx context.Context, requestID string) {
	if requestID != "" {
		s.deduper.Unrecord(ctx, requestID)
	}
}

// PollVerification returns a snapshot of the job. Unknown and expired ids
// yield an error wrapping model.ErrJobNotFound.
func (s *Service) PollVerification(ctx context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Job{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}
