package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/wheelsmith/internal/adapters/repository"
	service "github.com/okian/wheelsmith/internal/app"
	"github.com/okian/wheelsmith/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// waitForJob polls until the job reaches a terminal state or the deadline
// passes.
func waitForJob(ctx context.Context, svc *service.Service, id string) model.Job {
	deadline := time.Now().Add(10 * time.Second)
	for {
		j, err := svc.PollVerification(ctx, id)
		if err == nil && j.Status.Terminal() {
			return j
		}
		if time.Now().After(deadline) {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func asRows(w *model.Wheel) [][]int {
	rows := make([][]int, len(w.Tickets))
	for i, t := range w.Tickets {
		rows[i] = t
	}
	return rows
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(64),
			service.WithDedupeSize(32),
			service.WithProgressInterval(10),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			_ = svc.Stop(ctx)
			cancel()
		})

		Convey("When a built wheel is verified", func() {
			w, err := svc.BuildWheel(ctx, model.BuildRequest{Pool: seq(10), K: 5, M: 3, Seed: "it"})
			So(err, ShouldBeNil)

			id, err := svc.SubmitVerification(ctx, model.VerifyRequest{Pool: seq(10), K: 5, M: 3, Tickets: asRows(w)})
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			Convey("Then the job completes with full coverage", func() {
				j := waitForJob(ctx, svc, id)
				So(j.Status, ShouldEqual, model.JobCompleted)
				So(j.Total, ShouldEqual, uint64(120))
				So(j.Progress, ShouldEqual, uint64(120))
				So(j.Result, ShouldNotBeNil)
				So(j.Result.Pass, ShouldBeTrue)
				So(j.Result.Total, ShouldEqual, uint64(120))
				So(j.Result.UncoveredCount, ShouldEqual, uint64(0))
			})
		})

		Convey("When an incomplete wheel is verified", func() {
			id, err := svc.SubmitVerification(ctx, model.VerifyRequest{
				Pool: seq(6), K: 3, M: 2, Tickets: [][]int{{1, 2, 3}},
			})
			So(err, ShouldBeNil)

			Convey("Then the result lists uncovered pairs", func() {
				j := waitForJob(ctx, svc, id)
				So(j.Status, ShouldEqual, model.JobCompleted)
				So(j.Result.Pass, ShouldBeFalse)
				So(j.Result.UncoveredCount, ShouldEqual, uint64(12))
				So(len(j.Result.Samples), ShouldEqual, 12)
				So(j.Result.Samples[0], ShouldResemble, []int{1, 4})
			})
		})

		Convey("When the same request id is submitted twice", func() {
			req := model.VerifyRequest{RequestID: "req-1", Pool: seq(6), K: 3, M: 2, Tickets: [][]int{{1, 2, 3}}}
			first, err := svc.SubmitVerification(ctx, req)
			So(err, ShouldBeNil)
			second, err := svc.SubmitVerification(ctx, req)
			So(err, ShouldBeNil)

			Convey("Then both submissions share one job", func() {
				So(second, ShouldEqual, first)
				So(first, ShouldEqual, service.JobIDForRequest("req-1"))
				So(svc.Stats(ctx)["jobs"], ShouldEqual, 1)
			})
		})

		Convey("When a request is invalid", func() {
			_, err := svc.SubmitVerification(ctx, model.VerifyRequest{Pool: seq(6), K: 3, M: 4})

			Convey("Then it is rejected before any job exists", func() {
				So(errors.Is(err, model.ErrInvalidParameters), ShouldBeTrue)
				So(svc.Stats(ctx)["jobs"], ShouldEqual, 0)
			})
		})

		Convey("When an unknown job is polled", func() {
			_, err := svc.PollVerification(ctx, "missing")

			Convey("Then it is not found", func() {
				So(errors.Is(err, model.ErrJobNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given a service with one worker and a one-slot queue", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		store := repository.NewMemoryStore(ctx)
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(1), service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			_ = svc.Stop(ctx)
			_ = store.Close()
			cancel()
		})

		// C(50,6) subsets keep the single worker busy for the whole test.
		heavy := model.VerifyRequest{Pool: seq(50), K: 7, M: 6, Tickets: [][]int{{1, 2, 3, 4, 5, 6, 7}}}

		Convey("When more verifications arrive than can be held", func() {
			var accepted []string
			var rejected int
			for range 3 {
				id, err := svc.SubmitVerification(ctx, heavy)
				if err != nil {
					So(errors.Is(err, model.ErrBackpressure), ShouldBeTrue)
					rejected++
					continue
				}
				accepted = append(accepted, id)
			}

			Convey("Then the overflow is refused and leaves no job behind", func() {
				So(rejected, ShouldBeGreaterThanOrEqualTo, 1)
				So(svc.Stats(ctx)["jobs"], ShouldEqual, len(accepted))
			})

			Convey("And stopping the service fails the unfinished jobs", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				for _, id := range accepted {
					j, err := store.Get(ctx, id)
					So(err, ShouldBeNil)
					So(j.Status, ShouldEqual, model.JobError)
					So(j.Error, ShouldNotBeEmpty)
				}
			})
		})
	})
}

func TestServiceBadgerStore(t *testing.T) {
	Convey("Given a service backed by badger", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dir := filepath.Join(t.TempDir(), "jobs")
		svc := service.New(service.WithWorkerCount(1), service.WithBadgerStore(dir))
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			_ = svc.Stop(ctx)
			cancel()
		})

		Convey("When a verification finishes", func() {
			id, err := svc.SubmitVerification(ctx, model.VerifyRequest{
				RequestID: "persisted", Pool: seq(6), K: 3, M: 2,
				Tickets: [][]int{{1, 2, 3}, {4, 5, 6}, {1, 4, 5}, {2, 4, 6}, {3, 5, 6}, {1, 2, 6}, {3, 4, 5}},
			})
			So(err, ShouldBeNil)
			j := waitForJob(ctx, svc, id)
			So(j.Status, ShouldEqual, model.JobCompleted)
			So(svc.Stats(ctx)["store"], ShouldEqual, "badger")

			Convey("Then the job survives a restart", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)

				got, err := svc.PollVerification(ctx, id)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.JobCompleted)
				So(got.Result, ShouldNotBeNil)
				So(got.Result.Total, ShouldEqual, uint64(15))
			})
		})
	})
}
