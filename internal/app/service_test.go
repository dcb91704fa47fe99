package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/wheelsmith/internal/app"
	"github.com/okian/wheelsmith/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not running yet", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Stats(context.Background())["started"], ShouldEqual, false)
		})

		Convey("Then job operations are refused", func() {
			ctx := context.Background()
			_, err := svc.SubmitVerification(ctx, model.VerifyRequest{Pool: seq(6), K: 3, M: 2, Tickets: [][]int{{1, 2, 3}}})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.PollVerification(ctx, "anything")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(16),
			service.WithDedupeSize(8),
			service.WithMaxSteps(500),
			service.WithJobRetention(time.Minute),
		)

		Convey("Then the options show up in its stats", func() {
			stats := svc.Stats(context.Background())
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 16)
			So(stats["dedupeSize"], ShouldEqual, 8)
			So(stats["maxSteps"], ShouldEqual, 500)
			So(stats["jobRetention"], ShouldEqual, "1m0s")
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			_ = svc.Stop(ctx)
			cancel()
		})

		Convey("Then it reports running components", func() {
			stats := svc.Stats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["queueLength"], ShouldEqual, 0)
			So(stats["jobs"], ShouldEqual, 0)
			So(stats["store"], ShouldEqual, "memory")
		})

		Convey("Then starting again is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("When it is stopped", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is marked as stopped", func() {
				So(svc.Stats(ctx)["started"], ShouldEqual, false)
			})

			Convey("Then stopping again is a no-op", func() {
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_BuildWheel(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		svc := service.New(service.WithDefaultEffort(20))

		Convey("When a greedy wheel is built without effort", func() {
			w, err := svc.BuildWheel(ctx, model.BuildRequest{Pool: seq(10), K: 5, M: 3, Seed: "svc"})

			Convey("Then it covers every target", func() {
				So(err, ShouldBeNil)
				So(w.Termination, ShouldEqual, model.TerminatedCovered)
				So(w.LowerBound, ShouldEqual, "14")
				So(len(w.Tickets), ShouldBeGreaterThanOrEqualTo, 14)
			})
		})

		Convey("When the parameters are invalid", func() {
			_, err := svc.BuildWheel(ctx, model.BuildRequest{Pool: seq(5), K: 6, M: 3})

			Convey("Then the kind is preserved", func() {
				So(errors.Is(err, model.ErrInvalidParameters), ShouldBeTrue)
			})
		})

		Convey("When the groups cannot be satisfied", func() {
			_, err := svc.BuildWheel(ctx, model.BuildRequest{
				Pool: seq(6), K: 4, M: 2,
				Constraints: []model.GroupConstraint{{ID: "a", Numbers: []int{1, 2}, Min: 3, Max: 3}},
			})

			Convey("Then the build is rejected", func() {
				So(errors.Is(err, model.ErrInfeasibleConstraints), ShouldBeTrue)
			})
		})
	})
}

func TestService_ComputeStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		svc := service.New()

		Convey("Then bounds are computed", func() {
			st, err := svc.ComputeStats(ctx, 10, 5, 3)
			So(err, ShouldBeNil)
			So(st.LowerBound.String(), ShouldEqual, "14")
			So(st.UniverseSize.String(), ShouldEqual, "120")
			So(st.AllTickets.String(), ShouldEqual, "252")
		})

		Convey("Then invalid sizes are rejected", func() {
			_, err := svc.ComputeStats(ctx, 10, 3, 5)
			So(errors.Is(err, model.ErrInvalidParameters), ShouldBeTrue)
		})
	})
}

func TestJobIDForRequest(t *testing.T) {
	Convey("Given the same request id twice", t, func() {
		So(service.JobIDForRequest("abc"), ShouldEqual, service.JobIDForRequest("abc"))
		So(service.JobIDForRequest("abc"), ShouldNotEqual, service.JobIDForRequest("abd"))
		So(service.JobIDForRequest("abc"), ShouldHaveLength, 36)
	})
}
