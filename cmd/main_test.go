package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	app "github.com/okian/wheelsmith/internal/app"
	"github.com/okian/wheelsmith/internal/config"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given configuration loaded from the environment", t, func() {
		_ = os.Setenv("WHEEL_WORKER_COUNT", "3")
		_ = os.Setenv("WHEEL_QUEUE_SIZE", "7")
		_ = os.Setenv("WHEEL_MAX_STEPS", "900")
		convey.Reset(func() {
			_ = os.Unsetenv("WHEEL_WORKER_COUNT")
			_ = os.Unsetenv("WHEEL_QUEUE_SIZE")
			_ = os.Unsetenv("WHEEL_MAX_STEPS")
		})

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the service is built from it", func() {
			svc := app.New(serviceOptions(cfg, logger.Nop())...)
			stats := svc.Stats(context.Background())
			convey.So(stats["workerCount"], convey.ShouldEqual, 3)
			convey.So(stats["queueSize"], convey.ShouldEqual, 7)
			convey.So(stats["maxSteps"], convey.ShouldEqual, 900)
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the daemon mux over a started service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		svc := app.New(app.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() {
			_ = svc.Stop(ctx)
			cancel()
		})
		mux := newMux(ctx, svc)

		for _, path := range []string{"/healthz", "/stats", "/openapi.yaml", "/api-docs", "/bounds?n=6&k=3&m=2"} {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		}

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/wheels",
			strings.NewReader(`{"pool":[1,2,3,4,5,6],"k":3,"m":2,"seed":"mux"}`)))
		convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a daemon bound to a free port", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		addr := ln.Addr().String()
		convey.So(ln.Close(), convey.ShouldBeNil)

		cfg := config.New()
		cfg.Addr = addr
		cfg.WorkerCount = 1

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg) }()

		convey.Convey("Then it serves until cancelled", func() {
			var resp *http.Response
			for range 100 {
				resp, err = http.Get("http://" + addr + "/stats")
				if err == nil {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			cancel()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(10 * time.Second):
				convey.So("run did not return", convey.ShouldBeEmpty)
			}
		})
	})
}
