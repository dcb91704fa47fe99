package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/wheelsmith/internal/adapters/http/api"
	service "github.com/okian/wheelsmith/internal/app"
	"github.com/okian/wheelsmith/internal/domain/bounds"
	"github.com/okian/wheelsmith/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	wheel     *model.Wheel
	buildErr  error
	submitErr error
	job       model.Job
	pollErr   error

	built     []model.BuildRequest
	submitted []model.VerifyRequest
}

func (m *mockDeps) BuildWheel(_ context.Context, req model.BuildRequest) (*model.Wheel, error) {
	m.built = append(m.built, req)
	return m.wheel, m.buildErr
}

func (m *mockDeps) ComputeStats(_ context.Context, n, k, m2 int) (bounds.Stats, error) {
	return bounds.Compute(n, k, m2)
}

func (m *mockDeps) SubmitVerification(_ context.Context, req model.VerifyRequest) (string, error) {
	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return "job-1", nil
}

func (m *mockDeps) PollVerification(_ context.Context, id string) (model.Job, error) {
	if m.pollErr != nil {
		return model.Job{}, m.pollErr
	}
	j := m.job
	j.ID = id
	return j, nil
}

type mockStats struct{}

func (mockStats) Stats(context.Context) map[string]any {
	return map[string]any{"started": true, "jobs": 2}
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDeps{wheel: &model.Wheel{}})

		Convey("Then the health endpoint serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown paths are not found", func() {
			w := do(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are refused", func() {
			w := do(mux, http.MethodGet, "/wheels", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestWheelsHandler(t *testing.T) {
	Convey("Given a wheels endpoint", t, func() {
		deps := &mockDeps{wheel: &model.Wheel{
			Tickets:     []model.Ticket{{1, 2, 3}},
			Mode:        model.ModeGreedy,
			Termination: model.TerminatedCovered,
			LowerBound:  "1",
		}}
		mux := newMux(deps)

		Convey("When a valid request is posted", func() {
			w := do(mux, http.MethodPost, "/wheels", `{"pool":[1,2,3],"k":3,"m":2,"seed":"x"}`)

			Convey("Then the wheel is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got model.Wheel
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Tickets, ShouldHaveLength, 1)
				So(got.Termination, ShouldEqual, model.TerminatedCovered)
				So(deps.built[0].Seed, ShouldEqual, "x")
				So(deps.built[0].K, ShouldEqual, 3)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/wheels", `{"pool":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_parameters")
		})

		Convey("When the body has unknown fields", func() {
			w := do(mux, http.MethodPost, "/wheels", `{"pool":[1,2,3],"k":3,"m":2,"colour":"red"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the engine rejects the request", func() {
			for _, tc := range []struct {
				err    error
				status int
				code   string
			}{
				{model.Errorf("wheel.build", model.ErrInvalidParameters, "k > n"), http.StatusBadRequest, "invalid_parameters"},
				{model.Errorf("groups.resolve", model.ErrInfeasibleConstraints, "min"), http.StatusUnprocessableEntity, "infeasible_constraints"},
				{model.Errorf("wheel.enumerate", model.ErrCapacityExceeded, "too many"), http.StatusUnprocessableEntity, "capacity_exceeded"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			} {
				deps.buildErr = tc.err
				w := do(mux, http.MethodPost, "/wheels", `{"pool":[1,2,3],"k":3,"m":2}`)
				So(w.Code, ShouldEqual, tc.status)
				So(errorCode(w), ShouldEqual, tc.code)
			}
		})
	})
}

func TestBoundsHandler(t *testing.T) {
	Convey("Given a bounds endpoint", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When valid sizes are queried", func() {
			w := do(mux, http.MethodGet, "/bounds?n=10&k=5&m=3", "")

			Convey("Then every bound is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got map[string]json.Number
				dec := json.NewDecoder(strings.NewReader(w.Body.String()))
				dec.UseNumber()
				So(dec.Decode(&got), ShouldBeNil)
				So(got["lower_bound"].String(), ShouldEqual, "14")
				So(got["universe_size"].String(), ShouldEqual, "120")
				So(got["all_tickets"].String(), ShouldEqual, "252")
			})
		})

		Convey("When a size is missing", func() {
			w := do(mux, http.MethodGet, "/bounds?n=10&k=5", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the sizes are inconsistent", func() {
			w := do(mux, http.MethodGet, "/bounds?n=10&k=3&m=5", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_parameters")
		})
	})
}

func TestVerificationsHandler(t *testing.T) {
	Convey("Given a verifications endpoint", t, func() {
		deps := &mockDeps{job: model.Job{Status: model.JobProcessing, Progress: 10, Total: 20}}
		mux := newMux(deps)

		Convey("When a verification is submitted", func() {
			w := do(mux, http.MethodPost, "/verifications",
				`{"request_id":" r1 ","pool":[1,2,3,4],"k":3,"m":2,"tickets":[[1,2,3]]}`)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Location"), ShouldEqual, "/verifications/job-1")
				So(w.Body.String(), ShouldContainSubstring, `"job_id":"job-1"`)
				So(deps.submitted[0].RequestID, ShouldEqual, "r1")
				So(deps.submitted[0].Tickets, ShouldResemble, [][]int{{1, 2, 3}})
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = model.Errorf("service.submit", model.ErrBackpressure, "full")
			w := do(mux, http.MethodPost, "/verifications", `{"pool":[1,2,3,4],"k":3,"m":2,"tickets":[]}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(errorCode(w), ShouldEqual, "backpressure")
		})

		Convey("When a job is polled", func() {
			w := do(mux, http.MethodGet, "/verifications/abc", "")

			Convey("Then its snapshot is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got model.Job
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, "abc")
				So(got.Status, ShouldEqual, model.JobProcessing)
				So(got.Progress, ShouldEqual, uint64(10))
			})
		})

		Convey("When an unknown job is polled", func() {
			deps.pollErr = fmt.Errorf("lookup: %w", model.ErrJobNotFound)
			w := do(mux, http.MethodGet, "/verifications/abc", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})
	})
}

func TestKindErrors(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("unexpected EOF")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause are reachable", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: unexpected EOF")
		})

		Convey("Then a bare kind prints without a cause", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		})
	})
}

func TestAPIWithService(t *testing.T) {
	Convey("Given the API in front of a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() {
			_ = svc.Stop(ctx)
			cancel()
		})

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)

		Convey("When a wheel is built and then verified over HTTP", func() {
			w := do(mux, http.MethodPost, "/wheels", `{"pool":[1,2,3,4,5,6,7,8],"k":4,"m":2,"seed":"http"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var wheel model.Wheel
			So(json.Unmarshal(w.Body.Bytes(), &wheel), ShouldBeNil)

			body, err := json.Marshal(model.VerifyRequest{Pool: []int{1, 2, 3, 4, 5, 6, 7, 8}, K: 4, M: 2, Tickets: asRows(wheel.Tickets)})
			So(err, ShouldBeNil)
			w = do(mux, http.MethodPost, "/verifications", string(body))
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var ack struct {
				JobID string `json:"job_id"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)

			Convey("Then polling eventually reports a passing result", func() {
				var job model.Job
				deadline := time.Now().Add(10 * time.Second)
				for time.Now().Before(deadline) {
					w = do(mux, http.MethodGet, "/verifications/"+ack.JobID, "")
					So(w.Code, ShouldEqual, http.StatusOK)
					So(json.Unmarshal(w.Body.Bytes(), &job), ShouldBeNil)
					if job.Status.Terminal() {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(job.Status, ShouldEqual, model.JobCompleted)
				So(job.Result.Pass, ShouldBeTrue)
				So(job.Result.Total, ShouldEqual, uint64(28))
			})
		})

		Convey("When bounds are requested for an oversized pool", func() {
			start := time.Now()
			w := do(mux, http.MethodGet, "/bounds?n=2000000&k=1000000&m=3", "")

			Convey("Then the request is refused at once", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "invalid_parameters")
				So(time.Since(start), ShouldBeLessThan, time.Second)
			})
		})

		Convey("When a ticket holds more than k numbers", func() {
			w := do(mux, http.MethodPost, "/verifications",
				`{"pool":[1,2,3,4,5,6,7,8],"k":4,"m":2,"tickets":[[1,2,3,4],[1,2,3,4,5,6,7,8]]}`)

			Convey("Then it is refused before a job exists", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "invalid_parameters")
				So(w.Body.String(), ShouldContainSubstring, "ticket 1 has 8 distinct pool numbers")
				So(svc.Stats(ctx)["jobs"], ShouldEqual, 0)
			})
		})
	})
}

func asRows(tickets []model.Ticket) [][]int {
	rows := make([][]int, len(tickets))
	for i, t := range tickets {
		rows[i] = t
	}
	return rows
}
