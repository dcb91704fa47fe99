package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wheelsmith/internal/adapters/http/api"
	app "github.com/okian/wheelsmith/internal/app"
	"github.com/okian/wheelsmith/internal/domain/model"
)

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseNumbers(t *testing.T) {
	Convey("Given number list specs", t, func() {
		got, err := parseNumbers("1-3, 7,9-10")
		So(err, ShouldBeNil)
		So(got, ShouldResemble, []int{1, 2, 3, 7, 9, 10})

		got, err = parseNumbers("")
		So(err, ShouldBeNil)
		So(got, ShouldBeEmpty)

		_, err = parseNumbers("5-2")
		So(err, ShouldNotBeNil)
		_, err = parseNumbers("a")
		So(err, ShouldNotBeNil)
	})
}

func TestParseGroup(t *testing.T) {
	Convey("Given a group flag", t, func() {
		g, err := parseGroup("low=1-5:1:2")
		So(err, ShouldBeNil)
		So(g, ShouldResemble, model.GroupConstraint{ID: "low", Numbers: []int{1, 2, 3, 4, 5}, Min: 1, Max: 2})

		_, err = parseGroup("low:1:2")
		So(err, ShouldNotBeNil)
		_, err = parseGroup("low=1-5:x:2")
		So(err, ShouldNotBeNil)
	})
}

func TestReadTickets(t *testing.T) {
	Convey("Given ticket text", t, func() {
		got, err := readTickets(strings.NewReader("# wheel\n1 2 3\n\n4,5,6\n"))
		So(err, ShouldBeNil)
		So(got, ShouldResemble, [][]int{{1, 2, 3}, {4, 5, 6}})
	})

	Convey("Given ticket JSON", t, func() {
		got, err := readTickets(strings.NewReader(`[[1,2],[3,4]]`))
		So(err, ShouldBeNil)
		So(got, ShouldResemble, [][]int{{1, 2}, {3, 4}})
	})

	Convey("Given a malformed line", t, func() {
		_, err := readTickets(strings.NewReader("1 2 x\n"))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "line 1")
	})
}

func TestCommandsInProcess(t *testing.T) {
	Convey("Given wheelctl running in-process", t, func() {
		Convey("When stats are requested", func() {
			out, err := execute("stats", "-n", "10", "-k", "5", "-m", "3")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "lower bound:      14")
			So(out, ShouldContainSubstring, "possible tickets: 252")
		})

		Convey("When a wheel is built and then verified", func() {
			out, err := execute("build", "--pool", "1-10", "-k", "5", "-m", "3", "--seed", "cli")
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			So(len(lines), ShouldBeGreaterThanOrEqualTo, 14)
			So(strings.Fields(lines[0]), ShouldHaveLength, 5)

			path := filepath.Join(t.TempDir(), "wheel.txt")
			So(os.WriteFile(path, []byte(out), 0o600), ShouldBeNil)

			out, err = execute("verify", "--pool", "1-10", "-k", "5", "-m", "3", "--tickets", path)
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "PASS: 0 of 120")
		})

		Convey("When a wheel misses subsets", func() {
			path := filepath.Join(t.TempDir(), "short.txt")
			So(os.WriteFile(path, []byte("1 2 3\n"), 0o600), ShouldBeNil)

			out, err := execute("verify", "--pool", "1-5", "-k", "3", "-m", "2", "--tickets", path)
			So(errors.Is(err, errUncovered), ShouldBeTrue)
			So(out, ShouldStartWith, "FAIL: 7 of 10")
			So(out, ShouldContainSubstring, "uncovered: [1 4]")
		})

		Convey("When a build is infeasible", func() {
			_, err := execute("build", "--pool", "1-6", "-k", "4", "-m", "2", "--group", "a=1:2:2")
			So(errors.Is(err, model.ErrInfeasibleConstraints), ShouldBeTrue)
		})

		Convey("When a JSON wheel is requested with a fixed number", func() {
			out, err := execute("build", "--pool", "1-8", "-k", "4", "-m", "2", "--fixed", "8", "--seed", "x", "--format", "json")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, `"termination": "covered"`)
		})

		Convey("When smoke runs without a server", func() {
			_, err := execute("smoke", "--pool", "1-8", "-k", "4", "-m", "2")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCommandsRemote(t *testing.T) {
	Convey("Given wheelctl pointed at a server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		svc := app.New(app.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		Reset(func() {
			srv.Close()
			_ = svc.Stop(ctx)
			cancel()
		})

		Convey("Then stats come from the server", func() {
			out, err := execute("--server", srv.URL, "stats", "-n", "49", "-k", "6", "-m", "3")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "target subsets:   18424")
		})

		Convey("Then a smoke run passes", func() {
			out, err := execute("--server", srv.URL, "smoke", "--pool", "1-9", "-k", "4", "-m", "2", "--rounds", "3", "--workers", "2")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, `"passed": 3`)
		})
	})
}
