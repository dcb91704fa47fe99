package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func value(m prometheus.Metric) float64 {
	var d dto.Metric
	if err := m.Write(&d); err != nil {
		return -1
	}
	switch {
	case d.Counter != nil:
		return d.Counter.GetValue()
	case d.Gauge != nil:
		return d.Gauge.GetValue()
	}
	return -1
}

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(registry),
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithConstLabels(map[string]string{"env": "test"}),
			WithHistogramBuckets([]float64{1, 10}),
		)

		Convey("Then its collectors are registered under the namespace", func() {
			m.wheelsBuilt.WithLabelValues("greedy", "covered").Inc()
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			names := map[string]bool{}
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["test_unit_wheels_built_total"], ShouldBeTrue)
			So(names["test_unit_queue_size"], ShouldBeTrue)
		})

		Convey("Then a second manager on the same registry panics", func() {
			So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When a wheel is recorded", func() {
			before := value(globalManager.wheelsBuilt.WithLabelValues("scan", "limit"))
			RecordWheelBuilt("scan", "limit", 12, 3.5)

			Convey("Then the counter moves", func() {
				So(value(globalManager.wheelsBuilt.WithLabelValues("scan", "limit")), ShouldEqual, before+1)
			})
		})

		Convey("When gauges are set", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateStoreJobs(3)
			AddWorkerActive(2)
			AddWorkerActive(-1)

			Convey("Then they hold the last value", func() {
				So(value(globalManager.queueSize), ShouldEqual, 7.0)
				So(value(globalManager.queueCapacity), ShouldEqual, 100.0)
				So(value(globalManager.storeJobs), ShouldEqual, 3.0)
			})
		})

		Convey("When counters are recorded", func() {
			before := value(globalManager.verificationSubsets)
			RecordSubsetsExamined(50000)
			RecordVerificationSubmitted()
			RecordVerificationDuplicate()
			RecordVerificationFinished("pass", 12)
			RecordBuildError("capacity_exceeded")
			RecordQueueEnqueue()
			RecordQueueDequeue()
			RecordQueueEnqueueError()
			RecordWorkerError()
			RecordWorkerProcessingLatency(4)
			RecordStoreLatency("get", 0.2)
			RecordStoreEvictions(2)
			RecordHTTPRequest("/wheels", "POST", "200")
			RecordHTTPRequestDuration("/wheels", "POST", "200", 9)
			RecordErrorByComponent("api", "bad_request")

			Convey("Then the subset counter adds the batch", func() {
				So(value(globalManager.verificationSubsets), ShouldEqual, before+50000)
			})
		})

		Convey("Then the exported registry gathers without error", func() {
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
