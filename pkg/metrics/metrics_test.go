package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "rfcoverage")
				So(manager.subsystem, ShouldEqual, "gateway")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test-namespace")
				So(manager.subsystem, ShouldEqual, "test-subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})

		Convey("When creating with empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "rfcoverage")
				So(manager.subsystem, ShouldEqual, "gateway")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestUpstreamMetrics(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording upstream requests", func() {
			before := testutil.ToFloat64(globalManager.upstreamRequests.WithLabelValues("loopback", "503"))
			RecordUpstreamRequest("loopback", "503")
			RecordUpstreamRequest("loopback", "503")

			Convey("Then the counter should increase per call", func() {
				after := testutil.ToFloat64(globalManager.upstreamRequests.WithLabelValues("loopback", "503"))
				So(after-before, ShouldEqual, 2.0)
			})
		})

		Convey("When recording credential errors", func() {
			before := testutil.ToFloat64(globalManager.credentialErrors.WithLabelValues("identity"))
			RecordCredentialError("identity")

			Convey("Then the counter should increase", func() {
				So(testutil.ToFloat64(globalManager.credentialErrors.WithLabelValues("identity"))-before, ShouldEqual, 1.0)
			})
		})

		Convey("When recording page and backend activity", func() {
			before := testutil.ToFloat64(globalManager.csvParseFailures)

			So(func() {
				RecordPageAction("batch", "error")
				RecordBackendRequest("ingest", "ok")
				RecordBatchInstances(12)
				RecordCSVParseFailure()
				RecordUpstreamLatency("vertex", 120)
				RecordUpstreamError("identity", "credential")
			}, ShouldNotPanic)

			Convey("Then the CSV failure counter should increase", func() {
				So(testutil.ToFloat64(globalManager.csvParseFailures)-before, ShouldEqual, 1.0)
			})
		})
	})
}

func TestHTTPAndSystemMetrics(t *testing.T) {
	Convey("Given HTTP and system metrics", t, func() {
		So(func() {
			RecordHTTPRequest("predict", "POST", "200")
			RecordHTTPRequestDuration("predict", "POST", "200", 15.0)
			RecordErrorByType("server_error", "high")
			RecordErrorByEndpoint("predict", "POST", "server_error")
			RecordErrorLatency("http", "server_error", 10.0)
			UpdateSystemMemoryUsage(1024 * 1024 * 100)
			UpdateSystemGoroutineCount(42)
			RecordSystemGCPauseTime(1.0)
		}, ShouldNotPanic)

		Convey("Then the custom registry should expose gateway metrics", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["rfcoverage_gateway_http_requests_total"], ShouldBeTrue)
			So(names["rfcoverage_gateway_system_goroutine_count"], ShouldBeTrue)
		})
	})
}
