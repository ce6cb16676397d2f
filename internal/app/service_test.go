package service_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/rfcoverage/internal/adapters/backend"
	"github.com/okian/rfcoverage/internal/adapters/upstream"
	service "github.com/okian/rfcoverage/internal/app"
	"github.com/okian/rfcoverage/internal/config"
	"github.com/okian/rfcoverage/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init(logger.WithWriter(io.Discard))
	if err != nil {
		panic(err)
	}
}

// newModelServer fakes both the prediction service and the data backend.
func newModelServer(t *testing.T, predictStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(predictStatus)
		_, _ = io.WriteString(w, `{"prediction":"no","prob_yes":0.42}`)
	})
	mux.HandleFunc("POST /ingest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"saved_to":"data/raw/sites.csv","bytes":4}`)
	})
	mux.HandleFunc("POST /simulate-run", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"simulator crashed"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default config", t, func() {
		svc := service.New(nil)

		Convey("Then it should not be started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.UpstreamName(), ShouldEqual, upstream.StrategyNone)
		})

		Convey("And calls before Start should fail", func() {
			reply := svc.Predict(context.Background(), []byte(`{}`))
			So(reply.Status, ShouldEqual, http.StatusInternalServerError)
			So(string(reply.Body), ShouldContainSubstring, service.ErrNotStarted.Error())

			_, err := svc.SimulateRun(context.Background())
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})
}

func TestService_Settings(t *testing.T) {
	Convey("Given a config with every upstream field set", t, func() {
		cfg := config.New()
		cfg.VertexProjectID = "p"
		cfg.VertexRegion = "r"
		cfg.VertexEndpointID = "e"
		cfg.CloudRunURL = "https://svc.a.run.app"
		cfg.ServiceAccountEmail = "svc@p.iam.gserviceaccount.com"
		cfg.ServiceAccountKey = "key"

		Convey("Then the settings should carry them unchanged", func() {
			So(service.Settings(cfg), ShouldResemble, upstream.Settings{
				VertexProjectID:     "p",
				VertexRegion:        "r",
				VertexEndpointID:    "e",
				ServiceURL:          "https://svc.a.run.app",
				ServiceAccountEmail: "svc@p.iam.gserviceaccount.com",
				ServiceAccountKey:   "key",
			})
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without any upstream", t, func() {
		svc := service.New(config.New())
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should start and report no upstream", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.UpstreamName(), ShouldEqual, upstream.StrategyNone)
			})

			Convey("And predictions should return operator guidance", func() {
				reply := svc.Predict(context.Background(), []byte(`{}`))
				So(reply.Status, ShouldEqual, http.StatusInternalServerError)
				So(string(reply.Body), ShouldContainSubstring, upstream.NotConfiguredMessage)
			})

			Convey("And starting again should be a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_Loopback(t *testing.T) {
	Convey("Given a service pointed at a local model server", t, func() {
		srv := newModelServer(t, http.StatusServiceUnavailable)
		cfg := config.New()
		cfg.CloudRunURL = srv.URL
		cfg.BackendURL = srv.URL
		svc := service.New(cfg, service.WithHTTPClient(srv.Client()))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the loopback strategy should be active", func() {
			So(svc.UpstreamName(), ShouldEqual, upstream.StrategyLoopback)
		})

		Convey("When predicting against a failing local server", func() {
			reply := svc.Predict(context.Background(), []byte(`{"lat":1}`))

			Convey("Then the reply should still be 200", func() {
				So(reply.Status, ShouldEqual, http.StatusOK)
				So(string(reply.Body), ShouldEqual, `{"prediction":"no","prob_yes":0.42}`)
			})
		})

		Convey("When ingesting a file", func() {
			res, err := svc.Ingest(context.Background(), "sites.csv", strings.NewReader("a\n1\n"))

			Convey("Then the backend location should be returned", func() {
				So(err, ShouldBeNil)
				So(res.SavedTo, ShouldEqual, "data/raw/sites.csv")
			})
		})

		Convey("When the simulation fails", func() {
			_, err := svc.SimulateRun(context.Background())

			Convey("Then the backend message should be available", func() {
				So(backend.Message(err, "simulate failed"), ShouldEqual, "simulator crashed")
			})
		})
	})
}
