package batchcli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/rfcoverage/internal/domain/csvrecords"
	"github.com/okian/rfcoverage/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type gateway struct {
	upstream  string
	status    int
	response  string
	body      []byte
	requestID string
}

func (g *gateway) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","upstream":"`+g.upstream+`"}`)
	})
	mux.HandleFunc("POST /api/predict", func(w http.ResponseWriter, r *http.Request) {
		g.body, _ = io.ReadAll(r.Body)
		g.requestID = r.Header.Get(RequestIDHeader)
		w.WriteHeader(g.status)
		_, _ = io.WriteString(w, g.response)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeCSV(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "sites.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestRun(t *testing.T) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Convey("Given a gateway that answers a batch", t, func() {
		g := &gateway{
			upstream: "loopback",
			status:   http.StatusOK,
			response: `{"predictions":["no","yes"],"prob_yes":[0.42,0.77]}`,
		}
		srv := g.server(t)
		var stdout bytes.Buffer
		cfg := &Config{
			BaseURL: srv.URL + "/",
			CSVFile: writeCSV(t, "site_id,lat,coverage_pct\nS1,32.7,0.9\nS2,33.1,0.75\n"),
			Timeout: 5 * time.Second,
			Stdout:  &stdout,
		}

		Convey("When the run completes", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then the rows should be sent as instances with a request id", func() {
				So(err, ShouldBeNil)
				So(string(g.body), ShouldEqual,
					`{"instances":[{"coverage_pct":0.9,"lat":32.7,"site_id":"S1"},{"coverage_pct":0.75,"lat":33.1,"site_id":"S2"}]}`)
				So(g.requestID, ShouldNotBeEmpty)
				So(stats.RequestID, ShouldEqual, g.requestID)
			})

			Convey("And the summary should be printed", func() {
				So(stdout.String(), ShouldEqual, "Predicted 2 rows. Example: {\"prediction\":\"no\",\"prob_yes\":0.42}\n")
				So(stats.Rows, ShouldEqual, 2)
				So(stats.Predictions, ShouldEqual, 2)
			})
		})

		Convey("When an output file is requested", func() {
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "result.json")
			_, err := Run(context.Background(), cfg)

			Convey("Then the response should be written pretty-printed", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(cfg.OutputFile)
				So(readErr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "\n  \"predictions\": [\n")
			})
		})

		Convey("When the gateway reports an error", func() {
			g.status = http.StatusInternalServerError
			g.response = `{"error":"Set either RFPROXY_VERTEX_* envs or RFPROXY_CLOUD_RUN_URL"}`
			_, err := Run(context.Background(), cfg)

			Convey("Then the run should fail with the gateway message", func() {
				So(errors.Is(err, ErrPredict), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "RFPROXY_CLOUD_RUN_URL")
				So(stdout.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the CSV has no data rows", func() {
			cfg.CSVFile = writeCSV(t, "lat,lon\n")
			_, err := Run(context.Background(), cfg)

			Convey("Then nothing should be submitted", func() {
				So(errors.Is(err, csvrecords.ErrEmptyCSV), ShouldBeTrue)
				So(g.body, ShouldBeNil)
			})
		})

		Convey("When the CSV file is missing", func() {
			cfg.CSVFile = filepath.Join(t.TempDir(), "missing.csv")
			_, err := Run(context.Background(), cfg)

			Convey("Then the run should fail as misconfigured", func() {
				So(errors.Is(err, ErrConfig), ShouldBeTrue)
			})
		})
	})

	Convey("Given no CSV file", t, func() {
		_, err := Run(context.Background(), &Config{BaseURL: "http://localhost:3000"})

		Convey("Then the run should fail before any request", func() {
			So(errors.Is(err, ErrConfig), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable gateway", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := Run(context.Background(), &Config{
			BaseURL: url,
			CSVFile: writeCSV(t, "lat\n1\n"),
			Timeout: time.Second,
			Stdout:  io.Discard,
		})

		Convey("Then the health check should fail", func() {
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}
