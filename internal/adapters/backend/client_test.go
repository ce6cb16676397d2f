package backend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/rfcoverage/internal/adapters/backend"
	"github.com/okian/rfcoverage/pkg/logger"
)

func newClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	require.NoError(t, logger.Init(logger.WithWriter(io.Discard)))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL + "/")
}

func TestIngest(t *testing.T) {
	var gotName, gotContent string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ingest", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotContent = hdr.Filename, string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"saved_to":"data/raw/sites.csv","bytes":12}`)
	})

	res, err := c.Ingest(context.Background(), "sites.csv", strings.NewReader("lat,lon\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "sites.csv", gotName)
	assert.Equal(t, "lat,lon\n1,2\n", gotContent)
	assert.Equal(t, backend.IngestResult{SavedTo: "data/raw/sites.csv", Bytes: 12}, res)
}

func TestIngestRemoteError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"only .csv files are accepted"}`)
	})

	_, err := c.Ingest(context.Background(), "sites.txt", strings.NewReader("x"))
	var re *backend.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "only .csv files are accepted", backend.Message(err, "upload failed"))
}

func TestSimulateRun(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simulate-run", r.URL.Path)
		_, _ = io.WriteString(w, `{"output_csv":"data/sim/out.csv","label_counts":{"yes":40,"no":10}}`)
	})

	res, err := c.SimulateRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data/sim/out.csv", res.OutputCSV)
	assert.JSONEq(t, `{"yes":40,"no":10}`, string(res.LabelCounts))
}

func TestSimulateRunFailureWithoutMessage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "Internal Server Error")
	})

	_, err := c.SimulateRun(context.Background())
	require.Error(t, err)
	assert.Equal(t, "simulate failed", backend.Message(err, "simulate failed"))
	assert.Contains(t, err.Error(), "500")
}

func TestBackendUnreachable(t *testing.T) {
	require.NoError(t, logger.Init(logger.WithWriter(io.Discard)))
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := backend.NewClient(url).SimulateRun(context.Background())
	assert.True(t, errors.Is(err, backend.ErrBackendUnavailable))
	assert.Equal(t, "simulate failed", backend.Message(err, "simulate failed"))
}
