package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/rfcoverage/internal/adapters/http/api"
	"github.com/okian/rfcoverage/internal/adapters/upstream"
	"github.com/okian/rfcoverage/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	mu        sync.Mutex
	reply     upstream.Reply
	name      string
	bodies    [][]byte
	requestID string
}

func (m *mockDependencies) Predict(ctx context.Context, body []byte) upstream.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	m.requestID = logger.RequestID(ctx)
	return m.reply
}

func (m *mockDependencies) UpstreamName() string { return m.name }

func (m *mockDependencies) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bodies)
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func decodeError(body *bytes.Buffer) string {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body.Bytes(), &e)
	return e.Error
}

func TestPredictEndpoint(t *testing.T) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Convey("Given an API server over a mock upstream", t, func() {
		deps := &mockDependencies{
			reply: upstream.Reply{Status: http.StatusOK, Body: []byte(`{"prediction":"yes","prob_yes":0.9}`)},
			name:  upstream.StrategyLoopback,
		}
		mux := newMux(deps)

		Convey("When a prediction is posted", func() {
			body := `{"site_id":"S1","lat":32.7}`
			req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the upstream reply should be relayed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, `{"prediction":"yes","prob_yes":0.9}`)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(string(deps.bodies[0]), ShouldEqual, body)
			})

			Convey("And a request id should be assigned and propagated", func() {
				id := w.Header().Get(api.RequestIDHeader)
				So(id, ShouldNotBeEmpty)
				So(deps.requestID, ShouldEqual, id)
			})
		})

		Convey("When the caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`))
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be reused", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
				So(deps.requestID, ShouldEqual, "abc-123")
			})
		})

		Convey("When a non-POST method is used", func() {
			for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
				req := httptest.NewRequest(method, "/api/predict", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(decodeError(w.Body), ShouldEqual, "Method not allowed")
			}

			Convey("Then no upstream call should be made", func() {
				So(deps.calls(), ShouldEqual, 0)
			})
		})

		Convey("When the upstream reply is a failure", func() {
			deps.reply = upstream.ErrorReply(upstream.ErrNotConfigured)
			req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the guidance should reach the caller", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w.Body), ShouldEqual, upstream.NotConfiguredMessage)
			})
		})

		Convey("When the upstream status is not 200", func() {
			deps.reply = upstream.Reply{Status: http.StatusBadRequest, Body: []byte(`{"error":{"code":400}}`)}
			req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the status should be relayed", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldEqual, `{"error":{"code":400}}`)
			})
		})
	})

	Convey("Given a server with a small body limit", t, func() {
		deps := &mockDependencies{reply: upstream.Reply{Status: http.StatusOK, Body: []byte(`{}`)}}
		mux := newMux(deps, api.WithMaxBodyBytes(16))

		Convey("When the body exceeds the limit", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"site_id":"a-very-long-identifier"}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the request should be rejected with 413", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decodeError(w.Body), ShouldContainSubstring, "16 bytes")
				So(deps.calls(), ShouldEqual, 0)
			})
		})
	})
}

func TestHealthAndMetrics(t *testing.T) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Convey("Given an API server", t, func() {
		mux := newMux(&mockDependencies{name: upstream.StrategyNone})

		Convey("When health is requested", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then status and active upstream should be reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, "{\"status\":\"ok\",\"upstream\":\"none\"}\n")
			})
		})

		Convey("When metrics are scraped after a request", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			w = httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the exposition should include HTTP counters", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "rfcoverage_gateway_http_requests_total")
			})
		})
	})
}
