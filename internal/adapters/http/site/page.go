// Package site renders the interaction page: a sample prediction, CSV
// ingest and simulation against the data backend, and batch prediction from
// an uploaded CSV.
package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/mdobak/go-xerrors"

	"github.com/okian/rfcoverage/internal/adapters/backend"
	"github.com/okian/rfcoverage/internal/adapters/http/api"
	"github.com/okian/rfcoverage/internal/adapters/upstream"
	"github.com/okian/rfcoverage/internal/domain/csvrecords"
	"github.com/okian/rfcoverage/internal/domain/prediction"
	"github.com/okian/rfcoverage/pkg/logger"
	"github.com/okian/rfcoverage/pkg/metrics"
)

// DefaultMaxUploadBytes bounds CSV uploads.
const DefaultMaxUploadBytes int64 = 32 << 20

// Page actions, also used as metrics labels.
const (
	actionPredict  = "predict"
	actionIngest   = "ingest"
	actionSimulate = "simulate"
	actionBatch    = "batch"
)

// Dependencies required by the page handlers.
type Dependencies interface {
	Predict(ctx context.Context, body []byte) upstream.Reply
	Ingest(ctx context.Context, filename string, r io.Reader) (backend.IngestResult, error)
	SimulateRun(ctx context.Context) (backend.SimulateResult, error)
}

// Option applies a configuration option to the Page.
type Option func(*Page)

// WithMaxUploadBytes limits the size of uploaded CSV files.
func WithMaxUploadBytes(n int64) Option {
	return func(p *Page) {
		if n > 0 {
			p.maxUploadBytes = n
		}
	}
}

// WithLogger sets a custom logger for the page.
func WithLogger(l logger.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// Page serves the interaction page and its form actions.
type Page struct {
	deps           Dependencies
	tmpl           *template.Template
	maxUploadBytes int64
	logger         logger.Logger
}

// NewPage parses the embedded template and returns a page over deps.
func NewPage(deps Dependencies, opts ...Option) (*Page, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	p := &Page{deps: deps, tmpl: tmpl, maxUploadBytes: DefaultMaxUploadBytes}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("site")
	}
	return p, nil
}

// Register attaches the page routes to mux.
func (p *Page) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /{$}", api.RequestIDMiddleware(api.MetricsMiddleware(p.HandleIndex, "page")))
	mux.Handle("POST /page/predict", api.RequestIDMiddleware(api.MetricsMiddleware(p.HandlePredict, "page_predict")))
	mux.Handle("POST /page/ingest", api.RequestIDMiddleware(api.MetricsMiddleware(p.HandleIngest, "page_ingest")))
	mux.Handle("POST /page/simulate", api.RequestIDMiddleware(api.MetricsMiddleware(p.HandleSimulate, "page_simulate")))
	mux.Handle("POST /page/batch", api.RequestIDMiddleware(api.MetricsMiddleware(p.HandleBatch, "page_batch")))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(FS())))
}

// view is the template data for one render of the page.
type view struct {
	Sample    string
	Features  string
	Error     string
	UploadMsg string
	BatchMsg  string
	Result    *resultView
}

type resultView struct {
	Decision    string
	Probability string
	Explanation string
	NeedsTuning bool
	Suggestions []string
	Raw         string
}

func newView() view {
	return view{
		Sample:   string(prediction.SampleRequest()),
		Features: strings.Join(prediction.FeatureColumns, ", "),
	}
}

// HandleIndex handles GET / requests.
func (p *Page) HandleIndex(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, newView())
}

// HandlePredict handles POST /page/predict. It sends the sample request and
// renders whatever JSON came back.
func (p *Page) HandlePredict(w http.ResponseWriter, r *http.Request) {
	v := newView()
	reply := p.deps.Predict(r.Context(), prediction.SampleRequest())
	v.Result = newResultView(reply.Body)
	metrics.RecordPageAction(actionPredict, outcome(reply.Status))
	p.render(w, r, v)
}

// HandleIngest handles POST /page/ingest with a multipart "file" field.
func (p *Page) HandleIngest(w http.ResponseWriter, r *http.Request) {
	v := newView()
	filename, data, err := p.readUpload(w, r)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		p.render(w, r, v)
		return
	case err != nil:
		v.Error = err.Error()
		metrics.RecordPageAction(actionIngest, "error")
		p.render(w, r, v)
		return
	}

	res, err := p.deps.Ingest(r.Context(), filename, bytes.NewReader(data))
	if err != nil {
		v.Error = backend.Message(err, msgUploadFailed)
		metrics.RecordPageAction(actionIngest, "error")
		p.render(w, r, v)
		return
	}
	v.UploadMsg = fmt.Sprintf("Uploaded %s → %s", filename, res.SavedTo)
	metrics.RecordPageAction(actionIngest, "ok")
	p.render(w, r, v)
}

// HandleSimulate handles POST /page/simulate.
func (p *Page) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	v := newView()
	res, err := p.deps.SimulateRun(r.Context())
	if err != nil {
		v.Error = backend.Message(err, msgSimulateFailed)
		metrics.RecordPageAction(actionSimulate, "error")
		p.render(w, r, v)
		return
	}
	v.UploadMsg = fmt.Sprintf("Simulation complete. Output: %s (labels: %s)", res.OutputCSV, compactJSON(res.LabelCounts))
	metrics.RecordPageAction(actionSimulate, "ok")
	p.render(w, r, v)
}

// HandleBatch handles POST /page/batch: the uploaded CSV is parsed into
// records and sent as one {"instances": [...]} request.
func (p *Page) HandleBatch(w http.ResponseWriter, r *http.Request) {
	v := newView()
	_, data, err := p.readUpload(w, r)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		p.render(w, r, v)
		return
	case err != nil:
		v.Error = err.Error()
		metrics.RecordPageAction(actionBatch, "error")
		p.render(w, r, v)
		return
	}

	records, err := csvrecords.Parse(string(data))
	if err != nil {
		v.Error = err.Error()
		metrics.RecordCSVParseFailure()
		metrics.RecordPageAction(actionBatch, "error")
		p.render(w, r, v)
		return
	}
	body, err := prediction.NewBatch(records)
	if err != nil {
		v.Error = msgBatchFailed
		p.logger.Error(r.Context(), "encode batch failed", logger.Error(xerrors.New(err)))
		metrics.RecordPageAction(actionBatch, "error")
		p.render(w, r, v)
		return
	}
	metrics.RecordBatchInstances(len(records))

	reply := p.deps.Predict(r.Context(), body)
	resp, parseErr := prediction.ParseResponse(reply.Body)
	if reply.Status < 200 || reply.Status >= 300 {
		v.Error = msgBatchFailed
		if parseErr == nil && resp.ErrorMessage() != "" {
			v.Error = resp.ErrorMessage()
		}
		metrics.RecordPageAction(actionBatch, "error")
		p.render(w, r, v)
		return
	}
	// A 2xx body that is not an object still gets a summary: 0 rows, {}.
	v.BatchMsg = resp.BatchSummary()
	metrics.RecordPageAction(actionBatch, "ok")
	p.render(w, r, v)
}

// readUpload returns the name and content of the multipart "file" field.
func (p *Page) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	return hdr.Filename, data, nil
}

func (p *Page) render(w http.ResponseWriter, r *http.Request, v view) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "index.html", v); err != nil {
		p.logger.Error(r.Context(), "render page failed", logger.Error(xerrors.New(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// newResultView interprets a model answer for display. Bodies that are not a
// JSON object still render, with an unknown decision.
func newResultView(body []byte) *resultView {
	rv := &resultView{
		Decision:    "unknown",
		Explanation: prediction.Explanation,
		Suggestions: prediction.TuningSuggestions,
		Raw:         indentJSON(body),
	}
	resp, err := prediction.ParseResponse(body)
	if err != nil {
		return rv
	}
	if d, ok := resp.Decision(); ok {
		rv.Decision = d
	}
	if prob, ok := resp.ProbYes(); ok {
		rv.Probability = prediction.FormatProbability(prob)
	}
	rv.NeedsTuning = resp.NeedsTuning()
	return rv
}

func indentJSON(b []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return string(b)
	}
	return buf.String()
}

func compactJSON(b json.RawMessage) string {
	if len(b) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}

func outcome(status int) string {
	if status >= 200 && status < 300 {
		return "ok"
	}
	return "error"
}
