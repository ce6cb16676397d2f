package prediction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Decision values returned by the model.
const (
	DecisionYes = "yes"
	DecisionNo  = "no"
)

// Explanation is shown with every result.
const Explanation = `"yes" indicates the configuration is predicted to meet the coverage target ` +
	`(>=80% of area above -100 dBm). "no" indicates it likely falls short.`

// TuningSuggestions are shown when the decision is "no".
var TuningSuggestions = []string{
	"adjust tilt_deg (+1 to 2)",
	"refine azimuth_deg",
	"target higher rsrp_p50_dbm (+2 dB)",
}

// ErrNotJSONObject is returned when a response body is not a JSON object.
var ErrNotJSONObject = errors.New("response is not a JSON object")

// Response is a decoded model answer. Single answers use Prediction and a
// scalar prob_yes; batch answers use Predictions and an array prob_yes.
type Response struct {
	raw map[string]json.RawMessage
}

// ParseResponse decodes a model answer.
func ParseResponse(body []byte) (Response, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrNotJSONObject, err)
	}
	if raw == nil {
		return Response{}, ErrNotJSONObject
	}
	return Response{raw: raw}, nil
}

// Decision returns `prediction`, falling back to the first element of
// `predictions`. ok is false when neither is present.
func (r Response) Decision() (string, bool) {
	if v, ok := r.field("prediction"); ok {
		return displayValue(v), true
	}
	if v, ok := r.first("predictions"); ok {
		return displayValue(v), true
	}
	return "", false
}

// ProbYes returns `prob_yes` when it is a number, or the first element when
// it is an array of numbers.
func (r Response) ProbYes() (float64, bool) {
	v, ok := r.field("prob_yes")
	if !ok {
		return 0, false
	}
	if p, ok := asNumber(v); ok {
		return p, true
	}
	if first, ok := r.first("prob_yes"); ok {
		return asNumber(first)
	}
	return 0, false
}

// Predictions returns the number of entries in `predictions`, 0 when it is
// absent or not an array.
func (r Response) Predictions() int {
	var arr []json.RawMessage
	if v, ok := r.field("predictions"); ok && json.Unmarshal(v, &arr) == nil {
		return len(arr)
	}
	return 0
}

// ErrorMessage returns the string `error` field, if any.
func (r Response) ErrorMessage() string {
	v, ok := r.field("error")
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// NeedsTuning reports whether tuning suggestions apply.
func (r Response) NeedsTuning() bool {
	d, ok := r.Decision()
	return ok && d == DecisionNo
}

// BatchExample renders the first prediction and probability of a batch
// answer as compact JSON, omitting absent values.
func (r Response) BatchExample() string {
	example := struct {
		Prediction json.RawMessage `json:"prediction,omitempty"`
		ProbYes    json.RawMessage `json:"prob_yes,omitempty"`
	}{}
	if v, ok := r.first("predictions"); ok {
		example.Prediction = v
	}
	if v, ok := r.first("prob_yes"); ok {
		example.ProbYes = v
	}
	b, err := json.Marshal(example)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BatchSummary is the one-line outcome of a batch prediction.
func (r Response) BatchSummary() string {
	return fmt.Sprintf("Predicted %d rows. Example: %s", r.Predictions(), r.BatchExample())
}

func (r Response) field(name string) (json.RawMessage, bool) {
	v, ok := r.raw[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (r Response) first(name string) (json.RawMessage, bool) {
	v, ok := r.field(name)
	if !ok {
		return nil, false
	}
	var arr []json.RawMessage
	if json.Unmarshal(v, &arr) != nil || len(arr) == 0 {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(arr[0]), []byte("null")) {
		return nil, false
	}
	return arr[0], true
}

// FormatProbability renders p as a percentage with one decimal, e.g. 42.0%.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

func asNumber(v json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	return f, true
}

// displayValue renders a JSON scalar the way it reads on the page: strings
// without quotes, everything else as compact JSON.
func displayValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}
