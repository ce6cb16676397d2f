// Package csvrecords turns a small comma separated upload into JSON-ready
// records. It is intentionally minimal: no quoting, no escaping and no
// embedded commas.
package csvrecords

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyCSV is returned when the input has no data rows.
var ErrEmptyCSV = errors.New("empty CSV")

var lineBreak = regexp.MustCompile(`\r?\n`)

// Parse splits text into lines, drops empty lines, uses the first line as
// header and zips every following line against it. Values that parse as a
// finite number become float64, everything else stays a trimmed string. A
// missing or empty value becomes 0. Columns beyond the header are ignored.
func Parse(text string) ([]map[string]any, error) {
	lines := nonEmptyLines(text)
	if len(lines) < 2 {
		return nil, ErrEmptyCSV
	}

	headers := strings.Split(lines[0], ",")
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	records := make([]map[string]any, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cols := strings.Split(line, ",")
		rec := make(map[string]any, len(headers))
		for i, h := range headers {
			var v string
			if i < len(cols) {
				v = cols[i]
			}
			rec[h] = coerce(strings.TrimSpace(v))
		}
		records = append(records, rec)
	}
	return records, nil
}

func nonEmptyLines(text string) []string {
	all := lineBreak.Split(text, -1)
	lines := all[:0]
	for _, l := range all {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func coerce(v string) any {
	if v == "" {
		return float64(0)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	return f
}
