// Package prediction holds the request and response shapes exchanged with
// the RF coverage model and the rules for presenting a model answer.
package prediction

import (
	"encoding/json"
)

// Record is one candidate site configuration scored by the model.
type Record struct {
	SiteID      string  `json:"site_id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	FreqMHz     float64 `json:"freq_mhz"`
	TiltDeg     float64 `json:"tilt_deg"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
	RSRPP50DBm  float64 `json:"rsrp_p50_dbm"`
	CoveragePct float64 `json:"coverage_pct"`
}

// FeatureColumns lists the CSV headers the model expects, site_id optional.
var FeatureColumns = []string{
	"lat",
	"lon",
	"freq_mhz",
	"tilt_deg",
	"azimuth_deg",
	"rsrp_p50_dbm",
	"coverage_pct",
}

// SampleRecord is the fixed example submitted by the page.
var SampleRecord = Record{
	SiteID:      "S1",
	Lat:         32.7,
	Lon:         -96.8,
	FreqMHz:     1900,
	TiltDeg:     2,
	AzimuthDeg:  90,
	RSRPP50DBm:  -91,
	CoveragePct: 0.9,
}

// SampleRequest returns the exact bytes sent for the sample record. The page
// displays and submits the same slice.
func SampleRequest() []byte {
	b, err := json.MarshalIndent(SampleRecord, "", "  ")
	if err != nil {
		// Record has only string and float fields.
		panic(err)
	}
	return b
}

// Batch is the managed-endpoint style envelope for several records.
type Batch struct {
	Instances []map[string]any `json:"instances"`
}

// NewBatch wraps records into a {"instances": [...]} payload.
func NewBatch(records []map[string]any) ([]byte, error) {
	if records == nil {
		records = []map[string]any{}
	}
	return json.Marshal(Batch{Instances: records})
}
