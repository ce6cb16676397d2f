package site

import "errors"

// Error constants.
var (
	ErrTemplate = errors.New("page template failed")
	ErrUpload   = errors.New("read upload failed")
)

// Fallback messages shown when the failing call gives no reason.
const (
	msgUploadFailed   = "upload failed"
	msgSimulateFailed = "simulate failed"
	msgBatchFailed    = "batch predict failed"
)
