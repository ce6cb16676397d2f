package batchcli

import "errors"

// Sentinel kinds for batch run failures.
var (
	ErrConfig      = errors.New("invalid batch configuration")
	ErrUnhealthy   = errors.New("gateway health check failed")
	ErrPredict     = errors.New("batch predict failed")
	ErrWriteOutput = errors.New("write output failed")
)
