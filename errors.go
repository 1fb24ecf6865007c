package ctepipe

import "errors"

// Common errors used throughout the ctepipe package
var (
	// ErrNoSuchCTE is returned when an edit names a CTE the query does not define.
	ErrNoSuchCTE = errors.New("no such CTE")
	// ErrNoPipelineStage is returned when a select refers to the previous stage but the query has no select to wrap.
	ErrNoPipelineStage = errors.New("no pipeline stage to refer to")

	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
)
