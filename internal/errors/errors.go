// Package errors provides structured errors for the search pipeline.
//
// The pipeline's error policy distinguishes recoverable stage failures
// (a search path, an index build, a rerank batch) from fatal ones
// (model load at startup, malformed configuration). Recoverable errors
// are folded into empty stage output by the caller and logged; they are
// never surfaced to the search caller.
package errors

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageEmbedding    Stage = "embedding"
	StageVectorSearch Stage = "vector_search"
	StageKeyword      Stage = "keyword_search"
	StageEnrichment   Stage = "enrichment"
	StageRerank       Stage = "rerank"
	StageAggregation  Stage = "aggregation"
	StageIngest       Stage = "ingest"
	StageStore        Stage = "store"
)

// PipelineError carries the stage and recoverability of a failure.
type PipelineError struct {
	// Stage is the pipeline stage that failed.
	Stage Stage

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Recoverable marks errors the orchestrator degrades around rather
	// than propagating.
	Recoverable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Recoverable creates a stage error the orchestrator maps to empty output.
func Recoverable(stage Stage, message string, cause error) *PipelineError {
	return &PipelineError{
		Stage:       stage,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// Fatal creates a stage error that must propagate to the process boundary.
func Fatal(stage Stage, message string, cause error) *PipelineError {
	return &PipelineError{
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable reports whether err (or anything it wraps) is a
// recoverable pipeline error.
func IsRecoverable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}
	return false
}

// StageOf returns the stage of a pipeline error, or "" for other errors.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
