package graph

import "errors"

// Machine-readable codes carried by EngineError.
const (
	CodeBadGraph      = "BAD_GRAPH"
	CodeDuplicateStep = "DUPLICATE_STEP"
	CodeStepNotFound  = "STEP_NOT_FOUND"
	CodeNoStart       = "NO_START_STEP"
	CodeNoFinish      = "NO_FINISH_STEP"
	CodeNoRoute       = "NO_ROUTE"
	CodeMaxSteps      = "MAX_STEPS_EXCEEDED"
	CodeMissingStore  = "MISSING_STORE"
	CodeStoreError    = "STORE_ERROR"
)

// EngineError represents an error from Engine construction or execution.
type EngineError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// asUnroutable reports whether err is (or wraps) an *UnroutableStateError,
// storing it in target when it is.
func asUnroutable(err error, target **UnroutableStateError) bool {
	return errors.As(err, target)
}
