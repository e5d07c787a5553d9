package operations

import (
	"errors"
	"fmt"
)

// Step names a stage of scoring one input file.
type Step string

const (
	StepRead      Step = "read"
	StepNormalize Step = "normalize"
	StepScore     Step = "score"
	StepExport    Step = "export"
	StepArchive   Step = "archive"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
)

// OperationError ties a failure to the file and step it happened in.
type OperationError struct {
	Type    ErrorType              `json:"type"`
	Step    Step                   `json:"step,omitempty"`
	File    string                 `json:"file,omitempty"`
	Sheet   string                 `json:"sheet,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	where := string(e.Step)
	if e.Sheet != "" {
		where += " " + e.Sheet
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if where != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, where, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewExecutionError wraps a failure of one step.
func NewExecutionError(step Step, file string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Step:    step,
		File:    file,
		Message: "step failed",
		Cause:   cause,
	}
}

// NewSheetError wraps a failure of one sheet within a step.
func NewSheetError(step Step, file, sheet string, cause error) *OperationError {
	e := NewExecutionError(step, file, cause)
	e.Sheet = sheet
	return e
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(file string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		File:    file,
		Message: "operation was cancelled",
		Cause:   cause,
	}
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// StepOf returns the step an error happened in, or "".
func StepOf(err error) Step {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Step
	}
	return ""
}
