package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedConversion matches any *UnsupportedConversionError.
	ErrUnsupportedConversion = errors.New("unsupported conversion")

	// ErrTranscodeExecution matches any *TranscodeExecutionError.
	ErrTranscodeExecution = errors.New("transcode execution failed")

	// ErrInvalidRequest matches any *InvalidRequestError.
	ErrInvalidRequest = errors.New("invalid conversion request")
)

// UnsupportedConversionError is returned when the format matrix rejects a
// conversion. Nothing has been staged when it is returned.
type UnsupportedConversionError struct {
	From Format
	To   Format
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("conversion from %s to %s is not supported", e.From, e.To)
}

func (e *UnsupportedConversionError) Is(target error) bool {
	return target == ErrUnsupportedConversion
}

// Stage names the step of a job during which a transcoder call failed.
type Stage string

const (
	StageStage    Stage = "stage"
	StageExecute  Stage = "execute"
	StageRetrieve Stage = "retrieve"
)

// TranscodeExecutionError wraps a failure reported by the transcoder.
// Staged resources have already been cleaned up when it is returned.
type TranscodeExecutionError struct {
	Stage Stage
	Cause error
}

func (e *TranscodeExecutionError) Error() string {
	return fmt.Sprintf("transcode %s failed: %v", e.Stage, e.Cause)
}

func (e *TranscodeExecutionError) Unwrap() error {
	return e.Cause
}

func (e *TranscodeExecutionError) Is(target error) bool {
	return target == ErrTranscodeExecution
}

// InvalidRequestError reports a malformed ConversionRequest.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid conversion request: %s %s", e.Field, e.Reason)
}

func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}
