package ingest

import (
	"errors"
	"fmt"

	"github.com/castorhq/castor/pkg/proc"
)

type (
	ErrorKind int

	// PipelineError is the typed failure returned by an ingestion. The
	// kind tells the caller which stage failed and what (if anything)
	// was rolled back; the embedded error carries the detail.
	PipelineError struct {
		error
		kind ErrorKind
	}
)

const (
	// ValidationFailure: the upload's shape (size/name/type) was
	// rejected before anything touched disk.
	ValidationFailure ErrorKind = iota

	// FormatRejected: probing succeeded but the codec policy was not
	// met. A routine outcome, not an exceptional one.
	FormatRejected

	// ProcessTimeout: an external tool exceeded its execution bound and
	// was force-killed.
	ProcessTimeout

	// ProcessFailure: an external tool exited with non-zero status.
	ProcessFailure

	// StorageFailure: filesystem I/O failed while staging artifacts.
	StorageFailure

	// PersistenceFailure: the final record write failed.
	PersistenceFailure
)

func (kind ErrorKind) String() string {
	switch kind {
	case ValidationFailure:
		return "VALIDATION_FAILURE"
	case FormatRejected:
		return "FORMAT_REJECTED"
	case ProcessTimeout:
		return "PROCESS_TIMEOUT"
	case ProcessFailure:
		return "PROCESS_FAILURE"
	case StorageFailure:
		return "STORAGE_FAILURE"
	case PersistenceFailure:
		return "PERSISTENCE_FAILURE"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", kind)
	}
}

func (e *PipelineError) Kind() ErrorKind { return e.kind }
func (e *PipelineError) Unwrap() error   { return e.error }

func NewError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{error: err, kind: kind}
}

// classifyToolError maps an external-tool invocation error onto the
// pipeline taxonomy: a killed-on-timeout run is distinct from a tool
// that ran to completion and reported failure.
func classifyToolError(err error) ErrorKind {
	if errors.Is(err, proc.ErrTimeout) {
		return ProcessTimeout
	}

	return ProcessFailure
}

// KindOf extracts the pipeline error kind from an ingestion error,
// reporting ok=false for errors originating outside the pipeline.
func KindOf(err error) (ErrorKind, bool) {
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind(), true
	}

	return 0, false
}
