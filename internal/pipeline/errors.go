package pipeline

import (
	"errors"
	"fmt"

	"github.com/rkm/sentinel-pipeline/internal/cdse"
	"github.com/rkm/sentinel-pipeline/internal/ingest"
	"github.com/rkm/sentinel-pipeline/internal/safe"
	"github.com/rkm/sentinel-pipeline/internal/sar"
)

// StageError reports the stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitAuthentication = 3
	ExitNoMatch        = 4
	ExitDownload       = 5
	ExitMissingBand    = 6
	ExitInvalidData    = 7
)

// ExitCode maps a run error onto the process exit code of its class.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, cdse.ErrAuthentication), errors.Is(err, cdse.ErrNotAuthenticated):
		return ExitAuthentication
	case errors.Is(err, ingest.ErrNoMatch):
		return ExitNoMatch
	case errors.Is(err, cdse.ErrDownload):
		return ExitDownload
	case errors.Is(err, safe.ErrMissingBand):
		return ExitMissingBand
	case errors.Is(err, sar.ErrInvalidData):
		return ExitInvalidData
	default:
		return ExitFailure
	}
}
