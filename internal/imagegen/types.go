package imagegen

import "errors"

// Stage names a step of a pipeline run.
type Stage string

const (
	StageValidatingConfig Stage = "validating_config"
	StageGenerating       Stage = "generating"
	StageUploading        Stage = "uploading"
	StagePersisting       Stage = "persisting"
	StageDone             Stage = "done"
)

// StageError records the stage at which a run stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage a run failed at, or "" for foreign errors.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
