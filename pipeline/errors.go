package pipeline

import (
	"fmt"
)

// Stage names a step of frame processing
type Stage string

const (
	StageDenoise  = Stage("denoise")
	StageSegment  = Stage("segment")
	StageClassify = Stage("classify")
	StageTrack    = Stage("track")
	StagePresent  = Stage("present")
)

// StageError is a frame-scoped failure. The frame is skipped, the run goes on.
type StageError struct {
	Stage Stage
	Frame int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("frame %d: %s: %v", e.Frame, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Cause makes errors.Cause reach the underlying error
func (e *StageError) Cause() error {
	return e.Err
}
