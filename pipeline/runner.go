package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/LdDl/shapecount/ledger"
)

// FrameSource yields frames in order. *gocv.VideoCapture satisfies it.
type FrameSource interface {
	Read(m *gocv.Mat) bool
}

// FrameSink consumes composed frames. *gocv.VideoWriter satisfies it.
type FrameSink interface {
	Write(img gocv.Mat) error
}

// Display shows composed frames and polls keyboard, e.g. a gocv window
type Display interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
}

// Summary describes a finished run
type Summary struct {
	// Frames read from source
	Frames int
	// Frames skipped because of stage errors
	Failed int
	Counts ledger.Counts
	// Run ended before end of stream (quit key or cancelled context)
	Stopped bool
}

// Runner drives Processor over a frame stream
type Runner struct {
	processor         *Processor
	finalFrameRepeats int
	quitKey           int
}

// NewRunner creates runner which writes the final summary frame finalFrameRepeats times
func NewRunner(processor *Processor, finalFrameRepeats int) *Runner {
	return &Runner{
		processor:         processor,
		finalFrameRepeats: finalFrameRepeats,
		quitKey:           'q',
	}
}

// Run processes frames until end of stream, ctx cancellation or quit key.
// display may be nil for headless runs. Only sink failures are returned as errors;
// frame-scoped failures are logged and skipped.
func (r *Runner) Run(ctx context.Context, src FrameSource, sink FrameSink, display Display) (Summary, error) {
	logger := r.processor.Logger()
	summary := Summary{}

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if ctx.Err() != nil {
			logger.Info("Processing cancelled", zap.Error(ctx.Err()))
			summary.Stopped = true
			break
		}
		if ok := src.Read(&frame); !ok || frame.Empty() {
			logger.Info("End of video reached")
			break
		}
		summary.Frames++

		res := r.processor.Process(frame)
		if res.Err != nil {
			summary.Failed++
			var stageErr *StageError
			if errors.As(res.Err, &stageErr) {
				logger.Error("Frame skipped",
					zap.Int("frame", stageErr.Frame),
					zap.String("stage", string(stageErr.Stage)),
					zap.Error(stageErr.Err),
				)
			} else {
				logger.Error("Frame skipped", zap.Error(res.Err))
			}
			res.Close()
			continue
		}

		err := sink.Write(res.Output)
		if err != nil {
			res.Close()
			summary.Counts = r.processor.Counts()
			return summary, errors.Wrapf(err, "Can't write frame %d", res.Index)
		}
		if display != nil {
			display.IMShow(res.Output)
		}
		res.Close()

		if display != nil && display.WaitKey(1)&0xFF == r.quitKey {
			logger.Info("User requested exit")
			summary.Stopped = true
			break
		}
	}

	summary.Counts = r.processor.Counts()
	logger.Info("Final counts",
		zap.Int("squares", summary.Counts.Squares),
		zap.Int("circles", summary.Counts.Circles),
		zap.Int("frames", summary.Frames),
		zap.Int("failed", summary.Failed),
	)

	final := r.processor.FinalFrame()
	defer final.Close()
	for i := 0; i < r.finalFrameRepeats; i++ {
		if err := sink.Write(final); err != nil {
			return summary, errors.Wrap(err, "Can't write final frame")
		}
	}
	logger.Info("Final frame written", zap.Int("repeats", r.finalFrameRepeats))

	if display != nil {
		display.IMShow(final)
		if ctx.Err() == nil {
			display.WaitKey(0)
		}
	}
	return summary, nil
}
