package pipeline

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/LdDl/shapecount/ledger"
	"github.com/LdDl/shapecount/metrics"
	"github.com/LdDl/shapecount/mot"
	"github.com/LdDl/shapecount/present"
	"github.com/LdDl/shapecount/shapes"
)

// Settings are per-run processing parameters
type Settings struct {
	DenoiseKernelSize int
	Segment           shapes.SegmentConfig
	Classifier        shapes.ClassifierConfig
	// Size of a single diagnostic panel
	Panel image.Point
	// Size of the composed output frame
	Output image.Point
	Name   string
	MSSV   string
}

// FrameResult is the outcome of a single frame. Err is *StageError when the frame was skipped.
type FrameResult struct {
	Index int
	// Composed 2x2 view resized to output size. Empty when Err is not nil.
	Output     gocv.Mat
	Squares    []shapes.Detection
	Circles    []shapes.Detection
	Tracks     map[shapes.Class][]mot.TrackView
	NewObjects int
	Counts     ledger.Counts
	Duration   time.Duration
	Err        error
}

// Close releases output frame
func (res *FrameResult) Close() {
	res.Output.Close()
}

// Processor turns frames into annotated views while keeping per-class trackers and the tally.
// It must be driven by a single goroutine, frames in order.
type Processor struct {
	settings Settings
	trackers []ClassTracker
	tally    *ledger.Tally[uuid.UUID]
	logger   *zap.Logger
	metrics  *metrics.Metrics
	frames   int
}

// Option configures Processor
type Option func(*Processor)

// WithLogger sets logger. Default is no-op.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets metrics recorder
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates processor. Every class in trackers gets its own identity space in tally.
func NewProcessor(settings Settings, trackers []ClassTracker, tally *ledger.Tally[uuid.UUID], opts ...Option) *Processor {
	p := &Processor{
		settings: settings,
		trackers: trackers,
		tally:    tally,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Counts returns current tally
func (p *Processor) Counts() ledger.Counts {
	return p.tally.Snapshot()
}

// Logger returns processor's logger
func (p *Processor) Logger() *zap.Logger {
	return p.logger
}

// Process runs every stage on frame. Input frame is not modified.
// The tally is committed after the output frame is ready, so a skipped frame never changes counts.
// Trackers are stepped in order and stepping stops at the first failure.
func (p *Processor) Process(frame gocv.Mat) (res FrameResult) {
	p.frames++
	res.Index = p.frames
	start := time.Now()
	stage := StageDenoise
	output := gocv.NewMat()

	defer func() {
		if r := recover(); r != nil {
			res.Err = &StageError{Stage: stage, Frame: res.Index, Err: errors.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			output.Close()
			res.Output = gocv.NewMat()
			var stageErr *StageError
			if errors.As(res.Err, &stageErr) {
				p.metrics.FrameFailed(string(stageErr.Stage))
			}
			return
		}
		res.Output = output
		p.metrics.FrameProcessed(res.Duration)
	}()

	fail := func(err error) FrameResult {
		res.Err = &StageError{Stage: stage, Frame: res.Index, Err: err}
		return res
	}

	// Denoise
	if frame.Empty() {
		return fail(shapes.ErrEmptyFrame)
	}
	gray := gocv.NewMat()
	defer gray.Close()
	var grayErr error
	switch frame.Channels() {
	case 1:
		grayErr = frame.CopyTo(&gray)
	case 4:
		grayErr = gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		grayErr = gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	if grayErr != nil {
		return fail(errors.Wrap(grayErr, "Can't convert frame to grayscale"))
	}
	blurred, err := shapes.Denoise(gray, p.settings.DenoiseKernelSize)
	defer blurred.Close()
	if err != nil {
		return fail(err)
	}

	// Segment
	stage = StageSegment
	seg, err := shapes.Segment(blurred, p.settings.Segment)
	if err != nil {
		return fail(err)
	}
	defer seg.Close()
	p.logger.Debug("Segmented",
		zap.Int("frame", res.Index),
		zap.Int("contours", seg.Contours.Size()),
		zap.Int("drawn", seg.Drawn),
		zap.Float32("threshold", seg.Threshold),
	)

	// Classify
	stage = StageClassify
	res.Squares, res.Circles = shapes.Classify(seg.Contours, p.settings.Classifier)
	p.metrics.Detections(shapes.ClassSquare.String(), len(res.Squares))
	p.metrics.Detections(shapes.ClassCircle.String(), len(res.Circles))

	// Track
	stage = StageTrack
	res.Tracks = make(map[shapes.Class][]mot.TrackView, len(p.trackers))
	for _, ct := range p.trackers {
		views, err := StepAndQuery(ct.Service, p.detectionsOf(ct.Class, res), ct.Query)
		if err != nil {
			return fail(errors.Wrapf(err, "Can't step %s tracker", ct.Class))
		}
		res.Tracks[ct.Class] = views
	}
	pending := p.pendingObjects(res.Tracks)
	provisional := p.tally.Snapshot()
	for _, obj := range pending {
		switch obj.class {
		case shapes.ClassSquare:
			provisional.Squares++
		case shapes.ClassCircle:
			provisional.Circles++
		}
	}

	// Present
	stage = StagePresent
	processed := seg.Cleaned.Clone()
	defer processed.Close()
	for _, ct := range p.trackers {
		present.DrawTracks(&processed, ct.Class, res.Tracks[ct.Class])
	}
	present.DrawCounts(&processed, provisional.Squares, provisional.Circles)

	combined, err := present.ComposePanels([]gocv.Mat{frame, blurred, seg.Raw, processed}, p.settings.Panel, 4)
	if err != nil {
		return fail(err)
	}
	defer combined.Close()
	present.OverlayText(&combined, present.IdentityFields(p.settings.Name, p.settings.MSSV))
	if p.settings.Output.X > 0 && p.settings.Output.Y > 0 {
		err = gocv.Resize(combined, &output, p.settings.Output, 0, 0, gocv.InterpolationLinear)
	} else {
		err = combined.CopyTo(&output)
	}
	if err != nil {
		return fail(errors.Wrap(err, "Can't resize output frame"))
	}

	// Commit
	for _, obj := range pending {
		if !p.tally.RecordIfNew(obj.class, obj.track.ID) {
			continue
		}
		res.NewObjects++
		box := obj.track.Box.Image()
		p.logger.Info("New object",
			zap.Int("frame", res.Index),
			zap.String("label", present.Label(obj.class, obj.track.ID)),
			zap.Int("x1", box.Min.X), zap.Int("y1", box.Min.Y),
			zap.Int("x2", box.Max.X), zap.Int("y2", box.Max.Y),
		)
	}
	res.Counts = p.tally.Snapshot()
	p.metrics.Counted(shapes.ClassSquare.String(), res.Counts.Squares)
	p.metrics.Counted(shapes.ClassCircle.String(), res.Counts.Circles)

	p.logger.Debug("Frame processed",
		zap.Int("frame", res.Index),
		zap.Int("squares", len(res.Squares)),
		zap.Int("circles", len(res.Circles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

type pendingObject struct {
	class shapes.Class
	track mot.TrackView
}

// pendingObjects returns reported tracks whose identities are not counted yet, in tracker order
func (p *Processor) pendingObjects(tracks map[shapes.Class][]mot.TrackView) []pendingObject {
	var pending []pendingObject
	for _, ct := range p.trackers {
		seen := make(map[uuid.UUID]struct{})
		for _, track := range tracks[ct.Class] {
			if _, ok := seen[track.ID]; ok || p.tally.Contains(ct.Class, track.ID) {
				continue
			}
			seen[track.ID] = struct{}{}
			pending = append(pending, pendingObject{class: ct.Class, track: track})
		}
	}
	return pending
}

func (p *Processor) detectionsOf(class shapes.Class, res FrameResult) []shapes.Detection {
	switch class {
	case shapes.ClassSquare:
		return res.Squares
	case shapes.ClassCircle:
		return res.Circles
	default:
		return nil
	}
}

// FinalFrame renders totals with identity fields at output size. Caller owns the returned Mat.
func (p *Processor) FinalFrame() gocv.Mat {
	size := p.settings.Output
	if size.X < 1 || size.Y < 1 {
		size = p.settings.Panel
	}
	counts := p.Counts()
	frame := present.FinalFrame(counts.Squares, counts.Circles, size)
	present.OverlayText(&frame, present.IdentityFields(p.settings.Name, p.settings.MSSV))
	return frame
}
