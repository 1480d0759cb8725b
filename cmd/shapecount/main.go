package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/LdDl/shapecount/config"
	"github.com/LdDl/shapecount/ledger"
	"github.com/LdDl/shapecount/logger"
	"github.com/LdDl/shapecount/metrics"
	"github.com/LdDl/shapecount/pipeline"
	"github.com/LdDl/shapecount/shapes"
)

var (
	configPath      = flag.String("config", "config.yaml", "Path to YAML configuration (empty for defaults)")
	videoPath       = flag.String("video_path", "", "Input video path")
	name            = flag.String("name", "", "Name shown on output frames")
	mssv            = flag.String("mssv", "", "Student ID shown on output frames")
	lowThreshold    = flag.Float64("low_threshold", 0, "Threshold value")
	denoiseC        = flag.Int("denoise_c", 0, "Box filter kernel size")
	iterationsOpen  = flag.Int("iterations_open", 0, "Number of erosions")
	iterationsClose = flag.Int("iterations_close", 0, "Number of dilations")
	headless        = flag.Bool("headless", false, "Do not open a display window")
	metricsAddr     = flag.String("metrics", "", "Address of Prometheus /metrics endpoint, e.g. :9090")
)

const windowTitle = "Video Processing Result"

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.Log()); err != nil {
		logger.Log().Error("Processing failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := *configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Apply(config.Overrides{
		VideoPath:         *videoPath,
		Name:              *name,
		MSSV:              *mssv,
		LowThreshold:      *lowThreshold,
		DenoiseKernelSize: *denoiseC,
		IterationsOpen:    *iterationsOpen,
		IterationsClose:   *iterationsClose,
		Headless:          *headless,
		MetricsAddr:       *metricsAddr,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if _, unknown := shapes.ThresholdFlags(cfg.Threshold.Type); len(unknown) > 0 {
		log.Warn("Unknown threshold modes ignored", zap.Strings("modes", unknown), zap.Strings("known", shapes.ThresholdModes()))
	}

	log.Info("Opening video file", zap.String("path", cfg.LoadVideo.Path))
	capture, err := gocv.VideoCaptureFile(cfg.LoadVideo.Path)
	if err != nil {
		return errors.Wrapf(err, "Can't open video '%s'", cfg.LoadVideo.Path)
	}
	defer capture.Close()
	if !capture.IsOpened() {
		return errors.Errorf("Can't open video '%s'", cfg.LoadVideo.Path)
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps < 1 {
		fps = 30
	}
	panel := cfg.PanelSize()
	combined := cfg.CombinedSize()
	log.Info("Video properties",
		zap.Float64("fps", fps),
		zap.Int("panel_width", panel.X), zap.Int("panel_height", panel.Y),
		zap.Int("combined_width", combined.X), zap.Int("combined_height", combined.Y),
	)

	writer, err := gocv.VideoWriterFile(cfg.SaveFrame.OutPath, "mp4v", fps, combined.X, combined.Y, true)
	if err != nil {
		return errors.Wrapf(err, "Can't create video writer '%s'", cfg.SaveFrame.OutPath)
	}
	defer writer.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("Metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("Serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	trackers := []pipeline.ClassTracker{
		{Class: shapes.ClassSquare, Service: cfg.NewTracker(fps), Query: cfg.Query(shapes.ClassSquare)},
		{Class: shapes.ClassCircle, Service: cfg.NewTracker(fps), Query: cfg.Query(shapes.ClassCircle)},
	}
	settings := pipeline.Settings{
		DenoiseKernelSize: cfg.Blur.DenoiseKernelSize,
		Segment:           cfg.SegmentConfig(),
		Classifier:        cfg.ClassifierConfig(),
		Panel:             panel,
		Output:            combined,
		Name:              cfg.Name,
		MSSV:              cfg.MSSV,
	}
	processor := pipeline.NewProcessor(settings, trackers, ledger.NewTally[uuid.UUID](), pipeline.WithLogger(log), pipeline.WithMetrics(m))

	var display pipeline.Display
	if cfg.Display.Enabled {
		window := gocv.NewWindow(windowTitle)
		defer window.Close()
		window.ResizeWindow(combined.X, combined.Y)
		display = windowDisplay{window: window}
	}

	log.Info("Starting video processing loop")
	summary, err := pipeline.NewRunner(processor, cfg.FinalFrameRepeats).Run(ctx, capture, writer, display)
	if err != nil {
		return err
	}
	log.Info("Total Squares", zap.Int("count", summary.Counts.Squares))
	log.Info("Total Circles", zap.Int("count", summary.Counts.Circles))
	return nil
}

// windowDisplay adapts gocv window to pipeline.Display
type windowDisplay struct {
	window *gocv.Window
}

func (d windowDisplay) IMShow(img gocv.Mat) {
	d.window.IMShow(img)
}

func (d windowDisplay) WaitKey(delay int) int {
	return d.window.WaitKey(delay)
}
