// Package config reads the YAML configuration document of shapecount.
// Every key is optional; missing keys keep the values of Default().
package config

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/LdDl/shapecount/mot"
	"github.com/LdDl/shapecount/shapes"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	LoadVideo         LoadVideo `yaml:"load_video"`
	SaveFrame         SaveFrame `yaml:"save_frame"`
	ShowFrame         ShowFrame `yaml:"show_frame"`
	Name              string    `yaml:"name"`
	MSSV              string    `yaml:"mssv"`
	Blur              Blur      `yaml:"blur"`
	Threshold         Threshold `yaml:"threshold"`
	Counter           Counter   `yaml:"counter"`
	Tracker           Tracker   `yaml:"tracker"`
	Display           Display   `yaml:"display"`
	FinalFrameRepeats int       `yaml:"final_frame_repeats"`
	Log               Log       `yaml:"log"`
	Metrics           Metrics   `yaml:"metrics"`
}

type LoadVideo struct {
	Path string `yaml:"path"`
}

type SaveFrame struct {
	OutPath string `yaml:"out_path"`
}

// ShowFrame is the size of a single diagnostic panel
type ShowFrame struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Blur struct {
	DenoiseKernelSize int `yaml:"denoise_kernel_size"`
}

type Threshold struct {
	Type            []string `yaml:"type"`
	Low             float64  `yaml:"low"`
	High            float64  `yaml:"high"`
	ArenaSize       float64  `yaml:"arena_size"`
	IterationsOpen  int      `yaml:"iterations_open"`
	IterationsClose int      `yaml:"iterations_close"`
	Color           int      `yaml:"color"`
	Thickness       int      `yaml:"thickness"`
	// Structuring element as [rows, cols], i.e. [height, width]
	KernelSize      []int    `yaml:"kernel_size"`
}

type Counter struct {
	Square        float64 `yaml:"square"`
	Circle        float64 `yaml:"circle"`
	MinBoxSize    int     `yaml:"min_box_size"`
	ApproxEpsilon float64 `yaml:"approx_epsilon"`
	MinVertices   int     `yaml:"min_vertices"`
	MaxVertices   int     `yaml:"max_vertices"`
}

type Tracker struct {
	Model                       string  `yaml:"model"`
	MinStepsAlive               int     `yaml:"min_steps_alive"`
	MaxStaleness                int     `yaml:"max_staleness"`
	MaxStalenessToPositiveRatio float64 `yaml:"max_staleness_to_positive_ratio"`
	AssociationMaxStaleness     int     `yaml:"association_max_staleness"`
	MinIoU                      float64 `yaml:"min_iou"`
	Matching                    string  `yaml:"matching"`
	SquareMinStepsAlive         int     `yaml:"square_min_steps_alive"`
	CircleMinStepsAlive         int     `yaml:"circle_min_steps_alive"`
	QueryMaxStaleness           int     `yaml:"query_max_staleness"`
}

// Display bounds the composed output frame: min(2*panel, max - margin) per axis
type Display struct {
	Enabled   bool `yaml:"enabled"`
	MaxWidth  int  `yaml:"max_width"`
	MaxHeight int  `yaml:"max_height"`
	Margin    int  `yaml:"margin"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

type Metrics struct {
	// Empty address disables the HTTP endpoint
	Addr string `yaml:"addr"`
}

// Default returns configuration with every documented default
func Default() *Config {
	return &Config{
		SaveFrame: SaveFrame{OutPath: "output.mp4"},
		ShowFrame: ShowFrame{Width: 640, Height: 480},
		Name:      "Name",
		MSSV:      "MSSV",
		Blur:      Blur{DenoiseKernelSize: 31},
		Threshold: Threshold{
			Type:            []string{},
			Low:             127,
			High:            255,
			ArenaSize:       500,
			IterationsOpen:  2,
			IterationsClose: 6,
			Color:           255,
			Thickness:       1,
			KernelSize:      []int{5, 5},
		},
		Counter: Counter{
			Square:        0.86,
			Circle:        0.71,
			MinBoxSize:    235,
			ApproxEpsilon: 0.04,
			MinVertices:   4,
			MaxVertices:   8,
		},
		Tracker: Tracker{
			Model:                       mot.ModelCenterStaticBox.String(),
			MinStepsAlive:               5,
			MaxStaleness:                15,
			MaxStalenessToPositiveRatio: 3.0,
			AssociationMaxStaleness:     12,
			MinIoU:                      0.1,
			Matching:                    mot.MatchingAlgorithmHungarian.String(),
			SquareMinStepsAlive:         8,
			CircleMinStepsAlive:         4,
			QueryMaxStaleness:           15,
		},
		Display: Display{
			Enabled:   true,
			MaxWidth:  1920,
			MaxHeight: 1080,
			Margin:    100,
		},
		FinalFrameRepeats: 30,
		Log: Log{
			Level: "info",
			File:  "process_log.log",
		},
	}
}

// Load reads YAML document at path over the defaults and validates the result.
// Empty path means defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read configuration file '%s'", path)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "Can't parse configuration file '%s'", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML document into cfg. Keys absent from the document keep their values.
func Parse(data []byte, cfg *Config) error {
	return yaml.Unmarshal(data, cfg)
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate checks value ranges and names
func (cfg *Config) Validate() error {
	if cfg.Blur.DenoiseKernelSize < 1 {
		return invalid("blur.denoise_kernel_size must be >= 1, got %d", cfg.Blur.DenoiseKernelSize)
	}
	th := cfg.Threshold
	if len(th.KernelSize) != 2 || th.KernelSize[0] < 1 || th.KernelSize[1] < 1 {
		return invalid("threshold.kernel_size must be two positive integers, got %v", th.KernelSize)
	}
	if th.IterationsOpen < 0 || th.IterationsClose < 0 {
		return invalid("threshold iterations must be non-negative, got open=%d close=%d", th.IterationsOpen, th.IterationsClose)
	}
	if th.Color < 0 || th.Color > 255 {
		return invalid("threshold.color must be in [0, 255], got %d", th.Color)
	}
	if th.Thickness < 1 {
		return invalid("threshold.thickness must be >= 1, got %d", th.Thickness)
	}
	if th.ArenaSize < 0 {
		return invalid("threshold.arena_size must be non-negative, got %v", th.ArenaSize)
	}

	ct := cfg.Counter
	if ct.Square <= 0 || ct.Square > 1 {
		return invalid("counter.square must be in (0, 1], got %v", ct.Square)
	}
	if ct.Circle <= 0 || ct.Circle > 1 {
		return invalid("counter.circle must be in (0, 1], got %v", ct.Circle)
	}
	if ct.MinBoxSize < 0 {
		return invalid("counter.min_box_size must be non-negative, got %d", ct.MinBoxSize)
	}
	if ct.ApproxEpsilon <= 0 {
		return invalid("counter.approx_epsilon must be positive, got %v", ct.ApproxEpsilon)
	}
	if ct.MinVertices < 3 || ct.MaxVertices < ct.MinVertices {
		return invalid("counter vertex range [%d, %d] is not valid", ct.MinVertices, ct.MaxVertices)
	}

	tr := cfg.Tracker
	if _, err := mot.ParseModelPreset(tr.Model); err != nil {
		return invalid("tracker.model: %s", err.Error())
	}
	if _, err := mot.ParseMatchingAlgorithm(tr.Matching); err != nil {
		return invalid("tracker.matching: %s", err.Error())
	}
	if tr.MinStepsAlive < 0 || tr.SquareMinStepsAlive < 0 || tr.CircleMinStepsAlive < 0 {
		return invalid("tracker min_steps_alive values must be non-negative")
	}
	if tr.MaxStaleness < 1 || tr.QueryMaxStaleness < 1 || tr.AssociationMaxStaleness < 1 {
		return invalid("tracker staleness limits must be positive")
	}
	if tr.MinIoU < 0 || tr.MinIoU > 1 {
		return invalid("tracker.min_iou must be in [0, 1], got %v", tr.MinIoU)
	}
	if tr.MaxStalenessToPositiveRatio < 0 {
		return invalid("tracker.max_staleness_to_positive_ratio must be non-negative, got %v", tr.MaxStalenessToPositiveRatio)
	}

	if cfg.ShowFrame.Width < 1 || cfg.ShowFrame.Height < 1 {
		return invalid("show_frame size must be positive, got %dx%d", cfg.ShowFrame.Width, cfg.ShowFrame.Height)
	}
	if cfg.Display.MaxWidth-cfg.Display.Margin < 1 || cfg.Display.MaxHeight-cfg.Display.Margin < 1 {
		return invalid("display bounds %dx%d leave no room after margin %d", cfg.Display.MaxWidth, cfg.Display.MaxHeight, cfg.Display.Margin)
	}
	if cfg.FinalFrameRepeats < 0 {
		return invalid("final_frame_repeats must be non-negative, got %d", cfg.FinalFrameRepeats)
	}
	if cfg.SaveFrame.OutPath == "" {
		return invalid("save_frame.out_path must not be empty")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return invalid("log.level: %s", err.Error())
	}
	return nil
}

// Overrides are command-line values. Zero value of a field means "not given".
type Overrides struct {
	VideoPath         string
	Name              string
	MSSV              string
	LowThreshold      float64
	DenoiseKernelSize int
	IterationsOpen    int
	IterationsClose   int
	Headless          bool
	MetricsAddr       string
}

// Apply copies given overrides into the configuration. Call Validate afterwards.
func (cfg *Config) Apply(o Overrides) {
	if o.VideoPath != "" {
		cfg.LoadVideo.Path = o.VideoPath
	}
	if o.Name != "" {
		cfg.Name = o.Name
	}
	if o.MSSV != "" {
		cfg.MSSV = o.MSSV
	}
	if o.LowThreshold != 0 {
		cfg.Threshold.Low = o.LowThreshold
	}
	if o.DenoiseKernelSize != 0 {
		cfg.Blur.DenoiseKernelSize = o.DenoiseKernelSize
	}
	if o.IterationsOpen != 0 {
		cfg.Threshold.IterationsOpen = o.IterationsOpen
	}
	if o.IterationsClose != 0 {
		cfg.Threshold.IterationsClose = o.IterationsClose
	}
	if o.Headless {
		cfg.Display.Enabled = false
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
}

// PanelSize returns size of a single diagnostic panel
func (cfg *Config) PanelSize() image.Point {
	return image.Pt(cfg.ShowFrame.Width, cfg.ShowFrame.Height)
}

// CombinedSize returns size of the composed 2x2 output frame
func (cfg *Config) CombinedSize() image.Point {
	w := 2 * cfg.ShowFrame.Width
	if limit := cfg.Display.MaxWidth - cfg.Display.Margin; limit < w {
		w = limit
	}
	h := 2 * cfg.ShowFrame.Height
	if limit := cfg.Display.MaxHeight - cfg.Display.Margin; limit < h {
		h = limit
	}
	return image.Pt(w, h)
}

// SegmentConfig converts threshold section to segmenter parameters
func (cfg *Config) SegmentConfig() shapes.SegmentConfig {
	th := cfg.Threshold
	modes := make([]string, len(th.Type))
	copy(modes, th.Type)
	return shapes.SegmentConfig{
		Modes:           modes,
		Low:             float32(th.Low),
		High:            float32(th.High),
		ArenaSize:       th.ArenaSize,
		IterationsOpen:  th.IterationsOpen,
		IterationsClose: th.IterationsClose,
		Color:           uint8(th.Color),
		Thickness:       th.Thickness,
		KernelSize:      image.Pt(th.KernelSize[1], th.KernelSize[0]),
	}
}

// ClassifierConfig converts counter section to classifier thresholds
func (cfg *Config) ClassifierConfig() shapes.ClassifierConfig {
	ct := cfg.Counter
	return shapes.ClassifierConfig{
		Square:        ct.Square,
		Circle:        ct.Circle,
		MinBoxSize:    ct.MinBoxSize,
		ApproxEpsilon: ct.ApproxEpsilon,
		MinVertices:   ct.MinVertices,
		MaxVertices:   ct.MaxVertices,
	}
}

// NewTracker builds a tracker for one class. Config must be validated.
func (cfg *Config) NewTracker(fps float64) *mot.MultiObjectTracker {
	tr := cfg.Tracker
	dt := 1.0
	if fps > 0 {
		dt = 1.0 / fps
	}
	model, _ := mot.ParseModelPreset(tr.Model)
	algorithm, _ := mot.ParseMatchingAlgorithm(tr.Matching)
	active := mot.ActiveQuery{
		MinStepsAlive:               tr.MinStepsAlive,
		MaxStaleness:                tr.MaxStaleness,
		MaxStalenessToPositiveRatio: tr.MaxStalenessToPositiveRatio,
	}
	assoc := mot.AssociationConfig{
		MaxStaleness: tr.AssociationMaxStaleness,
		MinIoU:       tr.MinIoU,
		Algorithm:    algorithm,
	}
	return mot.NewMultiObjectTracker(dt, model, active, assoc)
}

// Query returns query-time active track thresholds of the class
func (cfg *Config) Query(class shapes.Class) mot.ActiveQuery {
	tr := cfg.Tracker
	q := mot.ActiveQuery{
		MinStepsAlive:               tr.CircleMinStepsAlive,
		MaxStaleness:                tr.QueryMaxStaleness,
		MaxStalenessToPositiveRatio: tr.MaxStalenessToPositiveRatio,
	}
	if class == shapes.ClassSquare {
		q.MinStepsAlive = tr.SquareMinStepsAlive
	}
	return q
}
