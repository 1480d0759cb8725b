package shapes

import (
	"image"
	"image/color"
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// thresholdFlags maps configuration names onto OpenCV numeric threshold flags.
// Adaptive names carry their own numeric values (0 and 1) and are combined as plain flags.
var thresholdFlags = map[string]gocv.ThresholdType{
	"THRESH_BINARY":              gocv.ThresholdBinary,
	"THRESH_BINARY_INV":          gocv.ThresholdBinaryInv,
	"THRESH_TRUNC":               gocv.ThresholdTrunc,
	"THRESH_TOZERO":              gocv.ThresholdToZero,
	"THRESH_TOZERO_INV":          gocv.ThresholdToZeroInv,
	"ADAPTIVE_THRESH_MEAN_C":     gocv.ThresholdType(gocv.AdaptiveThresholdMean),
	"ADAPTIVE_THRESH_GAUSSIAN_C": gocv.ThresholdType(gocv.AdaptiveThresholdGaussian),
	"THRESH_OTSU":                gocv.ThresholdOtsu,
}

// ThresholdModes returns every recognized threshold mode name, sorted
func ThresholdModes() []string {
	names := make([]string, 0, len(thresholdFlags))
	for name := range thresholdFlags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThresholdFlags combines configured modes with bitwise OR of their numeric values.
// Names are matched exactly. Unknown names contribute nothing and are returned so the caller can report them.
func ThresholdFlags(modes []string) (gocv.ThresholdType, []string) {
	var flags gocv.ThresholdType
	var unknown []string
	for _, mode := range modes {
		flag, ok := thresholdFlags[mode]
		if !ok {
			unknown = append(unknown, mode)
			continue
		}
		flags |= flag
	}
	return flags, unknown
}

// SegmentConfig is the segmentation part of the threshold configuration
type SegmentConfig struct {
	// Threshold mode names, combined into a single flag value
	Modes []string
	// Threshold value
	Low float32
	// Max value for binary modes
	High float32
	// Contours with area not greater than this are not drawn onto the cleaned mask
	ArenaSize float64
	// Erosion iterations
	IterationsOpen int
	// Dilation iterations
	IterationsClose int
	// Gray level of drawn outlines
	Color uint8
	// Outline thickness
	Thickness int
	// Rectangular structuring element size (width, height)
	KernelSize image.Point
}

// DefaultSegmentConfig returns default segmentation parameters
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		Modes:           []string{},
		Low:             127,
		High:            255,
		ArenaSize:       500,
		IterationsOpen:  2,
		IterationsClose: 6,
		Color:           255,
		Thickness:       1,
		KernelSize:      image.Pt(5, 5),
	}
}

// Segmentation is the output of Segment. Call Close when done.
type Segmentation struct {
	// Outlines of contours larger than arena size, 3-channel
	Cleaned gocv.Mat
	// Threshold mask before morphology
	Raw gocv.Mat
	// Every external contour of the closed mask, NOT filtered by area
	Contours gocv.PointsVector
	// Threshold value used by the binarizer (computed one for Otsu)
	Threshold float32
	// Number of contours drawn onto Cleaned
	Drawn int
}

// Close releases the underlying Mats and contours
func (s *Segmentation) Close() {
	s.Cleaned.Close()
	s.Raw.Close()
	s.Contours.Close()
}

// Segment binarizes src, erodes then dilates the mask, extracts external contours and
// draws the outlines of the large ones onto a blank mask.
func Segment(src gocv.Mat, cfg SegmentConfig) (*Segmentation, error) {
	if src.Empty() {
		return nil, ErrEmptyFrame
	}
	if cfg.KernelSize.X < 1 || cfg.KernelSize.Y < 1 {
		return nil, errors.Wrapf(ErrKernelSize, "structuring element %v", cfg.KernelSize)
	}
	flags, _ := ThresholdFlags(cfg.Modes)

	raw := gocv.NewMat()
	threshold := gocv.Threshold(src, &raw, cfg.Low, cfg.High, flags)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, cfg.KernelSize)
	defer kernel.Close()

	closed := raw.Clone()
	defer closed.Close()
	for i := 0; i < cfg.IterationsOpen; i++ {
		if err := gocv.Erode(closed, &closed, kernel); err != nil {
			raw.Close()
			return nil, errors.Wrapf(err, "Can't erode mask (iteration %d)", i+1)
		}
	}
	for i := 0; i < cfg.IterationsClose; i++ {
		if err := gocv.Dilate(closed, &closed, kernel); err != nil {
			raw.Close()
			return nil, errors.Wrapf(err, "Can't dilate mask (iteration %d)", i+1)
		}
	}

	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)

	outline := gocv.Zeros(closed.Rows(), closed.Cols(), gocv.MatTypeCV8UC1)
	defer outline.Close()
	stroke := color.RGBA{R: cfg.Color, G: cfg.Color, B: cfg.Color, A: 0}
	drawn := 0
	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) <= cfg.ArenaSize {
			continue
		}
		if err := gocv.DrawContours(&outline, contours, i, stroke, cfg.Thickness); err != nil {
			raw.Close()
			contours.Close()
			return nil, errors.Wrapf(err, "Can't draw contour %d", i)
		}
		drawn++
	}

	cleaned := gocv.NewMat()
	if err := gocv.CvtColor(outline, &cleaned, gocv.ColorGrayToBGR); err != nil {
		raw.Close()
		contours.Close()
		cleaned.Close()
		return nil, errors.Wrap(err, "Can't convert outline mask")
	}

	return &Segmentation{
		Cleaned:   cleaned,
		Raw:       raw,
		Contours:  contours,
		Threshold: threshold,
		Drawn:     drawn,
	}, nil
}
