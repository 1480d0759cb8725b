package shapes

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// squarePoints returns closed contour of axis-aligned rectangle whose bounding box is w x h
func squarePoints(x, y, w, h int) []image.Point {
	return []image.Point{
		image.Pt(x, y),
		image.Pt(x+w-1, y),
		image.Pt(x+w-1, y+h-1),
		image.Pt(x, y+h-1),
	}
}

// circlePoints returns polygonal contour of a circle
func circlePoints(cx, cy, radius, n int) []image.Point {
	points := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		points = append(points, image.Pt(
			cx+int(math.Round(float64(radius)*math.Cos(angle))),
			cy+int(math.Round(float64(radius)*math.Sin(angle))),
		))
	}
	return points
}

func gradientMat(rows, cols int) gocv.Mat {
	mat := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			mat.SetUCharAt(y, x, uint8((x*3+y)%256))
		}
	}
	return mat
}

func TestDenoise(t *testing.T) {
	src := gocv.Zeros(11, 11, gocv.MatTypeCV8UC1)
	defer src.Close()
	src.SetUCharAt(5, 5, 90)

	out, err := Denoise(src, 3)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, src.Rows(), out.Rows())
	assert.Equal(t, src.Cols(), out.Cols())
	assert.Equal(t, src.Type(), out.Type())
	// 90 spread evenly over the 3x3 neighbourhood
	assert.Equal(t, uint8(10), out.GetUCharAt(5, 5))
	assert.Equal(t, uint8(10), out.GetUCharAt(4, 6))
	assert.Equal(t, uint8(0), out.GetUCharAt(5, 7))
}

func TestDenoiseIdentityKernel(t *testing.T) {
	src := gradientMat(20, 20)
	defer src.Close()

	out, err := Denoise(src, 1)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, src.ToBytes(), out.ToBytes())
}

func TestDenoiseUniformPreservesBrightness(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(77, 0, 0, 0), 40, 40, gocv.MatTypeCV8UC1)
	defer src.Close()

	out, err := Denoise(src, 31)
	require.NoError(t, err)
	defer out.Close()
	for _, p := range []image.Point{{0, 0}, {39, 39}, {20, 20}, {0, 39}} {
		assert.Equal(t, uint8(77), out.GetUCharAt(p.Y, p.X), "pixel %v", p)
	}
}

func TestDenoiseErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	out, err := Denoise(empty, 3)
	out.Close()
	assert.True(t, errors.Is(err, ErrEmptyFrame))

	src := gocv.Zeros(5, 5, gocv.MatTypeCV8UC1)
	defer src.Close()
	out, err = Denoise(src, 0)
	out.Close()
	assert.True(t, errors.Is(err, ErrKernelSize))
}

func TestDenoiseUnsupportedDepth(t *testing.T) {
	// Box filter has no signed 8-bit implementation
	src := gocv.Zeros(8, 8, gocv.MatTypeCV8SC1)
	defer src.Close()
	out, err := Denoise(src, 3)
	defer out.Close()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyFrame))
	assert.False(t, errors.Is(err, ErrKernelSize))
	assert.True(t, out.Empty())
}

func TestThresholdFlags(t *testing.T) {
	flags, unknown := ThresholdFlags([]string{"THRESH_BINARY_INV", "THRESH_OTSU"})
	assert.Equal(t, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu, flags)
	assert.Empty(t, unknown)

	// Names are case and whitespace sensitive
	flags, unknown = ThresholdFlags([]string{"THRESH_BINARY_INV", "thresh_otsu", " THRESH_TRUNC"})
	assert.Equal(t, gocv.ThresholdBinaryInv, flags)
	assert.Equal(t, []string{"thresh_otsu", " THRESH_TRUNC"}, unknown)

	flags, unknown = ThresholdFlags([]string{"THRESH_TOZERO", "THRESH_MAGIC"})
	assert.Equal(t, gocv.ThresholdToZero, flags)
	assert.Equal(t, []string{"THRESH_MAGIC"}, unknown)

	flags, _ = ThresholdFlags(nil)
	assert.Equal(t, gocv.ThresholdBinary, flags)

	// Adaptive names are plain numeric flags
	flags, _ = ThresholdFlags([]string{"ADAPTIVE_THRESH_GAUSSIAN_C"})
	assert.Equal(t, gocv.ThresholdBinaryInv, flags)
	assert.Len(t, ThresholdModes(), 8)
}

func TestThresholdModeComposition(t *testing.T) {
	src := gradientMat(64, 64)
	defer src.Close()

	cfg := DefaultSegmentConfig()
	cfg.Modes = []string{"THRESH_BINARY", "THRESH_OTSU"}
	cfg.Low = 100
	cfg.High = 255
	seg, err := Segment(src, cfg)
	require.NoError(t, err)
	defer seg.Close()

	expected := gocv.NewMat()
	defer expected.Close()
	otsu := gocv.Threshold(src, &expected, 100, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	assert.Equal(t, expected.ToBytes(), seg.Raw.ToBytes())
	assert.Equal(t, otsu, seg.Threshold)
}

func TestSegment(t *testing.T) {
	src := gocv.Zeros(600, 600, gocv.MatTypeCV8UC1)
	defer src.Close()
	gocv.Rectangle(&src, image.Rect(100, 100, 400, 400), white, -1)
	// Speckle removed by erosion
	gocv.Rectangle(&src, image.Rect(500, 500, 503, 503), white, -1)

	cfg := DefaultSegmentConfig()
	cfg.Modes = []string{"THRESH_BINARY"}
	seg, err := Segment(src, cfg)
	require.NoError(t, err)
	defer seg.Close()

	assert.Equal(t, 1, seg.Contours.Size())
	assert.Equal(t, 1, seg.Drawn)
	assert.Equal(t, 3, seg.Cleaned.Channels())
	assert.Equal(t, 1, seg.Raw.Channels())
	// Speckle is still in the raw mask
	assert.Equal(t, uint8(255), seg.Raw.GetUCharAt(501, 501))
	// Outline only: center of the square is not filled
	cleanedGray := gocv.NewMat()
	defer cleanedGray.Close()
	gocv.CvtColor(seg.Cleaned, &cleanedGray, gocv.ColorBGRToGray)
	assert.Equal(t, uint8(0), cleanedGray.GetUCharAt(250, 250))
	assert.Greater(t, gocv.CountNonZero(cleanedGray), 0)
}

func TestSegmentContoursAreNotFilteredByArea(t *testing.T) {
	src := gocv.Zeros(200, 200, gocv.MatTypeCV8UC1)
	defer src.Close()
	gocv.Rectangle(&src, image.Rect(50, 50, 150, 150), white, -1)

	cfg := DefaultSegmentConfig()
	cfg.ArenaSize = 1e9
	seg, err := Segment(src, cfg)
	require.NoError(t, err)
	defer seg.Close()

	assert.Equal(t, 1, seg.Contours.Size())
	assert.Equal(t, 0, seg.Drawn)
	cleanedGray := gocv.NewMat()
	defer cleanedGray.Close()
	gocv.CvtColor(seg.Cleaned, &cleanedGray, gocv.ColorBGRToGray)
	assert.Equal(t, 0, gocv.CountNonZero(cleanedGray))
}

func TestSegmentNoContours(t *testing.T) {
	src := gocv.Zeros(100, 100, gocv.MatTypeCV8UC1)
	defer src.Close()

	seg, err := Segment(src, DefaultSegmentConfig())
	require.NoError(t, err)
	defer seg.Close()
	assert.Equal(t, 0, seg.Contours.Size())
}

func TestSegmentEmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Segment(empty, DefaultSegmentConfig())
	assert.True(t, errors.Is(err, ErrEmptyFrame))
}

func TestClassifySquare(t *testing.T) {
	contours := gocv.NewPointsVectorFromPoints([][]image.Point{squarePoints(10, 10, 300, 300)})
	defer contours.Close()

	squares, circles := Classify(contours, DefaultClassifierConfig())
	require.Len(t, squares, 1)
	assert.Empty(t, circles)
	assert.Equal(t, image.Rect(10, 10, 310, 310), squares[0].Box)
}

func TestClassifyCircle(t *testing.T) {
	contours := gocv.NewPointsVectorFromPoints([][]image.Point{circlePoints(200, 200, 150, 120)})
	defer contours.Close()

	squares, circles := Classify(contours, DefaultClassifierConfig())
	assert.Empty(t, squares)
	require.Len(t, circles, 1)
	assert.Equal(t, 301, circles[0].Box.Dx())
}

func TestClassifySizeGate(t *testing.T) {
	cfg := DefaultClassifierConfig()

	boundary := gocv.NewPointVectorFromPoints(squarePoints(0, 0, 235, 300))
	defer boundary.Close()
	_, _, m, ok := ClassifyContour(boundary, cfg)
	assert.False(t, ok)
	assert.Equal(t, 235, m.Box.Dx())

	eligible := gocv.NewPointVectorFromPoints(squarePoints(0, 0, 236, 300))
	defer eligible.Close()
	class, detection, m, ok := ClassifyContour(eligible, cfg)
	require.True(t, ok)
	assert.Equal(t, ClassSquare, class)
	assert.Equal(t, 236, detection.Box.Dx())
	assert.Equal(t, 4, m.Vertices)

	tall := gocv.NewPointVectorFromPoints(squarePoints(0, 0, 300, 235))
	defer tall.Close()
	_, _, _, ok = ClassifyContour(tall, cfg)
	assert.False(t, ok)
}

func TestClassifyIdempotent(t *testing.T) {
	contour := gocv.NewPointVectorFromPoints(circlePoints(300, 300, 200, 90))
	defer contour.Close()
	cfg := DefaultClassifierConfig()

	class1, det1, m1, ok1 := ClassifyContour(contour, cfg)
	class2, det2, m2, ok2 := ClassifyContour(contour, cfg)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, class1, class2)
	assert.Equal(t, det1, det2)
	assert.Equal(t, m1, m2)
}

func TestClassifyNeither(t *testing.T) {
	// Thin L-shape: poor fill ratio and poor circularity
	points := []image.Point{
		{0, 0}, {40, 0}, {40, 260}, {300, 260}, {300, 300}, {0, 300},
	}
	contour := gocv.NewPointVectorFromPoints(points)
	defer contour.Close()
	_, _, m, ok := ClassifyContour(contour, DefaultClassifierConfig())
	assert.False(t, ok)
	assert.Less(t, m.FillRatio, 0.86)
	assert.Less(t, m.Circularity, 0.71)
}

func TestCircularity(t *testing.T) {
	assert.Equal(t, 0.0, Circularity(100, 0))
	assert.Equal(t, 0.0, Circularity(0, 0))
	r := 10.0
	assert.InDelta(t, 1.0, Circularity(math.Pi*r*r, 2*math.Pi*r), 1e-9)
	assert.GreaterOrEqual(t, Circularity(0, 5), 0.0)
}

func TestDecidePriority(t *testing.T) {
	cfg := DefaultClassifierConfig()
	// Both criteria hold: square wins
	class, ok := Decide(Measures{FillRatio: 0.9, Vertices: 6, Circularity: 0.9}, cfg)
	assert.True(t, ok)
	assert.Equal(t, ClassSquare, class)

	// Too many vertices for a square
	class, ok = Decide(Measures{FillRatio: 0.9, Vertices: 9, Circularity: 0.9}, cfg)
	assert.True(t, ok)
	assert.Equal(t, ClassCircle, class)

	// Strict thresholds
	_, ok = Decide(Measures{FillRatio: 0.86, Vertices: 4, Circularity: 0.71}, cfg)
	assert.False(t, ok)
}

func TestRects(t *testing.T) {
	rects := Rects([]Detection{{Box: image.Rect(10, 20, 310, 330)}})
	require.Len(t, rects, 1)
	assert.Equal(t, 10.0, rects[0].X)
	assert.Equal(t, 20.0, rects[0].Y)
	assert.Equal(t, 300.0, rects[0].Width)
	assert.Equal(t, 310.0, rects[0].Height)
	assert.Equal(t, "SQUARE", ClassSquare.String())
	assert.Equal(t, "CIRCLE", ClassCircle.String())
}
