package present

import (
	"image"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/LdDl/shapecount/mot"
	"github.com/LdDl/shapecount/shapes"
)

func pixel(t *testing.T, img gocv.Mat, row, col int) []uint8 {
	t.Helper()
	v := img.GetVecbAt(row, col)
	require.Len(t, v, 3)
	return []uint8{v[0], v[1], v[2]}
}

func nonZero(img gocv.Mat) int {
	dense := img.Clone()
	defer dense.Close()
	flat := dense.Reshape(1, 0)
	defer flat.Close()
	return gocv.CountNonZero(flat)
}

func TestComposePanelsGrid(t *testing.T) {
	panel := image.Pt(40, 30)
	color := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 60, 80, gocv.MatTypeCV8UC3)
	defer color.Close()
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 0, 0), 15, 20, gocv.MatTypeCV8UC1)
	defer gray.Close()
	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 30, 40, gocv.MatTypeCV8UC3)
	defer white.Close()

	combined, err := ComposePanels([]gocv.Mat{color, gray, white}, panel, 4)
	require.NoError(t, err)
	defer combined.Close()

	assert.Equal(t, 60, combined.Rows())
	assert.Equal(t, 80, combined.Cols())
	assert.Equal(t, 3, combined.Channels())

	assert.Equal(t, []uint8{10, 20, 30}, pixel(t, combined, 15, 20))
	assert.Equal(t, []uint8{200, 200, 200}, pixel(t, combined, 15, 60))
	assert.Equal(t, []uint8{255, 255, 255}, pixel(t, combined, 45, 20))
	assert.Equal(t, []uint8{0, 0, 0}, pixel(t, combined, 45, 60), "missing panel must be black")

	assert.Equal(t, 1, gray.Channels(), "inputs must not be modified")
	assert.Equal(t, 15, gray.Rows())
}

func TestComposePanelsLayouts(t *testing.T) {
	panel := image.Pt(32, 24)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	pair, err := ComposePanels([]gocv.Mat{frame}, panel, 2)
	require.NoError(t, err)
	defer pair.Close()
	assert.Equal(t, 24, pair.Rows())
	assert.Equal(t, 64, pair.Cols())

	single, err := ComposePanels([]gocv.Mat{frame, frame}, panel, 1)
	require.NoError(t, err)
	defer single.Close()
	assert.Equal(t, 24, single.Rows())
	assert.Equal(t, 32, single.Cols())
	assert.Equal(t, []uint8{1, 2, 3}, pixel(t, single, 10, 10))

	blank, err := ComposePanels(nil, panel, 1)
	require.NoError(t, err)
	defer blank.Close()
	assert.Equal(t, 0, nonZero(blank))
}

func TestComposePanelsBadSize(t *testing.T) {
	out, err := ComposePanels(nil, image.Pt(0, 10), 4)
	defer out.Close()
	assert.ErrorIs(t, err, ErrPanelSize)
}

func TestComposePanelsUnsupportedFrame(t *testing.T) {
	odd := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC2)
	defer odd.Close()
	ok := gocv.Zeros(10, 10, gocv.MatTypeCV8UC3)
	defer ok.Close()

	out, err := ComposePanels([]gocv.Mat{ok, odd}, image.Pt(8, 8), 2)
	defer out.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannels)
	assert.True(t, out.Empty())
}

func TestLabel(t *testing.T) {
	id := uuid.MustParse("1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed")
	assert.Equal(t, "SQUARE_1b9d6", Label(shapes.ClassSquare, id))
	assert.Equal(t, "CIRCLE_1b9d6", Label(shapes.ClassCircle, id))
	assert.True(t, strings.HasPrefix(Label(shapes.ClassCircle, uuid.New()), "CIRCLE_"))
}

func TestDrawTracks(t *testing.T) {
	img := gocv.Zeros(400, 400, gocv.MatTypeCV8UC3)
	defer img.Close()
	tracks := []mot.TrackView{
		{ID: uuid.New(), Box: mot.NewRect(50, 50, 100, 100), Trail: []mot.Point{{X: 10, Y: 300}, {X: 60, Y: 300}}},
	}
	DrawTracks(&img, shapes.ClassSquare, tracks)
	assert.Equal(t, []uint8{0, 255, 0}, pixel(t, img, 100, 50), "square box is green")
	assert.Equal(t, []uint8{0, 255, 0}, pixel(t, img, 300, 35), "trail is drawn")

	circles := []mot.TrackView{
		{ID: uuid.New(), Box: mot.NewRect(220, 220, 120, 120)},
	}
	DrawTracks(&img, shapes.ClassCircle, circles)
	assert.Equal(t, []uint8{0, 0, 255}, pixel(t, img, 280, 340), "circle box is red")
	assert.Equal(t, []uint8{0, 0, 0}, pixel(t, img, 280, 280), "box is not filled")
}

func TestDrawCountsAndOverlay(t *testing.T) {
	img := gocv.Zeros(200, 400, gocv.MatTypeCV8UC3)
	defer img.Close()
	DrawCounts(&img, 3, 4)
	top := img.Region(image.Rect(0, 0, 400, 40))
	bottom := img.Region(image.Rect(0, 70, 400, 110))
	assert.Greater(t, nonZero(top), 0)
	assert.Greater(t, nonZero(bottom), 0)
	top.Close()
	bottom.Close()

	plain := gocv.Zeros(100, 300, gocv.MatTypeCV8UC3)
	defer plain.Close()
	OverlayText(&plain, IdentityFields("Name", ""))
	assert.Greater(t, nonZero(plain), 0)
	assert.Equal(t, image.Pt(10, 60), IdentityFields("a", "b")[1].Origin)
}

func TestFinalFrame(t *testing.T) {
	frame := FinalFrame(5, 7, image.Pt(640, 480))
	defer frame.Close()
	assert.Equal(t, 480, frame.Rows())
	assert.Equal(t, 640, frame.Cols())
	assert.Equal(t, 3, frame.Channels())
	assert.Greater(t, nonZero(frame), 0)
	assert.Equal(t, []uint8{0, 0, 0}, pixel(t, frame, 5, 5))
}
