// Package present renders diagnostic panels, track annotations and the running tally
package present

import (
	"fmt"
	"image"
	"image/color"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/LdDl/shapecount/mot"
	"github.com/LdDl/shapecount/shapes"
)

var (
	ColorSquare = color.RGBA{0, 255, 0, 0}
	ColorCircle = color.RGBA{255, 0, 0, 0}
	ColorCount  = color.RGBA{0, 0, 255, 0}
	ColorText   = color.RGBA{255, 255, 255, 0}
)

var (
	// ErrPanelSize is returned for non-positive panel sizes
	ErrPanelSize = errors.New("panel size must be positive")
	// ErrChannels is returned for frames that are neither gray, BGR nor BGRA
	ErrChannels = errors.New("unsupported number of channels")
)

// ClassColor returns box and label color of the class
func ClassColor(class shapes.Class) color.RGBA {
	if class == shapes.ClassCircle {
		return ColorCircle
	}
	return ColorSquare
}

// Label returns display label of a track: class name and first 5 characters of identity
func Label(class shapes.Class, id uuid.UUID) string {
	return fmt.Sprintf("%s_%s", class, id.String()[:5])
}

// panelOf converts frame to 3 channels and resizes it to panel. Empty frame gives black panel.
func panelOf(frame gocv.Mat, panel image.Point) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.Zeros(panel.Y, panel.X, gocv.MatTypeCV8UC3), nil
	}
	bgr := gocv.NewMat()
	defer bgr.Close()
	var err error
	switch frame.Channels() {
	case 1:
		err = gocv.CvtColor(frame, &bgr, gocv.ColorGrayToBGR)
	case 3:
		err = frame.CopyTo(&bgr)
	case 4:
		err = gocv.CvtColor(frame, &bgr, gocv.ColorBGRAToBGR)
	default:
		return gocv.NewMat(), errors.Wrapf(ErrChannels, "%d channels", frame.Channels())
	}
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "Can't convert %d-channel frame to BGR", frame.Channels())
	}
	resized := gocv.NewMat()
	if err := gocv.Resize(bgr, &resized, panel, 0, 0, gocv.InterpolationLinear); err != nil {
		resized.Close()
		return gocv.NewMat(), errors.Wrapf(err, "Can't resize frame to panel %v", panel)
	}
	return resized, nil
}

// ComposePanels tiles frames into a single BGR image: 2x2 when required is 4, side by side when 2,
// otherwise the first frame alone. Each frame is resized to panel; missing frames are black.
// Input frames are not modified. Caller owns the returned Mat.
func ComposePanels(frames []gocv.Mat, panel image.Point, required int) (gocv.Mat, error) {
	if panel.X < 1 || panel.Y < 1 {
		return gocv.NewMat(), errors.Wrapf(ErrPanelSize, "panel %v", panel)
	}
	cols, rows := 1, 1
	switch required {
	case 4:
		cols, rows = 2, 2
	case 2:
		cols, rows = 2, 1
	}
	combined := gocv.Zeros(rows*panel.Y, cols*panel.X, gocv.MatTypeCV8UC3)
	for i := 0; i < cols*rows && i < len(frames); i++ {
		if err := placeTile(&combined, frames[i], panel, i, cols); err != nil {
			combined.Close()
			return gocv.NewMat(), errors.Wrapf(err, "panel %d", i)
		}
	}
	return combined, nil
}

func placeTile(combined *gocv.Mat, frame gocv.Mat, panel image.Point, i, cols int) error {
	tile, err := panelOf(frame, panel)
	if err != nil {
		return err
	}
	defer tile.Close()
	x := (i % cols) * panel.X
	y := (i / cols) * panel.Y
	roi := combined.Region(image.Rect(x, y, x+panel.X, y+panel.Y))
	defer roi.Close()
	return tile.CopyTo(&roi)
}

// DrawTracks draws box, label and center trail of every track, green for squares and red for circles
func DrawTracks(img *gocv.Mat, class shapes.Class, tracks []mot.TrackView) {
	c := ClassColor(class)
	for _, track := range tracks {
		for i := 1; i < len(track.Trail); i++ {
			gocv.Line(img, track.Trail[i-1].Image(), track.Trail[i].Image(), c, 1)
		}
		box := track.Box.Image()
		gocv.Rectangle(img, box, c, 2)
		gocv.PutText(img, Label(class, track.ID), image.Pt(box.Min.X, box.Min.Y-10), gocv.FontHersheySimplex, 0.9, c, 2)
	}
}

// DrawCounts writes running totals in the top-left corner
func DrawCounts(img *gocv.Mat, squares, circles int) {
	gocv.PutText(img, fmt.Sprintf("Squares: %d", squares), image.Pt(60, 30), gocv.FontHersheySimplex, 1.5, ColorCount, 4)
	gocv.PutText(img, fmt.Sprintf("Circles: %d", circles), image.Pt(60, 100), gocv.FontHersheySimplex, 1.5, ColorCount, 4)
}

// Field is a fixed-position text label
type Field struct {
	Text   string
	Origin image.Point
}

// IdentityFields returns operator name at (10,30) and student id at (10,60)
func IdentityFields(name, mssv string) []Field {
	return []Field{
		{Text: name, Origin: image.Pt(10, 30)},
		{Text: mssv, Origin: image.Pt(10, 60)},
	}
}

// OverlayText writes fields in white
func OverlayText(img *gocv.Mat, fields []Field) {
	for _, field := range fields {
		if field.Text == "" {
			continue
		}
		gocv.PutTextWithParams(img, field.Text, field.Origin, gocv.FontHersheySimplex, 1, ColorText, 2, gocv.LineAA, false)
	}
}

// FinalFrame renders centered totals on black background. Caller owns the returned Mat.
func FinalFrame(squares, circles int, size image.Point) gocv.Mat {
	frame := gocv.Zeros(size.Y, size.X, gocv.MatTypeCV8UC3)
	const (
		scale     = 1.5
		thickness = 3
	)
	lines := []struct {
		text string
		c    color.RGBA
		dy   int
	}{
		{fmt.Sprintf("Total Squares: %d", squares), ColorSquare, -30},
		{fmt.Sprintf("Total Circles: %d", circles), ColorCircle, 30},
	}
	for _, line := range lines {
		textSize := gocv.GetTextSize(line.text, gocv.FontHersheySimplex, scale, thickness)
		org := image.Pt((size.X-textSize.X)/2, size.Y/2+line.dy)
		gocv.PutTextWithParams(&frame, line.text, org, gocv.FontHersheySimplex, scale, line.c, thickness, gocv.LineAA, false)
	}
	return frame
}
