// Package shapes turns grayscale frames into square and circle detections:
// box-filter denoising, threshold + morphology segmentation and geometric classification.
package shapes

import (
	"image"

	"github.com/LdDl/shapecount/mot"
	"github.com/LdDl/shapecount/shapes/class"
)

// Class is a kind of shape the classifier accepts
type Class = class.Class

const (
	ClassSquare = class.Square
	ClassCircle = class.Circle
)

// Classes lists every class in display order
var Classes = class.All

// Detection is one classified object's extent in the current frame.
// Box.Min is (x_min, y_min), Box.Max is (x_max, y_max).
type Detection struct {
	Box image.Rectangle
}

// Rect converts detection box to tracker's rectangle
func (d Detection) Rect() mot.Rectangle {
	return mot.NewRectFrom(d.Box)
}

// Rects converts detections to tracker input
func Rects(detections []Detection) []mot.Rectangle {
	rects := make([]mot.Rectangle, len(detections))
	for i := range detections {
		rects[i] = detections[i].Rect()
	}
	return rects
}
