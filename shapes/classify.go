package shapes

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ClassifierConfig holds geometric thresholds of the shape classifier
type ClassifierConfig struct {
	// Minimum fill ratio (contour area / bounding box area) of a square, strict
	Square float64
	// Minimum circularity (4*pi*area / perimeter^2) of a circle, strict
	Circle float64
	// Both bounding box sides must be strictly greater than this
	MinBoxSize int
	// Polygon approximation tolerance as a fraction of the perimeter
	ApproxEpsilon float64
	// Accepted vertex count range of approximated square polygon, inclusive
	MinVertices int
	MaxVertices int
}

// DefaultClassifierConfig returns default classifier thresholds
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Square:        0.86,
		Circle:        0.71,
		MinBoxSize:    235,
		ApproxEpsilon: 0.04,
		MinVertices:   4,
		MaxVertices:   8,
	}
}

// Measures are geometric properties of a single contour
type Measures struct {
	Box         image.Rectangle
	Area        float64
	Perimeter   float64
	FillRatio   float64
	Circularity float64
	Vertices    int
}

// Circularity returns 4*pi*area / perimeter^2 (1.0 for a perfect circle) or 0 for zero perimeter
func Circularity(area, perimeter float64) float64 {
	if perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * (area / (perimeter * perimeter))
}

// Measure computes geometric properties used by the classifier.
// ok is false when bounding box does not pass the size gate; other fields are not computed then.
func Measure(contour gocv.PointVector, cfg ClassifierConfig) (Measures, bool) {
	box := gocv.BoundingRect(contour)
	m := Measures{Box: box}
	if box.Dx() <= cfg.MinBoxSize || box.Dy() <= cfg.MinBoxSize {
		return m, false
	}
	m.Area = gocv.ContourArea(contour)
	m.FillRatio = m.Area / float64(box.Dx()*box.Dy())
	m.Perimeter = gocv.ArcLength(contour, true)
	approx := gocv.ApproxPolyDP(contour, cfg.ApproxEpsilon*m.Perimeter, true)
	m.Vertices = approx.Size()
	approx.Close()
	m.Circularity = Circularity(m.Area, m.Perimeter)
	return m, true
}

// Decide applies classification rules to measured contour: square check goes first
func Decide(m Measures, cfg ClassifierConfig) (Class, bool) {
	if m.FillRatio > cfg.Square && m.Vertices >= cfg.MinVertices && m.Vertices <= cfg.MaxVertices {
		return ClassSquare, true
	}
	if m.Circularity > cfg.Circle {
		return ClassCircle, true
	}
	return ClassSquare, false
}

// ClassifyContour classifies a single contour. ok is false when contour is neither square nor circle.
func ClassifyContour(contour gocv.PointVector, cfg ClassifierConfig) (Class, Detection, Measures, bool) {
	m, eligible := Measure(contour, cfg)
	if !eligible {
		return ClassSquare, Detection{}, m, false
	}
	class, ok := Decide(m, cfg)
	if !ok {
		return ClassSquare, Detection{}, m, false
	}
	return class, Detection{Box: m.Box}, m, true
}

// Classify buckets every accepted contour by class
func Classify(contours gocv.PointsVector, cfg ClassifierConfig) (squares []Detection, circles []Detection) {
	squares = make([]Detection, 0)
	circles = make([]Detection, 0)
	for i := 0; i < contours.Size(); i++ {
		class, detection, _, ok := ClassifyContour(contours.At(i), cfg)
		if !ok {
			continue
		}
		switch class {
		case ClassSquare:
			squares = append(squares, detection)
		case ClassCircle:
			circles = append(circles, detection)
		}
	}
	return squares, circles
}
