// Package pipeline wires denoising, segmentation, classification, tracking, counting and
// rendering into a per-frame processor and drives it over a video stream.
package pipeline

import (
	"github.com/LdDl/shapecount/mot"
	"github.com/LdDl/shapecount/shapes"
)

// TrackingService is a stateful multi-object tracker stepped once per frame.
// *mot.MultiObjectTracker satisfies it.
type TrackingService interface {
	Advance(detections []mot.Rectangle) error
	ActiveTracks(q mot.ActiveQuery) []mot.TrackView
}

// StepAndQuery advances tracker with frame's detections and returns tracks matching the query
func StepAndQuery(svc TrackingService, detections []shapes.Detection, q mot.ActiveQuery) ([]mot.TrackView, error) {
	if err := svc.Advance(shapes.Rects(detections)); err != nil {
		return nil, err
	}
	return svc.ActiveTracks(q), nil
}

// ClassTracker binds tracker and query-time thresholds to a shape class
type ClassTracker struct {
	Class   shapes.Class
	Service TrackingService
	Query   mot.ActiveQuery
}
