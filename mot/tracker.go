package mot

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ActiveQuery filters which tracks are reported as active
type ActiveQuery struct {
	// Minimum number of steps the track must exist for
	MinStepsAlive int
	// Tracks with staleness not less than this are not reported
	MaxStaleness int
	// When positive, tracks with staleness/steps_positive not less than this are not reported
	MaxStalenessToPositiveRatio float64
}

// DefaultActiveQuery returns default reporting thresholds: min_steps_alive=5, max_staleness=15
func DefaultActiveQuery() ActiveQuery {
	return ActiveQuery{
		MinStepsAlive:               5,
		MaxStaleness:                15,
		MaxStalenessToPositiveRatio: 3.0,
	}
}

func (q ActiveQuery) accepts(track *Track) bool {
	if track.staleness >= q.MaxStaleness {
		return false
	}
	if track.stepsAlive < q.MinStepsAlive {
		return false
	}
	if q.MaxStalenessToPositiveRatio > 0 && float64(track.staleness)/float64(track.stepsPositive) >= q.MaxStalenessToPositiveRatio {
		return false
	}
	return true
}

// AssociationConfig controls detection-to-track association and track retention
type AssociationConfig struct {
	// Track is removed once its staleness reaches this value
	MaxStaleness int
	// Minimum IoU between predicted box and detection to be considered the same object
	MinIoU float64
	// Algorithm to use for matching
	Algorithm MatchingAlgorithm
}

// DefaultAssociationConfig returns default association parameters: max_staleness=12, min_iou=0.1, Hungarian matching
func DefaultAssociationConfig() AssociationConfig {
	return AssociationConfig{
		MaxStaleness: 12,
		MinIoU:       0.1,
		Algorithm:    MatchingAlgorithmHungarian,
	}
}

// MultiObjectTracker is Kalman-filter based multi-object tracker with IoU association.
// It should be stepped exactly once per frame, frames in order, with constant dt.
type MultiObjectTracker struct {
	// Time step between consecutive Advance calls (seconds)
	dt float64
	// Motion model for new tracks
	model ModelPreset
	// Construction-time reporting thresholds
	active ActiveQuery
	// Association parameters
	assoc AssociationConfig
	// Main storage
	Objects map[uuid.UUID]*Track
	// Creation order of tracks in Objects
	order []uuid.UUID
}

// NewMultiObjectTracker creates new instance of MultiObjectTracker
func NewMultiObjectTracker(dt float64, model ModelPreset, active ActiveQuery, assoc AssociationConfig) *MultiObjectTracker {
	if dt <= 0 {
		dt = 1.0
	}
	return &MultiObjectTracker{
		dt:      dt,
		model:   model,
		active:  active,
		assoc:   assoc,
		Objects: make(map[uuid.UUID]*Track),
		order:   make([]uuid.UUID, 0),
	}
}

// Advance consumes detections of a single frame: predicts every track, associates detections,
// updates matched tracks, ages unmatched ones, registers new tracks and drops stale ones.
func (tracker *MultiObjectTracker) Advance(detections []Rectangle) error {
	tracks := tracker.orderedTracks()
	predicted := make([]Rectangle, len(tracks))
	for i, track := range tracks {
		track.PredictNextPosition()
		predicted[i] = track.GetPredictedBBox()
	}

	iouMatrix := createIoUMatrix(predicted, detections)
	matches := performMatching(iouMatrix, len(detections), tracker.assoc.MinIoU, tracker.assoc.Algorithm)

	matchedTracks := make(map[int]struct{}, len(matches))
	matchedDetections := make(map[int]struct{}, len(matches))
	for _, match := range matches {
		track := tracks[match[0]]
		err := track.Update(detections[match[1]])
		if err != nil {
			return errors.Wrapf(err, "Can't update track with id %s", track.GetID().String())
		}
		matchedTracks[match[0]] = struct{}{}
		matchedDetections[match[1]] = struct{}{}
	}

	for i, track := range tracks {
		if _, ok := matchedTracks[i]; !ok {
			track.Stale()
		}
	}

	for j, detection := range detections {
		if _, ok := matchedDetections[j]; ok {
			continue
		}
		track := newTrack(detection, tracker.model, tracker.dt)
		tracker.Objects[track.GetID()] = track
		tracker.order = append(tracker.order, track.GetID())
	}

	tracker.cleanup()
	return nil
}

// ActiveTracks returns snapshots of live tracks satisfying the query, in creation order
func (tracker *MultiObjectTracker) ActiveTracks(q ActiveQuery) []TrackView {
	views := make([]TrackView, 0, len(tracker.order))
	for _, track := range tracker.orderedTracks() {
		if q.accepts(track) {
			views = append(views, track.View())
		}
	}
	return views
}

// DefaultActiveTracks returns active tracks using construction-time thresholds
func (tracker *MultiObjectTracker) DefaultActiveTracks() []TrackView {
	return tracker.ActiveTracks(tracker.active)
}

// Len returns number of tracks currently kept (active or not)
func (tracker *MultiObjectTracker) Len() int {
	return len(tracker.Objects)
}

func (tracker *MultiObjectTracker) orderedTracks() []*Track {
	tracks := make([]*Track, 0, len(tracker.order))
	for _, id := range tracker.order {
		if track, ok := tracker.Objects[id]; ok {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

// cleanup removes tracks which were not found for a long time
func (tracker *MultiObjectTracker) cleanup() {
	kept := tracker.order[:0]
	for _, id := range tracker.order {
		track, ok := tracker.Objects[id]
		if !ok {
			continue
		}
		if track.GetStaleness() >= tracker.assoc.MaxStaleness {
			delete(tracker.Objects, id)
			continue
		}
		kept = append(kept, id)
	}
	tracker.order = kept
}
