package mot

import (
	"github.com/google/uuid"
)

const (
	// Staleness added to a track for every step without matched detection
	staleRate = 1
	// Staleness removed from a track for every matched detection
	unstaleRate = 2
	// Default capacity of center history
	defaultMaxTrackLen = 150
)

// Track is a single tracked object owned by MultiObjectTracker.
type Track struct {
	id            uuid.UUID
	currentBBox   Rectangle
	predictedBBox Rectangle
	track         []Point
	maxTrackLen   int
	stepsAlive    int
	stepsPositive int
	staleness     int
	model         motionModel
}

// newTrack starts track from the very first detection. Track is considered alive for one step already.
func newTrack(bbox Rectangle, preset ModelPreset, dt float64) *Track {
	track := Track{
		id:            uuid.New(),
		currentBBox:   bbox,
		predictedBBox: bbox,
		track:         make([]Point, 0, defaultMaxTrackLen),
		maxTrackLen:   defaultMaxTrackLen,
		stepsAlive:    1,
		stepsPositive: 1,
		staleness:     0,
		model:         newMotionModel(preset, bbox, dt),
	}
	track.track = append(track.track, bbox.Center())
	return &track
}

// GetID returns track's identifier
func (track *Track) GetID() uuid.UUID {
	return track.id
}

// GetBBox returns track's current (smoothed) bounding box
func (track *Track) GetBBox() Rectangle {
	return track.currentBBox
}

// GetPredictedBBox returns bounding box predicted for the current step
func (track *Track) GetPredictedBBox() Rectangle {
	return track.predictedBBox
}

// GetTrack returns track's center history. Be careful: this is not copy of track, but reference to it
func (track *Track) GetTrack() []Point {
	return track.track
}

// GetStepsAlive returns number of tracker steps the track has existed for
func (track *Track) GetStepsAlive() int {
	return track.stepsAlive
}

// GetStepsPositive returns number of steps the track had matched detection
func (track *Track) GetStepsPositive() int {
	return track.stepsPositive
}

// GetStaleness returns current staleness
func (track *Track) GetStaleness() int {
	return track.staleness
}

// PredictNextPosition executes motion model's prediction step and ages the track
func (track *Track) PredictNextPosition() {
	track.predictedBBox = track.model.predict()
	track.stepsAlive++
}

// Update corrects track's state with matched detection
func (track *Track) Update(detection Rectangle) error {
	smoothed, err := track.model.update(detection)
	if err != nil {
		return err
	}
	track.currentBBox = smoothed
	track.stepsPositive++
	track.unstale()
	track.track = append(track.track, smoothed.Center())
	if len(track.track) > track.maxTrackLen {
		track.track = track.track[1:]
	}
	return nil
}

// Stale marks step without matched detection. Current box follows the prediction.
func (track *Track) Stale() {
	track.staleness += staleRate
	track.currentBBox = track.predictedBBox
}

func (track *Track) unstale() {
	track.staleness -= unstaleRate
	if track.staleness < 0 {
		track.staleness = 0
	}
}

// View returns immutable snapshot of the track
func (track *Track) View() TrackView {
	trail := make([]Point, len(track.track))
	copy(trail, track.track)
	return TrackView{
		ID:         track.id,
		Box:        track.currentBBox,
		StepsAlive: track.stepsAlive,
		Staleness:  track.staleness,
		Trail:      trail,
	}
}

// TrackView is what tracker reports about an active track
type TrackView struct {
	ID         uuid.UUID
	Box        Rectangle
	StepsAlive int
	Staleness  int
	Trail      []Point
}
