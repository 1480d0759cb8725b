package mot

import (
	"fmt"
	"strings"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// ModelPreset selects the motion model every track of a tracker is built with
type ModelPreset uint16

const (
	// ModelCenterStaticBox filters the box center with a 2-D Kalman filter and takes the box size from the latest matched detection
	ModelCenterStaticBox ModelPreset = iota
	// ModelBBox filters center, size and their velocities with an 8-D Kalman filter
	ModelBBox
)

func (preset ModelPreset) String() string {
	switch preset {
	case ModelCenterStaticBox:
		return "center_static_box"
	case ModelBBox:
		return "bbox"
	default:
		return fmt.Sprintf("ModelPreset(%d)", uint16(preset))
	}
}

// ParseModelPreset parses textual name of motion model
func ParseModelPreset(s string) (ModelPreset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "center_static_box", "constant_acceleration_and_static_box_size_2d":
		return ModelCenterStaticBox, nil
	case "bbox", "constant_velocity_bbox":
		return ModelBBox, nil
	default:
		return ModelCenterStaticBox, fmt.Errorf("unknown motion model: '%s'", s)
	}
}

// motionModel is the state estimator behind a single track.
type motionModel interface {
	// predict advances the state by one time step and returns predicted box
	predict() Rectangle
	// update corrects the state with measured box and returns the smoothed box
	update(measurement Rectangle) (Rectangle, error)
}

func newMotionModel(preset ModelPreset, initial Rectangle, dt float64) motionModel {
	switch preset {
	case ModelBBox:
		return newBBoxModel(initial, dt)
	default:
		return newCenterModel(initial, dt)
	}
}

// centerModel smooths box center via Kalman filter, keeps box size of the last measurement
type centerModel struct {
	width  float64
	height float64
	kf     *kalman_filter.Kalman2D
}

func newCenterModel(initial Rectangle, dt float64) *centerModel {
	center := initial.Center()

	/* Kalman filter props */
	ux := 1.0
	uy := 1.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	kf := kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(center.X, center.Y))
	return &centerModel{
		width:  initial.Width,
		height: initial.Height,
		kf:     kf,
	}
}

func (model *centerModel) predict() Rectangle {
	model.kf.Predict()
	stateX, stateY := model.kf.GetState()
	return NewRectCentered(Point{X: stateX, Y: stateY}, model.width, model.height)
}

func (model *centerModel) update(measurement Rectangle) (Rectangle, error) {
	center := measurement.Center()
	err := model.kf.Update(center.X, center.Y)
	if err != nil {
		return measurement, errors.Wrap(err, "Can't update center filter")
	}
	model.width = measurement.Width
	model.height = measurement.Height
	stateX, stateY := model.kf.GetState()
	return NewRectCentered(Point{X: stateX, Y: stateY}, model.width, model.height), nil
}

// bboxModel is 8-D Kalman filter with state [cx, cy, w, h, vx, vy, vw, vh]
type bboxModel struct {
	kf *kalman_filter.KalmanBBox
}

func newBBoxModel(initial Rectangle, dt float64) *bboxModel {
	center := initial.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, initial.Width, initial.Height),
	)
	return &bboxModel{kf: kf}
}

func (model *bboxModel) state() Rectangle {
	cx, cy, w, h := model.kf.GetState()
	return NewRectCentered(Point{X: cx, Y: cy}, w, h)
}

func (model *bboxModel) predict() Rectangle {
	model.kf.Predict()
	return model.state()
}

func (model *bboxModel) update(measurement Rectangle) (Rectangle, error) {
	center := measurement.Center()
	err := model.kf.Update(center.X, center.Y, measurement.Width, measurement.Height)
	if err != nil {
		return measurement, errors.Wrap(err, "Can't update bbox filter")
	}
	return model.state(), nil
}
