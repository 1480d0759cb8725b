package mot

import (
	"image"
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestRectangleConversions(t *testing.T) {
	imgRect := image.Rect(10, 20, 310, 320)
	rect := NewRectFrom(imgRect)
	if rect != NewRect(10, 20, 300, 300) {
		t.Errorf("Wrong rectangle: %v", rect)
	}
	if rect.Image() != imgRect {
		t.Errorf("Expected %v after round trip, got %v", imgRect, rect.Image())
	}
	center := rect.Center()
	if center != (Point{X: 160, Y: 170}) {
		t.Errorf("Wrong center: %v", center)
	}
	if center.Image() != image.Pt(160, 170) {
		t.Errorf("Wrong rounded center: %v", center.Image())
	}
	centered := NewRectCentered(center, 300, 300)
	if centered != rect {
		t.Errorf("Expected %v, got %v", rect, centered)
	}
}

func TestIoU(t *testing.T) {
	r1 := NewRect(0, 0, 10, 10)
	if math.Abs(IoU(r1, r1)-1.0) > eps {
		t.Errorf("IoU of the same rectangle should be 1, got %v", IoU(r1, r1))
	}
	r2 := NewRect(5, 0, 10, 10)
	// intersection 50, union 150
	if math.Abs(IoU(r1, r2)-1.0/3.0) > eps {
		t.Errorf("Wrong IoU: %v", IoU(r1, r2))
	}
	r3 := NewRect(100, 100, 10, 10)
	if IoU(r1, r3) != 0 {
		t.Errorf("Disjoint rectangles should have zero IoU, got %v", IoU(r1, r3))
	}
	if IoU(NewRect(0, 0, 0, 0), NewRect(0, 0, 0, 0)) != 0 {
		t.Error("Degenerate rectangles should have zero IoU")
	}
}
