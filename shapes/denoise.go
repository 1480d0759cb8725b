package shapes

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned for empty input frames
	ErrEmptyFrame = errors.New("empty frame")
	// ErrKernelSize is returned for non-positive kernel sizes
	ErrKernelSize = errors.New("kernel size must be positive")
)

// Denoise applies normalized box filter (every weight is 1/(k*k)) of side kernelSize.
// Output has the same size and type as src. Border pixels use BORDER_REFLECT_101
// (gfedcb|abcdefgh|gfedcba), the same policy filter2D uses by default.
// kernelSize == 1 is a plain copy. Caller owns the returned Mat.
func Denoise(src gocv.Mat, kernelSize int) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	if kernelSize < 1 {
		return gocv.NewMat(), errors.Wrapf(ErrKernelSize, "denoise kernel %d", kernelSize)
	}
	dst := gocv.NewMat()
	if kernelSize == 1 {
		if err := src.CopyTo(&dst); err != nil {
			dst.Close()
			return gocv.NewMat(), errors.Wrap(err, "Can't copy frame")
		}
		return dst, nil
	}
	if err := gocv.Blur(src, &dst, image.Pt(kernelSize, kernelSize)); err != nil {
		dst.Close()
		return gocv.NewMat(), errors.Wrapf(err, "Can't apply box filter %dx%d", kernelSize, kernelSize)
	}
	return dst, nil
}
