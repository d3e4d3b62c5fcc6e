package detector

import (
	"image"

	"gocv.io/x/gocv"
)

type fixedService struct {
	byFrame [][]image.Rectangle
	calls   int
}

// NewFixed returns a detector that replays the given detections, one slice per
// call. Once exhausted it keeps returning the last slice.
func NewFixed(byFrame ...[]image.Rectangle) IService {
	return &fixedService{byFrame: byFrame}
}

func (svc *fixedService) Detect(_ gocv.Mat) []image.Rectangle {
	if len(svc.byFrame) == 0 {
		return nil
	}

	idx := min(svc.calls, len(svc.byFrame)-1)
	svc.calls++
	return svc.byFrame[idx]
}

func (svc *fixedService) Close() error {
	return nil
}
