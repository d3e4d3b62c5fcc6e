package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// IService finds faces in a grayscale frame.
// Implementations are not safe for concurrent use; each worker owns one.
type IService interface {
	Detect(gray gocv.Mat) []image.Rectangle
	Close() error
}

// Factory creates a detector per worker.
type Factory func() (IService, error)
