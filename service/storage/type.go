package storage

import (
	"context"

	"gocv.io/x/gocv"
)

type IService interface {
	// EnsureFolder creates folder when missing and reports whether it existed.
	EnsureFolder(folder string) (bool, error)
	// StoreFrame writes the frame as an image and returns where it ended up.
	StoreFrame(ctx context.Context, folder, name string, frame gocv.Mat) (string, error)
}
