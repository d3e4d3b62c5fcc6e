package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/khaledhikmat/vs-frames/service/lgr"
	"gocv.io/x/gocv"
)

type localService struct{}

func NewLocal() IService {
	return &localService{}
}

func (svc *localService) EnsureFolder(folder string) (bool, error) {
	info, err := os.Stat(folder)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a folder", folder)
		}
		lgr.Logger.Info("output folder already exists", slog.String("folder", folder))
		return true, nil
	}

	if !os.IsNotExist(err) {
		return false, err
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return false, fmt.Errorf("create output folder: %w", err)
	}

	lgr.Logger.Info("output folder created", slog.String("folder", folder))
	return false, nil
}

func (svc *localService) StoreFrame(_ context.Context, folder, name string, frame gocv.Mat) (string, error) {
	if frame.Empty() {
		return "", fmt.Errorf("refusing to store empty frame %s", name)
	}

	path := filepath.Join(folder, name)
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", fmt.Errorf("error writing frame %s", path)
	}

	return path, nil
}

// FrameName is the file name of the frame at the given zero-based index.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%05d.png", index)
}
