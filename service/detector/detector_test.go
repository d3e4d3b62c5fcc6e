package detector

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewCascadeMissingFile(t *testing.T) {
	_, err := NewCascade(config.DetectionParameters{
		CascadePath:  "/nonexistent/haarcascade_frontalface_default.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 3,
	})
	assert.Error(t, err)
}

func TestNewCascadeInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(path, []byte("not a cascade"), 0644))

	_, err := NewCascade(config.DetectionParameters{CascadePath: path, ScaleFactor: 1.1, MinNeighbors: 3})
	assert.Error(t, err)
}

func TestCascadeFindsNothingInSolidFrame(t *testing.T) {
	path := os.Getenv("CASCADE_PATH")
	if path == "" {
		t.Skip("CASCADE_PATH not set, skipping test")
	}

	det, err := NewCascade(config.DetectionParameters{CascadePath: path, ScaleFactor: 1.1, MinNeighbors: 3, Flags: 1})
	require.NoError(t, err)
	defer det.Close()

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC1)
	defer gray.Close()

	assert.Empty(t, det.Detect(gray))

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Nil(t, det.Detect(empty))
}

func TestFixedReplaysDetections(t *testing.T) {
	first := []image.Rectangle{image.Rect(0, 0, 10, 10)}
	second := []image.Rectangle{image.Rect(5, 5, 20, 20), image.Rect(30, 30, 40, 40)}

	det := NewFixed(first, second)
	defer det.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	assert.Equal(t, first, det.Detect(frame))
	assert.Equal(t, second, det.Detect(frame))
	assert.Equal(t, second, det.Detect(frame), "last detections repeat")

	assert.Nil(t, NewFixed().Detect(frame))
}
