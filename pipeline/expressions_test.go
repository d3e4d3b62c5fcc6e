package pipeline

import (
	"image"
	"testing"

	"github.com/khaledhikmat/vs-frames/service/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func flatFrame(level float64, rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, level, level, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestMeanAbsDiff(t *testing.T) {
	prev := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC1)
	defer prev.Close()
	curr := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC1)
	defer curr.Close()

	assert.InDelta(t, 20.0, MeanAbsDiff(prev, curr, image.Rect(10, 10, 50, 50)), 0.001)
	assert.InDelta(t, 20.0, MeanAbsDiff(curr, prev, image.Rect(0, 0, 100, 100)), 0.001, "order does not matter")
	assert.InDelta(t, 0.0, MeanAbsDiff(prev, prev, image.Rect(0, 0, 20, 20)), 0.001)
}

func TestExpressionTracker(t *testing.T) {
	face := []image.Rectangle{image.Rect(100, 100, 300, 300)}

	tests := []struct {
		name      string
		levels    []float64
		faces     [][]image.Rectangle
		threshold float64
		changed   []bool
	}{
		{
			name:      "first frame is never flagged",
			levels:    []float64{0, 100},
			faces:     [][]image.Rectangle{face},
			threshold: 5,
			changed:   []bool{false, true},
		},
		{
			name:      "difference must exceed threshold",
			levels:    []float64{0, 5, 11},
			faces:     [][]image.Rectangle{face},
			threshold: 5,
			changed:   []bool{false, false, true},
		},
		{
			name:      "frames without faces keep the previous frame",
			levels:    []float64{0, 200, 3},
			faces:     [][]image.Rectangle{face, nil, face},
			threshold: 5,
			changed:   []bool{false, false, false},
		},
		{
			name:      "faces appearing late are not compared",
			levels:    []float64{0, 50, 100},
			faces:     [][]image.Rectangle{nil, face, face},
			threshold: 5,
			changed:   []bool{false, false, true},
		},
		{
			name:      "no faces at all",
			levels:    []float64{0, 50, 100},
			faces:     [][]image.Rectangle{nil},
			threshold: 5,
			changed:   []bool{false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newExpressionTracker(detector.NewFixed(tt.faces...), tt.threshold)
			defer tracker.Close()

			for i, level := range tt.levels {
				frame := flatFrame(level, 480, 640)
				result := tracker.Process(FrameData{Mat: frame, Index: i})
				frame.Close()

				assert.Equal(t, tt.changed[i], result.Changed, "frame %d", i)
			}
		})
	}
}

func TestExpressionTrackerReportsDifference(t *testing.T) {
	face := image.Rect(100, 100, 300, 300)
	tracker := newExpressionTracker(detector.NewFixed([]image.Rectangle{face}), 5)
	defer tracker.Close()

	first := flatFrame(40, 480, 640)
	defer first.Close()
	second := flatFrame(60, 480, 640)
	defer second.Close()

	tracker.Process(FrameData{Mat: first, Index: 0})
	result := tracker.Process(FrameData{Mat: second, Index: 1})

	require.True(t, result.Changed)
	assert.InDelta(t, 20.0, result.Difference, 0.001)
	assert.Equal(t, []image.Rectangle{face}, result.Faces)
}

func TestExpressionTrackerDrawsFaces(t *testing.T) {
	face := image.Rect(100, 100, 300, 300)
	tracker := newExpressionTracker(detector.NewFixed([]image.Rectangle{face}), 5)
	defer tracker.Close()

	frame := flatFrame(0, 480, 640)
	defer frame.Close()

	tracker.Process(FrameData{Mat: frame, Index: 0})

	// BGR
	assert.Equal(t, uint8(0), frame.GetVecbAt(100, 100)[0])
	assert.Equal(t, uint8(0), frame.GetVecbAt(100, 100)[1])
	assert.Equal(t, uint8(255), frame.GetVecbAt(100, 100)[2])
	assert.Equal(t, uint8(0), frame.GetVecbAt(200, 200)[2], "inside of the face is untouched")
}

func TestExpressionTrackerSizeChange(t *testing.T) {
	face := []image.Rectangle{image.Rect(10, 10, 100, 100)}
	tracker := newExpressionTracker(detector.NewFixed(face), 5)
	defer tracker.Close()

	small := flatFrame(0, 240, 320)
	defer small.Close()
	large := flatFrame(200, 480, 640)
	defer large.Close()

	tracker.Process(FrameData{Mat: small, Index: 0})
	result := tracker.Process(FrameData{Mat: large, Index: 1})

	assert.False(t, result.Changed)
	assert.Len(t, result.Faces, 1)
}
