package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/detector"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	"github.com/khaledhikmat/vs-frames/service/metrics"
	"github.com/khaledhikmat/vs-frames/vision"
	"github.com/natefinch/lumberjack"
	"gocv.io/x/gocv"
)

const ExpressionDetectorName = "expressionDetector"

func init() {
	RegisterStreamer(ExpressionDetectorName, ExpressionDetector)
}

var faceColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

// ExpressionDetector flags frames whose mouth region changed against the last
// frame that had a face. It runs a single worker because every decision
// depends on the frame before it.
func ExpressionDetector(canx context.Context, svcs ServicesFactory, run *Run, errorStream chan interface{}, statsStream chan interface{}, alertStream chan AlertData, wg *sync.WaitGroup) (chan FrameData, error) {
	params := svcs.CfgSvc.GetDetectionParameters()

	det, err := svcs.DetectorFn()
	if err != nil {
		return nil, fmt.Errorf("error creating face detector: %w", err)
	}

	lgr.Logger.Info("expression detector starting...",
		slog.String("job", run.Job.Name),
		slog.String("cascade", params.CascadePath),
		slog.Float64("threshold", params.Threshold),
		slog.String("openCV", gocv.Version()),
	)

	var changeLogger *lumberjack.Logger
	if params.ChangeLog != "" {
		changeLogger = &lumberjack.Logger{
			Filename:   params.ChangeLog,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		}
	}

	tracker := newExpressionTracker(det, params.Threshold)
	in := make(chan FrameData, 100)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer tracker.Close()
		defer func() {
			if changeLogger != nil {
				changeLogger.Close()
			}
		}()

		stats := newStreamerStats(ExpressionDetectorName, 0, run.Job)
		defer func() {
			statsStream <- stats.done()
		}()

		for f := range in {
			if canx.Err() != nil {
				f.Mat.Close()
				continue
			}

			start := time.Now()
			result := tracker.Process(f)
			stats.observe(time.Since(start))
			metrics.FrameProcessingDuration.WithLabelValues(ExpressionDetectorName).Observe(time.Since(start).Seconds())

			stats.Faces += len(result.Faces)
			metrics.FacesDetectedTotal.Add(float64(len(result.Faces)))

			lgr.Logger.Info(
				"processing frame",
				slog.Int("frame", f.Index+1),
				slog.Int("faces", len(result.Faces)),
			)

			if !result.Changed {
				f.Mat.Close()
				continue
			}

			stats.Changes++
			if changeLogger != nil {
				if err := logChange(changeLogger, run.Job, f.Index, result); err != nil {
					stats.Errors++
					errorStream <- model.GenError("agent_expression_detector", err, nil, "error writing change log")
				}
			}

			select {
			case alertStream <- AlertData{
				Mat:        f.Mat,
				Job:        run.Job,
				Index:      f.Index,
				Faces:      result.Faces,
				Difference: result.Difference,
				Timestamp:  f.Timestamp,
			}:
				// The alerter now owns the frame
			case <-canx.Done():
				f.Mat.Close()
			}
		}
	}()

	return in, nil
}

type expressionResult struct {
	Faces      []image.Rectangle
	Changed    bool
	Difference float64
}

// expressionTracker holds the grayscale version of the last frame in which
// faces were found.
type expressionTracker struct {
	detector  detector.IService
	threshold float64
	previous  gocv.Mat
}

func newExpressionTracker(det detector.IService, threshold float64) *expressionTracker {
	return &expressionTracker{
		detector:  det,
		threshold: threshold,
		previous:  gocv.NewMat(),
	}
}

// Process detects faces, outlines them on frame.Mat and compares mouth regions
// with the previous face-bearing frame. The first frame of a video is never
// flagged.
func (t *expressionTracker) Process(frame FrameData) expressionResult {
	gray := gocv.NewMat()
	if frame.Mat.Channels() == 1 {
		frame.Mat.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)
	}

	faces := t.detector.Detect(gray)
	if len(faces) == 0 {
		gray.Close()
		return expressionResult{}
	}

	for _, face := range faces {
		gocv.Rectangle(&frame.Mat, face, faceColor, 2)
	}

	result := expressionResult{Faces: faces}
	if frame.Index > 0 {
		result.Changed, result.Difference = t.compare(gray, faces)
	}

	t.previous.Close()
	t.previous = gray

	return result
}

func (t *expressionTracker) compare(gray gocv.Mat, faces []image.Rectangle) (bool, float64) {
	if t.previous.Empty() || !vision.SameSize(t.previous.Cols(), t.previous.Rows(), gray.Cols(), gray.Rows()) {
		return false, 0
	}

	diffs := []float64{}
	for _, region := range vision.MouthRegions(faces, gray.Cols(), gray.Rows()) {
		if region.Empty() {
			continue
		}
		diffs = append(diffs, MeanAbsDiff(t.previous, gray, region))
	}

	if len(diffs) == 0 {
		return false, 0
	}

	return vision.ExceedsThreshold(diffs, t.threshold), slices.Max(diffs)
}

func (t *expressionTracker) Close() error {
	t.previous.Close()
	return t.detector.Close()
}

// MeanAbsDiff is the mean absolute difference of the first channel of two
// frames inside region.
func MeanAbsDiff(prev, curr gocv.Mat, region image.Rectangle) float64 {
	prevROI := prev.Region(region)
	defer prevROI.Close()

	currROI := curr.Region(region)
	defer currROI.Close()

	diff := gocv.NewMat()
	defer diff.Close()

	gocv.AbsDiff(prevROI, currROI, &diff)
	return diff.Mean().Val1
}

func logChange(w *lumberjack.Logger, job model.Job, index int, result expressionResult) error {
	entry := map[string]interface{}{
		"time":       time.Now().Format(time.RFC3339),
		"job":        job.Name,
		"video":      job.InputPath,
		"frame":      index,
		"faces":      result.Faces,
		"difference": result.Difference,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = w.Write(append(jsonData, '\n'))
	return err
}
