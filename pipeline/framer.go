package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	"github.com/khaledhikmat/vs-frames/service/metrics"
	"gocv.io/x/gocv"
)

const (
	FileFramerType      = "file"
	SyntheticFramerType = "synthetic"
)

// framer decodes the job's video and fans every frame out to the streamers.
// It always closes the stream channels before returning.
func framer(canxCtx context.Context, svcs ServicesFactory, run *Run, _ chan interface{}, statsStream chan interface{}, streamChannels []chan FrameData) error {
	defer func() {
		for _, streamChan := range streamChannels {
			close(streamChan)
		}
	}()

	if run.Job.FramerType == SyntheticFramerType {
		return syntheticFramer(canxCtx, svcs, run, statsStream, streamChannels)
	}

	return fileFramer(canxCtx, run, statsStream, streamChannels)
}

func fileFramer(canxCtx context.Context, run *Run, statsStream chan interface{}, streamChannels []chan FrameData) error {
	capture, err := gocv.VideoCaptureFile(run.Job.InputPath)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return fmt.Errorf("error opening video %s: %w", run.Job.InputPath, err)
	}
	defer capture.Close()

	if !capture.IsOpened() {
		return fmt.Errorf("error opening video %s", run.Job.InputPath)
	}

	lgr.Logger.Info(
		"file framer opened video",
		slog.String("job", run.Job.Name),
		slog.String("video", run.Job.InputPath),
		slog.Float64("fps", capture.Get(gocv.VideoCaptureFPS)),
		slog.Float64("frameCount", capture.Get(gocv.VideoCaptureFrameCount)),
	)

	stats := newFramerStats("fileFramer", run.Job)
	defer func() {
		statsStream <- stats.done()
	}()

	for index := 0; ; index++ {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"fileFramer context cancelled",
			)
			return canxCtx.Err()

		default:
			img := gocv.NewMat()
			// An empty read marks the end of the video
			if ok := capture.Read(&img); !ok || img.Empty() {
				img.Close() // Crucial to close the image to avoid memory leaks
				return nil
			}

			stats.Frames++
			run.Frames.Add(1)
			metrics.FramesReadTotal.WithLabelValues(string(run.Job.Kind)).Inc()

			err := fanOut(canxCtx, img, index, streamChannels)
			img.Close() // Crucial to close the image to avoid memory leaks
			if err != nil {
				return err
			}
		}
	}
}

// syntheticFramer produces flat frames whose intensity steps by 10 per frame.
// It needs no video file, which makes it handy for dry runs.
func syntheticFramer(canxCtx context.Context, svcs ServicesFactory, run *Run, statsStream chan interface{}, streamChannels []chan FrameData) error {
	stats := newFramerStats("syntheticFramer", run.Job)
	defer func() {
		statsStream <- stats.done()
	}()

	for index := 0; index < svcs.CfgSvc.GetSyntheticFrames(); index++ {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"syntheticFramer context cancelled",
			)
			return canxCtx.Err()

		default:
			level := float64((index * 10) % 256)
			// Create a 480x640 image with 3 channels (BGR)
			img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, level, level, 0), 480, 640, gocv.MatTypeCV8UC3)

			stats.Frames++
			run.Frames.Add(1)
			metrics.FramesReadTotal.WithLabelValues(string(run.Job.Kind)).Inc()

			err := fanOut(canxCtx, img, index, streamChannels)
			img.Close()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// fanOut hands a clone of img to every streamer; the caller keeps img.
func fanOut(canxCtx context.Context, img gocv.Mat, index int, streamChannels []chan FrameData) error {
	for _, streamChan := range streamChannels {
		frame := FrameData{Mat: img.Clone(), Index: index, Timestamp: time.Now()}
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info("framer context cancelled while sending!!")
			frame.Mat.Close()
			return canxCtx.Err()
		case streamChan <- frame:
			// Successfully sent to the channel
		}
	}
	return nil
}

type framerStats struct {
	model.FramerStats
	start time.Time
}

func newFramerStats(name string, job model.Job) *framerStats {
	return &framerStats{
		FramerStats: model.FramerStats{Name: name, Job: job.Name},
		start:       time.Now(),
	}
}

func (s *framerStats) done() model.FramerStats {
	uptime := time.Since(s.start)
	s.Uptime = int64(uptime.Seconds())
	if uptime > 0 {
		s.FPS = int(float64(s.Frames) / uptime.Seconds())
	}
	return s.FramerStats
}
