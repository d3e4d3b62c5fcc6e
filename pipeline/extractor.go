package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	"github.com/khaledhikmat/vs-frames/service/metrics"
	"github.com/khaledhikmat/vs-frames/service/storage"
)

const FrameExtractorName = "frameExtractor"

func init() {
	RegisterStreamer(FrameExtractorName, FrameExtractor)
}

// FrameExtractor writes every frame it receives as frame_NNNNN.png in the
// job's output folder. Frames carry their own index so workers may finish
// out of order.
func FrameExtractor(canx context.Context, svcs ServicesFactory, run *Run, errorStream chan interface{}, statsStream chan interface{}, _ chan AlertData, wg *sync.WaitGroup) (chan FrameData, error) {
	in := make(chan FrameData, 100)

	lgr.Logger.Info(
		"frame extractor initialized...",
		slog.String("job", run.Job.Name),
		slog.String("output", run.Job.OutputFolder),
	)

	proc := func(frame FrameData) error {
		defer frame.Mat.Close()

		path, err := svcs.StorageSvc.StoreFrame(canx, run.Job.OutputFolder, storage.FrameName(frame.Index), frame.Mat)
		if err != nil {
			return err
		}

		run.Saved.Add(1)
		metrics.FramesSavedTotal.WithLabelValues(string(run.Job.Kind)).Inc()

		lgr.Logger.Info(
			"processing frame",
			slog.Int("frame", frame.Index+1),
			slog.String("path", path),
		)
		return nil
	}

	// Launch worker processes that compete on emptying/processing frames
	workers := svcs.CfgSvc.GetStreamerMaxWorkers()
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer wg.Done()

			stats := newStreamerStats(FrameExtractorName, worker, run.Job)
			defer func() {
				statsStream <- stats.done()
			}()

			for f := range in {
				// Keep draining after cancellation so the framer never blocks
				if canx.Err() != nil {
					f.Mat.Close()
					continue
				}

				start := time.Now()
				err := proc(f)
				stats.observe(time.Since(start))
				metrics.FrameProcessingDuration.WithLabelValues(FrameExtractorName).Observe(time.Since(start).Seconds())
				if err != nil {
					stats.Errors++
					errorStream <- model.GenError("agent_frame_extractor",
						err,
						map[string]interface{}{"frame": f.Index},
						"error storing frame %d",
						f.Index)
				}
			}
		}(i)
	}

	return in, nil
}

type streamerStats struct {
	model.StreamerStats
	start     time.Time
	totalProc time.Duration
}

func newStreamerStats(name string, worker int, job model.Job) *streamerStats {
	return &streamerStats{
		StreamerStats: model.StreamerStats{Name: name, Worker: worker, Job: job.Name},
		start:         time.Now(),
	}
}

func (s *streamerStats) observe(d time.Duration) {
	s.Frames++
	s.totalProc += d
}

func (s *streamerStats) done() model.StreamerStats {
	uptime := time.Since(s.start)
	s.Uptime = int64(uptime.Seconds())
	if uptime > 0 {
		s.FPS = int(float64(s.Frames) / uptime.Seconds())
	}
	if s.Frames > 0 {
		s.AvgProcTime = s.totalProc.Seconds() / float64(s.Frames)
	}
	return s.StreamerStats
}
