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

// FrameSaver stores every alerted frame under its original index.
func FrameSaver(canx context.Context, svcs ServicesFactory, run *Run, errorStream chan interface{}, statsStream chan interface{}, wg *sync.WaitGroup) chan AlertData {
	in := make(chan AlertData, 100)

	wg.Add(1)
	go func() {
		defer wg.Done()

		startTime := time.Now()
		stats := model.AlerterStats{
			Name: "frameSaver",
			Job:  run.Job.Name,
		}
		defer func() {
			stats.Uptime = int64(time.Since(startTime).Seconds())
			statsStream <- stats
		}()

		for alert := range in {
			path, err := svcs.StorageSvc.StoreFrame(canx, alert.Job.OutputFolder, storage.FrameName(alert.Index), alert.Mat)
			alert.Mat.Close()
			if err != nil {
				stats.Errors++
				errorStream <- model.GenError("agent_frame_saver",
					err,
					map[string]interface{}{"frame": alert.Index},
					"error storing alerted frame %d",
					alert.Index)
				continue
			}

			stats.Alerts++
			run.Saved.Add(1)
			metrics.ExpressionChangesTotal.Inc()
			metrics.FramesSavedTotal.WithLabelValues(string(run.Job.Kind)).Inc()

			lgr.Logger.Info(
				"expression changed",
				slog.String("job", alert.Job.Name),
				slog.Int("frame", alert.Index),
				slog.Int("faces", len(alert.Faces)),
				slog.Float64("difference", alert.Difference),
				slog.String("path", path),
				slog.Duration("latency", time.Since(alert.Timestamp)),
			)
		}
	}()

	return in
}
