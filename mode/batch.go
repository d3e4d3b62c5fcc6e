package mode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/pipeline"
	"github.com/khaledhikmat/vs-frames/service/lgr"
)

// Batch runs the pending jobs of the job store one after the other and exits.
// When the store has nothing pending, the configured default jobs are created
// and run instead. A failing job does not stop the ones after it.
func Batch(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	jobs, err := batchJobs(svcs)
	if err != nil {
		return err
	}

	errorStream := make(chan interface{})
	statsStream := make(chan interface{})

	done := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		drainUntil(svcs.DataSvc, done, statsStream, errorStream)
		close(drained)
	}()

	startTime := time.Now()
	failed := 0
	for _, job := range jobs {
		if canxCtx.Err() != nil {
			lgr.Logger.Info(
				"batch context cancelled",
				slog.String("skippedJob", job.Name),
			)
			break
		}

		err := pipeline.Agent(canxCtx, svcs, errorStream, statsStream, job)
		if err != nil {
			failed++
			lgr.Logger.Error(
				"job failed",
				slog.String("job", job.Name),
				slog.String("video", job.InputPath),
				slog.Any("error", err),
			)
		}
	}

	close(done)
	<-drained

	lgr.Logger.Info(
		"process complete",
		slog.Int("jobs", len(jobs)),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(startTime)),
	)

	if canxCtx.Err() != nil {
		return canxCtx.Err()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}

	return nil
}

func batchJobs(svcs pipeline.ServicesFactory) ([]model.Job, error) {
	jobs, err := svcs.DataSvc.RetrievePendingJobs(svcs.CfgSvc.GetMaxBatchJobs())
	if err != nil {
		return nil, fmt.Errorf("error retrieving pending jobs: %w", err)
	}

	if len(jobs) > 0 {
		return jobs, nil
	}

	for _, def := range svcs.CfgSvc.GetDefaultJobs() {
		job, err := svcs.DataSvc.NewJob(model.Job{
			Name:         def.Name,
			Kind:         model.JobKind(def.Kind),
			InputPath:    def.InputPath,
			OutputFolder: def.OutputFolder,
			FramerType:   def.FramerType,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating job %s: %w", def.Name, err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}
