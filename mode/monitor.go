package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/pipeline"
	"github.com/khaledhikmat/vs-frames/service/lgr"
)

// The agents monitor is responsible for finding orphaned jobs (running jobs
// whose agent stopped heart beating) and publishing them back as pending
// so they can be picked up by an agents manager
func Monitor(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	ticker := time.NewTicker(time.Duration(svcs.CfgSvc.GetAgentsMonitorPeriodicTimeout()) * time.Second)
	defer ticker.Stop()

	// Wait for cancellation or timeout
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"agents monitor context cancelled",
			)
			return nil

		case <-ticker.C:
			republishOrphans(svcs)
		}
	}
}

func republishOrphans(svcs pipeline.ServicesFactory) int {
	jobs, err := svcs.DataSvc.RetrieveOrphanedJobs(
		svcs.CfgSvc.GetAgentsMonitorMaxOrphanedJobs(),
		int64(svcs.CfgSvc.GetAgentsMonitorStaleHeartbeat()),
	)
	if err != nil {
		procError(svcs.DataSvc, model.GenError("agents_monitor",
			err,
			map[string]interface{}{},
			"error retrieving orphaned jobs"))
		return 0
	}

	if len(jobs) == 0 {
		return 0
	}

	// Publish orphaned jobs through the pending service
	err = svcs.PendingSvc.Publish(jobs)
	if err != nil {
		procError(svcs.DataSvc, model.GenError("agents_monitor",
			err,
			map[string]interface{}{},
			"error publishing through pending service"))
		return 0
	}

	lgr.Logger.Info(
		"agents monitor republished orphaned jobs",
		slog.Int("jobs", len(jobs)),
	)
	return len(jobs)
}
