package mode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/pipeline"
	"github.com/khaledhikmat/vs-frames/service/lgr"
)

type agent struct {
	Job    model.Job
	CanxFn context.CancelFunc
}

type agentResult struct {
	JobID string
	Err   error
}

// The agents manager is responsible for running the agents
func Manager(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	// Subscribe to the pending service to receive jobs
	pendingStream, err := svcs.PendingSvc.Subscribe()
	if err != nil {
		return err
	}
	subscribed := true
	defer svcs.PendingSvc.Finalize()

	// Create an error stream
	errorStream := make(chan interface{})

	// Create agents manager stats stream
	statsStream := make(chan interface{})

	// Agents report back here once their job is over
	resultStream := make(chan agentResult)
	agentsWG := &sync.WaitGroup{}

	// Store running agents and manager stats in memory
	var agentsManagerStartTime = time.Now().Unix()
	var runningAgents = map[string]agent{}

	agentsManagerStats := model.AgentsManagerStats{}

	periodic := time.NewTicker(time.Duration(svcs.CfgSvc.GetAgentsManagerPeriodicTimeout()) * time.Second)
	defer periodic.Stop()

	resubscribe := func() {
		if subscribed || len(runningAgents) >= svcs.CfgSvc.GetMaxAgentsPerPod() {
			return
		}

		// Re-subscribe to the pending service so that we can get more jobs
		agentsManagerStats.TotalPendingRequestSubscriptions++
		_, err := svcs.PendingSvc.Subscribe()
		if err != nil {
			procError(svcs.DataSvc, model.GenError("agents_manager",
				err,
				map[string]interface{}{},
				"error subscribing to pending service"))
			return
		}
		subscribed = true
	}

	// Wait for cancellation, timeout or pending jobs
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"agents manager context cancelled",
			)
			goto resume

		case pendingJobs := <-pendingStream:
			agentsManagerStats.TotalPendingRequests++
			unAccomodatedJobs := []model.Job{}

			for _, job := range pendingJobs {
				if _, ok := runningAgents[job.ID]; ok {
					continue
				}

				if len(runningAgents) >= svcs.CfgSvc.GetMaxAgentsPerPod() {
					unAccomodatedJobs = append(unAccomodatedJobs, job)
					continue
				}

				// Create a child context for the agent
				// to allow us to cancel an agent
				// without cancelling the main context
				agentCanxCtx, agentCanxFn := context.WithCancel(canxCtx)

				agentsWG.Add(1)
				go func(job model.Job) {
					defer agentsWG.Done()
					err := pipeline.Agent(agentCanxCtx, svcs, errorStream, statsStream, job)
					resultStream <- agentResult{JobID: job.ID, Err: err}
				}(job)

				runningAgents[job.ID] = agent{
					Job:    job,
					CanxFn: agentCanxFn,
				}
			}

			// If there are unaccommodated jobs, hand them back so that they
			// are delivered again (possibly to another pod)
			if len(unAccomodatedJobs) > 0 {
				lgr.Logger.Debug(
					"agents pod could not accommodate these jobs.",
					slog.Int("runningAgents", len(runningAgents)),
					slog.Int("maxAgentsPerPod", svcs.CfgSvc.GetMaxAgentsPerPod()),
					slog.Int("unAccomodatedJobs", len(unAccomodatedJobs)),
				)

				err = svcs.PendingSvc.Publish(unAccomodatedJobs)
				if err != nil {
					procError(svcs.DataSvc, model.GenError("agents_manager",
						err,
						map[string]interface{}{},
						"error republishing unaccommodated jobs"))
				}
			}

			if subscribed && len(runningAgents) >= svcs.CfgSvc.GetMaxAgentsPerPod() {
				agentsManagerStats.TotalPendingRequestUnsubscriptions++
				// Unsubscribe from the pending service so that we don't get more jobs
				// We want to make sure that we don't consume jobs that may deprive
				// other agent pods from getting them
				err = svcs.PendingSvc.Unsubscribe()
				if err != nil {
					procError(svcs.DataSvc, model.GenError("agents_manager",
						err,
						map[string]interface{}{},
						"error unsubscribing from pending service"))
				} else {
					subscribed = false
				}
			}

		case result := <-resultStream:
			procAgentResult(svcs, &agentsManagerStats, result)
			if a, ok := runningAgents[result.JobID]; ok {
				a.CanxFn()
				delete(runningAgents, result.JobID)
			}
			resubscribe()

		case <-periodic.C:
			cancelVanishedAgents(svcs, runningAgents)
			resubscribe()

			agentsManagerStats.TotalRunningAgentsUptime = time.Now().Unix() - agentsManagerStartTime
			agentsManagerStats.TotalRunningAgents += int64(len(runningAgents))
			if agentsManagerStats.TotalRunningAgentsUptime > 0 {
				uptimeInMinutes := float64(agentsManagerStats.TotalRunningAgentsUptime) / 60.0
				agentsManagerStats.AvgRunningAgentsPerMin = float64(agentsManagerStats.TotalRunningAgents) / uptimeInMinutes
			} else {
				agentsManagerStats.AvgRunningAgentsPerMin = 0.0 // Avoid division by zero
			}
			agentsManagerStats.Timestamp = time.Now().Unix()

			procStats(svcs.DataSvc, agentsManagerStats)

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// Wait in a non-blocking way for `waitOnShutdown` for all the go routines to exit
	// This is needed because the agents need to put their jobs back to pending as they exit
resume:
	lgr.Logger.Info(
		"agents manager is waiting for all agents to exit",
		slog.Int("runningAgents", len(runningAgents)),
	)

	agentsDone := make(chan struct{})
	go func() {
		agentsWG.Wait()
		close(agentsDone)
	}()

	// The only way to exit the main function is to wait for the agents or
	// the shutdown duration
	timer := time.NewTimer(time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-agentsDone:
			lgr.Logger.Info(
				"agents manager all agents exited",
			)
			return nil

		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"agents manager shutdown waiting period expired. Exiting now",
				slog.Duration("period", time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second),
			)

			return nil

		case result := <-resultStream:
			procAgentResult(svcs, &agentsManagerStats, result)
			delete(runningAgents, result.JobID)

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

// Cancels the agents whose job was removed from the job store. The agents
// stay in the running list until they report back.
func cancelVanishedAgents(svcs pipeline.ServicesFactory, runningAgents map[string]agent) []string {
	if len(runningAgents) == 0 {
		return nil
	}

	ids := make([]string, 0, len(runningAgents))
	for id := range runningAgents {
		ids = append(ids, id)
	}

	jobs, err := svcs.DataSvc.RetrieveJobsByIDs(ids)
	if err != nil {
		procError(svcs.DataSvc, model.GenError("agents_manager",
			err,
			map[string]interface{}{},
			"error retrieving running jobs"))
		return nil
	}

	stored := map[string]bool{}
	for _, job := range jobs {
		stored[job.ID] = true
	}

	vanished := []string{}
	for id, a := range runningAgents {
		if stored[id] {
			continue
		}

		lgr.Logger.Info(
			"agents manager cancelling agent of a removed job",
			slog.String("job", a.Job.Name),
			slog.String("jobID", id),
		)
		a.CanxFn()
		vanished = append(vanished, id)
	}
	return vanished
}

func procAgentResult(svcs pipeline.ServicesFactory, stats *model.AgentsManagerStats, result agentResult) {
	switch {
	case result.Err == nil:
		stats.TotalCompletedJobs++
	case errors.Is(result.Err, context.Canceled):
		// Back to pending, nothing to count
	default:
		stats.TotalFailedJobs++
		procError(svcs.DataSvc, model.GenError("agents_manager",
			result.Err,
			map[string]interface{}{"jobID": result.JobID},
			"agent failed to run job %s",
			result.JobID))
	}
}
