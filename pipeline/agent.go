package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	"github.com/khaledhikmat/vs-frames/service/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/khaledhikmat/vs-frames/pipeline")

// Streamer processes, filled by RegisterStreamer
var streamerProcs = map[string]Streamer{}

// Receives the frames flagged by the streamers
var alerter Alerter = FrameSaver

// Streamers run for each job kind
var jobStreamers = map[model.JobKind][]string{
	model.JobKindExtract:     {FrameExtractorName},
	model.JobKindExpressions: {ExpressionDetectorName},
}

func RegisterStreamer(name string, streamer Streamer) {
	if _, ok := streamerProcs[name]; ok {
		lgr.Logger.Warn("streamer already registered", slog.String("name", name))
		return
	}
	streamerProcs[name] = streamer
}

func LookupStreamer(name string) (Streamer, bool) {
	streamer, ok := streamerProcs[name]
	return streamer, ok
}

func StreamersFor(kind model.JobKind) ([]string, error) {
	names, ok := jobStreamers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
	return names, nil
}

// Agent runs one job to completion: it wires the framer to the streamers
// required by the job kind, heart beats while frames flow and records the
// final job status. A cancelled job is put back to pending.
func Agent(canxCtx context.Context,
	svcs ServicesFactory,
	errorStream chan interface{},
	statsStream chan interface{},
	job model.Job) error {
	agentID := uuid.NewString()

	ctx, span := tracer.Start(canxCtx, "agent", trace.WithAttributes(
		attribute.String("agent.id", agentID),
		attribute.String("job.id", job.ID),
		attribute.String("job.name", job.Name),
		attribute.String("job.kind", string(job.Kind)),
	))
	defer span.End()

	lgr.Logger.Info(
		"agent starting....",
		slog.String("agentID", agentID),
		slog.String("job", job.Name),
		slog.String("kind", string(job.Kind)),
		slog.String("framerType", job.FramerType),
		slog.String("video", job.InputPath),
		slog.String("output", job.OutputFolder),
		slog.String("traceID", span.SpanContext().TraceID().String()),
	)

	agentStartTime := time.Now()
	run := &Run{Job: job}

	finish := func(err error) error {
		// Frames still buffered when the context goes away are dropped, so a
		// clean framer exit does not mean the job is done
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}

		status := model.JobStatusCompleted
		switch {
		case errors.Is(err, context.Canceled):
			status = model.JobStatusPending
		case err != nil:
			status = model.JobStatusFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		frames := int(run.Frames.Load())
		saved := int(run.Saved.Load())
		span.SetAttributes(
			attribute.Int("job.frames", frames),
			attribute.Int("job.saved", saved),
		)

		if updErr := svcs.DataSvc.UpdateJobStatus(job.ID, status, frames, saved, err); updErr != nil {
			lgr.Logger.Error(
				"error updating job status",
				slog.String("job", job.Name),
				slog.Any("error", updErr),
			)
		}
		metrics.JobsProcessedTotal.WithLabelValues(string(status)).Inc()

		statsStream <- model.AgentStats{
			ID:     agentID,
			Job:    job.Name,
			Status: status,
			Uptime: int64(time.Since(agentStartTime).Seconds()),
		}

		lgr.Logger.Info(
			"agent finished",
			slog.String("agentID", agentID),
			slog.String("job", job.Name),
			slog.String("status", string(status)),
			slog.Int("frames", frames),
			slog.Int("saved", saved),
		)
		return err
	}

	streamNames, err := StreamersFor(job.Kind)
	if err != nil {
		return finish(err)
	}

	if job.OutputFolder == "" {
		return finish(fmt.Errorf("job %s has no output folder", job.Name))
	}

	if _, err := svcs.StorageSvc.EnsureFolder(job.OutputFolder); err != nil {
		return finish(err)
	}

	if err := svcs.DataSvc.UpdateJobAgentID(job.ID, agentID); err != nil {
		return fmt.Errorf("error updating job agent id: %w", err)
	}

	if err := svcs.DataSvc.UpdateJobStatus(job.ID, model.JobStatusRunning, 0, 0, nil); err != nil {
		return fmt.Errorf("error updating job status: %w", err)
	}

	metrics.ActiveAgents.Inc()
	defer metrics.ActiveAgents.Dec()

	streamWG := &sync.WaitGroup{}
	alertWG := &sync.WaitGroup{}
	alertStream := alerter(ctx, svcs, run, errorStream, statsStream, alertWG)

	// Lets the alerter go once every streamer has drained its frames
	drain := func() {
		streamWG.Wait()
		close(alertStream)
		alertWG.Wait()
	}

	// Setup the stream channels
	streamChannels := []chan FrameData{}
	for _, name := range streamNames {
		streamer, ok := LookupStreamer(name)
		if !ok {
			err = fmt.Errorf("streamer %s not found", name)
		} else {
			var streamChan chan FrameData
			streamChan, err = streamer(ctx, svcs, run, errorStream, statsStream, alertStream, streamWG)
			if err == nil {
				streamChannels = append(streamChannels, streamChan)
				continue
			}
		}

		for _, streamChan := range streamChannels {
			close(streamChan)
		}
		drain()
		return finish(err)
	}

	// Start the agent frame capturer
	framerResult := make(chan error, 1)
	go func() {
		framerCtx, framerSpan := tracer.Start(ctx, "framer")
		defer framerSpan.End()
		framerResult <- framer(framerCtx, svcs, run, errorStream, statsStream, streamChannels)
	}()

	done := make(chan struct{})
	go func() {
		drain()
		close(done)
	}()

	heartbeat := time.NewTicker(time.Duration(svcs.CfgSvc.GetAgentPeriodicTimeout()) * time.Second)
	defer heartbeat.Stop()

	// Monitor completion and update heartbeats
	for {
		select {
		case <-done:
			return finish(<-framerResult)

		case <-heartbeat.C:
			// Update the agent heartbeat so that the agents monitor would know
			// that the agent is alive and kicking and does not need to be re-scheduled
			err := svcs.DataSvc.UpdateJobAgentHeartbeat(job.ID)
			if err != nil {
				lgr.Logger.Error(
					"error updating job agent heartbeat",
					slog.Any("error", err),
				)
			}

			statsStream <- model.AgentStats{
				ID:     agentID,
				Job:    job.Name,
				Status: model.JobStatusRunning,
				Uptime: int64(time.Since(agentStartTime).Seconds()),
			}
		}
	}
}
