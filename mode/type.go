package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/pipeline"
	"github.com/khaledhikmat/vs-frames/service/data"
	"github.com/khaledhikmat/vs-frames/service/lgr"
)

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

func procStats(datasvc data.IService, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.AgentsManagerStats:
		err = datasvc.NewAgentsManagerStats(stats)
	case model.AgentStats:
		err = datasvc.NewAgentStats(stats)
	case model.FramerStats:
		lgr.Logger.Debug(
			"framer done",
			slog.String("job", stats.Job),
			slog.Int("frames", stats.Frames),
			slog.Int("fps", stats.FPS),
		)
		err = datasvc.NewFramerStats(stats)
	case model.StreamerStats:
		err = datasvc.NewStreamerStats(stats)
	case model.AlerterStats:
		err = datasvc.NewAlerterStats(stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
		return
	}

	if err != nil {
		lgr.Logger.Error(
			"failed to store stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	if e, ok := err.(error); ok {
		lgr.Logger.Error(
			"pipeline error",
			slog.Any("error", e),
		)
	}

	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}

// drainUntil keeps persisting stats and errors until done is closed.
func drainUntil(datasvc data.IService, done <-chan struct{}, statsStream, errorStream chan interface{}) {
	for {
		select {
		case <-done:
			return
		case s := <-statsStream:
			procStats(datasvc, s)
		case e := <-errorStream:
			procError(datasvc, e)
		}
	}
}
