package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-frames/mode"
	"github.com/khaledhikmat/vs-frames/pipeline"
	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/khaledhikmat/vs-frames/service/data"
	"github.com/khaledhikmat/vs-frames/service/detector"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	"github.com/khaledhikmat/vs-frames/service/metrics"
	"github.com/khaledhikmat/vs-frames/service/pending"
	"github.com/khaledhikmat/vs-frames/service/storage"
	"github.com/khaledhikmat/vs-frames/service/tracing"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"batch":   mode.Batch,
	"manager": mode.Manager,
	"monitor": mode.Monitor,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)
	defer canxFn()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			lgr.Logger.Error("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
			panic("error loading .env file")
		}
		if err == nil {
			lgr.Logger.Info("loaded env vars from .env file")
		}
	}

	modeType := "batch"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Create the services needed for the mode processor
	// Config service
	cfgSvc, err := config.NewEnv()
	if err != nil {
		lgr.Logger.Error("invalid configuration", slog.Any("error", xerrors.New(err.Error())))
		panic("invalid configuration")
	}

	logCloser := lgr.Configure(lgr.Options{
		Level:      cfgSvc.GetLogLevel(),
		File:       cfgSvc.GetLogFile(),
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 7,
	})
	defer logCloser.Close()

	// Hook up a signal handler to cancel the context. It starts after the
	// logger is configured since it reads lgr.Logger from its own goroutine.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	metricsSrv := metrics.StartServer(cfgSvc.GetMetricsPort())

	tp, err := tracing.Init(canxCtx, cfgSvc.GetTracingEndpoint())
	if err != nil {
		lgr.Logger.Error("error initializing tracing", slog.Any("error", xerrors.New(err.Error())))
		panic("error initializing tracing")
	}
	defer func() {
		shutdownCtx, shutdownFn := context.WithTimeout(rootCtx, 2*time.Second)
		defer shutdownFn()
		tp.Shutdown(shutdownCtx)
	}()

	// Data service
	dataSvc := data.NewFilesDB(cfgSvc)
	// Pending service
	pendingSvc := pending.NewPolled(canxCtx,
		dataSvc,
		time.Duration(cfgSvc.GetAgentsManagerPeriodicTimeout())*time.Second,
		cfgSvc.GetMaxAgentsPerPod())
	defer pendingSvc.Finalize()
	// storage service
	storageSvc, err := storage.New(canxCtx, cfgSvc.GetStorageParameters())
	if err != nil {
		lgr.Logger.Error("error creating storage service", slog.Any("error", xerrors.New(err.Error())))
		panic("error creating storage service")
	}

	svcs := pipeline.ServicesFactory{
		CfgSvc:     cfgSvc,
		DataSvc:    dataSvc,
		PendingSvc: pendingSvc,
		StorageSvc: storageSvc,
		DetectorFn: detector.NewCascadeFactory(cfgSvc),
	}

	lgr.Logger.Info(
		"agents pod starting",
		slog.String("mode", modeType),
		slog.String("inputFolder", cfgSvc.GetInputFolder()),
		slog.String("outputFolder", cfgSvc.GetOutputFolder()),
		slog.String("storage", cfgSvc.GetStorageParameters().Type),
	)

	// Create mode processor result
	modeProcResult := make(chan error, 1)
	modeProcExited := false

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	// Wait for cancellation or mode proc
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"agents pod context cancelled",
		)

	case err := <-modeProcResult:
		modeProcExited = true
		logModeProcExit(err)
	}

	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		// Force cancel the context
		canxFn()
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownFn := context.WithTimeout(rootCtx, time.Second)
		metricsSrv.Shutdown(shutdownCtx)
		shutdownFn()
	}

	if modeProcExited {
		return
	}

	// Wait in a non-blocking way for `waitOnShutdown` for the mode processor to exit
	// This is needed because agents put their jobs back to pending as they exit
	lgr.Logger.Info(
		"agents pod is waiting for all go routines to exit",
	)

	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		// Timer expired, proceed with shutdown
		lgr.Logger.Info(
			"agents pod shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)

	case err := <-modeProcResult:
		logModeProcExit(err)
	}
}

func logModeProcExit(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		lgr.Logger.Info(
			"agents pod mode processor exited",
			slog.Any("error", xerrors.New(err.Error())),
		)
		return
	}

	lgr.Logger.Info("agents pod mode processor exited")
}
