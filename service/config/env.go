package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type settings struct {
	ModeMaxShutdownTime int `env:"MODE_MAX_SHUTDOWN_TIME" envDefault:"5"`

	InputFolder  string `env:"INPUT_FOLDER"  envDefault:"./settings"`
	OutputFolder string `env:"OUTPUT_FOLDER" envDefault:"."`

	ExtractVideo       string `env:"EXTRACT_VIDEO"        envDefault:"./video1/PruebaContador.mp4"`
	ExtractOutput      string `env:"EXTRACT_OUTPUT"       envDefault:"Output"`
	ExpressionsVideo   string `env:"EXPRESSIONS_VIDEO"    envDefault:"./video2/Prueba2.1.mp4"`
	ExpressionsOutput  string `env:"EXPRESSIONS_OUTPUT"   envDefault:"Output2"`
	FramerType         string `env:"FRAMER_TYPE"          envDefault:"file"`
	SyntheticFrames    int    `env:"SYNTHETIC_FRAMES"     envDefault:"30"`
	MaxBatchJobs       int    `env:"MAX_BATCH_JOBS"       envDefault:"100"`
	StreamerMaxWorkers int    `env:"STREAMER_MAX_WORKERS" envDefault:"3"`

	MaxAgentsPerPod              int `env:"MAX_AGENTS_PER_POD"               envDefault:"1"`
	AgentPeriodicTimeout         int `env:"AGENT_PERIODIC_TIMEOUT"           envDefault:"30"`
	AgentsManagerPeriodicTimeout int `env:"AGENTS_MANAGER_PERIODIC_TIMEOUT"  envDefault:"30"`
	AgentsMonitorPeriodicTimeout int `env:"AGENTS_MONITOR_PERIODIC_TIMEOUT"  envDefault:"30"`
	AgentsMonitorMaxOrphanedJobs int `env:"AGENTS_MONITOR_MAX_ORPHANED_JOBS" envDefault:"10"`
	AgentsMonitorStaleHeartbeat  int `env:"AGENTS_MONITOR_STALE_HEARTBEAT"   envDefault:"300"`

	CascadePath    string  `env:"CASCADE_PATH"     envDefault:"./haarcascades/haarcascade_frontalface_default.xml"`
	ScaleFactor    float64 `env:"DETECT_SCALE"     envDefault:"1.1"`
	MinNeighbors   int     `env:"DETECT_NEIGHBORS" envDefault:"3"`
	DetectFlags    int     `env:"DETECT_FLAGS"     envDefault:"1"`
	DetectMinSize  int     `env:"DETECT_MIN_SIZE"  envDefault:"0"`
	DetectMaxSize  int     `env:"DETECT_MAX_SIZE"  envDefault:"0"`
	ChangeThresh   float64 `env:"CHANGE_THRESHOLD" envDefault:"5.0"`
	ChangeLog      string  `env:"CHANGE_LOG"       envDefault:"changes.log"`
	StorageType    string  `env:"STORAGE_TYPE"     envDefault:"local"`
	MinIOEndpoint  string  `env:"MINIO_ENDPOINT"   envDefault:"localhost:9000"`
	MinIOAccessKey string  `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string  `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool    `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string  `env:"MINIO_BUCKET"     envDefault:"frames"`

	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	LogFile      string `env:"LOG_FILE"      envDefault:""`
	MetricsPort  int    `env:"METRICS_PORT"  envDefault:"0"`
	OTelEndpoint string `env:"OTEL_ENDPOINT" envDefault:""`
}

type envService struct {
	s settings
}

// NewEnv reads settings from the process environment.
func NewEnv() (IService, error) {
	return newEnvService(env.Options{})
}

// NewFromMap reads settings from the given map instead of the environment.
func NewFromMap(vars map[string]string) (IService, error) {
	return newEnvService(env.Options{Environment: vars})
}

func newEnvService(opts env.Options) (IService, error) {
	s := settings{}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if s.StreamerMaxWorkers < 1 {
		return nil, fmt.Errorf("STREAMER_MAX_WORKERS must be at least 1, got %d", s.StreamerMaxWorkers)
	}
	if s.MaxAgentsPerPod < 1 {
		return nil, fmt.Errorf("MAX_AGENTS_PER_POD must be at least 1, got %d", s.MaxAgentsPerPod)
	}
	for name, timeout := range map[string]int{
		"AGENT_PERIODIC_TIMEOUT":          s.AgentPeriodicTimeout,
		"AGENTS_MANAGER_PERIODIC_TIMEOUT": s.AgentsManagerPeriodicTimeout,
		"AGENTS_MONITOR_PERIODIC_TIMEOUT": s.AgentsMonitorPeriodicTimeout,
	} {
		if timeout < 1 {
			return nil, fmt.Errorf("%s must be at least 1 second, got %d", name, timeout)
		}
	}
	if s.ScaleFactor <= 1.0 {
		return nil, fmt.Errorf("DETECT_SCALE must be greater than 1, got %f", s.ScaleFactor)
	}

	return &envService{s: s}, nil
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return svc.s.ModeMaxShutdownTime
}

func (svc *envService) GetInputFolder() string {
	return svc.s.InputFolder
}

func (svc *envService) GetJobsInputFile() string {
	return filepath.Join(svc.s.InputFolder, "jobs.json")
}

func (svc *envService) GetOutputFolder() string {
	return svc.s.OutputFolder
}

func (svc *envService) GetDefaultJobs() []DefaultJob {
	return []DefaultJob{
		{
			Name:         "frames",
			Kind:         "extract",
			InputPath:    svc.s.ExtractVideo,
			OutputFolder: filepath.Join(svc.s.OutputFolder, svc.s.ExtractOutput),
			FramerType:   svc.s.FramerType,
		},
		{
			Name:         "expressions",
			Kind:         "expressions",
			InputPath:    svc.s.ExpressionsVideo,
			OutputFolder: filepath.Join(svc.s.OutputFolder, svc.s.ExpressionsOutput),
			FramerType:   svc.s.FramerType,
		},
	}
}

func (svc *envService) GetMaxBatchJobs() int {
	return svc.s.MaxBatchJobs
}

func (svc *envService) GetMaxAgentsPerPod() int {
	return svc.s.MaxAgentsPerPod
}

func (svc *envService) GetAgentPeriodicTimeout() int {
	return svc.s.AgentPeriodicTimeout
}

func (svc *envService) GetAgentsManagerPeriodicTimeout() int {
	return svc.s.AgentsManagerPeriodicTimeout
}

func (svc *envService) GetAgentsMonitorPeriodicTimeout() int {
	return svc.s.AgentsMonitorPeriodicTimeout
}

func (svc *envService) GetAgentsMonitorMaxOrphanedJobs() int {
	return svc.s.AgentsMonitorMaxOrphanedJobs
}

func (svc *envService) GetAgentsMonitorStaleHeartbeat() int {
	return svc.s.AgentsMonitorStaleHeartbeat
}

func (svc *envService) GetStreamerMaxWorkers() int {
	return svc.s.StreamerMaxWorkers
}

func (svc *envService) GetSyntheticFrames() int {
	return svc.s.SyntheticFrames
}

func (svc *envService) GetDetectionParameters() DetectionParameters {
	return DetectionParameters{
		CascadePath:  svc.s.CascadePath,
		ScaleFactor:  svc.s.ScaleFactor,
		MinNeighbors: svc.s.MinNeighbors,
		Flags:        svc.s.DetectFlags,
		MinSize:      svc.s.DetectMinSize,
		MaxSize:      svc.s.DetectMaxSize,
		Threshold:    svc.s.ChangeThresh,
		ChangeLog:    svc.s.ChangeLog,
	}
}

func (svc *envService) GetStorageParameters() StorageParameters {
	return StorageParameters{
		Type:      svc.s.StorageType,
		Endpoint:  svc.s.MinIOEndpoint,
		AccessKey: svc.s.MinIOAccessKey,
		SecretKey: svc.s.MinIOSecretKey,
		UseSSL:    svc.s.MinIOUseSSL,
		Bucket:    svc.s.MinIOBucket,
	}
}

func (svc *envService) GetLogLevel() string {
	return svc.s.LogLevel
}

func (svc *envService) GetLogFile() string {
	return svc.s.LogFile
}

func (svc *envService) GetMetricsPort() int {
	return svc.s.MetricsPort
}

func (svc *envService) GetTracingEndpoint() string {
	return svc.s.OTelEndpoint
}
