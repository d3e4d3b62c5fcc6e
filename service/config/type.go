package config

type DetectionParameters struct {
	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int
	Flags        int
	MinSize      int
	MaxSize      int
	Threshold    float64
	ChangeLog    string
}

type StorageParameters struct {
	Type      string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetInputFolder() string
	GetJobsInputFile() string
	GetOutputFolder() string
	GetDefaultJobs() []DefaultJob
	GetMaxBatchJobs() int
	GetMaxAgentsPerPod() int
	GetAgentPeriodicTimeout() int
	GetAgentsManagerPeriodicTimeout() int
	GetAgentsMonitorPeriodicTimeout() int
	GetAgentsMonitorMaxOrphanedJobs() int
	GetAgentsMonitorStaleHeartbeat() int
	GetStreamerMaxWorkers() int
	GetSyntheticFrames() int
	GetDetectionParameters() DetectionParameters
	GetStorageParameters() StorageParameters
	GetLogLevel() string
	GetLogFile() string
	GetMetricsPort() int
	GetTracingEndpoint() string
}

// DefaultJob describes a job run by batch mode when nothing is pending.
type DefaultJob struct {
	Name         string
	Kind         string
	InputPath    string
	OutputFolder string
	FramerType   string
}
