package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

type JobKind string

const (
	// Every decoded frame is written out
	JobKindExtract JobKind = "extract"
	// Only frames whose mouth region changed are written out
	JobKindExpressions JobKind = "expressions"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

type Job struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Kind          JobKind   `json:"kind"`
	InputPath     string    `json:"inputPath"`
	OutputFolder  string    `json:"outputFolder"`
	FramerType    string    `json:"framerType"`
	Status        JobStatus `json:"status"`
	Error         string    `json:"error,omitempty"`
	AgentID       string    `json:"agentId"`       // The agent id that is currently processing this job
	StartupTime   int64     `json:"startupTime"`   // The startup time of the agent
	LastHeartBeat int64     `json:"lastHeartbeat"` // The last heartbeat time of the agent
	CompletedTime int64     `json:"completedTime"`
	Frames        int       `json:"frames"`
	SavedFrames   int       `json:"savedFrames"`
}

type AlerterStats struct {
	Name      string `json:"name"`
	Job       string `json:"job"`
	Alerts    int    `json:"alerts"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type StreamerStats struct {
	Name        string  `json:"name"`
	Worker      int     `json:"worker"`
	Job         string  `json:"job"`
	FPS         int     `json:"fps"`
	Frames      int     `json:"frames"`
	Faces       int     `json:"faces"`
	Changes     int     `json:"changes"`
	Errors      int     `json:"errors"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

type FramerStats struct {
	Name      string `json:"name"`
	Job       string `json:"job"`
	FPS       int    `json:"fps"`
	Frames    int    `json:"frames"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type AgentStats struct {
	ID        string    `json:"id"`  // Agent ID
	Job       string    `json:"job"` // Job name
	Status    JobStatus `json:"status"`
	Uptime    int64     `json:"uptime"` // Uptime of the agent
	Timestamp int64     `json:"timestamp"`
}

type AgentsManagerStats struct {
	TotalPendingRequests               int64   `json:"pendingRequests"`
	TotalPendingRequestSubscriptions   int64   `json:"pendingRequestSubscriptions"`
	TotalPendingRequestUnsubscriptions int64   `json:"pendingRequestUnsubscriptions"`
	TotalRunningAgents                 int64   `json:"runningAgents"`
	TotalCompletedJobs                 int64   `json:"completedJobs"`
	TotalFailedJobs                    int64   `json:"failedJobs"`
	TotalRunningAgentsUptime           int64   `json:"runningAgentsUptime"`
	AvgRunningAgentsPerMin             float64 `json:"avgRunningAgentsPerMin"`
	Timestamp                          int64   `json:"timestamp"`
}
