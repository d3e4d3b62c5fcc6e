package data

import "github.com/khaledhikmat/vs-frames/model"

type IService interface {
	RetrieveJobs() ([]model.Job, error)
	RetrieveJobByID(id string) (model.Job, error)
	RetrieveJobsByIDs(ids []string) ([]model.Job, error)
	RetrievePendingJobs(max int) ([]model.Job, error)
	RetrieveOrphanedJobs(max int, staleAfter int64) ([]model.Job, error)
	NewJob(job model.Job) (model.Job, error)
	UpdateJobStatus(id string, status model.JobStatus, frames, savedFrames int, jobErr error) error
	UpdateJobAgentID(jobID, agentID string) error
	UpdateJobAgentHeartbeat(id string) error

	NewError(err interface{}) error
	NewAgentsManagerStats(stats model.AgentsManagerStats) error
	NewAgentStats(stats model.AgentStats) error
	NewFramerStats(stats model.FramerStats) error
	NewStreamerStats(stats model.StreamerStats) error
	NewAlerterStats(stats model.AlerterStats) error
}
