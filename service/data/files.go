package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/config"
)

type filesDBService struct {
	CfgSvc config.IService
	// Agents update the jobs file concurrently
	mu sync.Mutex
}

func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) RetrieveJobs() ([]model.Job, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.readJobs()
}

func (svc *filesDBService) RetrieveJobByID(id string) (model.Job, error) {
	jobs, err := svc.RetrieveJobs()
	if err != nil {
		return model.Job{}, err
	}

	for _, job := range jobs {
		if job.ID == id {
			return job, nil
		}
	}

	return model.Job{}, fmt.Errorf("job %s not found", id)
}

func (svc *filesDBService) RetrieveJobsByIDs(ids []string) ([]model.Job, error) {
	jobs, err := svc.RetrieveJobs()
	if err != nil {
		return nil, err
	}

	var result []model.Job
	for _, job := range jobs {
		for _, id := range ids {
			if job.ID == id {
				result = append(result, job)
			}
		}
	}

	return result, nil
}

func (svc *filesDBService) RetrievePendingJobs(max int) ([]model.Job, error) {
	jobs, err := svc.RetrieveJobs()
	if err != nil {
		return nil, err
	}

	var result []model.Job
	for _, job := range jobs {
		if len(result) >= max {
			break
		}
		if job.Status == model.JobStatusPending || job.Status == "" {
			result = append(result, job)
		}
	}

	return result, nil
}

// Running jobs whose agent stopped heart beating for more than staleAfter seconds
func (svc *filesDBService) RetrieveOrphanedJobs(max int, staleAfter int64) ([]model.Job, error) {
	jobs, err := svc.RetrieveJobs()
	if err != nil {
		return nil, err
	}

	var result []model.Job
	now := time.Now().Unix()
	for _, job := range jobs {
		if len(result) >= max {
			break
		}
		if job.Status != model.JobStatusRunning {
			continue
		}
		if job.AgentID == "" || now-job.LastHeartBeat > staleAfter {
			result = append(result, job)
		}
	}

	return result, nil
}

func (svc *filesDBService) NewJob(job model.Job) (model.Job, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	jobs, err := svc.readJobs()
	if err != nil {
		return model.Job{}, err
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.FramerType == "" {
		job.FramerType = "file"
	}

	for _, existing := range jobs {
		if existing.ID == job.ID {
			return model.Job{}, fmt.Errorf("job %s already exists", job.ID)
		}
	}

	jobs = append(jobs, job)
	return job, svc.writeJobs(jobs)
}

func (svc *filesDBService) UpdateJobStatus(id string, status model.JobStatus, frames, savedFrames int, jobErr error) error {
	return svc.updateJob(id, func(job *model.Job) {
		job.Status = status
		job.Frames = frames
		job.SavedFrames = savedFrames
		job.Error = ""
		if jobErr != nil {
			job.Error = jobErr.Error()
		}

		switch status {
		case model.JobStatusCompleted, model.JobStatusFailed:
			job.CompletedTime = time.Now().Unix()
		case model.JobStatusPending:
			job.AgentID = ""
		}
	})
}

func (svc *filesDBService) UpdateJobAgentID(jobID, agentID string) error {
	return svc.updateJob(jobID, func(job *model.Job) {
		job.AgentID = agentID
		job.StartupTime = time.Now().Unix()
		job.LastHeartBeat = time.Now().Unix()
	})
}

func (svc *filesDBService) UpdateJobAgentHeartbeat(id string) error {
	return svc.updateJob(id, func(job *model.Job) {
		job.LastHeartBeat = time.Now().Unix()
	})
}

func (svc *filesDBService) updateJob(id string, mutate func(job *model.Job)) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	jobs, err := svc.readJobs()
	if err != nil {
		return err
	}

	found := false
	for i := range jobs {
		if jobs[i].ID == id {
			mutate(&jobs[i])
			found = true
			break
		}
	}

	if !found {
		return fmt.Errorf("job %s not found", id)
	}

	return svc.writeJobs(jobs)
}

func (svc *filesDBService) readJobs() ([]model.Job, error) {
	jobs := []model.Job{}

	data, err := os.ReadFile(svc.CfgSvc.GetJobsInputFile())
	if errors.Is(err, os.ErrNotExist) {
		return jobs, nil
	}
	if err != nil {
		return jobs, err
	}

	err = json.Unmarshal(data, &jobs)
	if err != nil {
		return jobs, fmt.Errorf("decode jobs file: %w", err)
	}

	return jobs, nil
}

func (svc *filesDBService) writeJobs(jobs []model.Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}

	output := svc.CfgSvc.GetJobsInputFile()
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(output, data, 0644)
}

func (svc *filesDBService) NewError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		customErr.Processor = "N/A"
		customErr.Message = fmt.Sprintf("%v", e)
		customErr.StackTrace = "N/A"
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	// Create an error object to persist
	errorData := struct {
		Timestamp  int64                  `json:"timestamp"`
		Processor  string                 `json:"processor"`
		Inner      string                 `json:"innerError"`
		Message    string                 `json:"message"`
		StackTrace string                 `json:"stackTrace"`
		Misc       map[string]interface{} `json:"misc"`
	}{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
	return svc.newEntity(errorData, "errors")
}

func (svc *filesDBService) NewAgentsManagerStats(stats model.AgentsManagerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "agents-manager-stats")
}

func (svc *filesDBService) NewAgentStats(stats model.AgentStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "agent-stats")
}

func (svc *filesDBService) NewFramerStats(stats model.FramerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "framer-stats")
}

func (svc *filesDBService) NewStreamerStats(stats model.StreamerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "streamer-stats")
}

func (svc *filesDBService) NewAlerterStats(stats model.AlerterStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "alerter-stats")
}

func (svc *filesDBService) newEntity(entity interface{}, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return appendEntity(entity, filename, svc.CfgSvc)
}

func appendEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntities[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgsvc.GetInputFolder(), 0755); err != nil {
		return err
	}

	return os.WriteFile(entityFile(filename, cfgsvc), data, 0644)
}

func retrieveEntities[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityFile(filename, cfgsvc))
	if err != nil {
		// WARNING: File not found, return empty slice
		return entities, nil
	}

	err = json.Unmarshal(data, &entities)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	return entities, nil
}

func entityFile(filename string, cfgsvc config.IService) string {
	return filepath.Join(cfgsvc.GetInputFolder(), filename+".json")
}
