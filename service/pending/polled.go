package pending

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/data"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	"golang.org/x/xerrors"
)

type polledService struct {
	CanxCtx  context.Context
	DataSvc  data.IService
	Interval time.Duration
	MaxJobs  int

	mu         sync.Mutex
	subsCtx    context.Context
	subsCancel context.CancelFunc
	jobChannel chan []model.Job
	// Jobs already handed out; they are not delivered again until re-published
	delivered map[string]bool
}

// NewPolled delivers pending jobs found in the data service on its subscribed
// channel, polling every interval.
func NewPolled(canxCtx context.Context, dataSvc data.IService, interval time.Duration, maxJobs int) IService {
	return &polledService{
		CanxCtx:   canxCtx,
		DataSvc:   dataSvc,
		Interval:  interval,
		MaxJobs:   maxJobs,
		delivered: map[string]bool{},
	}
}

// Publish marks the jobs as pending again so the next poll picks them up.
func (svc *polledService) Publish(jobs []model.Job) error {
	for _, job := range jobs {
		err := svc.DataSvc.UpdateJobStatus(job.ID, model.JobStatusPending, job.Frames, job.SavedFrames, nil)
		if err != nil {
			return xerrors.Errorf("republish job %s: %w", job.ID, err)
		}

		svc.mu.Lock()
		delete(svc.delivered, job.ID)
		svc.mu.Unlock()
	}

	return nil
}

func (svc *polledService) Subscribe() (<-chan []model.Job, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.subsCtx != nil {
		lgr.Logger.Error(
			"pending polled service. Already subscribed to jobs. Unsubscribe first",
		)
		return nil, xerrors.New("pending polled service. child context is not nil. Unsubscribe first")
	}

	// Regardless of how many times we subscribe/unsubscribe, we will always
	// have only one channel to send the jobs to the agents manager
	if svc.jobChannel == nil {
		svc.jobChannel = make(chan []model.Job)
	}

	subsCtx, subsCancel := context.WithCancel(svc.CanxCtx)
	svc.subsCtx = subsCtx
	svc.subsCancel = subsCancel

	go svc.poll(subsCtx, svc.jobChannel)

	return svc.jobChannel, nil
}

func (svc *polledService) poll(ctx context.Context, out chan []model.Job) {
	ticker := time.NewTicker(svc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Debug("pending polled service subscription cancelled")
			return

		case <-ticker.C:
			jobs, err := svc.DataSvc.RetrievePendingJobs(svc.MaxJobs)
			if err != nil {
				lgr.Logger.Error(
					"pending polled service could not retrieve jobs",
					slog.Any("error", err),
				)
				continue
			}

			fresh := svc.undelivered(jobs)
			if len(fresh) == 0 {
				continue
			}

			select {
			case <-ctx.Done():
				svc.forget(fresh)
				return
			case out <- fresh:
			}
		}
	}
}

func (svc *polledService) undelivered(jobs []model.Job) []model.Job {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	// Jobs that left the pending state are dropped so that they can be
	// delivered again if they ever come back
	stillPending := make(map[string]bool, len(jobs))
	fresh := []model.Job{}
	for _, job := range jobs {
		stillPending[job.ID] = true
		if svc.delivered[job.ID] {
			continue
		}
		svc.delivered[job.ID] = true
		fresh = append(fresh, job)
	}

	for id := range svc.delivered {
		if !stillPending[id] {
			delete(svc.delivered, id)
		}
	}
	return fresh
}

func (svc *polledService) forget(jobs []model.Job) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, job := range jobs {
		delete(svc.delivered, job.ID)
	}
}

func (svc *polledService) Unsubscribe() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.subsCtx == nil {
		return xerrors.New("not subscribed yet. Subscribe first")
	}

	svc.subsCancel()
	svc.subsCtx = nil
	svc.subsCancel = nil
	return nil
}

func (svc *polledService) Finalize() {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.subsCancel != nil {
		svc.subsCancel()
		svc.subsCtx = nil
		svc.subsCancel = nil
	}
}
