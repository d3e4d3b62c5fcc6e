package pending

import (
	"context"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/khaledhikmat/vs-frames/service/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestData(t *testing.T) data.IService {
	t.Helper()

	cfg, err := config.NewFromMap(map[string]string{"INPUT_FOLDER": t.TempDir()})
	require.NoError(t, err)
	return data.NewFilesDB(cfg)
}

func receive(t *testing.T, stream <-chan []model.Job) []model.Job {
	t.Helper()

	select {
	case jobs := <-stream:
		return jobs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pending jobs")
		return nil
	}
}

func TestSubscribeDeliversPendingJobsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataSvc := newTestData(t)
	job, err := dataSvc.NewJob(model.Job{Name: "video1", Kind: model.JobKindExtract})
	require.NoError(t, err)

	svc := NewPolled(ctx, dataSvc, 10*time.Millisecond, 5)
	defer svc.Finalize()

	stream, err := svc.Subscribe()
	require.NoError(t, err)

	jobs := receive(t, stream)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	select {
	case again := <-stream:
		t.Fatalf("job delivered twice: %v", again)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeTwiceFails(t *testing.T) {
	svc := NewPolled(context.Background(), newTestData(t), time.Hour, 1)
	defer svc.Finalize()

	_, err := svc.Subscribe()
	require.NoError(t, err)

	_, err = svc.Subscribe()
	assert.Error(t, err)

	require.NoError(t, svc.Unsubscribe())
	_, err = svc.Subscribe()
	assert.NoError(t, err, "can subscribe again after unsubscribing")
}

func TestUnsubscribeWithoutSubscription(t *testing.T) {
	svc := NewPolled(context.Background(), newTestData(t), time.Hour, 1)
	assert.Error(t, svc.Unsubscribe())
}

func TestPublishRedeliversJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataSvc := newTestData(t)
	job, err := dataSvc.NewJob(model.Job{Name: "video2", Kind: model.JobKindExpressions})
	require.NoError(t, err)

	svc := NewPolled(ctx, dataSvc, 10*time.Millisecond, 5)
	defer svc.Finalize()

	stream, err := svc.Subscribe()
	require.NoError(t, err)
	receive(t, stream)

	require.NoError(t, dataSvc.UpdateJobStatus(job.ID, model.JobStatusRunning, 0, 0, nil))
	require.NoError(t, svc.Publish([]model.Job{job}))

	stored, err := dataSvc.RetrieveJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, stored.Status)

	jobs := receive(t, stream)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestJobsPendingAgainAreRedelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataSvc := newTestData(t)
	job, err := dataSvc.NewJob(model.Job{Name: "video1", Kind: model.JobKindExtract})
	require.NoError(t, err)

	svc := NewPolled(ctx, dataSvc, 10*time.Millisecond, 5)
	defer svc.Finalize()

	stream, err := svc.Subscribe()
	require.NoError(t, err)
	receive(t, stream)

	// Another process picks the job up and later gives it back
	require.NoError(t, dataSvc.UpdateJobStatus(job.ID, model.JobStatusRunning, 0, 0, nil))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, dataSvc.UpdateJobStatus(job.ID, model.JobStatusPending, 0, 0, nil))

	jobs := receive(t, stream)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}
