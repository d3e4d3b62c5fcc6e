package mode

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/pipeline"
	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/khaledhikmat/vs-frames/service/data"
	"github.com/khaledhikmat/vs-frames/service/detector"
	"github.com/khaledhikmat/vs-frames/service/pending"
	"github.com/khaledhikmat/vs-frames/service/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServices(t *testing.T, ctx context.Context, vars map[string]string) pipeline.ServicesFactory {
	t.Helper()

	folder := t.TempDir()
	env := map[string]string{
		"INPUT_FOLDER":           folder,
		"OUTPUT_FOLDER":          folder,
		"FRAMER_TYPE":            pipeline.SyntheticFramerType,
		"SYNTHETIC_FRAMES":       "3",
		"CHANGE_LOG":             filepath.Join(folder, "changes.log"),
		"MODE_MAX_SHUTDOWN_TIME": "2",
	}
	for k, v := range vars {
		env[k] = v
	}

	cfg, err := config.NewFromMap(env)
	require.NoError(t, err)

	dataSvc := data.NewFilesDB(cfg)
	face := []image.Rectangle{image.Rect(100, 100, 300, 300)}

	return pipeline.ServicesFactory{
		CfgSvc:     cfg,
		DataSvc:    dataSvc,
		PendingSvc: pending.NewPolled(ctx, dataSvc, 10*time.Millisecond, cfg.GetMaxAgentsPerPod()),
		StorageSvc: storage.NewLocal(),
		DetectorFn: func() (detector.IService, error) {
			return detector.NewFixed(face), nil
		},
	}
}

func TestBatchRunsDefaultJobs(t *testing.T) {
	svcs := newTestServices(t, context.Background(), nil)

	err := Batch(context.Background(), svcs)
	require.NoError(t, err)

	jobs, err := svcs.DataSvc.RetrieveJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	byName := map[string]model.Job{}
	for _, job := range jobs {
		byName[job.Name] = job
	}

	assert.Equal(t, model.JobStatusCompleted, byName["frames"].Status)
	assert.Equal(t, 3, byName["frames"].SavedFrames)
	assert.FileExists(t, filepath.Join(svcs.CfgSvc.GetOutputFolder(), "Output", "frame_00002.png"))

	assert.Equal(t, model.JobStatusCompleted, byName["expressions"].Status)
	assert.Equal(t, 2, byName["expressions"].SavedFrames)
	assert.NoFileExists(t, filepath.Join(svcs.CfgSvc.GetOutputFolder(), "Output2", "frame_00000.png"))
	assert.FileExists(t, filepath.Join(svcs.CfgSvc.GetOutputFolder(), "Output2", "frame_00001.png"))
}

func TestBatchKeepsGoingAfterAFailedJob(t *testing.T) {
	svcs := newTestServices(t, context.Background(), nil)

	// Only the second job can run without a real video
	_, err := svcs.DataSvc.NewJob(model.Job{
		Name:         "broken",
		Kind:         model.JobKindExtract,
		InputPath:    filepath.Join(t.TempDir(), "missing.mp4"),
		OutputFolder: filepath.Join(svcs.CfgSvc.GetOutputFolder(), "Broken"),
	})
	require.NoError(t, err)
	_, err = svcs.DataSvc.NewJob(model.Job{
		Name:         "synthetic",
		Kind:         model.JobKindExtract,
		OutputFolder: filepath.Join(svcs.CfgSvc.GetOutputFolder(), "Synthetic"),
		FramerType:   pipeline.SyntheticFramerType,
	})
	require.NoError(t, err)

	err = Batch(context.Background(), svcs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 jobs failed")

	jobs, err := svcs.DataSvc.RetrieveJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2, "pending jobs are run instead of the defaults")

	assert.Equal(t, model.JobStatusFailed, jobs[0].Status)
	assert.Equal(t, model.JobStatusCompleted, jobs[1].Status)
	assert.Equal(t, 3, jobs[1].SavedFrames)
}

func TestBatchCancelled(t *testing.T) {
	svcs := newTestServices(t, context.Background(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Batch(ctx, svcs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManagerRunsPendingJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcs := newTestServices(t, ctx, map[string]string{
		"MAX_AGENTS_PER_POD":              "2",
		"AGENTS_MANAGER_PERIODIC_TIMEOUT": "1",
	})

	job, err := svcs.DataSvc.NewJob(model.Job{
		Name:         "frames",
		Kind:         model.JobKindExtract,
		OutputFolder: filepath.Join(svcs.CfgSvc.GetOutputFolder(), "Output"),
		FramerType:   pipeline.SyntheticFramerType,
	})
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		result <- Manager(ctx, svcs)
	}()

	assert.Eventually(t, func() bool {
		stored, err := svcs.DataSvc.RetrieveJobByID(job.ID)
		return err == nil && stored.Status == model.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not exit")
	}
}

func TestRepublishOrphans(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcs := newTestServices(t, ctx, nil)

	orphan, err := svcs.DataSvc.NewJob(model.Job{Name: "orphan", Kind: model.JobKindExtract})
	require.NoError(t, err)
	require.NoError(t, svcs.DataSvc.UpdateJobStatus(orphan.ID, model.JobStatusRunning, 4, 4, nil))

	alive, err := svcs.DataSvc.NewJob(model.Job{Name: "alive", Kind: model.JobKindExtract})
	require.NoError(t, err)
	require.NoError(t, svcs.DataSvc.UpdateJobAgentID(alive.ID, "agent-1"))
	require.NoError(t, svcs.DataSvc.UpdateJobStatus(alive.ID, model.JobStatusRunning, 0, 0, nil))

	assert.Equal(t, 1, republishOrphans(svcs))

	stored, err := svcs.DataSvc.RetrieveJobByID(orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, stored.Status)

	stored, err = svcs.DataSvc.RetrieveJobByID(alive.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, stored.Status)

	assert.Equal(t, 0, republishOrphans(svcs))
}

func TestCancelVanishedAgents(t *testing.T) {
	svcs := newTestServices(t, context.Background(), nil)

	kept, err := svcs.DataSvc.NewJob(model.Job{Name: "kept", Kind: model.JobKindExtract})
	require.NoError(t, err)

	keptCtx, keptCancel := context.WithCancel(context.Background())
	defer keptCancel()
	goneCtx, goneCancel := context.WithCancel(context.Background())
	defer goneCancel()

	running := map[string]agent{
		kept.ID: {Job: kept, CanxFn: keptCancel},
		"gone":  {Job: model.Job{ID: "gone", Name: "gone"}, CanxFn: goneCancel},
	}

	assert.Equal(t, []string{"gone"}, cancelVanishedAgents(svcs, running))
	assert.ErrorIs(t, goneCtx.Err(), context.Canceled)
	assert.NoError(t, keptCtx.Err())
	assert.Len(t, running, 2, "agents leave the list once they report back")

	assert.Nil(t, cancelVanishedAgents(svcs, map[string]agent{}))
}
