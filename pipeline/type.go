package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/vs-frames/model"
	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/khaledhikmat/vs-frames/service/data"
	"github.com/khaledhikmat/vs-frames/service/detector"
	"github.com/khaledhikmat/vs-frames/service/pending"
	"github.com/khaledhikmat/vs-frames/service/storage"
	"gocv.io/x/gocv"
)

type ServicesFactory struct {
	CfgSvc     config.IService
	DataSvc    data.IService
	PendingSvc pending.IService
	StorageSvc storage.IService
	DetectorFn detector.Factory
}

type FrameData struct {
	Mat       gocv.Mat
	Index     int // zero-based position in the video
	Timestamp time.Time
}

type AlertData struct {
	Mat        gocv.Mat
	Job        model.Job
	Index      int
	Faces      []image.Rectangle
	Difference float64
	Timestamp  time.Time
}

// Run carries a job through the pipeline along with its live counters.
type Run struct {
	Job    model.Job
	Frames atomic.Int64 // decoded by the framer
	Saved  atomic.Int64 // written to storage
}

// Signature of streamer function.
// A streamer must call wg.Add for every goroutine it starts and return once
// its input channel is drained; the framer closes the channel at end of video.
type Streamer func(canx context.Context, svcs ServicesFactory, run *Run, errorStream chan interface{}, statsStream chan interface{}, alertStream chan AlertData, wg *sync.WaitGroup) (chan FrameData, error)

// Signature of alerter function.
// The agent closes the returned channel once every streamer is done.
type Alerter func(canx context.Context, svcs ServicesFactory, run *Run, errorStream chan interface{}, statsStream chan interface{}, wg *sync.WaitGroup) chan AlertData
