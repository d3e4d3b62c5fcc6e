package detector

import (
	"fmt"
	"image"
	"os"

	"github.com/khaledhikmat/vs-frames/service/config"
	"gocv.io/x/gocv"
)

type cascadeService struct {
	classifier gocv.CascadeClassifier
	params     config.DetectionParameters
}

// NewCascade loads a Haar cascade classifier from params.CascadePath.
func NewCascade(params config.DetectionParameters) (IService, error) {
	if _, err := os.Stat(params.CascadePath); err != nil {
		return nil, fmt.Errorf("cascade file %s: %w", params.CascadePath, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(params.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("error loading cascade file: %s", params.CascadePath)
	}

	return &cascadeService{
		classifier: classifier,
		params:     params,
	}, nil
}

// NewCascadeFactory returns a Factory that loads a fresh classifier per call.
func NewCascadeFactory(cfgSvc config.IService) Factory {
	return func() (IService, error) {
		return NewCascade(cfgSvc.GetDetectionParameters())
	}
}

func (svc *cascadeService) Detect(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() {
		return nil
	}

	return svc.classifier.DetectMultiScaleWithParams(
		gray,
		svc.params.ScaleFactor,
		svc.params.MinNeighbors,
		svc.params.Flags,
		image.Pt(svc.params.MinSize, svc.params.MinSize),
		image.Pt(svc.params.MaxSize, svc.params.MaxSize),
	)
}

func (svc *cascadeService) Close() error {
	return svc.classifier.Close()
}
