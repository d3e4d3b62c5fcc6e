package pending

import "github.com/khaledhikmat/vs-frames/model"

type IService interface {
	Publish(jobs []model.Job) error
	Subscribe() (<-chan []model.Job, error)
	Unsubscribe() error
	Finalize()
}
