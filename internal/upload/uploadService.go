package upload

import (
	"context"
	"sync"

	"github.com/yixin-zhu/yx-chatbot/internal/data/tracker"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/internal/objectstore"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

// TaskQueue is how a finished merge hands the file to the processing
// pipeline without importing it.
type TaskQueue interface {
	Enqueue(ctx context.Context, task taskModel.ProcessingTask)
}

type Service struct {
	ledger  uploadModel.Ledger
	tracker *tracker.Tracker
	objects objectstore.ObjectStore
	queue   TaskQueue

	//one mutex per fileMd5, serializing merge
	mergeLocks sync.Map

	logger *logger_i.Logger
}

type ServiceConfig struct {
	Ledger  uploadModel.Ledger
	Tracker *tracker.Tracker
	Objects objectstore.ObjectStore
	Queue   TaskQueue
}

func InitUploadService(cfg ServiceConfig) *Service {
	return &Service{
		ledger:  cfg.Ledger,
		tracker: cfg.Tracker,
		objects: cfg.Objects,
		queue:   cfg.Queue,
		logger:  logger_i.NewLogger("UploadService"),
	}
}

func (s *Service) lockFor(fileMd5 string) *sync.Mutex {
	lock, _ := s.mergeLocks.LoadOrStore(fileMd5, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
