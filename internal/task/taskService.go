package task

import (
	"context"
	"sync/atomic"

	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

type Service struct {
	TaskChannel       chan taskModel.ProcessingTask
	RequestCount      int64
	DispatcherChannel chan bool
	TaskStore         taskModel.TaskStore

	logger *logger_i.Logger
}

type ServiceConfig struct {
	TaskChannel       chan taskModel.ProcessingTask
	RequestCount      int64
	DispatcherChannel chan bool
	TaskStore         taskModel.TaskStore
}

func InitTaskService(cfg ServiceConfig) *Service {
	return &Service{
		TaskChannel:       cfg.TaskChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		TaskStore:         cfg.TaskStore,
		logger:            logger_i.NewLogger("TaskService"),
	}
}

// Enqueue records the task as QUEUED and hands it to the worker channel. The
// store write comes first, so a full buffer only defers the channel handoff;
// the merge caller never waits on worker capacity.
func (s *Service) Enqueue(ctx context.Context, task taskModel.ProcessingTask) {
	log := s.logger.With("traceId", task.TraceId, "fileMd5", task.FileMd5)

	if err := s.TaskStore.SaveTask(ctx, task); err != nil {
		log.Error("Failed to save queued task", "err", err)
	}

	metrics.IncrementTasksInQueue()
	select {
	case s.TaskChannel <- task:
	default:
		log.Warn("Task buffer full, handing off asynchronously")
		go func() { s.TaskChannel <- task }()
	}
	log.Info("Queued processing task")

	//ingestion involves external batch calls that can take a while, so every
	//task asks the dispatcher for capacity; idle workers retire on their own
	accurateCount := atomic.AddInt64(&s.RequestCount, 1)
	metrics.StartDispatcherSignalCount()
	log.Debug("Request count ", "count", accurateCount)
	select {
	case s.DispatcherChannel <- true:
	default:
		//the dispatcher already has a backlog of capacity requests
	}
}
