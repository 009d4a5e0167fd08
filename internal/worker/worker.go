package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
	"github.com/yixin-zhu/yx-chatbot/internal/task"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

// TaskProcessor is what a worker runs per task; pipeline.Processor is the
// production implementation.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task taskModel.ProcessingTask) taskModel.ProcessingTask
}

var (
	_taskService       *task.Service
	_processor         TaskProcessor
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             *logger_i.Logger
	minWorkerCount     = config.MinWorkerCount
)

func InitServices(taskService *task.Service, processor TaskProcessor) {
	_taskService = taskService
	_processor = processor
	dispatcherChannel = taskService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")
	go dispatcher()
}

func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for range dispatcherChannel {
		if atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
			logger.Info("Creating new worker", "WorkerCount :", currentWorkerCount)
			createWorker()
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	go worker()
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created new worker")
}

func worker() {
	for {
		select {
		case currentTask := <-_taskService.TaskChannel:
			executeTask(currentTask)
			metrics.DecrementTasksInQueue()

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")

			return

		case <-time.After(config.IdleWorkerTimeout):
			// Worker was idle for too long, decrement counter and retire
			if atomic.LoadInt64(&currentWorkerCount) > minWorkerCount {
				removeWorker("Idle worker timeout - Removed worker")
				return
			}
		}
	}
}
