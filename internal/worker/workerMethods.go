package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
)

func executeTask(task taskModel.ProcessingTask) {
	start := time.Now()
	defer func() {
		// Record total time at the end
		metrics.CaptureTaskMetrics(string(task.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, task.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, 30*time.Minute)
	defer cancel()
	log := logger.With("traceId", task.TraceId)
	log.Debug("Processing task:", "fileMd5", task.FileMd5)

	saveTaskState(ctx, task, taskModel.TaskStatusRunning)

	task = _processor.ProcessTask(ctx, task)

	task.EndTime = time.Now()
	if task.Status != taskModel.TaskStatusError {
		task.Status = taskModel.TaskStatusComplete
	}
	saveTaskState(ctx, task, task.Status)
}

func removeWorker(reason string) {

	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()

}

func saveTaskState(ctx context.Context, task taskModel.ProcessingTask, status taskModel.TaskStatus) {
	task.Status = status
	if err := _taskService.TaskStore.SaveTask(ctx, task); err != nil {
		logger.Error("Failed to update task status", "err", err)
	}
}
