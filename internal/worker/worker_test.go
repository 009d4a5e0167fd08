package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/task"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

// MockProcessor tracks how many tasks reached the pipeline
type MockProcessor struct {
	ProcessedCount int32
}

func (m *MockProcessor) ProcessTask(ctx context.Context, t taskModel.ProcessingTask) taskModel.ProcessingTask {
	atomic.AddInt32(&m.ProcessedCount, 1)
	t.Status = taskModel.TaskStatusComplete
	return t
}

type MockTaskStore struct {
	OnSaveTask func(ctx context.Context, task taskModel.ProcessingTask) error
	mu         sync.Mutex
	statuses   []taskModel.TaskStatus
}

func (m *MockTaskStore) SaveTask(ctx context.Context, t taskModel.ProcessingTask) error {
	m.mu.Lock()
	m.statuses = append(m.statuses, t.Status)
	m.mu.Unlock()
	if m.OnSaveTask != nil {
		return m.OnSaveTask(ctx, t)
	}
	return nil
}

func (m *MockTaskStore) GetTask(ctx context.Context, fileMd5 string) (taskModel.ProcessingTask, bool) {
	return taskModel.ProcessingTask{}, false
}

func (m *MockTaskStore) DeleteTask(ctx context.Context, fileMd5 string) {}

func (m *MockTaskStore) savedStatuses() []taskModel.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]taskModel.TaskStatus(nil), m.statuses...)
}

func TestWorkerPool_Flow(t *testing.T) {
	taskStore := &MockTaskStore{}
	taskSvc := &task.Service{
		TaskChannel:       make(chan taskModel.ProcessingTask, 10),
		DispatcherChannel: make(chan bool, 10),
		TaskStore:         taskStore,
	}
	mockProcessor := &MockProcessor{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(taskSvc, mockProcessor)
	InitWorkerPool(stopChan, wg)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		taskSvc.DispatcherChannel <- true

		time.Sleep(50 * time.Millisecond)

		count := atomic.LoadInt64(&currentWorkerCount)
		if count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes a task", func(t *testing.T) {
		taskSvc.TaskChannel <- taskModel.ProcessingTask{FileMd5: "md5-work", TraceId: "trace-work"}

		time.Sleep(50 * time.Millisecond)

		processed := atomic.LoadInt32(&mockProcessor.ProcessedCount)
		if processed != 1 {
			t.Errorf("Expected 1 task processed, got %d", processed)
		}

		// RUNNING persisted before the pipeline, terminal state after
		statuses := taskStore.savedStatuses()
		if len(statuses) < 2 {
			t.Fatalf("Expected 2 task state saves, got %v", statuses)
		}
		if statuses[0] != taskModel.TaskStatusRunning {
			t.Errorf("First save should be RUNNING, got %s", statuses[0])
		}
		if statuses[len(statuses)-1] != taskModel.TaskStatusComplete {
			t.Errorf("Final save should be COMPLETE, got %s", statuses[len(statuses)-1])
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 0)
	logger = logger_i.NewLogger("TestWorkerPool")
	taskSvc := &task.Service{
		TaskChannel: make(chan taskModel.ProcessingTask),
	}
	InitServices(taskSvc, &MockProcessor{})

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan

	// Spawn 1 worker manually
	createWorker()
	time.Sleep(config.IdleWorkerTimeout)

	time.Sleep(100 * time.Millisecond)
	count := atomic.LoadInt64(&currentWorkerCount)
	if count != 0 {
		t.Errorf("Worker should have timed out and retired, but count is %d", count)
	}
}
