package store

import (
	"context"
	"sync"

	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem TaskStore")

type InMemoryTaskStore struct {
	taskMutex *sync.RWMutex
	taskMap   map[string]taskModel.ProcessingTask
}

func InitInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		taskMutex: new(sync.RWMutex),
		taskMap:   make(map[string]taskModel.ProcessingTask),
	}
}

func (store *InMemoryTaskStore) SaveTask(ctx context.Context, task taskModel.ProcessingTask) error {
	store.taskMutex.Lock()
	defer store.taskMutex.Unlock()
	store.taskMap[task.FileMd5] = task
	inMemLogger.Info(task.FileMd5, " : Saved task to store")
	return nil
}

func (store *InMemoryTaskStore) GetTask(ctx context.Context, fileMd5 string) (taskModel.ProcessingTask, bool) {
	store.taskMutex.RLock()
	defer store.taskMutex.RUnlock()
	result, found := store.taskMap[fileMd5]
	return result, found
}

func (store *InMemoryTaskStore) DeleteTask(ctx context.Context, fileMd5 string) {
	store.taskMutex.Lock()
	defer store.taskMutex.Unlock()
	delete(store.taskMap, fileMd5)
}
