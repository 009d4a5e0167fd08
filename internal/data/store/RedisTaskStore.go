package store

import (
	"context"
	"encoding/json"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/data/redisStore"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

type RedisTaskStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisTaskStore(ctx context.Context) *RedisTaskStore {
	internal := redisStore.GetRedisStore(ctx, config.RedisTaskStore)
	if internal == nil {
		return nil
	}
	return &RedisTaskStore{
		store:  internal,
		logger: logger_i.NewLogger("TaskStore"),
	}
}

func (s *RedisTaskStore) SaveTask(ctx context.Context, task taskModel.ProcessingTask) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "fileMd5", task.FileMd5)
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, taskKey(task.FileMd5), data, config.RedisTaskStoreTTL)
	if err == nil {
		log.Debug("Saved task to Redis")
	}
	return err
}

func (s *RedisTaskStore) GetTask(ctx context.Context, fileMd5 string) (taskModel.ProcessingTask, bool) {
	var task taskModel.ProcessingTask
	val, err := s.store.Get(ctx, taskKey(fileMd5))
	if s.store.IsNil(err) {
		return task, false
	} else if err != nil {
		return task, false
	}

	err = json.Unmarshal([]byte(val), &task)
	if err != nil {
		return task, false
	}
	return task, true
}

func (s *RedisTaskStore) DeleteTask(ctx context.Context, fileMd5 string) {
	err := s.store.Del(ctx, taskKey(fileMd5))
	if err != nil {
		s.logger.Error("Error deleting task from Redis", "fileMd5", fileMd5)
		return
	}
	s.logger.Debug("Task deleted from Redis", "fileMd5", fileMd5)
}

func taskKey(fileMd5 string) string {
	return "task:" + fileMd5
}

func TestTaskStore(store *redisStore.Store) *RedisTaskStore {
	return &RedisTaskStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
