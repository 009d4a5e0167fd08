package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/data/redisStore"
	"github.com/yixin-zhu/yx-chatbot/internal/data/store"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
)

func TestRedisTaskStore_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	internalStore := redisStore.NewTestStore(client)
	taskStore := store.TestTaskStore(internalStore)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	fileMd5 := "abc123def456"

	testTask := taskModel.ProcessingTask{
		FileMd5:     fileMd5,
		MergedKey:   "merged/abc123def456/report.pdf",
		FileName:    "report.pdf",
		UserId:      "user-1",
		OrgTag:      "ENG",
		Status:      taskModel.TaskStatusQueued,
		CurrentStep: taskModel.StepInit,
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		err := taskStore.SaveTask(ctx, testTask)
		if err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}

		retrieved, found := taskStore.GetTask(ctx, fileMd5)
		if !found {
			t.Fatal("Task was saved but not found in Redis")
		}

		if retrieved.MergedKey != testTask.MergedKey {
			t.Errorf("Data mismatch! Got %s, want %s", retrieved.MergedKey, testTask.MergedKey)
		}
		if retrieved.Status != taskModel.TaskStatusQueued || retrieved.CurrentStep != taskModel.StepInit {
			t.Errorf("State lost on roundtrip: %+v", retrieved)
		}
	})

	t.Run("Status update overwrites", func(t *testing.T) {
		updated := testTask
		updated.Status = taskModel.TaskStatusError
		updated.CurrentStep = taskModel.StepEmbedding
		updated.Error = taskModel.TaskError{Message: "dimension mismatch"}

		if err := taskStore.SaveTask(ctx, updated); err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}

		retrieved, found := taskStore.GetTask(ctx, fileMd5)
		if !found {
			t.Fatal("Updated task not found")
		}
		if retrieved.Status != taskModel.TaskStatusError || retrieved.Error.Message != "dimension mismatch" {
			t.Errorf("Update lost: %+v", retrieved)
		}
	})

	t.Run("Get Non-Existent Task", func(t *testing.T) {
		_, found := taskStore.GetTask(ctx, "ghost-file")
		if found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Delete Task", func(t *testing.T) {
		taskStore.DeleteTask(ctx, fileMd5)

		if _, found := taskStore.GetTask(ctx, fileMd5); found {
			t.Error("Task still exists in Redis after DeleteTask call")
		}
	})
}

func TestRedisTaskStore_Race(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	taskStore := store.TestTaskStore(redisStore.NewTestStore(client))

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	task := taskModel.ProcessingTask{FileMd5: "race-file"}

	const workers = 50
	for i := 0; i < workers; i++ {
		go func() {
			_ = taskStore.SaveTask(ctx, task)
			_, _ = taskStore.GetTask(ctx, "race-file")
		}()
	}
}
