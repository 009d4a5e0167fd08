package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/data/ledger"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

func testLogger() *logger_i.Logger {
	return logger_i.NewLogger("test")
}

// --- Mocks ---

type mockEmbedder struct {
	mu        sync.Mutex
	batchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls     [][]string
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, texts)
	m.mu.Unlock()
	return m.batchFunc(ctx, texts)
}

func goodVectors(count int) [][]float32 {
	vectors := make([][]float32, count)
	for i := range vectors {
		vectors[i] = make([]float32, config.EmbeddingDimension)
	}
	return vectors
}

type mockIndex struct {
	mu            sync.Mutex
	callOrder     []string
	published     []commonModels.RetrievalUnit
	ensureErr     error
	deleteErr     error
	publishErr    error
	deletedFileId string
}

func (m *mockIndex) EnsureIndex(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callOrder = append(m.callOrder, "EnsureIndex")
	return m.ensureErr
}

func (m *mockIndex) Publish(ctx context.Context, units []commonModels.RetrievalUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callOrder = append(m.callOrder, "Publish")
	m.published = append(m.published, units...)
	return m.publishErr
}

func (m *mockIndex) DeleteByFile(ctx context.Context, fileMd5 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callOrder = append(m.callOrder, "DeleteByFile")
	m.deletedFileId = fileMd5
	return m.deleteErr
}

type mockObjects struct {
	objects map[string][]byte
	removed []string
}

func (m *mockObjects) Put(ctx context.Context, key string, data io.Reader, size int64) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[key] = body
	return nil
}

func (m *mockObjects) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	body, found := m.objects[key]
	if !found {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *mockObjects) Compose(ctx context.Context, sourceKeys []string, targetKey string) error {
	return nil
}

func (m *mockObjects) Stat(ctx context.Context, key string) (int64, error) {
	return int64(len(m.objects[key])), nil
}

func (m *mockObjects) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.objects, key)
		m.removed = append(m.removed, key)
	}
	return nil
}

func (m *mockObjects) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

// --- vectorize ---

func makeUnits(count int) []commonModels.RetrievalUnit {
	units := make([]commonModels.RetrievalUnit, count)
	for i := range units {
		units[i] = commonModels.RetrievalUnit{UnitId: i + 1, Content: "unit content"}
	}
	return units
}

func TestVectorize_Batching(t *testing.T) {
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return goodVectors(len(texts)), nil
		},
	}
	p := &Processor{embedder: emb, logger: testLogger()}

	units := makeUnits(250)
	if err := p.vectorize(context.Background(), units); err != nil {
		t.Fatalf("vectorize failed: %v", err)
	}

	if len(emb.calls) != 3 {
		t.Fatalf("Expected 3 batches for 250 units, got %d", len(emb.calls))
	}
	wantSizes := []int{100, 100, 50}
	for i, call := range emb.calls {
		if len(call) != wantSizes[i] {
			t.Errorf("Batch %d has %d texts, want %d", i, len(call), wantSizes[i])
		}
	}
	for i, unit := range units {
		if len(unit.Vector) != config.EmbeddingDimension {
			t.Fatalf("Unit %d missing its vector", i)
		}
	}
}

func TestVectorize_DimensionMismatchFails(t *testing.T) {
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			vectors := goodVectors(len(texts))
			vectors[0] = make([]float32, 8) //wrong width
			return vectors, nil
		},
	}
	p := &Processor{embedder: emb, logger: testLogger()}

	err := p.vectorize(context.Background(), makeUnits(5))
	if !errors.Is(err, faults.ErrExternalService) {
		t.Errorf("Expected ErrExternalService for wrong dimension, got %v", err)
	}
}

func TestVectorize_CountMismatchFails(t *testing.T) {
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return goodVectors(len(texts) - 1), nil
		},
	}
	p := &Processor{embedder: emb, logger: testLogger()}

	err := p.vectorize(context.Background(), makeUnits(5))
	if !errors.Is(err, faults.ErrExternalService) {
		t.Errorf("Expected ErrExternalService for short response, got %v", err)
	}
}

func TestEmbedWithRetry_RecoversFromTransientFailure(t *testing.T) {
	attempts := 0
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("rate limited")
			}
			return goodVectors(len(texts)), nil
		},
	}
	p := &Processor{embedder: emb, logger: testLogger()}

	vectors, err := p.embedWithRetry(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Expected recovery on retry, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if len(vectors) != 2 {
		t.Errorf("Expected 2 vectors, got %d", len(vectors))
	}
}

func TestEmbedWithRetry_CancelledContext(t *testing.T) {
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("always failing")
		},
	}
	p := &Processor{embedder: emb, logger: testLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.embedWithRetry(ctx, []string{"a"}); err == nil {
		t.Error("Expected error from cancelled retry loop")
	}
}

// --- ProcessTask ---

func newTestProcessor(index *mockIndex, emb *mockEmbedder, objects *mockObjects) *Processor {
	return NewProcessor(objects, emb, index, ledger.InitInMemoryLedger())
}

func seedDocument(objects *mockObjects, key string, content string) {
	objects.objects[key] = []byte(content)
}

func TestProcessTask_HappyPath(t *testing.T) {
	index := &mockIndex{}
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return goodVectors(len(texts)), nil
		},
	}
	objects := &mockObjects{objects: make(map[string][]byte)}
	p := newTestProcessor(index, emb, objects)

	content := strings.Repeat("First topic sentence. More detail on the first topic.\n\n", 30) +
		strings.Repeat("Second topic begins here. It keeps going for a while.\n\n", 30)
	seedDocument(objects, "merged/md5-proc/report.txt", content)

	task := taskModel.ProcessingTask{
		FileMd5:   "md5-proc",
		MergedKey: "merged/md5-proc/report.txt",
		FileName:  "report.txt",
		UserId:    "user-1",
		OrgTag:    "ENG",
		IsPublic:  true,
		Status:    taskModel.TaskStatusRunning,
	}

	result := p.ProcessTask(context.Background(), task)

	if result.Status != taskModel.TaskStatusComplete {
		t.Fatalf("Expected COMPLETE, got %s at step %s: %s", result.Status, result.CurrentStep, result.Error.Message)
	}
	if len(index.published) == 0 {
		t.Fatal("No retrieval units were published")
	}

	// stale units cleared before the new ones land
	wantOrder := []string{"EnsureIndex", "DeleteByFile", "Publish"}
	if len(index.callOrder) != len(wantOrder) {
		t.Fatalf("Unexpected index calls: %v", index.callOrder)
	}
	for i, call := range wantOrder {
		if index.callOrder[i] != call {
			t.Fatalf("Index call order %v, want %v", index.callOrder, wantOrder)
		}
	}
	if index.deletedFileId != "md5-proc" {
		t.Errorf("DeleteByFile got %q", index.deletedFileId)
	}

	for i, unit := range index.published {
		if unit.UnitId != i+1 {
			t.Fatalf("Unit ids not sequential: unit %d has id %d", i, unit.UnitId)
		}
		if unit.FileMd5 != "md5-proc" {
			t.Errorf("Unit %d has wrong fileMd5 %q", i, unit.FileMd5)
		}
		if unit.UserId != "user-1" || unit.OrgTag != "ENG" || !unit.IsPublic {
			t.Errorf("Unit %d lost ownership: %+v", i, unit.Ownership)
		}
		if len(unit.Vector) != config.EmbeddingDimension {
			t.Errorf("Unit %d published without a vector", i)
		}
		if unit.ModelVersion != config.EmbeddingModel {
			t.Errorf("Unit %d has model version %q", i, unit.ModelVersion)
		}
	}
}

func TestProcessTask_EmptyDocument(t *testing.T) {
	index := &mockIndex{}
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			t.Error("Embedder must not be called for an empty document")
			return nil, nil
		},
	}
	objects := &mockObjects{objects: make(map[string][]byte)}
	p := newTestProcessor(index, emb, objects)

	seedDocument(objects, "merged/md5-empty/blank.txt", "   \n\n   \n")

	result := p.ProcessTask(context.Background(), taskModel.ProcessingTask{
		FileMd5:   "md5-empty",
		MergedKey: "merged/md5-empty/blank.txt",
		FileName:  "blank.txt",
	})

	if result.Status != taskModel.TaskStatusComplete {
		t.Errorf("Empty document should complete, got %s: %s", result.Status, result.Error.Message)
	}
	if len(index.published) != 0 {
		t.Errorf("Empty document published %d units", len(index.published))
	}
}

func TestProcessTask_MissingObject(t *testing.T) {
	index := &mockIndex{}
	objects := &mockObjects{objects: make(map[string][]byte)}
	p := newTestProcessor(index, &mockEmbedder{}, objects)

	result := p.ProcessTask(context.Background(), taskModel.ProcessingTask{
		FileMd5:   "md5-gone",
		MergedKey: "merged/md5-gone/missing.txt",
	})

	if result.Status != taskModel.TaskStatusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if result.CurrentStep != taskModel.StepParsing {
		t.Errorf("Expected failure at parsing step, got %s", result.CurrentStep)
	}
}

func TestProcessTask_IndexUnavailable(t *testing.T) {
	index := &mockIndex{ensureErr: errors.New("connection refused")}
	objects := &mockObjects{objects: make(map[string][]byte)}
	p := newTestProcessor(index, &mockEmbedder{}, objects)

	result := p.ProcessTask(context.Background(), taskModel.ProcessingTask{FileMd5: "md5-x"})
	if result.Status != taskModel.TaskStatusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if result.CurrentStep != taskModel.StepIndexing {
		t.Errorf("Expected failure at indexing step, got %s", result.CurrentStep)
	}
}

// --- DeleteDocument ---

func TestDeleteDocument(t *testing.T) {
	index := &mockIndex{}
	objects := &mockObjects{objects: make(map[string][]byte)}
	store := ledger.InitInMemoryLedger()
	p := NewProcessor(objects, &mockEmbedder{}, index, store)
	ctx := context.Background()

	seedDocument(objects, "merged/md5-del/old.txt", "content")
	_ = store.CreateSession(ctx, uploadModel.UploadSession{
		FileMd5:   "md5-del",
		UserId:    "user-1",
		FileName:  "old.txt",
		TotalSize: 7,
		Status:    uploadModel.SessionMerged,
		MergedKey: "merged/md5-del/old.txt",
	})

	// deletion by anyone but the owner touches nothing
	if err := p.DeleteDocument(ctx, "md5-del", "intruder"); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-owner, got %v", err)
	}
	if _, found := objects.objects["merged/md5-del/old.txt"]; !found {
		t.Fatal("Non-owner delete removed the merged object")
	}

	if err := p.DeleteDocument(ctx, "md5-del", "user-1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	if index.deletedFileId != "md5-del" {
		t.Error("Index units were not deleted")
	}
	if _, found := objects.objects["merged/md5-del/old.txt"]; found {
		t.Error("Merged object was not removed")
	}
	if _, found, _ := store.GetSession(ctx, "md5-del", "user-1"); found {
		t.Error("Session survived deletion")
	}
}

func TestDeleteDocument_Unknown(t *testing.T) {
	p := NewProcessor(&mockObjects{objects: make(map[string][]byte)}, &mockEmbedder{}, &mockIndex{}, ledger.InitInMemoryLedger())
	if err := p.DeleteDocument(context.Background(), "ghost", "user-1"); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
