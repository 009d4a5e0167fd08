package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
	"github.com/yixin-zhu/yx-chatbot/internal/objectstore"
	"github.com/yixin-zhu/yx-chatbot/internal/pipeline/chunker"
	"github.com/yixin-zhu/yx-chatbot/internal/pipeline/parser"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/embedding"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/vectorDB"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

// Processor runs the per-file ingestion: parse, chunk, vectorize, publish.
// Stages are sequential per file; independent files run in parallel on the
// worker pool with no shared mutable state.
type Processor struct {
	objects  objectstore.ObjectStore
	embedder embedding.Embedder
	index    vectorDB.DataProcessor
	ledger   uploadModel.Ledger
	logger   *logger_i.Logger
}

func NewProcessor(objects objectstore.ObjectStore, embedder embedding.Embedder, index vectorDB.DataProcessor, ledger uploadModel.Ledger) *Processor {
	return &Processor{
		objects:  objects,
		embedder: embedder,
		index:    index,
		ledger:   ledger,
		logger:   logger_i.NewLogger("Pipeline"),
	}
}

// ProcessTask ingests one merged document. Failures abort this file only;
// the task carries the failed step back for logs and status queries.
func (p *Processor) ProcessTask(ctx context.Context, task taskModel.ProcessingTask) taskModel.ProcessingTask {
	log := p.logger.With("traceId", task.TraceId, "fileMd5", task.FileMd5)
	log.Info("Processing document", "fileName", task.FileName)

	task.CurrentStep = taskModel.StepParsing
	if err := p.index.EnsureIndex(ctx); err != nil {
		return failTask(task, taskModel.StepIndexing, err, log)
	}

	localPath, err := p.downloadToTemp(ctx, task.MergedKey)
	if err != nil {
		return failTask(task, taskModel.StepParsing, err, log)
	}
	defer func() {
		if err := os.Remove(localPath); err != nil {
			log.Error("Error removing temp file", "path", localPath, "error", err)
		}
	}()

	//drop any units from a prior version of this file before republishing
	if err := p.index.DeleteByFile(ctx, task.FileMd5); err != nil {
		return failTask(task, taskModel.StepIndexing, err, log)
	}

	units, err := p.parseAndChunk(ctx, localPath, task)
	if err != nil {
		return failTask(task, taskModel.StepChunking, err, log)
	}
	log.Debug("Chunking complete", "units", len(units))
	if len(units) == 0 {
		log.Warn("Document produced no retrieval units")
		task.Status = taskModel.TaskStatusComplete
		task.CurrentStep = taskModel.StepComplete
		return task
	}

	task.CurrentStep = taskModel.StepEmbedding
	start := time.Now()
	if err := p.vectorize(ctx, units); err != nil {
		return failTask(task, taskModel.StepEmbedding, err, log)
	}
	metrics.CaptureStageLatency("embedding", time.Since(start))

	task.CurrentStep = taskModel.StepIndexing
	start = time.Now()
	if err := p.index.Publish(ctx, units); err != nil {
		return failTask(task, taskModel.StepIndexing, err, log)
	}
	metrics.CaptureStageLatency("indexing", time.Since(start))

	log.Info("Document ingested", "units", len(units))
	task.Status = taskModel.TaskStatusComplete
	task.CurrentStep = taskModel.StepComplete
	return task
}

// parseAndChunk streams parent chunks out of the parser and splits each into
// retrieval units, numbering units sequentially across the whole file.
func (p *Processor) parseAndChunk(ctx context.Context, localPath string, task taskModel.ProcessingTask) ([]commonModels.RetrievalUnit, error) {
	parents, group, err := parser.Parse(ctx, localPath)
	if err != nil {
		return nil, err
	}

	owner := commonModels.Ownership{
		UserId:   task.UserId,
		OrgTag:   task.OrgTag,
		IsPublic: task.IsPublic,
	}

	var units []commonModels.RetrievalUnit
	unitId := 0
	for parent := range parents {
		cleaned := chunker.Clean(parent)
		for _, content := range chunker.Split(cleaned, config.ChildChunkSize) {
			unitId++
			units = append(units, commonModels.RetrievalUnit{
				FileMd5:      task.FileMd5,
				UnitId:       unitId,
				Content:      content,
				ModelVersion: config.EmbeddingModel,
				Ownership:    owner,
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func (p *Processor) downloadToTemp(ctx context.Context, mergedKey string) (string, error) {
	reader, err := p.objects.GetReader(ctx, mergedKey)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	tempFile, err := os.CreateTemp("", "ingest-*"+filepath.Ext(mergedKey))
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %v", faults.ErrStorageFailure, err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, reader); err != nil {
		_ = os.Remove(tempFile.Name())
		return "", fmt.Errorf("%w: downloading merged object: %v", faults.ErrStorageFailure, err)
	}
	return tempFile.Name(), nil
}

// DeleteDocument removes a document everywhere: index units, merged object
// and the upload session row. The session lookup is scoped to the caller, so
// a non-owner gets not-found and nothing is touched.
func (p *Processor) DeleteDocument(ctx context.Context, fileMd5 string, userId string) error {
	session, found, err := p.ledger.GetSession(ctx, fileMd5, userId)
	if err != nil {
		return fmt.Errorf("%w: session lookup: %v", faults.ErrStorageFailure, err)
	}
	if !found {
		return fmt.Errorf("%w: no document %s", faults.ErrNotFound, fileMd5)
	}

	if err := p.index.DeleteByFile(ctx, fileMd5); err != nil {
		return err
	}
	if session.MergedKey != "" {
		if err := p.objects.Remove(ctx, session.MergedKey); err != nil {
			return err
		}
	}
	if err := p.ledger.DeleteChunks(ctx, fileMd5); err != nil {
		return fmt.Errorf("%w: deleting chunk records: %v", faults.ErrStorageFailure, err)
	}
	return p.ledger.DeleteSession(ctx, fileMd5, userId)
}

func failTask(task taskModel.ProcessingTask, step taskModel.InternalStatus, err error, log *logger_i.Logger) taskModel.ProcessingTask {
	log.Error("Pipeline stage failed", "step", step, "error", err)
	task.Status = taskModel.TaskStatusError
	task.CurrentStep = step
	task.Error = taskModel.TaskError{Message: err.Error()}
	return task
}
