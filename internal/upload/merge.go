package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/internal/filetype"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
)

type MergeResult struct {
	MergedKey string
	ObjectURL string
}

// Merge composes the stored chunks into one durable object. Callable many
// times; the physical compose runs at most once. The ledger status CAS is the
// transition guard, the per-file mutex just keeps concurrent callers from
// racing the completeness check into a double compose. The session lookup is
// scoped to the caller, so a non-owner gets not-found.
func (s *Service) Merge(ctx context.Context, fileMd5 string, userId string) (MergeResult, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "fileMd5", fileMd5)

	lock := s.lockFor(fileMd5)
	lock.Lock()
	defer lock.Unlock()

	session, found, err := s.ledger.GetSession(ctx, fileMd5, userId)
	if err != nil {
		return MergeResult{}, fmt.Errorf("%w: session lookup: %v", faults.ErrStorageFailure, err)
	}
	if !found {
		return MergeResult{}, fmt.Errorf("%w: no upload session for %s", faults.ErrNotFound, fileMd5)
	}
	if session.Status == uploadModel.SessionMerged {
		log.Info("Merge already done, returning cached result")
		return s.presignResult(ctx, session.MergedKey)
	}

	records, err := s.ledger.ListChunks(ctx, fileMd5)
	if err != nil {
		return MergeResult{}, fmt.Errorf("%w: listing chunks: %v", faults.ErrStorageFailure, err)
	}
	expected := ExpectedChunks(session.TotalSize)
	if len(records) < expected {
		return MergeResult{}, fmt.Errorf("%w: have %d of %d chunks", faults.ErrIncomplete, len(records), expected)
	}
	sourceKeys := make([]string, 0, expected)
	var storedSize int64
	for i, record := range records[:expected] {
		if record.ChunkIndex != i {
			return MergeResult{}, fmt.Errorf("%w: missing chunk index %d", faults.ErrIncomplete, i)
		}
		sourceKeys = append(sourceKeys, record.StorageKey)
		storedSize += record.Size
	}

	mergedKey := config.MergedObjectPrefix + fileMd5 + "/" + session.FileName

	start := time.Now()
	if err := s.objects.Compose(ctx, sourceKeys, mergedKey); err != nil {
		return MergeResult{}, err
	}
	metrics.CaptureStageLatency("compose", time.Since(start))

	//verify the composed object before any cleanup can run
	mergedSize, err := s.objects.Stat(ctx, mergedKey)
	if err != nil {
		return MergeResult{}, err
	}
	if mergedSize != session.TotalSize || mergedSize != storedSize {
		if removeErr := s.objects.Remove(ctx, mergedKey); removeErr != nil {
			log.Error("Could not remove corrupt merged object", "key", mergedKey, "error", removeErr)
		}
		return MergeResult{}, fmt.Errorf("%w: merged size %d, declared %d, stored %d",
			faults.ErrStateCorruption, mergedSize, session.TotalSize, storedSize)
	}

	won, err := s.ledger.MarkMerged(ctx, fileMd5, userId, mergedKey, time.Now())
	if err != nil {
		return MergeResult{}, fmt.Errorf("%w: marking merged: %v", faults.ErrStorageFailure, err)
	}
	if !won {
		//another caller completed the transition; serve its result
		session, _, err = s.ledger.GetSession(ctx, fileMd5, userId)
		if err != nil {
			return MergeResult{}, fmt.Errorf("%w: session re-read: %v", faults.ErrStorageFailure, err)
		}
		return s.presignResult(ctx, session.MergedKey)
	}

	go s.cleanupChunks(session.UserId, fileMd5, sourceKeys)

	if filetype.IsIngestable(session.FileName) {
		task := taskModel.ProcessingTask{
			FileMd5:     fileMd5,
			MergedKey:   mergedKey,
			FileName:    session.FileName,
			UserId:      session.UserId,
			OrgTag:      session.OrgTag,
			IsPublic:    session.IsPublic,
			Status:      taskModel.TaskStatusQueued,
			CurrentStep: taskModel.StepInit,
			CreatedTime: time.Now(),
		}
		if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
			task.TraceId = traceId
		}
		s.queue.Enqueue(ctx, task)
	} else {
		log.Info("File type is stored only, skipping ingestion", "fileName", session.FileName)
	}

	log.Info("Merge complete", "mergedKey", mergedKey, "chunks", expected)
	metrics.IncrementMergesCompleted()
	return s.presignResult(ctx, mergedKey)
}

// cleanupChunks removes chunk-level state after a confirmed merge. Failures
// are logged and retried once, never surfaced to the merge caller.
func (s *Service) cleanupChunks(userId string, fileMd5 string, sourceKeys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.tracker.Clear(ctx, userId, fileMd5); err != nil {
		s.logger.Warn("Tracker cleanup failed", "fileMd5", fileMd5, "error", err)
	}

	remove := func() error { return s.objects.Remove(ctx, sourceKeys...) }
	if err := remove(); err != nil {
		s.logger.Warn("Chunk object cleanup failed, retrying once", "fileMd5", fileMd5, "error", err)
		time.Sleep(config.ChunkPutRetryDelay)
		if err := remove(); err != nil {
			s.logger.Error("Chunk object cleanup failed", "fileMd5", fileMd5, "error", err)
		}
	}

	if err := s.ledger.DeleteChunks(ctx, fileMd5); err != nil {
		s.logger.Error("Chunk record cleanup failed", "fileMd5", fileMd5, "error", err)
	}
}

func (s *Service) presignResult(ctx context.Context, mergedKey string) (MergeResult, error) {
	url, err := s.objects.PresignGet(ctx, mergedKey, config.PresignExpiry)
	if err != nil {
		return MergeResult{}, err
	}
	return MergeResult{MergedKey: mergedKey, ObjectURL: url}, nil
}

// PresignDownload returns a time-limited URL for an already merged document
// owned by the caller.
func (s *Service) PresignDownload(ctx context.Context, fileMd5 string, userId string) (string, error) {
	session, found, err := s.ledger.GetSession(ctx, fileMd5, userId)
	if err != nil {
		return "", fmt.Errorf("%w: session lookup: %v", faults.ErrStorageFailure, err)
	}
	if !found || session.Status != uploadModel.SessionMerged {
		return "", fmt.Errorf("%w: no merged document for %s", faults.ErrNotFound, fileMd5)
	}
	return s.objects.PresignGet(ctx, session.MergedKey, config.PresignExpiry)
}
