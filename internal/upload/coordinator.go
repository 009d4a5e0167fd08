package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/internal/filetype"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
)

type ChunkUpload struct {
	FileMd5    string
	FileName   string
	ChunkIndex int
	TotalSize  int64
	Checksum   string
	Owner      commonModels.Ownership
	Data       io.Reader
}

type Progress struct {
	Uploaded []int
	Total    int
	Complete bool
}

// ExpectedChunks derives the chunk count from the declared total size; the
// client never supplies it directly.
func ExpectedChunks(totalSize int64) int {
	if totalSize <= 0 {
		return 0
	}
	return int((totalSize + config.FixedChunkSize - 1) / config.FixedChunkSize)
}

// AcceptChunk stores one chunk. Retried or duplicated chunks are answered
// with a no-op success. The object write is confirmed before the tracker bit
// is set so a crash in between leaves the safe state (bit unset, re-upload
// requested) rather than a bit with no backing bytes.
func (s *Service) AcceptChunk(ctx context.Context, up ChunkUpload) (Progress, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "fileMd5", up.FileMd5, "chunkIndex", up.ChunkIndex)

	if up.ChunkIndex < 0 {
		return Progress{}, fmt.Errorf("%w: negative chunk index %d", faults.ErrInvalidInput, up.ChunkIndex)
	}
	if up.FileMd5 == "" || up.Owner.UserId == "" {
		return Progress{}, fmt.Errorf("%w: fileMd5 and userId are required", faults.ErrInvalidInput)
	}
	if up.TotalSize <= 0 {
		return Progress{}, fmt.Errorf("%w: totalSize must be positive", faults.ErrInvalidInput)
	}
	if up.ChunkIndex == 0 {
		if _, known := filetype.Lookup(up.FileName); !known {
			return Progress{}, fmt.Errorf("%w: unsupported file type %q", faults.ErrInvalidInput, up.FileName)
		}
	}
	if up.Owner.OrgTag == "" {
		up.Owner.OrgTag = config.DefaultOrgTag
	}

	session, err := s.getOrCreateSession(ctx, up)
	if err != nil {
		return Progress{}, err
	}
	if session.Status == uploadModel.SessionMerged {
		return Progress{}, fmt.Errorf("%w: %s", faults.ErrAlreadyMerged, up.FileMd5)
	}
	if up.ChunkIndex >= ExpectedChunks(session.TotalSize) {
		return Progress{}, fmt.Errorf("%w: chunk index %d out of range for %d bytes", faults.ErrInvalidInput, up.ChunkIndex, session.TotalSize)
	}

	data, err := io.ReadAll(io.LimitReader(up.Data, config.MaxUploadSize))
	if err != nil {
		return Progress{}, fmt.Errorf("%w: reading chunk body: %v", faults.ErrInvalidInput, err)
	}
	sum := md5.Sum(data)
	checksum := hex.EncodeToString(sum[:])
	if up.Checksum != "" && up.Checksum != checksum {
		return Progress{}, fmt.Errorf("%w: checksum mismatch for chunk %d", faults.ErrInvalidInput, up.ChunkIndex)
	}

	//idempotent retry: record exists, bit set, same bytes
	existing, recordFound, err := s.ledger.GetChunk(ctx, up.FileMd5, up.ChunkIndex)
	if err != nil {
		return Progress{}, fmt.Errorf("%w: ledger lookup: %v", faults.ErrStorageFailure, err)
	}
	bitSet := s.tracker.IsChunkPresent(ctx, up.Owner.UserId, up.FileMd5, up.ChunkIndex)
	if recordFound && bitSet && existing.Checksum == checksum {
		log.Debug("Duplicate chunk, no-op success")
		metrics.IncrementDuplicateChunks()
		return s.progress(ctx, session), nil
	}

	storageKey := chunkKey(up.FileMd5, up.ChunkIndex)
	if err := s.putWithRetry(ctx, storageKey, data); err != nil {
		return Progress{}, err
	}

	if err := s.tracker.MarkPresent(ctx, up.Owner.UserId, up.FileMd5, up.ChunkIndex); err != nil {
		//ledger below stays authoritative, the bitmap will be rebuilt from it
		log.Warn("Tracker update failed after storage write", "error", err)
	}

	record := uploadModel.ChunkRecord{
		FileMd5:    up.FileMd5,
		ChunkIndex: up.ChunkIndex,
		StorageKey: storageKey,
		Checksum:   checksum,
		Size:       int64(len(data)),
		StoredTime: time.Now(),
	}
	if err := s.ledger.SaveChunk(ctx, record); err != nil {
		return Progress{}, fmt.Errorf("%w: saving chunk record: %v", faults.ErrStorageFailure, err)
	}

	metrics.IncrementChunksAccepted()
	log.Debug("Chunk accepted", "size", record.Size)
	return s.progress(ctx, session), nil
}

// Status reports which chunks have arrived for a session.
func (s *Service) Status(ctx context.Context, fileMd5 string, userId string) (Progress, string, error) {
	session, found, err := s.ledger.GetSession(ctx, fileMd5, userId)
	if err != nil {
		return Progress{}, "", fmt.Errorf("%w: session lookup: %v", faults.ErrStorageFailure, err)
	}
	if !found {
		return Progress{}, "", fmt.Errorf("%w: no upload session for %s", faults.ErrNotFound, fileMd5)
	}
	return s.progress(ctx, session), filetype.Description(session.FileName), nil
}

func (s *Service) getOrCreateSession(ctx context.Context, up ChunkUpload) (uploadModel.UploadSession, error) {
	session, found, err := s.ledger.GetSession(ctx, up.FileMd5, up.Owner.UserId)
	if err != nil {
		return uploadModel.UploadSession{}, fmt.Errorf("%w: session lookup: %v", faults.ErrStorageFailure, err)
	}
	if found {
		return session, nil
	}

	session = uploadModel.UploadSession{
		FileMd5:     up.FileMd5,
		UserId:      up.Owner.UserId,
		FileName:    up.FileName,
		TotalSize:   up.TotalSize,
		OrgTag:      up.Owner.OrgTag,
		IsPublic:    up.Owner.IsPublic,
		Status:      uploadModel.SessionInProgress,
		CreatedTime: time.Now(),
	}
	if err := s.ledger.CreateSession(ctx, session); err != nil {
		return uploadModel.UploadSession{}, fmt.Errorf("%w: creating session: %v", faults.ErrStorageFailure, err)
	}
	s.logger.Info("Created upload session", "fileMd5", up.FileMd5, "totalSize", up.TotalSize)

	//a concurrent first chunk may have won the insert; re-read for the fixed totalSize
	session, _, err = s.ledger.GetSession(ctx, up.FileMd5, up.Owner.UserId)
	if err != nil {
		return uploadModel.UploadSession{}, fmt.Errorf("%w: session re-read: %v", faults.ErrStorageFailure, err)
	}
	return session, nil
}

func (s *Service) putWithRetry(ctx context.Context, key string, data []byte) error {
	var err error
	for attempt := 1; attempt <= config.ChunkPutRetries; attempt++ {
		err = s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
		if err == nil {
			return nil
		}
		s.logger.Warn("Chunk storage write failed", "key", key, "attempt", attempt, "error", err)
		time.Sleep(config.ChunkPutRetryDelay * time.Duration(attempt))
	}
	return fmt.Errorf("%w: chunk write exhausted retries: %v", faults.ErrStorageFailure, err)
}

// progress prefers the bitmap; an empty or unavailable bitmap falls back to
// the ledger, which is the source of truth.
func (s *Service) progress(ctx context.Context, session uploadModel.UploadSession) Progress {
	total := ExpectedChunks(session.TotalSize)
	uploaded := s.tracker.ListPresent(ctx, session.UserId, session.FileMd5)
	if len(uploaded) == 0 {
		records, err := s.ledger.ListChunks(ctx, session.FileMd5)
		if err != nil {
			s.logger.Error("Ledger chunk listing failed", "fileMd5", session.FileMd5, "error", err)
		}
		for _, record := range records {
			uploaded = append(uploaded, record.ChunkIndex)
		}
	}
	return Progress{
		Uploaded: uploaded,
		Total:    total,
		Complete: len(uploaded) >= total && total > 0,
	}
}

func chunkKey(fileMd5 string, chunkIndex int) string {
	return config.ChunkObjectPrefix + fileMd5 + "/" + strconv.Itoa(chunkIndex)
}
