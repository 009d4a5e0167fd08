package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem Ledger")

type chunkKey struct {
	fileMd5    string
	chunkIndex int
}

type sessionKey struct {
	fileMd5 string
	userId  string
}

// InMemoryLedger backs local development and tests when no database is
// configured. Same contract as SqlLedger, including the CAS on MarkMerged.
type InMemoryLedger struct {
	mu       *sync.RWMutex
	sessions map[sessionKey]uploadModel.UploadSession
	chunks   map[chunkKey]uploadModel.ChunkRecord
}

func InitInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		mu:       new(sync.RWMutex),
		sessions: make(map[sessionKey]uploadModel.UploadSession),
		chunks:   make(map[chunkKey]uploadModel.ChunkRecord),
	}
}

func (l *InMemoryLedger) Close() error {
	return nil
}

func (l *InMemoryLedger) GetSession(ctx context.Context, fileMd5 string, userId string) (uploadModel.UploadSession, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	session, found := l.sessions[sessionKey{fileMd5, userId}]
	return session, found, nil
}

func (l *InMemoryLedger) CreateSession(ctx context.Context, session uploadModel.UploadSession) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := sessionKey{session.FileMd5, session.UserId}
	if _, exists := l.sessions[key]; exists {
		return nil
	}
	l.sessions[key] = session
	inMemLogger.Info("Created session", "fileMd5", session.FileMd5, "userId", session.UserId)
	return nil
}

func (l *InMemoryLedger) MarkMerged(ctx context.Context, fileMd5 string, userId string, mergedKey string, mergedAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := sessionKey{fileMd5, userId}
	session, found := l.sessions[key]
	if !found || session.Status != uploadModel.SessionInProgress {
		return false, nil
	}
	session.Status = uploadModel.SessionMerged
	session.MergedKey = mergedKey
	session.MergedAt = mergedAt
	l.sessions[key] = session
	return true, nil
}

func (l *InMemoryLedger) DeleteSession(ctx context.Context, fileMd5 string, userId string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionKey{fileMd5, userId})
	return nil
}

func (l *InMemoryLedger) GetChunk(ctx context.Context, fileMd5 string, chunkIndex int) (uploadModel.ChunkRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, found := l.chunks[chunkKey{fileMd5, chunkIndex}]
	return record, found, nil
}

func (l *InMemoryLedger) SaveChunk(ctx context.Context, record uploadModel.ChunkRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks[chunkKey{record.FileMd5, record.ChunkIndex}] = record
	return nil
}

func (l *InMemoryLedger) ListChunks(ctx context.Context, fileMd5 string) ([]uploadModel.ChunkRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []uploadModel.ChunkRecord
	for key, record := range l.chunks {
		if key.fileMd5 == fileMd5 {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (l *InMemoryLedger) DeleteChunks(ctx context.Context, fileMd5 string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.chunks {
		if key.fileMd5 == fileMd5 {
			delete(l.chunks, key)
		}
	}
	return nil
}
