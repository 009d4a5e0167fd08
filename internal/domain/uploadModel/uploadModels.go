package uploadModel

import (
	"context"
	"time"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionMerged     SessionStatus = "MERGED"
)

// UploadSession is keyed by (FileMd5, UserId). TotalSize is fixed at creation
// and is the only client-supplied sizing input; expected chunk count is always
// derived from it.
type UploadSession struct {
	FileMd5     string        `json:"file_md5"`
	UserId      string        `json:"user_id"`
	FileName    string        `json:"file_name"`
	TotalSize   int64         `json:"total_size"`
	OrgTag      string        `json:"org_tag"`
	IsPublic    bool          `json:"is_public"`
	Status      SessionStatus `json:"status"`
	MergedKey   string        `json:"merged_key,omitempty"`
	MergedAt    time.Time     `json:"merged_at,omitempty"`
	CreatedTime time.Time     `json:"created_time"`
}

// ChunkRecord is immutable once written; the full set {0..N-1} drives merge
// order and survives a lost tracker bitmap.
type ChunkRecord struct {
	FileMd5    string    `json:"file_md5"`
	ChunkIndex int       `json:"chunk_index"`
	StorageKey string    `json:"storage_key"`
	Checksum   string    `json:"checksum"`
	Size       int64     `json:"size"`
	StoredTime time.Time `json:"stored_time"`
}

// Ledger is the durable source of truth for upload state. The Redis bitmap is
// a derived accelerant and must always be reconstructable from here.
type Ledger interface {
	GetSession(ctx context.Context, fileMd5 string, userId string) (UploadSession, bool, error)
	CreateSession(ctx context.Context, session UploadSession) error
	// MarkMerged performs the single IN_PROGRESS -> MERGED transition. It
	// returns false when another caller already won the transition.
	MarkMerged(ctx context.Context, fileMd5 string, userId string, mergedKey string, mergedAt time.Time) (bool, error)
	DeleteSession(ctx context.Context, fileMd5 string, userId string) error

	GetChunk(ctx context.Context, fileMd5 string, chunkIndex int) (ChunkRecord, bool, error)
	SaveChunk(ctx context.Context, record ChunkRecord) error
	ListChunks(ctx context.Context, fileMd5 string) ([]ChunkRecord, error)
	DeleteChunks(ctx context.Context, fileMd5 string) error

	Close() error
}
