package taskModel

import (
	"context"
	"time"
)

type TaskStatus string
type InternalStatus string

const (
	TaskStatusQueued   TaskStatus = "QUEUED"
	TaskStatusRunning  TaskStatus = "RUNNING"
	TaskStatusComplete TaskStatus = "COMPLETE"
	TaskStatusError    TaskStatus = "Error"

	StepInit      InternalStatus = "Init"
	StepParsing   InternalStatus = "Parsing"
	StepChunking  InternalStatus = "Chunking"
	StepEmbedding InternalStatus = "Embedding"
	StepIndexing  InternalStatus = "Indexing"
	StepComplete  InternalStatus = "Complete"
	StepError     InternalStatus = "Error"
)

// ProcessingTask is the fire-and-continue handoff from a successful merge to
// the ingestion pipeline. Exactly one task is created per merge.
type ProcessingTask struct {
	FileMd5     string         `json:"file_md5"`
	MergedKey   string         `json:"merged_key"`
	FileName    string         `json:"file_name"`
	UserId      string         `json:"user_id"`
	OrgTag      string         `json:"org_tag"`
	IsPublic    bool           `json:"is_public"`
	TraceId     string         `json:"trace_id"`
	Status      TaskStatus     `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
	Error       TaskError      `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
}

type TaskError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type TaskStore interface {
	GetTask(ctx context.Context, fileMd5 string) (ProcessingTask, bool)
	SaveTask(ctx context.Context, task ProcessingTask) error
	DeleteTask(ctx context.Context, fileMd5 string)
}
