package api

import "time"

type ChunkUploadResponse struct {
	FileMd5  string  `json:"file_md5" example:"9e107d9d372bb6826bd81d3542a419d6"`
	Uploaded []int   `json:"uploaded"`
	Total    int     `json:"total" example:"3"`
	Progress float64 `json:"progress" example:"0.66"`
	Complete bool    `json:"complete"`
}

type UploadStatusResponse struct {
	FileMd5         string  `json:"file_md5"`
	TypeDescription string  `json:"type_description" example:"PDF document"`
	Uploaded        []int   `json:"uploaded"`
	Total           int     `json:"total"`
	Progress        float64 `json:"progress"`
	Complete        bool    `json:"complete"`
}

type MergeResponse struct {
	FileMd5   string `json:"file_md5"`
	ObjectURL string `json:"object_url"`
	MergedKey string `json:"merged_key"`
}

type DocumentURLResponse struct {
	FileMd5   string `json:"file_md5"`
	ObjectURL string `json:"object_url"`
}

type IngestStatusResponse struct {
	FileMd5     string        `json:"file_md5"`
	Status      string        `json:"status" example:"RUNNING"`
	CurrentStep string        `json:"current_step" example:"Embedding"`
	Error       *OutgoingError `json:"error,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time,omitempty"`
}

type OutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"upload incomplete"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type ErrorResponse struct {
	Id    string         `json:"id,omitempty"`
	Error *OutgoingError `json:"error"`
}

// requests---------------------

type MergeRequest struct {
	FileMd5 string `json:"file_md5" validate:"required"`
}
