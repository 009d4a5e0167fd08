package adapter

import (
	"github.com/yixin-zhu/yx-chatbot/internal/api"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/upload"
)

func ToChunkUploadResponse(fileMd5 string, progress upload.Progress) api.ChunkUploadResponse {
	return api.ChunkUploadResponse{
		FileMd5:  fileMd5,
		Uploaded: progress.Uploaded,
		Total:    progress.Total,
		Progress: ratio(len(progress.Uploaded), progress.Total),
		Complete: progress.Complete,
	}
}

func ToUploadStatusResponse(fileMd5 string, progress upload.Progress, typeDescription string) api.UploadStatusResponse {
	return api.UploadStatusResponse{
		FileMd5:         fileMd5,
		TypeDescription: typeDescription,
		Uploaded:        progress.Uploaded,
		Total:           progress.Total,
		Progress:        ratio(len(progress.Uploaded), progress.Total),
		Complete:        progress.Complete,
	}
}

func ToMergeResponse(fileMd5 string, result upload.MergeResult) api.MergeResponse {
	return api.MergeResponse{
		FileMd5:   fileMd5,
		ObjectURL: result.ObjectURL,
		MergedKey: result.MergedKey,
	}
}

func ToIngestStatusResponse(task taskModel.ProcessingTask) api.IngestStatusResponse {
	var errorPtr *api.OutgoingError
	if task.Error.Message != "" || task.Error.Code != 0 {
		errorPtr = &api.OutgoingError{
			Code:    task.Error.Code,
			Message: task.Error.Message,
			Retry:   task.Error.Retry,
		}
	}

	return api.IngestStatusResponse{
		FileMd5:     task.FileMd5,
		Status:      string(task.Status),
		CurrentStep: string(task.CurrentStep),
		Error:       errorPtr,
		StartTime:   task.CreatedTime,
		EndTime:     task.EndTime,
	}
}

func BadRequest(id string, message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Id: id,
		Error: &api.OutgoingError{
			Code:    code,
			Message: message,
			Retry:   false,
		},
	}
}

func ratio(have int, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(have) / float64(total)
}
