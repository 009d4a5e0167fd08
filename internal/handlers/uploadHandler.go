package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/yixin-zhu/yx-chatbot/internal/adapter"
	"github.com/yixin-zhu/yx-chatbot/internal/adapter/utils"
	"github.com/yixin-zhu/yx-chatbot/internal/api"
	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/pipeline"
	"github.com/yixin-zhu/yx-chatbot/internal/upload"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var (
	handlerInstance *IngestHandler //private singleton
	once            sync.Once
	logUH           *logger_i.Logger
)

type IngestHandler struct {
	uploads   *upload.Service
	processor *pipeline.Processor
	taskStore taskModel.TaskStore
}

func InitHandlers(uploads *upload.Service, processor *pipeline.Processor, taskStore taskModel.TaskStore) {
	once.Do(func() {
		handlerInstance = &IngestHandler{
			uploads:   uploads,
			processor: processor,
			taskStore: taskStore,
		}
		logUH = logger_i.NewLogger("IngestHandler")
		logUH.Info("Starting ingest handlers")
	})
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChunkUploadHandler godoc
// @Summary      Upload one chunk of a file
// @Description  Accepts one fixed-size chunk via multipart/form-data, stores it durably and reports upload progress. Retrying an already stored chunk is a no-op success.
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file_md5     formData  string  true   "Content hash identifying the whole file"
// @Param        chunk_index  formData  int     true   "Zero-based chunk index"
// @Param        total_size   formData  int     true   "Declared total file size in bytes"
// @Param        file_name    formData  string  true   "Declared file name"
// @Param        checksum     formData  string  false  "MD5 of this chunk's bytes"
// @Param        chunk        formData  file    true   "The chunk bytes"
// @Success      200  {object}  api.ChunkUploadResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /upload/chunk [post]
func ChunkUploadHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logUH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	owner, ok := ownershipFromRequest(r)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, "", "X-User-Id header is required")
		return
	}

	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Chunk too large or bad request")
		return
	}

	fileMd5 := r.FormValue("file_md5")
	chunkIndex, indexErr := strconv.Atoi(r.FormValue("chunk_index"))
	totalSize, sizeErr := strconv.ParseInt(r.FormValue("total_size"), 10, 64)
	if fileMd5 == "" || indexErr != nil || sizeErr != nil {
		WriteErrorResponse(w, http.StatusBadRequest, fileMd5, "file_md5, chunk_index and total_size are required")
		return
	}

	chunkReader, _, err := r.FormFile("chunk")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, fileMd5, "Could not retrieve chunk")
		return
	}
	defer func(body io.Closer) {
		if err := body.Close(); err != nil {
			logUH.Error("Couldn't close the chunk reader :", err)
		}
	}(chunkReader)

	progress, err := handlerInstance.uploads.AcceptChunk(r.Context(), upload.ChunkUpload{
		FileMd5:    fileMd5,
		FileName:   r.FormValue("file_name"),
		ChunkIndex: chunkIndex,
		TotalSize:  totalSize,
		Checksum:   r.FormValue("checksum"),
		Owner:      owner,
		Data:       chunkReader,
	})
	if err != nil {
		writeFaultResponse(w, fileMd5, err)
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToChunkUploadResponse(fileMd5, progress))
}

// UploadStatusHandler godoc
// @Summary      Get upload progress
// @Description  Reports which chunk indices have arrived for a file and the overall progress ratio.
// @Tags         Upload
// @Produce      json
// @Param        fileMd5  path  string  true  "File content hash"
// @Success      200  {object}  api.UploadStatusResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /upload/status/{fileMd5} [get]
func UploadStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	owner, ok := ownershipFromRequest(r)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, "", "X-User-Id header is required")
		return
	}

	fileMd5 := utils.GetChiURLParam(r, "fileMd5")
	progress, typeDescription, err := handlerInstance.uploads.Status(r.Context(), fileMd5, owner.UserId)
	if err != nil {
		writeFaultResponse(w, fileMd5, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToUploadStatusResponse(fileMd5, progress, typeDescription))
}

// MergeHandler godoc
// @Summary      Merge an uploaded file
// @Description  Composes all stored chunks into one durable object, queues ingestion, and returns a presigned download URL. Safe to call repeatedly; only the first call performs the physical merge.
// @Tags         Upload
// @Accept       json
// @Produce      json
// @Param        request  body  api.MergeRequest  true  "File to merge"
// @Success      200  {object}  api.MergeResponse
// @Failure      409  {object}  api.ErrorResponse  "Upload incomplete"
// @Router       /upload/merge [post]
func MergeHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	owner, ok := ownershipFromRequest(r)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, "", "X-User-Id header is required")
		return
	}

	var requestData api.MergeRequest
	defer func(body io.Closer) {
		if err := body.Close(); err != nil {
			logUH.Error("Couldn't close the merge request reader :", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.FileMd5 == "" {
		logUH.Warn("Bad merge request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "file_md5 is required")
		return
	}

	result, err := handlerInstance.uploads.Merge(r.Context(), requestData.FileMd5, owner.UserId)
	if err != nil {
		writeFaultResponse(w, requestData.FileMd5, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToMergeResponse(requestData.FileMd5, result))
}
