package handlers

import (
	"net/http"

	"github.com/yixin-zhu/yx-chatbot/internal/adapter"
	"github.com/yixin-zhu/yx-chatbot/internal/adapter/utils"
	"github.com/yixin-zhu/yx-chatbot/internal/api"
)

// DocumentURLHandler godoc
// @Summary      Get a download URL for a merged document
// @Description  Returns a presigned, time-limited URL for the composed object.
// @Tags         Documents
// @Produce      json
// @Param        fileMd5  path  string  true  "File content hash"
// @Success      200  {object}  api.DocumentURLResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{fileMd5}/url [get]
func DocumentURLHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	owner, ok := ownershipFromRequest(r)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, "", "X-User-Id header is required")
		return
	}

	fileMd5 := utils.GetChiURLParam(r, "fileMd5")
	url, err := handlerInstance.uploads.PresignDownload(r.Context(), fileMd5, owner.UserId)
	if err != nil {
		writeFaultResponse(w, fileMd5, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.DocumentURLResponse{FileMd5: fileMd5, ObjectURL: url})
}

// DeleteDocumentHandler godoc
// @Summary      Delete a document
// @Description  Removes the document's retrieval units from the index, its merged object from storage, and the upload session.
// @Tags         Documents
// @Produce      json
// @Param        fileMd5  path  string  true  "File content hash"
// @Success      204  "Deleted"
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{fileMd5} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	owner, ok := ownershipFromRequest(r)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, "", "X-User-Id header is required")
		return
	}

	fileMd5 := utils.GetChiURLParam(r, "fileMd5")
	if err := handlerInstance.processor.DeleteDocument(r.Context(), fileMd5, owner.UserId); err != nil {
		writeFaultResponse(w, fileMd5, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IngestStatusHandler godoc
// @Summary      Get ingestion status
// @Description  Retrieves the processing state of a merged document's ingestion task.
// @Tags         Documents
// @Produce      json
// @Param        fileMd5  path  string  true  "File content hash"
// @Success      200  {object}  api.IngestStatusResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /ingest/status/{fileMd5} [get]
func IngestStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	fileMd5 := utils.GetChiURLParam(r, "fileMd5")
	task, found := handlerInstance.taskStore.GetTask(r.Context(), fileMd5)
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, fileMd5, "No ingestion task for file")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToIngestStatusResponse(task))
}
