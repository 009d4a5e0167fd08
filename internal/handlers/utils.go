package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yixin-zhu/yx-chatbot/internal/adapter"
	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logUH.Error("Error encoding response: %v", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

// writeFaultResponse maps the failure taxonomy onto HTTP statuses.
func writeFaultResponse(w http.ResponseWriter, id string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, faults.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, faults.ErrIncomplete), errors.Is(err, faults.ErrAlreadyMerged):
		code = http.StatusConflict
	case errors.Is(err, faults.ErrResourceExhausted):
		code = http.StatusServiceUnavailable
	case errors.Is(err, faults.ErrExternalService):
		code = http.StatusBadGateway
	}
	WriteErrorResponse(w, code, id, err.Error())
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logUH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logUH.Warn("context cancelled")
		return false
	default:
		return true

	}
}

// ownershipFromRequest reads the already-validated identity headers set by
// the permission subsystem in front of this service.
func ownershipFromRequest(r *http.Request) (commonModels.Ownership, bool) {
	userId := r.Header.Get("X-User-Id")
	if userId == "" {
		return commonModels.Ownership{}, false
	}
	orgTag := r.Header.Get("X-Org-Tag")
	if orgTag == "" {
		orgTag = config.DefaultOrgTag
	}
	return commonModels.Ownership{
		UserId:   userId,
		OrgTag:   orgTag,
		IsPublic: r.Header.Get("X-Is-Public") == "true",
	}, true
}
