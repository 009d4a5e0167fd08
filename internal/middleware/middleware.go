package middleware

import (
	"net/http"
	"strconv"

	"github.com/yixin-zhu/yx-chatbot/internal/handlers"
	"github.com/yixin-zhu/yx-chatbot/internal/metrics"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var GetHandler = Wrap(handlers.GetHandler)

var ChunkUploadHandler = Wrap(handlers.ChunkUploadHandler)
var UploadStatusHandler = Wrap(handlers.UploadStatusHandler)
var MergeHandler = Wrap(handlers.MergeHandler)
var DocumentURLHandler = Wrap(handlers.DocumentURLHandler)
var DeleteDocumentHandler = Wrap(handlers.DeleteDocumentHandler)
var IngestStatusHandler = Wrap(handlers.IngestStatusHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received")
	re = injectTrace(re)
	re = rateLimiter(re)
	if re.badRequest.isBadRequest {
		return re //stop here if rate limit fails
	}

	return re
}
