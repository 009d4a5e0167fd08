package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countTasksInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_tasks_in_queue",
	Help: "Number of processing tasks in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var chunksAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "upload_chunks_accepted_total",
	Help: "Chunks durably stored and recorded",
})

var duplicateChunks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "upload_chunks_duplicate_total",
	Help: "Chunk uploads answered as idempotent no-ops",
})

var mergesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "upload_merges_completed_total",
	Help: "Successful physical merges",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) CaptureWriteHeaderMetrics(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementTasksInQueue() {
	countTasksInQueue.Inc()
}

func DecrementTasksInQueue() {
	countTasksInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func IncrementChunksAccepted() {
	chunksAccepted.Inc()
}

func IncrementDuplicateChunks() {
	duplicateChunks.Inc()
}

func IncrementMergesCompleted() {
	mergesCompleted.Inc()
}

var taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_task_duration_seconds",
	Help:    "Total time spent ingesting one file.",
	Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300},
}, []string{"status"})

var stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pipeline_stage_latency_seconds",
	Help:    "Latency of individual pipeline stages and external calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"stage"})

func CaptureStageLatency(stage string, timeElapsed time.Duration) {
	stageLatency.WithLabelValues(stage).Observe(timeElapsed.Seconds())
}

func CaptureTaskMetrics(label string, timeElapsed time.Duration) {
	taskDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
