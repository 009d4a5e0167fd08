// @title           Knowledge Base Ingestion API
// @version         1.0
// @description     Resumable chunked upload, merge and asynchronous document ingestion into a vector index
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/data/ledger"
	"github.com/yixin-zhu/yx-chatbot/internal/data/store"
	"github.com/yixin-zhu/yx-chatbot/internal/data/tracker"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/taskModel"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/internal/handlers"
	"github.com/yixin-zhu/yx-chatbot/internal/objectstore"
	"github.com/yixin-zhu/yx-chatbot/internal/pipeline"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/embedding"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/embedding/googleEmbedding"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/embedding/openaiEmbedding"
	"github.com/yixin-zhu/yx-chatbot/internal/rag/vectorDB/qdrantDB"
	"github.com/yixin-zhu/yx-chatbot/internal/server"
	"github.com/yixin-zhu/yx-chatbot/internal/task"
	"github.com/yixin-zhu/yx-chatbot/internal/upload"
	"github.com/yixin-zhu/yx-chatbot/internal/worker"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered task channel
	taskChannel := make(chan taskModel.ProcessingTask, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//task state store: redis when reachable, in-memory otherwise
	var taskStore taskModel.TaskStore
	if redisTaskStore := store.GetRedisTaskStore(serviceContext); redisTaskStore != nil {
		taskStore = redisTaskStore
	} else {
		logger.Error("Redis task store is offline")
		taskStore = store.InitInMemoryTaskStore()
	}

	//durable chunk ledger backed by postgres
	var chunkLedger uploadModel.Ledger
	chunkLedger, err := ledger.NewSqlLedger(serviceContext)
	if err != nil {
		logger.Error("Postgres ledger unavailable, falling back to in-memory", "err", err)
		chunkLedger = ledger.InitInMemoryLedger()
	}

	objects, err := objectstore.NewS3Store(serviceContext)
	if err != nil {
		logger.Error("Object store failed to initialize. Shutting down.", "err", err)
		return
	}

	vectorDb := qdrantDB.GetQdrantClient(serviceContext)

	var embedder embedding.Embedder
	if config.GetEnv("EMBEDDING_PROVIDER", "") == "google" {
		embedder = googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GoogleEmbeddingAPIKey())
	} else {
		embedder = openaiEmbedding.GetOpenAIEmbeddingClient(config.EmbeddingModel, config.EmbeddingAPIKey())
	}

	if vectorDb == nil || embedder == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "VectorDB", vectorDb != nil, "Embedder", embedder != nil)
		return
	}

	logger.Info("Starting task service")
	taskService := task.InitTaskService(task.ServiceConfig{
		TaskChannel:       taskChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		TaskStore:         taskStore,
	})

	uploadService := upload.InitUploadService(upload.ServiceConfig{
		Ledger:  chunkLedger,
		Tracker: tracker.GetTracker(serviceContext),
		Objects: objects,
		Queue:   taskService,
	})

	processor := pipeline.NewProcessor(objects, embedder, vectorDb, chunkLedger)

	handlers.InitHandlers(uploadService, processor, taskStore)

	//init worker pool
	worker.InitServices(taskService, processor)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
