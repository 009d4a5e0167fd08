package config

import (
	"log/slog"
	"os"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"
	USER_ID_KEY    = "userId"

	RATE_LIMIT_PER_SECOND       = 5
	BURST_RATE_LIMIT_PER_SECOND = 10

	//serverTimeouts
	ReadTimeout            = 30 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":8080"

	//processing task buffer limit
	BufferLimit = 100

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	//IdleWorkerTimeout = 1 * time.Second //for tests

	//chunked upload
	FixedChunkSize     int64 = 5 * 1024 * 1024 //every chunk but the last is exactly this size
	MaxUploadSize      int64 = FixedChunkSize + (1 << 20)
	ChunkPutRetries          = 3
	ChunkPutRetryDelay       = 500 * time.Millisecond
	ChunkObjectPrefix        = "chunks/"
	MergedObjectPrefix       = "merged/"
	PresignExpiry            = 168 * time.Hour
	DefaultOrgTag            = "DEFAULT"

	//streaming parse
	ReadBufferSize          = 8 * 1024
	ParentChunkSize         = 1 << 20 //1 MiB of extracted text per parent chunk
	ChildChunkSize          = 512     //max characters per retrieval unit
	MemoryCeilingBytes      = uint64(2) << 30
	MemoryPressureThreshold = 0.8
	PageExtractTimeout      = 10 * time.Second

	//embeddings
	EmbeddingModel        = "embedding-3"
	EmbeddingDimension    = 2048
	EmbeddingBatchSize    = 100
	EmbeddingMaxRetries   = 3
	EmbeddingRetryBackoff = 2 * time.Second
	EmbeddingCallTimeout  = 60 * time.Second
	defaultEmbeddingURL   = "https://open.bigmodel.cn/api/paas/v4"

	GoogleEmbeddingModel = "gemini-embedding-001"

	//vector index
	IndexName               = "knowledge_base"
	QdrantConnectionTimeout = 30 * time.Second
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1

	//object storage
	defaultBucketName = "uploads"
	defaultAwsRegion  = "us-east-1"

	//redis has 16 DBs we can use
	RedisTrackerStore = 0
	RedisTaskStore    = 1

	//redis timeouts
	RedisTaskStoreTTL = 24 * time.Hour
	TrackerBitmapTTL  = 7 * 24 * time.Hour

	//redis
	redisHost     = "127.0.0.1"
	redisPort     = "6379"
	RedisAddr     = redisHost + ":" + redisPort
	RedisPassword = ""
)

// Environment lookups with config fallbacks. Secrets and endpoints come from
// the environment; tuning knobs stay constants above.

func GetEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func EmbeddingAPIKey() string {
	return GetEnv("EMBEDDING_API_KEY", "")
}

func EmbeddingBaseURL() string {
	return GetEnv("EMBEDDING_BASE_URL", defaultEmbeddingURL)
}

func GoogleEmbeddingAPIKey() string {
	return GetEnv("GOOGLE_API_KEY", "")
}

func DatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

func BucketName() string {
	return GetEnv("BUCKET_NAME", defaultBucketName)
}

func AwsRegion() string {
	return GetEnv("AWS_REGION", defaultAwsRegion)
}
