package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingDimension)
var collectionName = config.IndexName

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQdrantClient(ctx context.Context) *ClientHolder {

	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: qdrantInstance,
	}
}

func newClient() *qdrant.Client {

	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	if host == "" || er != nil {
		host = "127.0.0.1"
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	err = createCollection(context.Background(), client, collectionName)
	if err != nil {
		logger.Error("could not create collection: ", "collectionName", collectionName, "error:", err)
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) EnsureIndex(ctx context.Context) error {
	return createCollection(ctx, db.QObj, collectionName)
}

// pointId derives a stable UUID from (fileMd5, unitId) so re-publication of
// the same unit is an overwrite, never a duplicate.
func pointId(fileMd5 string, unitId int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fileMd5+":"+strconv.Itoa(unitId))).String()
}

func (db *ClientHolder) Publish(ctx context.Context, units []commonModels.RetrievalUnit) error {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	qdrantPoints := make([]*qdrant.PointStruct, len(units))
	for i, unit := range units {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointId(unit.FileMd5, unit.UnitId)),
			Vectors: qdrant.NewVectors(unit.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":       unit.Content,
				"file_md5":      unit.FileMd5,
				"chunk_id":      unit.UnitId,
				"model_version": unit.ModelVersion,
				"user_id":       unit.UserId,
				"org_tag":       unit.OrgTag,
				"is_public":     unit.IsPublic,
			}),
		}
	}

	//Wait makes a rejected point fail the whole call
	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		loggr.Error("Error publishing units: ", "error:", err)
		return fmt.Errorf("%w: qdrant upsert: %v", faults.ErrStorageFailure, err)
	}
	loggr.Debug("Published units", "count", len(units))
	return nil
}

func (db *ClientHolder) DeleteByFile(ctx context.Context, fileMd5 string) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("file_md5", fileMd5),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete by file: %v", faults.ErrStorageFailure, err)
	}
	return nil
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {

		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	return err
}
