package vectorDB

import (
	"context"

	"github.com/yixin-zhu/yx-chatbot/internal/domain/commonModels"
)

// DataProcessor is the search-index surface the pipeline publishes into.
// Publish is idempotent per (fileMd5, unitId): re-publishing a unit
// overwrites it. DeleteByFile removes every unit of one file, which a
// re-ingest calls before publishing fresh units.
type DataProcessor interface {
	EnsureIndex(ctx context.Context) error
	Publish(ctx context.Context, units []commonModels.RetrievalUnit) error
	DeleteByFile(ctx context.Context, fileMd5 string) error
}
