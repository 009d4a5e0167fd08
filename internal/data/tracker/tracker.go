package tracker

import (
	"context"
	"fmt"
	"sort"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/data/redisStore"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

// Tracker keeps one bit per chunk index per (userId, fileMd5) in Redis. It is
// a derived accelerant over the durable ledger: when Redis is unreachable it
// reports "nothing present" so callers re-verify against the ledger instead
// of failing the request.
type Tracker struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetTracker(ctx context.Context) *Tracker {
	return &Tracker{
		store:  redisStore.GetRedisStore(ctx, config.RedisTrackerStore),
		logger: logger_i.NewLogger("ChunkTracker"),
	}
}

func NewTestTracker(store *redisStore.Store) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger_i.NewLogger("test tracker"),
	}
}

func bitmapKey(userId string, fileMd5 string) string {
	return fmt.Sprintf("upload:%s:%s", userId, fileMd5)
}

func (t *Tracker) Available() bool {
	return t != nil && t.store != nil
}

func (t *Tracker) IsChunkPresent(ctx context.Context, userId string, fileMd5 string, chunkIndex int) bool {
	if !t.Available() {
		return false
	}
	bit, err := t.store.GetBit(ctx, bitmapKey(userId, fileMd5), int64(chunkIndex))
	if err != nil {
		t.logger.Warn("Tracker read failed, treating chunk as absent", "fileMd5", fileMd5, "chunkIndex", chunkIndex, "error", err)
		return false
	}
	return bit == 1
}

func (t *Tracker) MarkPresent(ctx context.Context, userId string, fileMd5 string, chunkIndex int) error {
	if !t.Available() {
		return nil
	}
	key := bitmapKey(userId, fileMd5)
	if err := t.store.SetBit(ctx, key, int64(chunkIndex), 1); err != nil {
		t.logger.Warn("Tracker write failed", "fileMd5", fileMd5, "chunkIndex", chunkIndex, "error", err)
		return err
	}
	if err := t.store.Expire(ctx, key, config.TrackerBitmapTTL); err != nil {
		t.logger.Warn("Tracker TTL refresh failed", "fileMd5", fileMd5, "error", err)
	}
	return nil
}

// ListPresent returns the sorted present chunk indices by fetching the raw
// bitmap once and scanning it locally, instead of one GETBIT per index.
func (t *Tracker) ListPresent(ctx context.Context, userId string, fileMd5 string) []int {
	if !t.Available() {
		return nil
	}
	raw, err := t.store.GetBitmap(ctx, bitmapKey(userId, fileMd5))
	if err != nil {
		t.logger.Warn("Tracker bitmap read failed, treating as empty", "fileMd5", fileMd5, "error", err)
		return nil
	}

	var present []int
	for byteIndex, b := range raw {
		if b == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			//bit 0 lives in the MSB of its byte
			if b&(1<<(7-bit)) != 0 {
				present = append(present, byteIndex*8+bit)
			}
		}
	}
	sort.Ints(present)
	return present
}

func (t *Tracker) Clear(ctx context.Context, userId string, fileMd5 string) error {
	if !t.Available() {
		return nil
	}
	return t.store.Del(ctx, bitmapKey(userId, fileMd5))
}
