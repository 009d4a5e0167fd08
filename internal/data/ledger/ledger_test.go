package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
)

func seedSession(t *testing.T, l *InMemoryLedger, fileMd5 string) {
	t.Helper()
	err := l.CreateSession(context.Background(), uploadModel.UploadSession{
		FileMd5:     fileMd5,
		UserId:      "user-1",
		FileName:    "report.txt",
		TotalSize:   1024,
		Status:      uploadModel.SessionInProgress,
		CreatedTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
}

func TestInMemoryLedger_CreateSessionIsFirstWriterWins(t *testing.T) {
	l := InitInMemoryLedger()
	ctx := context.Background()

	seedSession(t, l, "md5-a")

	// a concurrent second create must not clobber the first
	err := l.CreateSession(ctx, uploadModel.UploadSession{FileMd5: "md5-a", UserId: "user-1", TotalSize: 9999})
	if err != nil {
		t.Fatalf("Second CreateSession errored: %v", err)
	}

	session, found, _ := l.GetSession(ctx, "md5-a", "user-1")
	if !found || session.TotalSize != 1024 {
		t.Errorf("First session was overwritten: %+v", session)
	}
}

func TestInMemoryLedger_SessionsAreScopedToOwner(t *testing.T) {
	l := InitInMemoryLedger()
	ctx := context.Background()

	seedSession(t, l, "md5-shared")

	if _, found, _ := l.GetSession(ctx, "md5-shared", "user-2"); found {
		t.Error("Another user's session was visible")
	}
	if won, _ := l.MarkMerged(ctx, "md5-shared", "user-2", "merged/md5-shared/x", time.Now()); won {
		t.Error("MarkMerged won against another user's session")
	}

	// a second owner keeps an independent session for the same content hash
	err := l.CreateSession(ctx, uploadModel.UploadSession{
		FileMd5: "md5-shared", UserId: "user-2", TotalSize: 2048,
		Status: uploadModel.SessionInProgress,
	})
	if err != nil {
		t.Fatalf("CreateSession for second user errored: %v", err)
	}
	session, found, _ := l.GetSession(ctx, "md5-shared", "user-2")
	if !found || session.TotalSize != 2048 {
		t.Errorf("Second user's session lost: %+v", session)
	}

	if err := l.DeleteSession(ctx, "md5-shared", "user-2"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, found, _ := l.GetSession(ctx, "md5-shared", "user-1"); !found {
		t.Error("Deleting one user's session removed the other's")
	}
}

func TestInMemoryLedger_MarkMergedCAS(t *testing.T) {
	l := InitInMemoryLedger()
	ctx := context.Background()
	seedSession(t, l, "md5-cas")

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := l.MarkMerged(ctx, "md5-cas", "user-1", "merged/md5-cas/report.txt", time.Now())
			if err != nil {
				t.Errorf("MarkMerged errored: %v", err)
			}
			if won {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly 1 CAS winner, got %d", wins)
	}

	session, _, _ := l.GetSession(ctx, "md5-cas", "user-1")
	if session.Status != uploadModel.SessionMerged || session.MergedKey == "" {
		t.Errorf("Merged transition incomplete: %+v", session)
	}

	if won, _ := l.MarkMerged(ctx, "ghost", "user-1", "key", time.Now()); won {
		t.Error("MarkMerged won on a missing session")
	}
}

func TestInMemoryLedger_ChunkUpsertAndListing(t *testing.T) {
	l := InitInMemoryLedger()
	ctx := context.Background()

	for _, idx := range []int{2, 0, 1} {
		err := l.SaveChunk(ctx, uploadModel.ChunkRecord{
			FileMd5:    "md5-chunks",
			ChunkIndex: idx,
			StorageKey: "chunks/md5-chunks/x",
			Checksum:   "old",
			Size:       100,
		})
		if err != nil {
			t.Fatalf("SaveChunk(%d) failed: %v", idx, err)
		}
	}

	// retried chunk replaces the earlier record
	if err := l.SaveChunk(ctx, uploadModel.ChunkRecord{
		FileMd5: "md5-chunks", ChunkIndex: 1, Checksum: "new", Size: 100,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records, err := l.ListChunks(ctx, "md5-chunks")
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, record := range records {
		if record.ChunkIndex != i {
			t.Errorf("Records not sorted by index: %+v", records)
			break
		}
	}
	if records[1].Checksum != "new" {
		t.Errorf("Upsert did not replace the record: %+v", records[1])
	}

	record, found, _ := l.GetChunk(ctx, "md5-chunks", 2)
	if !found || record.ChunkIndex != 2 {
		t.Errorf("GetChunk(2) = %+v, found=%v", record, found)
	}

	if err := l.DeleteChunks(ctx, "md5-chunks"); err != nil {
		t.Fatalf("DeleteChunks failed: %v", err)
	}
	if records, _ := l.ListChunks(ctx, "md5-chunks"); len(records) != 0 {
		t.Errorf("Chunks survived deletion: %v", records)
	}
}
