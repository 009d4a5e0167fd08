package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/domain/uploadModel"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

//go:embed schema.sql
var schemaFS embed.FS

type SqlLedger struct {
	db     *sql.DB
	logger *logger_i.Logger
}

func NewSqlLedger(ctx context.Context) (uploadModel.Ledger, error) {
	dsn := config.DatabaseURL()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := ensureSchema(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &SqlLedger{
		db:     db,
		logger: logger_i.NewLogger("SqlLedger"),
	}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	sqlBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	_, err = db.ExecContext(ctx, string(sqlBytes))
	return err
}

func (l *SqlLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

func (l *SqlLedger) GetSession(ctx context.Context, fileMd5 string, userId string) (uploadModel.UploadSession, bool, error) {
	const q = `
		SELECT file_md5, user_id, file_name, total_size, org_tag, is_public, status,
		       COALESCE(merged_key, ''), COALESCE(merged_at, 'epoch'::timestamptz), created_time
		FROM upload_sessions WHERE file_md5 = $1 AND user_id = $2
	`
	var s uploadModel.UploadSession
	err := l.db.QueryRowContext(ctx, q, fileMd5, userId).Scan(
		&s.FileMd5, &s.UserId, &s.FileName, &s.TotalSize, &s.OrgTag, &s.IsPublic, &s.Status,
		&s.MergedKey, &s.MergedAt, &s.CreatedTime,
	)
	if err == sql.ErrNoRows {
		return uploadModel.UploadSession{}, false, nil
	}
	if err != nil {
		return uploadModel.UploadSession{}, false, err
	}
	return s, true, nil
}

func (l *SqlLedger) CreateSession(ctx context.Context, session uploadModel.UploadSession) error {
	const q = `
		INSERT INTO upload_sessions (file_md5, user_id, file_name, total_size, org_tag, is_public, status, created_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		ON CONFLICT (file_md5, user_id) DO NOTHING
	`
	_, err := l.db.ExecContext(ctx, q,
		session.FileMd5, session.UserId, session.FileName, session.TotalSize,
		session.OrgTag, session.IsPublic, session.Status, session.CreatedTime)
	return err
}

// MarkMerged is the single-writer transition guard: only the caller whose
// UPDATE flips status from IN_PROGRESS gets rowsAffected == 1.
func (l *SqlLedger) MarkMerged(ctx context.Context, fileMd5 string, userId string, mergedKey string, mergedAt time.Time) (bool, error) {
	const q = `
		UPDATE upload_sessions
		SET status = $3, merged_key = $4, merged_at = $5
		WHERE file_md5 = $1 AND user_id = $2 AND status = $6
	`
	res, err := l.db.ExecContext(ctx, q, fileMd5, userId, uploadModel.SessionMerged, mergedKey, mergedAt, uploadModel.SessionInProgress)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *SqlLedger) DeleteSession(ctx context.Context, fileMd5 string, userId string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE file_md5 = $1 AND user_id = $2`, fileMd5, userId)
	return err
}

func (l *SqlLedger) GetChunk(ctx context.Context, fileMd5 string, chunkIndex int) (uploadModel.ChunkRecord, bool, error) {
	const q = `
		SELECT file_md5, chunk_index, storage_key, checksum, size, stored_time
		FROM chunk_records WHERE file_md5 = $1 AND chunk_index = $2
	`
	var r uploadModel.ChunkRecord
	err := l.db.QueryRowContext(ctx, q, fileMd5, chunkIndex).Scan(
		&r.FileMd5, &r.ChunkIndex, &r.StorageKey, &r.Checksum, &r.Size, &r.StoredTime,
	)
	if err == sql.ErrNoRows {
		return uploadModel.ChunkRecord{}, false, nil
	}
	if err != nil {
		return uploadModel.ChunkRecord{}, false, err
	}
	return r, true, nil
}

func (l *SqlLedger) SaveChunk(ctx context.Context, record uploadModel.ChunkRecord) error {
	const q = `
		INSERT INTO chunk_records (file_md5, chunk_index, storage_key, checksum, size, stored_time)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (file_md5, chunk_index)
		DO UPDATE SET storage_key = EXCLUDED.storage_key, checksum = EXCLUDED.checksum,
		              size = EXCLUDED.size, stored_time = EXCLUDED.stored_time
	`
	_, err := l.db.ExecContext(ctx, q,
		record.FileMd5, record.ChunkIndex, record.StorageKey, record.Checksum, record.Size, record.StoredTime)
	return err
}

func (l *SqlLedger) ListChunks(ctx context.Context, fileMd5 string) ([]uploadModel.ChunkRecord, error) {
	const q = `
		SELECT file_md5, chunk_index, storage_key, checksum, size, stored_time
		FROM chunk_records WHERE file_md5 = $1
		ORDER BY chunk_index ASC
	`
	rows, err := l.db.QueryContext(ctx, q, fileMd5)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uploadModel.ChunkRecord
	for rows.Next() {
		var r uploadModel.ChunkRecord
		if err := rows.Scan(&r.FileMd5, &r.ChunkIndex, &r.StorageKey, &r.Checksum, &r.Size, &r.StoredTime); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SqlLedger) DeleteChunks(ctx context.Context, fileMd5 string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM chunk_records WHERE file_md5 = $1`, fileMd5)
	return err
}
