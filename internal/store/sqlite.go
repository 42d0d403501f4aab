package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/wassim249/YT-Navigator/internal/chunk"
)

// SQLiteStore implements VideoStore and ChunkStore on SQLite.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ VideoStore = (*SQLiteStore)(nil)
	_ ChunkStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the relational store.
// If path is empty, an in-memory database is used.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer connection prevents SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite, DSN params are ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		thumbnail TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_videos_channel ON videos(channel_id);

	CREATE TABLE IF NOT EXISTS chunks (
		fingerprint TEXT PRIMARY KEY,
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		channel_id TEXT NOT NULL,
		text TEXT NOT NULL,
		start_seconds REAL NOT NULL,
		end_seconds REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_channel ON chunks(channel_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_video ON chunks(video_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveVideos upserts video records in one transaction.
func (s *SQLiteStore) SaveVideos(ctx context.Context, videos []*Video) error {
	if len(videos) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO videos (id, channel_id, title, thumbnail, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel_id = excluded.channel_id,
			title = excluded.title,
			thumbnail = excluded.thumbnail,
			published_at = excluded.published_at
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range videos {
		if v.ID == "" {
			return fmt.Errorf("video id is empty")
		}
		if _, err := stmt.ExecContext(ctx, v.ID, v.ChannelID, v.Title, v.Thumbnail, v.PublishedAt); err != nil {
			return fmt.Errorf("save video %s: %w", v.ID, err)
		}
	}

	return tx.Commit()
}

// GetVideosByIDs fetches videos in a single IN query.
func (s *SQLiteStore) GetVideosByIDs(ctx context.Context, ids []string) (map[string]*Video, error) {
	result := make(map[string]*Video, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT id, channel_id, title, thumbnail, published_at
	          FROM videos WHERE id IN (` + placeholders + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v := &Video{}
		if err := rows.Scan(&v.ID, &v.ChannelID, &v.Title, &v.Thumbnail, &v.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		result[v.ID] = v
	}
	return result, rows.Err()
}

// DeleteVideo removes a video; its chunks go with it via FK cascade.
func (s *SQLiteStore) DeleteVideo(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var chunkCount int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE video_id = ?`, id).Scan(&chunkCount); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("delete video %s: %w", id, err)
	}
	return chunkCount, nil
}

// SaveChunks inserts chunks, silently skipping fingerprints already stored.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO chunks (fingerprint, video_id, channel_id, text, start_seconds, end_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid chunk: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.Fingerprint(), c.VideoID, c.ChannelID, c.Text, c.Start, c.End); err != nil {
			return fmt.Errorf("save chunk for video %s: %w", c.VideoID, err)
		}
	}

	return tx.Commit()
}

// ListChunksByChannel returns all chunks of a channel in insertion order.
func (s *SQLiteStore) ListChunksByChannel(ctx context.Context, channelID string) ([]chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, channel_id, text, start_seconds, end_seconds
		FROM chunks WHERE channel_id = ?
		ORDER BY rowid
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		var c chunk.Chunk
		if err := rows.Scan(&c.VideoID, &c.ChannelID, &c.Text, &c.Start, &c.End); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// MissingFingerprints returns input fingerprints not yet persisted,
// preserving input order.
func (s *SQLiteStore) MissingFingerprints(ctx context.Context, fingerprints []string) ([]string, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(fingerprints))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(fingerprints))
	for i, fp := range fingerprints {
		args[i] = fp
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint FROM chunks WHERE fingerprint IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(fingerprints))
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		existing[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, fp := range fingerprints {
		if _, ok := existing[fp]; !ok {
			missing = append(missing, fp)
		}
	}
	return missing, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
