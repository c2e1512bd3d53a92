// Package store provides the SQLite implementation of the Store interface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/pkg/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		platform_id TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		author_name TEXT,
		author_id TEXT,
		channel_name TEXT,
		channel_id TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		synchronized_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_deleted INTEGER DEFAULT 0,
		metadata TEXT,
		UNIQUE(platform, platform_id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_platform ON messages(platform);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_name);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_name);
	CREATE INDEX IF NOT EXISTS idx_messages_content ON messages(content);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		messages_count INTEGER DEFAULT 0,
		skipped_count INTEGER DEFAULT 0,
		error_message TEXT,
		started_at DATETIME,
		completed_at DATETIME,
		duration_seconds REAL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_logs_platform ON sync_logs(platform);
	CREATE INDEX IF NOT EXISTS idx_sync_logs_completed_at ON sync_logs(completed_at);

	CREATE TABLE IF NOT EXISTS search_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_query TEXT NOT NULL,
		results_count INTEGER,
		search_time_ms REAL,
		searched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

func storeErr(op string, err error) error {
	return errors.StoreUnavailable(op, err)
}

// UpsertMessage inserts the message or, when a row for (platform, platform_id)
// already exists, overwrites every field except id. synchronized_at is stamped
// here. The statement is a single conditional write, so the uniqueness
// invariant holds under concurrent syncs.
func (s *SQLiteStore) UpsertMessage(ctx context.Context, msg *models.Message) error {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	msg.SynchronizedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages
		   (platform, platform_id, title, content, author_name, author_id,
		    channel_name, channel_id, created_at, updated_at, synchronized_at,
		    is_deleted, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform, platform_id) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   author_name = excluded.author_name,
		   author_id = excluded.author_id,
		   channel_name = excluded.channel_name,
		   channel_id = excluded.channel_id,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at,
		   synchronized_at = excluded.synchronized_at,
		   is_deleted = excluded.is_deleted,
		   metadata = excluded.metadata`,
		msg.Platform, msg.PlatformID, msg.Title, msg.Content, msg.AuthorName,
		msg.AuthorID, msg.ChannelName, msg.ChannelID, nullableTime(msg.CreatedAt),
		nullableTime(msg.UpdatedAt), msg.SynchronizedAt, boolToInt(msg.IsDeleted),
		string(metadataJSON),
	)
	if err != nil {
		return storeErr("upsert message", err)
	}
	return nil
}

// GetMessage returns the message for (platform, platformID), including
// soft-deleted rows.
func (s *SQLiteStore) GetMessage(ctx context.Context, platform, platformID string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx,
		messageColumns+` FROM messages WHERE platform = ? AND platform_id = ?`,
		platform, platformID,
	)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(fmt.Sprintf("message not found: %s/%s", platform, platformID))
	}
	if err != nil {
		return nil, storeErr("get message", err)
	}
	return msg, nil
}

const messageColumns = `SELECT id, platform, platform_id, title, content,
	author_name, author_id, channel_name, channel_id, created_at, updated_at,
	synchronized_at, is_deleted, metadata`

// searchPredicate builds the WHERE clause and arguments for filter. Both the
// page query and the count query use the exact clause this returns, so the
// pagination total can never drift from the fetched items.
func searchPredicate(filter SearchFilter) (string, []interface{}) {
	pattern := "%" + escapeLike(strings.ToLower(filter.Text)) + "%"
	where := `is_deleted = 0
	  AND (LOWER(content) LIKE ? ESCAPE '\' OR LOWER(author_name) LIKE ? ESCAPE '\')`
	args := []interface{}{pattern, pattern}
	if filter.Platform != "" {
		where += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	return where, args
}

// escapeLike escapes LIKE metacharacters so user text matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SearchMessages returns one page of matching messages plus the total match
// count. Ordering is created_at descending, ties broken by id descending.
func (s *SQLiteStore) SearchMessages(ctx context.Context, filter SearchFilter) ([]*models.Message, int, error) {
	where, args := searchPredicate(filter)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, storeErr("count messages", err)
	}

	pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
	rows, err := s.db.QueryContext(ctx,
		messageColumns+` FROM messages WHERE `+where+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, storeErr("search messages", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, storeErr("scan message", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("iterate messages", err)
	}
	return messages, total, nil
}

// CountMessages returns the number of live (non-deleted) messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE is_deleted = 0`,
	).Scan(&count)
	if err != nil {
		return 0, storeErr("count messages", err)
	}
	return count, nil
}

// PlatformCounts returns live message counts per platform.
func (s *SQLiteStore) PlatformCounts(ctx context.Context) ([]models.PlatformCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, COUNT(*) FROM messages WHERE is_deleted = 0
		 GROUP BY platform ORDER BY platform`,
	)
	if err != nil {
		return nil, storeErr("platform counts", err)
	}
	defer rows.Close()

	counts := []models.PlatformCount{}
	for rows.Next() {
		var pc models.PlatformCount
		if err := rows.Scan(&pc.Platform, &pc.Count); err != nil {
			return nil, storeErr("scan platform count", err)
		}
		counts = append(counts, pc)
	}
	return counts, rows.Err()
}

// LastSyncTime returns the most recent synchronized_at across all messages,
// or nil when the store is empty.
func (s *SQLiteStore) LastSyncTime(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(synchronized_at) FROM messages`,
	).Scan(&last)
	if err != nil {
		return nil, storeErr("last sync time", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// CreateSyncRun inserts a new ledger row and fills run.ID.
func (s *SQLiteStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_logs (run_id, platform, status, started_at)
		 VALUES (?, ?, ?, ?)`,
		run.RunID, run.Platform, run.Status, run.StartedAt,
	)
	if err != nil {
		return storeErr("create sync run", err)
	}
	run.ID, err = result.LastInsertId()
	if err != nil {
		return storeErr("sync run id", err)
	}
	return nil
}

// FinalizeSyncRun closes the ledger row. A run is finalized exactly once;
// the ledger is append-only after that.
func (s *SQLiteStore) FinalizeSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_logs SET status = ?, messages_count = ?, skipped_count = ?,
		   error_message = ?, completed_at = ?, duration_seconds = ?
		 WHERE id = ?`,
		run.Status, run.MessagesCount, run.SkippedCount,
		nullableString(run.ErrorMessage), nullableTime(run.CompletedAt),
		run.DurationSeconds, run.ID,
	)
	if err != nil {
		return storeErr("finalize sync run", err)
	}
	return nil
}

// LatestSyncRuns returns the most recent run per platform, newest first.
func (s *SQLiteStore) LatestSyncRuns(ctx context.Context) ([]*models.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, platform, status, messages_count, skipped_count,
		        error_message, started_at, completed_at, duration_seconds
		 FROM sync_logs
		 WHERE id IN (SELECT MAX(id) FROM sync_logs GROUP BY platform)
		 ORDER BY completed_at DESC`,
	)
	if err != nil {
		return nil, storeErr("latest sync runs", err)
	}
	defer rows.Close()

	runs := []*models.SyncRun{}
	for rows.Next() {
		var run models.SyncRun
		var errMsg sql.NullString
		var completed sql.NullTime
		var duration sql.NullFloat64
		if err := rows.Scan(&run.ID, &run.RunID, &run.Platform, &run.Status,
			&run.MessagesCount, &run.SkippedCount, &errMsg, &run.StartedAt,
			&completed, &duration); err != nil {
			return nil, storeErr("scan sync run", err)
		}
		run.ErrorMessage = errMsg.String
		if completed.Valid {
			t := completed.Time
			run.CompletedAt = &t
		}
		run.DurationSeconds = duration.Float64
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// InsertSearchStat appends one search stat row.
func (s *SQLiteStore) InsertSearchStat(ctx context.Context, stat *models.SearchStat) error {
	stat.SearchedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO search_stats (search_query, results_count, search_time_ms, searched_at)
		 VALUES (?, ?, ?, ?)`,
		stat.Query, stat.ResultsCount, stat.SearchTimeMs, stat.SearchedAt,
	)
	if err != nil {
		return storeErr("insert search stat", err)
	}
	stat.ID, _ = result.LastInsertId()
	return nil
}

// TopQueries returns the n most frequent search queries, ties broken by the
// most recent occurrence.
func (s *SQLiteStore) TopQueries(ctx context.Context, n int) ([]models.QueryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT search_query, COUNT(*) AS cnt FROM search_stats
		 GROUP BY search_query
		 ORDER BY cnt DESC, MAX(searched_at) DESC
		 LIMIT ?`, n,
	)
	if err != nil {
		return nil, storeErr("top queries", err)
	}
	defer rows.Close()

	queries := []models.QueryCount{}
	for rows.Next() {
		var qc models.QueryCount
		if err := rows.Scan(&qc.Query, &qc.Count); err != nil {
			return nil, storeErr("scan top query", err)
		}
		queries = append(queries, qc)
	}
	return queries, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var title, authorName, authorID, channelName, channelID sql.NullString
	var createdAt, updatedAt sql.NullTime
	var isDeleted int
	var metadataJSON sql.NullString

	err := row.Scan(&msg.ID, &msg.Platform, &msg.PlatformID, &title, &msg.Content,
		&authorName, &authorID, &channelName, &channelID, &createdAt, &updatedAt,
		&msg.SynchronizedAt, &isDeleted, &metadataJSON)
	if err != nil {
		return nil, err
	}

	msg.Title = title.String
	msg.AuthorName = authorName.String
	msg.AuthorID = authorID.String
	msg.ChannelName = channelName.String
	msg.ChannelID = channelID.String
	if createdAt.Valid {
		t := createdAt.Time
		msg.CreatedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		msg.UpdatedAt = &t
	}
	msg.IsDeleted = isDeleted != 0
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &msg, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
