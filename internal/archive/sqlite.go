// Package archive keeps a write-only SQLite audit log of uploads and
// committed turns. Sessions are never restored from it.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kaiwa/internal/models"
	"github.com/hyperjump/kaiwa/internal/rag"
)

// Record is one archived turn.
type Record struct {
	ID              int64
	SessionID       string
	DocumentID      string
	Question        string
	StandaloneQuery string
	Answer          string
	Sources         []models.Source
	CreatedAt       time.Time
}

// SQLiteArchive appends uploads and turns to a SQLite database.
type SQLiteArchive struct {
	db   *sql.DB
	path string
}

// NewSQLiteArchive opens or creates the archive at dbPath. Parent
// directories are created if they do not exist.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteArchive{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		document_id TEXT PRIMARY KEY,
		name TEXT,
		extension TEXT,
		size_bytes INTEGER NOT NULL,
		text_length INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		document_id TEXT,
		question TEXT NOT NULL,
		standalone_query TEXT NOT NULL,
		answer TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

	CREATE TABLE IF NOT EXISTS turn_sources (
		turn_id INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		chunk_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		score REAL NOT NULL,
		preview TEXT,
		PRIMARY KEY (turn_id, ordinal),
		FOREIGN KEY (turn_id) REFERENCES turns(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// DocumentUploaded records an upload.
func (a *SQLiteArchive) DocumentUploaded(ctx context.Context, doc *models.Document) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO uploads (document_id, name, extension, size_bytes, text_length, chunk_count, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Extension, doc.SizeBytes, doc.TextLength, doc.ChunkCount, doc.UploadedAt,
	)
	return err
}

// TurnCommitted records a committed turn and its sources in one transaction.
func (a *SQLiteArchive) TurnCommitted(ctx context.Context, ev rag.TurnEvent) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var docID sql.NullString
	if ev.Document != nil {
		docID = sql.NullString{String: ev.Document.ID, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, document_id, question, standalone_query, answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID, docID, ev.Turn.Question, ev.StandaloneQuery, ev.Turn.Answer, ev.Turn.CreatedAt,
	)
	if err != nil {
		return err
	}
	turnID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turn_sources (turn_id, ordinal, chunk_id, position, score, preview)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for ordinal, s := range ev.Sources {
		if _, err := stmt.ExecContext(ctx, turnID, ordinal, s.ChunkID, s.Position, s.Score, s.Preview); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Transcript returns the archived turns of a session, oldest first.
func (a *SQLiteArchive) Transcript(ctx context.Context, sessionID string) ([]*Record, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, session_id, COALESCE(document_id, ''), question, standalone_query, answer, created_at
		 FROM turns WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	byID := make(map[int64]*Record)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.DocumentID, &r.Question, &r.StandaloneQuery, &r.Answer, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	srcRows, err := a.db.QueryContext(ctx,
		`SELECT s.turn_id, s.chunk_id, s.position, s.score, COALESCE(s.preview, '')
		 FROM turn_sources s JOIN turns t ON t.id = s.turn_id
		 WHERE t.session_id = ? ORDER BY s.turn_id, s.ordinal`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var turnID int64
		var s models.Source
		if err := srcRows.Scan(&turnID, &s.ChunkID, &s.Position, &s.Score, &s.Preview); err != nil {
			return nil, err
		}
		if r := byID[turnID]; r != nil {
			r.Sources = append(r.Sources, s)
		}
	}
	return records, srcRows.Err()
}

// CountTurns returns the number of archived turns.
func (a *SQLiteArchive) CountTurns(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count)
	return count, err
}

// CountUploads returns the number of archived uploads.
func (a *SQLiteArchive) CountUploads(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

// SizeBytes returns the on-disk size of the database and its WAL files.
func (a *SQLiteArchive) SizeBytes() (int64, error) {
	var total int64
	for _, p := range []string{a.path, a.path + "-wal", a.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
