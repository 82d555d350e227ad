package upload

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"sessionscribe/internal/transcribe"
)

// PostgresStore persists upload sessions in the audio_uploads table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects and verifies the connection.
func OpenPostgres(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS audio_uploads (
	upload_id    TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	mime_type    TEXT NOT NULL,
	total_bytes  BIGINT,
	status       TEXT NOT NULL,
	storage_path TEXT,
	transcript   TEXT,
	segments     JSONB,
	expires_at   TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audio_uploads_session ON audio_uploads (session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audio_uploads_expiry  ON audio_uploads (expires_at) WHERE status <> 'deleted';
`

// EnsureSchema creates the audio_uploads table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const sessionColumns = `upload_id, session_id, owner_id, mime_type, total_bytes, status, storage_path, transcript, segments, expires_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	query := `
		INSERT INTO audio_uploads (upload_id, session_id, owner_id, mime_type, total_bytes, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`

	var totalBytes sql.NullInt64
	if sess.TotalBytes > 0 {
		totalBytes = sql.NullInt64{Int64: sess.TotalBytes, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		sess.UploadID, sess.SessionID, sess.OwnerID, sess.MimeType,
		totalBytes, string(sess.Status), sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByUploadID(ctx context.Context, uploadID string) (*Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM audio_uploads WHERE upload_id = $1`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, uploadID))
}

func (s *PostgresStore) LatestBySession(ctx context.Context, sessionID string) (*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audio_uploads
		WHERE session_id = $1
		ORDER BY created_at DESC LIMIT 1`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID))
}

func (s *PostgresStore) LatestRetryable(ctx context.Context, sessionID string) (*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audio_uploads
		WHERE session_id = $1 AND status IN ('error', 'uploading', 'assembling', 'transcribing')
		ORDER BY created_at DESC LIMIT 1`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID))
}

func (s *PostgresStore) LatestActive(ctx context.Context, sessionID string) (*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audio_uploads
		WHERE session_id = $1 AND status NOT IN ('transcribed', 'deleted')
		ORDER BY created_at DESC LIMIT 1`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID))
}

func (s *PostgresStore) SetStatus(ctx context.Context, uploadID string, from, to Status) error {
	query := `UPDATE audio_uploads SET status = $1, updated_at = now() WHERE upload_id = $2 AND status = $3`
	return s.execGuarded(ctx, query, string(to), uploadID, string(from))
}

func (s *PostgresStore) SetAssembled(ctx context.Context, uploadID, storagePath string, from Status) error {
	query := `
		UPDATE audio_uploads
		SET storage_path = $1, status = 'transcribing', updated_at = now()
		WHERE upload_id = $2 AND status = $3`
	return s.execGuarded(ctx, query, storagePath, uploadID, string(from))
}

func (s *PostgresStore) SetTranscript(ctx context.Context, uploadID, text string, segments []transcribe.Segment) error {
	payload, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	query := `
		UPDATE audio_uploads
		SET transcript = $1, segments = $2, status = 'transcribed', updated_at = now()
		WHERE upload_id = $3 AND status = 'transcribing'`
	return s.execGuarded(ctx, query, text, payload, uploadID)
}

func (s *PostgresStore) ClearStoragePath(ctx context.Context, uploadID string) error {
	query := `UPDATE audio_uploads SET storage_path = NULL, updated_at = now() WHERE upload_id = $1`
	_, err := s.db.ExecContext(ctx, query, uploadID)
	if err != nil {
		return fmt.Errorf("failed to clear storage path: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, uploadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audio_uploads WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("failed to delete upload session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Expired(ctx context.Context, now time.Time, limit int) ([]*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audio_uploads
		WHERE expires_at < $1 AND status <> 'deleted'
		ORDER BY expires_at ASC LIMIT $2`, sessionColumns)

	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expired query failed: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) MarkDeleted(ctx context.Context, uploadID string) error {
	query := `
		UPDATE audio_uploads
		SET status = 'deleted', storage_path = NULL, updated_at = now()
		WHERE upload_id = $1`
	_, err := s.db.ExecContext(ctx, query, uploadID)
	if err != nil {
		return fmt.Errorf("failed to mark upload deleted: %w", err)
	}
	return nil
}

// execGuarded runs a compare-and-set update and maps "no rows touched" to
// ErrStaleSession.
func (s *PostgresStore) execGuarded(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("guarded update failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected unavailable: %w", err)
	}
	if affected == 0 {
		return ErrStaleSession
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess        Session
		status      string
		totalBytes  sql.NullInt64
		storagePath sql.NullString
		transcript  sql.NullString
		segments    []byte
	)

	err := row.Scan(
		&sess.UploadID, &sess.SessionID, &sess.OwnerID, &sess.MimeType,
		&totalBytes, &status, &storagePath, &transcript, &segments,
		&sess.ExpiresAt, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db scan failed: %w", err)
	}

	sess.Status = Status(status)
	sess.TotalBytes = totalBytes.Int64
	sess.StoragePath = storagePath.String
	sess.Transcript = transcript.String

	if len(segments) > 0 {
		var parsed []transcribe.Segment
		if err := json.Unmarshal(segments, &parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
		sess.Segments = parsed
	}

	return &sess, nil
}
