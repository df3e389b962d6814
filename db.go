package iris

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"
)

//go:embed db/latest_schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

// DB is the caption catalog: an audit log of uploaded images and the
// captions generated for them. Conversation state never lands here; sessions
// are in-memory only.
type DB struct {
	db *sql.DB

	filepath string
}

// Upload is one catalog row.
type Upload struct {
	Id          int
	SessionKey  string
	Path        string
	PathMTime   time.Time
	Caption     string
	Model       string
	Backend     string
	CreatedAt   time.Time
	CaptionedAt sql.NullTime
}

func NewDB(ctx context.Context, fname string) (*DB, error) {
	// Open the DB but flip on the cleaner timestamps from Go
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		return nil, err
	}

	return &DB{db: sqldb, filepath: fname}, nil
}

func (db *DB) Close() {
	db.db.Close()
}

// RecordUpload inserts a catalog row for an uploaded image and returns its
// id. Re-recording a known path updates the owning session instead.
func (db *DB) RecordUpload(ctx context.Context, sessionKey, path string, mtime time.Time) (int, error) {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO uploads (session_key, image_path, image_mtime, created_at)
		VALUES (?,?,?,?)
		ON CONFLICT(image_path) DO UPDATE SET session_key=excluded.session_key`,
		sessionKey, path, mtime, time.Now())
	if err != nil {
		return 0, err
	}

	var id int
	row := db.db.QueryRowContext(ctx, "SELECT id FROM uploads WHERE image_path=?", path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SetCaption stores the generated caption for an upload, along with which
// model and backend produced it.
func (db *DB) SetCaption(ctx context.Context, id int, caption, model, backend string, at time.Time) error {
	_, err := db.db.ExecContext(ctx,
		"UPDATE uploads SET caption=$1,model=$2,backend=$3,captioned_at=$4 WHERE id=$5",
		caption, model, backend, at, id)
	return err
}

// UploadsToCaption returns catalog rows that have no caption yet.
func (db *DB) UploadsToCaption(ctx context.Context) ([]*Upload, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, session_key, image_path, image_mtime, created_at
		FROM uploads
		WHERE captioned_at IS NULL
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		up := &Upload{}
		if err := rows.Scan(&up.Id, &up.SessionKey, &up.Path, &up.PathMTime, &up.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return uploads, nil
}

// ListUploads returns the most recent catalog rows, newest first. A limit
// of 0 or less means no limit.
func (db *DB) ListUploads(ctx context.Context, limit int) ([]*Upload, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats a negative LIMIT as unbounded
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, session_key, image_path, image_mtime, caption, model, backend, created_at, captioned_at
		FROM uploads
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		up := &Upload{}

		var caption, model, backend sql.NullString
		err := rows.Scan(
			&up.Id,
			&up.SessionKey,
			&up.Path,
			&up.PathMTime,
			&caption,
			&model,
			&backend,
			&up.CreatedAt,
			&up.CaptionedAt,
		)
		if err != nil {
			return nil, err
		}
		up.Caption = caption.String
		up.Model = model.String
		up.Backend = backend.String

		uploads = append(uploads, up)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return uploads, nil
}

// CountUploads returns the number of catalog rows.
func (db *DB) CountUploads(ctx context.Context) (int, error) {
	row := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM uploads")

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
