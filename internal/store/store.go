package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ravenshaw3/recollect/internal/adventure"
)

// ErrStorage marks local persistence failures so callers can tell them apart
// from transport failures at the remote boundary.
var ErrStorage = errors.New("local storage failure")

// Settings keys.
const (
	KeyCurrentAdventureID = "current_adventure_id"
	KeyRemoteProfile      = "remote_profile"
	KeyRemoteURL          = "remote_url"
)

// Store is the on-device single source of truth: four entity tables plus a
// small settings key-value table, all in one sqlite file.
type Store struct {
	db *sql.DB
}

func Open(filePath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, storageErr(err)
	}
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, storageErr(err)
	}
	// Pragmas are per-connection; a single connection keeps them in force and
	// serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, storageErr(err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAdventure inserts when the id is unset and assigns one; otherwise it
// updates the row and refreshes the last-update timestamp.
func (s *Store) SaveAdventure(ctx context.Context, adv *adventure.Adventure) error {
	now := time.Now()
	if adv.ID == 0 {
		if adv.CreatedAt.IsZero() {
			adv.CreatedAt = now
		}
		adv.UpdatedAt = now
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO adventures (remote_id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?)`,
			adv.RemoteID, adv.Name, toTS(adv.CreatedAt), toTS(adv.UpdatedAt),
		)
		if err != nil {
			return storageErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr(err)
		}
		adv.ID = id
		return nil
	}

	adv.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		UPDATE adventures
		SET remote_id = ?, name = ?, updated_at = ?
		WHERE id = ?`,
		adv.RemoteID, adv.Name, toTS(adv.UpdatedAt), adv.ID,
	)
	return storageErr(err)
}

// Adventures returns every adventure, newest first, with waypoints
// eager-loaded in capture order.
func (s *Store) Adventures(ctx context.Context) ([]adventure.Adventure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_id, name, created_at, updated_at
		FROM adventures
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var advs []adventure.Adventure
	for rows.Next() {
		var adv adventure.Adventure
		var createdAt, updatedAt string
		if err := rows.Scan(&adv.ID, &adv.RemoteID, &adv.Name, &createdAt, &updatedAt); err != nil {
			return nil, storageErr(err)
		}
		adv.CreatedAt = fromTS(createdAt)
		adv.UpdatedAt = fromTS(updatedAt)
		advs = append(advs, adv)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	for i := range advs {
		wps, err := s.WaypointsByAdventure(ctx, advs[i].ID)
		if err != nil {
			return nil, err
		}
		advs[i].Waypoints = wps
	}
	return advs, nil
}

func (s *Store) AdventureByID(ctx context.Context, id int64) (adventure.Adventure, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, remote_id, name, created_at, updated_at
		FROM adventures
		WHERE id = ?`,
		id,
	)
	var adv adventure.Adventure
	var createdAt, updatedAt string
	err := row.Scan(&adv.ID, &adv.RemoteID, &adv.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adventure.Adventure{}, false, nil
	}
	if err != nil {
		return adventure.Adventure{}, false, storageErr(err)
	}
	adv.CreatedAt = fromTS(createdAt)
	adv.UpdatedAt = fromTS(updatedAt)

	wps, err := s.WaypointsByAdventure(ctx, adv.ID)
	if err != nil {
		return adventure.Adventure{}, false, err
	}
	adv.Waypoints = wps
	return adv, true, nil
}

// DeleteAdventure removes the adventure; waypoints, notes and media items go
// with it through the cascade foreign keys.
func (s *Store) DeleteAdventure(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM adventures WHERE id = ?`, id)
	return storageErr(err)
}

func (s *Store) SaveWaypoint(ctx context.Context, wp *adventure.Waypoint) error {
	if wp.Timestamp.IsZero() {
		wp.Timestamp = time.Now()
	}
	if wp.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO waypoints (adventure_id, lat, lng, note, media_uri, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			wp.AdventureID, wp.Lat, wp.Lng, nullStr(wp.Note), nullStr(wp.MediaURI), toTS(wp.Timestamp),
		)
		if err != nil {
			return storageErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr(err)
		}
		wp.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE waypoints
		SET adventure_id = ?, lat = ?, lng = ?, note = ?, media_uri = ?, timestamp = ?
		WHERE id = ?`,
		wp.AdventureID, wp.Lat, wp.Lng, nullStr(wp.Note), nullStr(wp.MediaURI), toTS(wp.Timestamp), wp.ID,
	)
	return storageErr(err)
}

func (s *Store) WaypointsByAdventure(ctx context.Context, adventureID int64) ([]adventure.Waypoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, adventure_id, lat, lng, note, media_uri, timestamp
		FROM waypoints
		WHERE adventure_id = ?
		ORDER BY timestamp, id`,
		adventureID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var wps []adventure.Waypoint
	for rows.Next() {
		var wp adventure.Waypoint
		var note, mediaURI sql.NullString
		var ts string
		if err := rows.Scan(&wp.ID, &wp.AdventureID, &wp.Lat, &wp.Lng, &note, &mediaURI, &ts); err != nil {
			return nil, storageErr(err)
		}
		wp.Note = strPtr(note)
		wp.MediaURI = strPtr(mediaURI)
		wp.Timestamp = fromTS(ts)
		wps = append(wps, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return wps, nil
}

func (s *Store) SaveNote(ctx context.Context, n *adventure.Note) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if n.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO notes (adventure_id, title, content, timestamp, lat, lng)
			VALUES (?, ?, ?, ?, ?, ?)`,
			n.AdventureID, n.Title, n.Content, toTS(n.Timestamp), nullFloat(n.Lat), nullFloat(n.Lng),
		)
		if err != nil {
			return storageErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr(err)
		}
		n.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET adventure_id = ?, title = ?, content = ?, timestamp = ?, lat = ?, lng = ?
		WHERE id = ?`,
		n.AdventureID, n.Title, n.Content, toTS(n.Timestamp), nullFloat(n.Lat), nullFloat(n.Lng), n.ID,
	)
	return storageErr(err)
}

func (s *Store) NotesByAdventure(ctx context.Context, adventureID int64) ([]adventure.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, adventure_id, title, content, timestamp, lat, lng
		FROM notes
		WHERE adventure_id = ?
		ORDER BY timestamp DESC, id DESC`,
		adventureID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var notes []adventure.Note
	for rows.Next() {
		var n adventure.Note
		var lat, lng sql.NullFloat64
		var ts string
		if err := rows.Scan(&n.ID, &n.AdventureID, &n.Title, &n.Content, &ts, &lat, &lng); err != nil {
			return nil, storageErr(err)
		}
		n.Timestamp = fromTS(ts)
		n.Lat = floatPtr(lat)
		n.Lng = floatPtr(lng)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return notes, nil
}

func (s *Store) SaveMediaItem(ctx context.Context, m *adventure.MediaItem) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if m.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO media_items (adventure_id, file_path, thumbnail_path, caption, kind, timestamp, lat, lng)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.AdventureID, m.FilePath, m.ThumbnailPath, m.Caption, string(m.Kind), toTS(m.Timestamp), nullFloat(m.Lat), nullFloat(m.Lng),
		)
		if err != nil {
			return storageErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr(err)
		}
		m.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE media_items
		SET adventure_id = ?, file_path = ?, thumbnail_path = ?, caption = ?, kind = ?, timestamp = ?, lat = ?, lng = ?
		WHERE id = ?`,
		m.AdventureID, m.FilePath, m.ThumbnailPath, m.Caption, string(m.Kind), toTS(m.Timestamp), nullFloat(m.Lat), nullFloat(m.Lng), m.ID,
	)
	return storageErr(err)
}

func (s *Store) MediaByAdventure(ctx context.Context, adventureID int64) ([]adventure.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, adventure_id, file_path, thumbnail_path, caption, kind, timestamp, lat, lng
		FROM media_items
		WHERE adventure_id = ?
		ORDER BY timestamp DESC, id DESC`,
		adventureID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var items []adventure.MediaItem
	for rows.Next() {
		var m adventure.MediaItem
		var kind, ts string
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.AdventureID, &m.FilePath, &m.ThumbnailPath, &m.Caption, &kind, &ts, &lat, &lng); err != nil {
			return nil, storageErr(err)
		}
		m.Kind = adventure.MediaKind(kind)
		m.Timestamp = fromTS(ts)
		m.Lat = floatPtr(lat)
		m.Lng = floatPtr(lng)
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return items, nil
}

// OffloadMedia deletes the local media payloads of an adventure and clears
// their path pointers while keeping the rows as history. File deletion is
// best effort: pointers are cleared even when the file is already gone, so
// offload can always be re-run. Returns the count of files actually deleted.
func (s *Store) OffloadMedia(ctx context.Context, adventureID int64) (int, error) {
	items, err := s.MediaByAdventure(ctx, adventureID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, m := range items {
		if m.FilePath != "" {
			if err := os.Remove(m.FilePath); err == nil {
				deleted++
			}
		}
		if m.ThumbnailPath != "" && m.ThumbnailPath != m.FilePath {
			if err := os.Remove(m.ThumbnailPath); err == nil {
				deleted++
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return deleted, storageErr(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE media_items SET file_path = '', thumbnail_path = ''
		WHERE adventure_id = ?`, adventureID); err != nil {
		return deleted, storageErr(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE waypoints SET media_uri = NULL
		WHERE adventure_id = ? AND media_uri IS NOT NULL`, adventureID); err != nil {
		return deleted, storageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return deleted, storageErr(err)
	}
	return deleted, nil
}

func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr(err)
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return storageErr(err)
}

// CurrentAdventureID reads the persisted current-adventure marker; 0 means
// no adventure is marked.
func (s *Store) CurrentAdventureID(ctx context.Context) (int64, error) {
	v, err := s.Setting(ctx, KeyCurrentAdventureID)
	if err != nil || v == "" {
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}

func (s *Store) SetCurrentAdventureID(ctx context.Context, id int64) error {
	return s.PutSetting(ctx, KeyCurrentAdventureID, strconv.FormatInt(id, 10))
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA foreign_keys=ON;
		CREATE TABLE IF NOT EXISTS adventures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			remote_id INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS waypoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			adventure_id INTEGER NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			note TEXT,
			media_uri TEXT,
			timestamp TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			adventure_id INTEGER NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			lat REAL,
			lng REAL
		);
		CREATE TABLE IF NOT EXISTS media_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			adventure_id INTEGER NOT NULL REFERENCES adventures(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL,
			thumbnail_path TEXT NOT NULL DEFAULT '',
			caption TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			lat REAL,
			lng REAL
		);
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_waypoints_adventure ON waypoints(adventure_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_notes_adventure ON notes(adventure_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_media_adventure ON media_items(adventure_id, timestamp);
	`)
	return err
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func toTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fromTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
