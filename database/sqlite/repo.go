// Package sqlite implements the metadata repo using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clayloft/kilncat"
)

type Repo struct {
	db     *sql.DB
	tables kilncat.Tables
}

func NewRepo(db *sql.DB, tables kilncat.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &Repo{db: db, tables: tables}, nil
}

const itemColumns = `id, owner_id, title, clay_type, glaze, location, notes, current_stage, measurements, created_at, created_tz, updated_at`

func (r *Repo) GetItem(ctx context.Context, id string) (kilncat.Item, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, itemColumns, r.tables.Items)

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kilncat.Item{}, kilncat.ErrNotFound
		}
		return kilncat.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (r *Repo) PutItem(ctx context.Context, item kilncat.Item) error {
	measurements, err := marshalMeasurements(item.Measurements)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.tables.Items, itemColumns)

	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.OwnerID, item.Title, item.ClayType, item.Glaze, item.Location,
		item.Notes, string(item.CurrentStage), measurements,
		formatTime(item.CreatedAt), item.CreatedTZ, formatTime(item.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("put item: %w", kilncat.ErrConflict)
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func (r *Repo) UpdateItem(ctx context.Context, item kilncat.Item) error {
	measurements, err := marshalMeasurements(item.Measurements)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET title = ?, clay_type = ?, glaze = ?, location = ?, notes = ?,
			current_stage = ?, measurements = ?, updated_at = ?
		WHERE id = ?`, r.tables.Items)

	result, err := r.db.ExecContext(ctx, query,
		item.Title, item.ClayType, item.Glaze, item.Location, item.Notes,
		string(item.CurrentStage), measurements, formatTime(item.UpdatedAt), item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	return requireRowAffected(result, "update item")
}

func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.tables.Items) //nolint:gosec // table name is validated

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	return requireRowAffected(result, "delete item")
}

func (r *Repo) ListItems(ctx context.Context, ownerID string) ([]kilncat.Item, error) {
	var query string
	var args []any

	if ownerID == "" {
		query = fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT %s FROM %s ORDER BY created_at DESC, id`, itemColumns, r.tables.Items)
	} else {
		query = fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT %s FROM %s WHERE owner_id = ? ORDER BY created_at DESC, id`, itemColumns, r.tables.Items)
		args = []any{ownerID}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []kilncat.Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list items: %w", scanErr)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: rows: %w", err)
	}
	return items, nil
}

const photoColumns = `id, item_id, owner_id, stage, note, is_primary, file_name, blob_ref, content_type, size_bytes, uploaded_at`

func (r *Repo) GetPhoto(ctx context.Context, id string) (kilncat.Photo, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, photoColumns, r.tables.Photos)

	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kilncat.Photo{}, kilncat.ErrNotFound
		}
		return kilncat.Photo{}, fmt.Errorf("get photo: %w", err)
	}
	return photo, nil
}

func (r *Repo) PutPhoto(ctx context.Context, photo kilncat.Photo) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.tables.Photos, photoColumns)

	isPrimary := 0
	if photo.IsPrimary {
		isPrimary = 1
	}

	_, err := r.db.ExecContext(ctx, query,
		photo.ID, photo.ItemID, photo.OwnerID, string(photo.Stage), photo.Note,
		isPrimary, photo.FileName, photo.BlobRef, photo.ContentType, photo.SizeBytes,
		formatTime(photo.UploadedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("put photo: %w", kilncat.ErrConflict)
		}
		return fmt.Errorf("put photo: %w", err)
	}
	return nil
}

func (r *Repo) UpdatePhoto(ctx context.Context, photo kilncat.Photo) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET stage = ?, note = ? WHERE id = ?`, r.tables.Photos)

	result, err := r.db.ExecContext(ctx, query, string(photo.Stage), photo.Note, photo.ID)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}

	return requireRowAffected(result, "update photo")
}

func (r *Repo) SetPrimaryPhoto(ctx context.Context, itemID, photoID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set primary photo: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	clearQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET is_primary = 0 WHERE item_id = ? AND id <> ?`, r.tables.Photos)
	if _, err := tx.ExecContext(ctx, clearQuery, itemID, photoID); err != nil {
		return fmt.Errorf("set primary photo: clear siblings: %w", err)
	}

	setQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET is_primary = 1 WHERE id = ? AND item_id = ?`, r.tables.Photos)
	result, err := tx.ExecContext(ctx, setQuery, photoID, itemID)
	if err != nil {
		return fmt.Errorf("set primary photo: %w", err)
	}
	if err := requireRowAffected(result, "set primary photo"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set primary photo: commit: %w", err)
	}
	return nil
}

func (r *Repo) DeletePhoto(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.tables.Photos) //nolint:gosec // table name is validated

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}

	return requireRowAffected(result, "delete photo")
}

func (r *Repo) ListPhotos(ctx context.Context, itemID string) ([]kilncat.Photo, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE item_id = ? ORDER BY uploaded_at, id`, photoColumns, r.tables.Photos)

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var photos []kilncat.Photo
	for rows.Next() {
		photo, scanErr := scanPhoto(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list photos: %w", scanErr)
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photos: rows: %w", err)
	}
	return photos, nil
}

func (r *Repo) UpsertProfile(ctx context.Context, profile kilncat.Profile) (kilncat.Profile, error) {
	now := time.Now().UTC()
	lastLogin := profile.LastLoginAt
	if lastLogin.IsZero() {
		lastLogin = now
	}

	// New rows start without the admin flag; updates preserve whatever flag
	// was granted out of band.
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (uid, email, display_name, is_admin, created_at, updated_at, last_login_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE
		SET email = excluded.email,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at,
			last_login_at = excluded.last_login_at`, r.tables.Profiles)

	_, err := r.db.ExecContext(ctx, query,
		profile.UID, profile.Email, profile.DisplayName,
		formatTime(now), formatTime(now), formatTime(lastLogin),
	)
	if err != nil {
		return kilncat.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	stored, err := r.GetProfile(ctx, profile.UID)
	if err != nil {
		return kilncat.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return stored, nil
}

func (r *Repo) GetProfile(ctx context.Context, uid string) (kilncat.Profile, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT uid, email, display_name, is_admin, created_at, updated_at, last_login_at
		FROM %s WHERE uid = ?`, r.tables.Profiles)

	var p kilncat.Profile
	var isAdmin int
	var createdAt, updatedAt, lastLoginAt string

	err := r.db.QueryRowContext(ctx, query, uid).Scan(
		&p.UID, &p.Email, &p.DisplayName, &isAdmin, &createdAt, &updatedAt, &lastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kilncat.Profile{}, kilncat.ErrNotFound
		}
		return kilncat.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	p.IsAdmin = isAdmin != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return kilncat.Profile{}, fmt.Errorf("get profile: parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return kilncat.Profile{}, fmt.Errorf("get profile: parse updated_at: %w", err)
	}
	if p.LastLoginAt, err = parseTime(lastLoginAt); err != nil {
		return kilncat.Profile{}, fmt.Errorf("get profile: parse last_login_at: %w", err)
	}
	return p, nil
}

func (r *Repo) SetAdmin(ctx context.Context, uid string, isAdmin bool) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET is_admin = ?, updated_at = ? WHERE uid = ?`, r.tables.Profiles)

	flag := 0
	if isAdmin {
		flag = 1
	}

	result, err := r.db.ExecContext(ctx, query, flag, formatTime(time.Now().UTC()), uid)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}

	return requireRowAffected(result, "set admin")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (kilncat.Item, error) {
	var item kilncat.Item
	var stage string
	var measurements sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.ClayType, &item.Glaze,
		&item.Location, &item.Notes, &stage, &measurements,
		&createdAt, &item.CreatedTZ, &updatedAt,
	)
	if err != nil {
		return kilncat.Item{}, err
	}

	item.CurrentStage = kilncat.Stage(stage)
	if item.Measurements, err = unmarshalMeasurements(measurements); err != nil {
		return kilncat.Item{}, fmt.Errorf("parse measurements: %w", err)
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return kilncat.Item{}, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return kilncat.Item{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return item, nil
}

func scanPhoto(row rowScanner) (kilncat.Photo, error) {
	var photo kilncat.Photo
	var stage string
	var isPrimary int
	var uploadedAt string

	err := row.Scan(
		&photo.ID, &photo.ItemID, &photo.OwnerID, &stage, &photo.Note,
		&isPrimary, &photo.FileName, &photo.BlobRef, &photo.ContentType, &photo.SizeBytes,
		&uploadedAt,
	)
	if err != nil {
		return kilncat.Photo{}, err
	}

	photo.Stage = kilncat.Stage(stage)
	photo.IsPrimary = isPrimary != 0
	if photo.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return kilncat.Photo{}, fmt.Errorf("parse uploaded_at: %w", err)
	}
	return photo, nil
}

func marshalMeasurements(m *kilncat.Measurements) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal measurements: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMeasurements(s sql.NullString) (*kilncat.Measurements, error) {
	if !s.Valid {
		return nil, nil
	}
	var m kilncat.Measurements
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func requireRowAffected(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, kilncat.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
