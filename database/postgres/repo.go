// Package postgres implements the metadata repo using PostgreSQL
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clayloft/kilncat"
)

type Repo struct {
	pool   *pgxpool.Pool
	tables kilncat.Tables
}

func NewRepo(pool *pgxpool.Pool, tables kilncat.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &Repo{pool: pool, tables: tables}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const itemColumns = `id, owner_id, title, clay_type, glaze, location, notes, current_stage, measurements, created_at, created_tz, updated_at`

func (r *Repo) GetItem(ctx context.Context, id string) (kilncat.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, itemColumns, r.tables.Items)

	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.tables.Items, itemColumns)

	_, err = r.pool.Exec(ctx, query,
		item.ID, item.OwnerID, item.Title, item.ClayType, item.Glaze, item.Location,
		item.Notes, string(item.CurrentStage), measurements,
		item.CreatedAt.UTC(), item.CreatedTZ, item.UpdatedAt.UTC(),
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

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, clay_type = $2, glaze = $3, location = $4, notes = $5,
			current_stage = $6, measurements = $7, updated_at = $8
		WHERE id = $9
	`, r.tables.Items)

	result, err := r.pool.Exec(ctx, query,
		item.Title, item.ClayType, item.Glaze, item.Location, item.Notes,
		string(item.CurrentStage), measurements, item.UpdatedAt.UTC(), item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update item: %w", kilncat.ErrNotFound)
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Items)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete item: %w", kilncat.ErrNotFound)
	}
	return nil
}

func (r *Repo) ListItems(ctx context.Context, ownerID string) ([]kilncat.Item, error) {
	var query string
	var args []any

	if ownerID == "" {
		query = fmt.Sprintf(`
			SELECT %s FROM %s ORDER BY created_at DESC, id
		`, itemColumns, r.tables.Items)
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s WHERE owner_id = $1 ORDER BY created_at DESC, id
		`, itemColumns, r.tables.Items)
		args = []any{ownerID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

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
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, photoColumns, r.tables.Photos)

	photo, err := scanPhoto(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kilncat.Photo{}, kilncat.ErrNotFound
		}
		return kilncat.Photo{}, fmt.Errorf("get photo: %w", err)
	}
	return photo, nil
}

func (r *Repo) PutPhoto(ctx context.Context, photo kilncat.Photo) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.tables.Photos, photoColumns)

	_, err := r.pool.Exec(ctx, query,
		photo.ID, photo.ItemID, photo.OwnerID, string(photo.Stage), photo.Note,
		photo.IsPrimary, photo.FileName, photo.BlobRef, photo.ContentType, photo.SizeBytes,
		photo.UploadedAt.UTC(),
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
	query := fmt.Sprintf(`
		UPDATE %s SET stage = $1, note = $2 WHERE id = $3
	`, r.tables.Photos)

	result, err := r.pool.Exec(ctx, query, string(photo.Stage), photo.Note, photo.ID)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update photo: %w", kilncat.ErrNotFound)
	}
	return nil
}

func (r *Repo) SetPrimaryPhoto(ctx context.Context, itemID, photoID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set primary photo: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	clearQuery := fmt.Sprintf(`
		UPDATE %s SET is_primary = FALSE WHERE item_id = $1 AND id <> $2
	`, r.tables.Photos)
	if _, err := tx.Exec(ctx, clearQuery, itemID, photoID); err != nil {
		return fmt.Errorf("set primary photo: clear siblings: %w", err)
	}

	setQuery := fmt.Sprintf(`
		UPDATE %s SET is_primary = TRUE WHERE id = $1 AND item_id = $2
	`, r.tables.Photos)
	result, err := tx.Exec(ctx, setQuery, photoID, itemID)
	if err != nil {
		return fmt.Errorf("set primary photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("set primary photo: %w", kilncat.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set primary photo: commit: %w", err)
	}
	return nil
}

func (r *Repo) DeletePhoto(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Photos)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete photo: %w", kilncat.ErrNotFound)
	}
	return nil
}

func (r *Repo) ListPhotos(ctx context.Context, itemID string) ([]kilncat.Photo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE item_id = $1 ORDER BY uploaded_at, id
	`, photoColumns, r.tables.Photos)

	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

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
	query := fmt.Sprintf(`
		INSERT INTO %s (uid, email, display_name, is_admin, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, FALSE, $4, $4, $5)
		ON CONFLICT (uid) DO UPDATE
		SET email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at,
			last_login_at = EXCLUDED.last_login_at
		RETURNING uid, email, display_name, is_admin, created_at, updated_at, last_login_at
	`, r.tables.Profiles)

	var p kilncat.Profile
	err := r.pool.QueryRow(ctx, query,
		profile.UID, profile.Email, profile.DisplayName, now, lastLogin.UTC(),
	).Scan(&p.UID, &p.Email, &p.DisplayName, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt, &p.LastLoginAt)
	if err != nil {
		return kilncat.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

func (r *Repo) GetProfile(ctx context.Context, uid string) (kilncat.Profile, error) {
	query := fmt.Sprintf(`
		SELECT uid, email, display_name, is_admin, created_at, updated_at, last_login_at
		FROM %s WHERE uid = $1
	`, r.tables.Profiles)

	var p kilncat.Profile
	err := r.pool.QueryRow(ctx, query, uid).Scan(
		&p.UID, &p.Email, &p.DisplayName, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt, &p.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kilncat.Profile{}, kilncat.ErrNotFound
		}
		return kilncat.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *Repo) SetAdmin(ctx context.Context, uid string, isAdmin bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_admin = $1, updated_at = $2 WHERE uid = $3
	`, r.tables.Profiles)

	result, err := r.pool.Exec(ctx, query, isAdmin, time.Now().UTC(), uid)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("set admin: %w", kilncat.ErrNotFound)
	}
	return nil
}

func scanItem(row pgx.Row) (kilncat.Item, error) {
	var item kilncat.Item
	var stage string
	var measurements []byte

	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.ClayType, &item.Glaze,
		&item.Location, &item.Notes, &stage, &measurements,
		&item.CreatedAt, &item.CreatedTZ, &item.UpdatedAt,
	)
	if err != nil {
		return kilncat.Item{}, err
	}

	item.CurrentStage = kilncat.Stage(stage)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()

	if len(measurements) > 0 {
		var m kilncat.Measurements
		if err := json.Unmarshal(measurements, &m); err != nil {
			return kilncat.Item{}, fmt.Errorf("parse measurements: %w", err)
		}
		item.Measurements = &m
	}
	return item, nil
}

func scanPhoto(row pgx.Row) (kilncat.Photo, error) {
	var photo kilncat.Photo
	var stage string

	err := row.Scan(
		&photo.ID, &photo.ItemID, &photo.OwnerID, &stage, &photo.Note,
		&photo.IsPrimary, &photo.FileName, &photo.BlobRef, &photo.ContentType, &photo.SizeBytes,
		&photo.UploadedAt,
	)
	if err != nil {
		return kilncat.Photo{}, err
	}

	photo.Stage = kilncat.Stage(stage)
	photo.UploadedAt = photo.UploadedAt.UTC()
	return photo, nil
}

func marshalMeasurements(m *kilncat.Measurements) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal measurements: %w", err)
	}
	return data, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
