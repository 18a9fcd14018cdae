package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clayloft/kilncat"
)

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables kilncat.Tables) error {
	if err := createItemsTable(ctx, pool, tables.Items); err != nil {
		return fmt.Errorf("migrate %s: %w", tables.Items, err)
	}
	if err := createPhotosTable(ctx, pool, tables.Photos); err != nil {
		return fmt.Errorf("migrate %s: %w", tables.Photos, err)
	}
	if err := createProfilesTable(ctx, pool, tables.Profiles); err != nil {
		return fmt.Errorf("migrate %s: %w", tables.Profiles, err)
	}
	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables kilncat.Tables) error {
	for _, tableName := range []string{tables.Profiles, tables.Photos, tables.Items} {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)); err != nil {
			return fmt.Errorf("drop %s: %w", tableName, err)
		}
	}
	return nil
}

func createItemsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexOwner := pgx.Identifier{fmt.Sprintf("idx_%s_owner", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			clay_type TEXT NOT NULL,
			glaze TEXT NOT NULL,
			location TEXT NOT NULL,
			notes TEXT NOT NULL,
			current_stage TEXT NOT NULL,
			measurements JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			created_tz TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (owner_id, created_at);
	`, quotedTable, indexOwner, quotedTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	return nil
}

func createPhotosTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexItem := pgx.Identifier{fmt.Sprintf("idx_%s_item", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			note TEXT NOT NULL,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			file_name TEXT NOT NULL,
			blob_ref TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (item_id, uploaded_at);
	`, quotedTable, indexItem, quotedTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create photos table: %w", err)
	}
	return nil
}

func createProfilesTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uid TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			display_name TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			last_login_at TIMESTAMPTZ NOT NULL
		);
	`, quotedTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	return nil
}
