package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/clayloft/kilncat"
)

type columnInfo struct {
	name       string
	dataType   string
	isNullable bool
}

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expectedSchema map[string]columnInfo) error {
	if !kilncat.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	// SQLite uses PRAGMA table_info to get column information
	query := fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(tableName))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var dfltValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: notNull == 0,
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	var missingColumns []string
	var mismatchedColumns []string

	for colName, expected := range expectedSchema {
		actual, exists := actualColumns[colName]
		if !exists {
			missingColumns = append(missingColumns, colName)
			continue
		}

		if actual.dataType != expected.dataType {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, actual.dataType))
		}

		if actual.isNullable != expected.isNullable {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, actual.isNullable))
		}
	}

	if len(missingColumns) > 0 || len(mismatchedColumns) > 0 {
		var errMsg strings.Builder
		fmt.Fprintf(&errMsg, "table %s schema validation failed:\n", tableName)

		if len(missingColumns) > 0 {
			fmt.Fprintf(&errMsg, "  missing columns: %s\n", strings.Join(missingColumns, ", "))
		}

		if len(mismatchedColumns) > 0 {
			fmt.Fprintf(&errMsg, "  mismatched columns:\n")
			for _, msg := range mismatchedColumns {
				fmt.Fprintf(&errMsg, "    - %s\n", msg)
			}
		}

		return errors.New(errMsg.String())
	}

	return nil
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	err := db.QueryRowContext(ctx, query, tableName).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}

type tableValidation struct {
	tableName      string
	expectedSchema map[string]columnInfo
}

var itemsTableSchema = map[string]columnInfo{
	"id":            {"id", "text", false},
	"owner_id":      {"owner_id", "text", false},
	"title":         {"title", "text", false},
	"clay_type":     {"clay_type", "text", false},
	"glaze":         {"glaze", "text", false},
	"location":      {"location", "text", false},
	"notes":         {"notes", "text", false},
	"current_stage": {"current_stage", "text", false},
	"measurements":  {"measurements", "text", true},
	"created_at":    {"created_at", "text", false},
	"created_tz":    {"created_tz", "text", false},
	"updated_at":    {"updated_at", "text", false},
}

var photosTableSchema = map[string]columnInfo{
	"id":           {"id", "text", false},
	"item_id":      {"item_id", "text", false},
	"owner_id":     {"owner_id", "text", false},
	"stage":        {"stage", "text", false},
	"note":         {"note", "text", false},
	"is_primary":   {"is_primary", "integer", false},
	"file_name":    {"file_name", "text", false},
	"blob_ref":     {"blob_ref", "text", false},
	"content_type": {"content_type", "text", false},
	"size_bytes":   {"size_bytes", "integer", false},
	"uploaded_at":  {"uploaded_at", "text", false},
}

var profilesTableSchema = map[string]columnInfo{
	"uid":           {"uid", "text", false},
	"email":         {"email", "text", false},
	"display_name":  {"display_name", "text", false},
	"is_admin":      {"is_admin", "integer", false},
	"created_at":    {"created_at", "text", false},
	"updated_at":    {"updated_at", "text", false},
	"last_login_at": {"last_login_at", "text", false},
}

func getTableValidations(tables kilncat.Tables) []tableValidation {
	return []tableValidation{
		{tableName: tables.Items, expectedSchema: itemsTableSchema},
		{tableName: tables.Photos, expectedSchema: photosTableSchema},
		{tableName: tables.Profiles, expectedSchema: profilesTableSchema},
	}
}

func ValidateSchema(ctx context.Context, db *sql.DB, tables kilncat.Tables) error {
	for _, validation := range getTableValidations(tables) {
		if err := validateTableSchema(ctx, db, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}
	return nil
}
