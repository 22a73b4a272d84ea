package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	"dataportal/internal/models"
)

type PostgresPlatform struct{}

func (PostgresPlatform) Name() string { return "postgresql" }

func (PostgresPlatform) BindType() int { return sqlx.DOLLAR }

func (PostgresPlatform) Quote(identifier string) string {
	return pgx.Identifier{identifier}.Sanitize()
}

func (p PostgresPlatform) QualifiedTable(schema, table string) string {
	if schema == "" {
		return p.Quote(table)
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func (PostgresPlatform) SupportsReturning() bool { return true }

func (PostgresPlatform) ColumnDefinition(col *models.Column) string {
	t := strings.ToLower(strings.TrimSpace(col.ColumnType))
	var def string
	switch {
	case col.AutoIncrement && (t == "int8" || t == "bigint" || t == "bigserial"):
		def = "bigserial"
	case col.AutoIncrement && col.Kind() == models.KindInteger:
		def = "serial"
	case takesSize(t):
		def = sizedType(t, col)
	default:
		def = t
	}
	if !col.Nullable {
		def += " NOT NULL"
	}
	return def
}

const pgTablesQuery = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = $1
	AND table_type = 'BASE TABLE'
	ORDER BY table_name
`

const pgColumnsQuery = `
	SELECT table_name,
		column_name,
		udt_name AS data_type,
		character_maximum_length AS char_length,
		numeric_precision,
		numeric_scale,
		is_nullable,
		(coalesce(column_default, '') LIKE 'nextval(%' OR is_identity = 'YES') AS auto_increment
	FROM information_schema.columns
	WHERE table_schema = $1
	ORDER BY table_name, ordinal_position
`

const pgPrimaryKeysQuery = `
	SELECT tc.table_name, tc.constraint_name, kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name
		AND tc.table_schema = kcu.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = $1
	ORDER BY tc.table_name, kcu.ordinal_position
`

const pgForeignKeysQuery = `
	SELECT kcu.table_name,
		kcu.constraint_name,
		kcu.column_name,
		ref.table_schema AS to_schema,
		ref.table_name AS to_table,
		ref.column_name AS to_column,
		rc.update_rule,
		rc.delete_rule
	FROM information_schema.referential_constraints rc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_schema = rc.constraint_schema
		AND kcu.constraint_name = rc.constraint_name
	JOIN information_schema.key_column_usage ref
		ON ref.constraint_schema = rc.unique_constraint_schema
		AND ref.constraint_name = rc.unique_constraint_name
		AND ref.ordinal_position = kcu.position_in_unique_constraint
	WHERE kcu.table_schema = $1
	ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position
`

// ReadModel introspects the given schemas ("public" when none are given).
func (PostgresPlatform) ReadModel(ctx context.Context, db *sqlx.DB, databaseName string, schemas []string) (*models.Database, error) {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}

	database := &models.Database{Name: databaseName}
	for _, name := range schemas {
		schema, err := readSchema(ctx, db, name, pgTablesQuery, pgColumnsQuery, pgPrimaryKeysQuery, pgForeignKeysQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		database.Schemas = append(database.Schemas, schema)
	}
	return database, nil
}

func readSchema(ctx context.Context, db *sqlx.DB, name, tablesQ, columnsQ, keysQ, fksQ string) (*models.Schema, error) {
	var tables []tableRow
	if err := db.SelectContext(ctx, &tables, tablesQ, name); err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	var columns []columnRow
	if err := db.SelectContext(ctx, &columns, columnsQ, name); err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var keys []keyRow
	if err := db.SelectContext(ctx, &keys, keysQ, name); err != nil {
		return nil, fmt.Errorf("failed to get primary keys: %w", err)
	}

	var fks []foreignKeyRow
	if err := db.SelectContext(ctx, &fks, fksQ, name); err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}

	return buildSchema(name, tables, columns, keys, fks), nil
}
