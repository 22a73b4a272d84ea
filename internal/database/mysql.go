package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"dataportal/internal/models"
)

// MySQLPlatform maps model schemas onto MySQL databases.
type MySQLPlatform struct{}

func (MySQLPlatform) Name() string { return "mysql" }

func (MySQLPlatform) BindType() int { return sqlx.QUESTION }

func (MySQLPlatform) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (p MySQLPlatform) QualifiedTable(schema, table string) string {
	if schema == "" {
		return p.Quote(table)
	}
	return p.Quote(schema) + "." + p.Quote(table)
}

func (MySQLPlatform) SupportsReturning() bool { return false }

func (MySQLPlatform) ColumnDefinition(col *models.Column) string {
	t := strings.ToLower(strings.TrimSpace(col.ColumnType))
	def := t
	if takesSize(t) {
		def = sizedType(t, col)
	}
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.AutoIncrement {
		def += " AUTO_INCREMENT"
	}
	return def
}

const mysqlTablesQuery = `
	SELECT TABLE_NAME AS table_name
	FROM information_schema.TABLES
	WHERE TABLE_SCHEMA = ?
	AND TABLE_TYPE = 'BASE TABLE'
	ORDER BY TABLE_NAME
`

const mysqlColumnsQuery = `
	SELECT TABLE_NAME AS table_name,
		COLUMN_NAME AS column_name,
		DATA_TYPE AS data_type,
		CHARACTER_MAXIMUM_LENGTH AS char_length,
		NUMERIC_PRECISION AS numeric_precision,
		NUMERIC_SCALE AS numeric_scale,
		IS_NULLABLE AS is_nullable,
		(EXTRA LIKE '%auto_increment%') AS auto_increment
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ?
	ORDER BY TABLE_NAME, ORDINAL_POSITION
`

const mysqlPrimaryKeysQuery = `
	SELECT TABLE_NAME AS table_name,
		CONSTRAINT_NAME AS constraint_name,
		COLUMN_NAME AS column_name
	FROM information_schema.KEY_COLUMN_USAGE
	WHERE TABLE_SCHEMA = ?
	AND CONSTRAINT_NAME = 'PRIMARY'
	ORDER BY TABLE_NAME, ORDINAL_POSITION
`

const mysqlForeignKeysQuery = `
	SELECT kcu.TABLE_NAME AS table_name,
		kcu.CONSTRAINT_NAME AS constraint_name,
		kcu.COLUMN_NAME AS column_name,
		kcu.REFERENCED_TABLE_SCHEMA AS to_schema,
		kcu.REFERENCED_TABLE_NAME AS to_table,
		kcu.REFERENCED_COLUMN_NAME AS to_column,
		rc.UPDATE_RULE AS update_rule,
		rc.DELETE_RULE AS delete_rule
	FROM information_schema.KEY_COLUMN_USAGE kcu
	JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
		ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
		AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
	WHERE kcu.TABLE_SCHEMA = ?
	AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
	ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION
`

// ReadModel introspects the given MySQL databases, defaulting to the one
// the connection is bound to.
func (MySQLPlatform) ReadModel(ctx context.Context, db *sqlx.DB, databaseName string, schemas []string) (*models.Database, error) {
	if len(schemas) == 0 {
		var current string
		if err := db.GetContext(ctx, &current, "SELECT DATABASE()"); err != nil {
			return nil, fmt.Errorf("failed to get current database: %w", err)
		}
		schemas = []string{current}
	}

	database := &models.Database{Name: databaseName}
	for _, name := range schemas {
		schema, err := readSchema(ctx, db, name, mysqlTablesQuery, mysqlColumnsQuery, mysqlPrimaryKeysQuery, mysqlForeignKeysQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		database.Schemas = append(database.Schemas, schema)
	}
	return database, nil
}
