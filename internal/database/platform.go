package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"dataportal/internal/models"
)

// Platform captures what differs between the SQL dialects of the model
// databases: identifier quoting, placeholders, column DDL and catalog
// introspection.
type Platform interface {
	Name() string
	BindType() int
	Quote(identifier string) string
	QualifiedTable(schema, table string) string
	ColumnDefinition(col *models.Column) string
	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool
	ReadModel(ctx context.Context, db *sqlx.DB, databaseName string, schemas []string) (*models.Database, error)
}

// PlatformForDriver resolves the dialect of a database/sql driver name.
func PlatformForDriver(driver string) (Platform, error) {
	switch driver {
	case "pgx", "postgres":
		return PostgresPlatform{}, nil
	case "mysql":
		return MySQLPlatform{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// Rebind rewrites "?" placeholders for the platform. Question marks inside
// string literals, quoted identifiers and comments are left alone, and "??"
// stands for a literal "?" such as the jsonb operator.
func Rebind(p Platform, query string) string {
	bindType := p.BindType()
	if bindType == sqlx.UNKNOWN || bindType == sqlx.QUESTION {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(query, i)
			sb.WriteString(query[i:end])
			i = end
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			sb.WriteString(query[i : i+end])
			i += end
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query) - i
			} else {
				end += 4
			}
			sb.WriteString(query[i : i+end])
			i += end
		case c == '?' && strings.HasPrefix(query[i:], "??"):
			sb.WriteByte('?')
			i += 2
		case c == '?':
			n++
			sb.WriteString(placeholder(bindType, n))
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// closingQuote returns the index just past the quoted run starting at
// start. A doubled quote character is an escaped quote.
func closingQuote(s string, start int) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func placeholder(bindType, n int) string {
	switch bindType {
	case sqlx.DOLLAR:
		return "$" + strconv.Itoa(n)
	case sqlx.NAMED:
		return ":arg" + strconv.Itoa(n)
	case sqlx.AT:
		return "@p" + strconv.Itoa(n)
	}
	return "?"
}

// CreateTableStatement renders the CREATE TABLE statement of a model table,
// without foreign keys.
func CreateTableStatement(p Platform, table *models.Table) string {
	defs := make([]string, 0, len(table.Columns)+1)
	for _, col := range table.Columns {
		defs = append(defs, p.Quote(col.Name)+" "+p.ColumnDefinition(col))
	}
	if keys := table.KeyColumns(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, c := range keys {
			names[i] = p.Quote(c.Name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(names, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)",
		p.QualifiedTable(table.SchemaName(), table.Name),
		strings.Join(defs, ",\n  "))
}

// AddForeignKeyStatement renders ALTER TABLE ... ADD CONSTRAINT for fk.
func AddForeignKeyStatement(p Platform, fk *models.ForeignKey) string {
	from := fk.FromTable()
	fromCols := make([]string, len(fk.References))
	toCols := make([]string, len(fk.References))
	for i, ref := range fk.References {
		fromCols[i] = p.Quote(ref.FromColumn)
		toCols[i] = p.Quote(ref.ToColumn)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		p.QualifiedTable(from.SchemaName(), from.Name),
		p.Quote(fk.Name),
		strings.Join(fromCols, ", "),
		p.QualifiedTable(fk.ToSchema, fk.ToTable),
		strings.Join(toCols, ", "))
	if fk.OnUpdate != "" {
		stmt += " ON UPDATE " + fk.OnUpdate
	}
	if fk.OnDelete != "" {
		stmt += " ON DELETE " + fk.OnDelete
	}
	return stmt
}

// AddColumnStatement renders ALTER TABLE ... ADD COLUMN for col.
func AddColumnStatement(p Platform, col *models.Column) string {
	t := col.Table()
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		p.QualifiedTable(t.SchemaName(), t.Name), p.Quote(col.Name), p.ColumnDefinition(col))
}

func sizedType(base string, col *models.Column) string {
	switch {
	case col.Length > 0 && col.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", base, col.Length, col.Scale)
	case col.Length > 0:
		return fmt.Sprintf("%s(%d)", base, col.Length)
	}
	return base
}

func takesSize(t string) bool {
	switch t {
	case "varchar", "char", "bpchar", "character", "character varying", "numeric", "decimal", "varbinary", "binary":
		return true
	}
	return false
}
