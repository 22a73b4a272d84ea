package database

import (
	"database/sql"
	"sort"

	"dataportal/internal/models"
)

type tableRow struct {
	Name string `db:"table_name"`
}

type columnRow struct {
	Table         string        `db:"table_name"`
	Name          string        `db:"column_name"`
	DataType      string        `db:"data_type"`
	CharLength    sql.NullInt64 `db:"char_length"`
	Precision     sql.NullInt64 `db:"numeric_precision"`
	Scale         sql.NullInt64 `db:"numeric_scale"`
	IsNullable    string        `db:"is_nullable"`
	AutoIncrement bool          `db:"auto_increment"`
}

type keyRow struct {
	Table          string `db:"table_name"`
	ConstraintName string `db:"constraint_name"`
	Column         string `db:"column_name"`
}

type foreignKeyRow struct {
	Table          string `db:"table_name"`
	ConstraintName string `db:"constraint_name"`
	Column         string `db:"column_name"`
	ToSchema       string `db:"to_schema"`
	ToTable        string `db:"to_table"`
	ToColumn       string `db:"to_column"`
	UpdateRule     string `db:"update_rule"`
	DeleteRule     string `db:"delete_rule"`
}

// buildSchema assembles catalog rows into a model schema. Rows are expected
// in ordinal order within each table and constraint.
func buildSchema(name string, tables []tableRow, columns []columnRow, keys []keyRow, fks []foreignKeyRow) *models.Schema {
	schema := &models.Schema{Name: name}
	byName := make(map[string]*models.Table, len(tables))
	for _, t := range tables {
		table := &models.Table{Name: t.Name}
		byName[t.Name] = table
		schema.Tables = append(schema.Tables, table)
	}

	for _, c := range columns {
		table, ok := byName[c.Table]
		if !ok {
			continue
		}
		col := &models.Column{
			Name:          c.Name,
			ColumnType:    c.DataType,
			Nullable:      c.IsNullable == "YES",
			AutoIncrement: c.AutoIncrement,
		}
		switch {
		case c.CharLength.Valid:
			col.Length = int(c.CharLength.Int64)
		case takesSize(c.DataType) && c.Precision.Valid:
			col.Length = int(c.Precision.Int64)
			col.Scale = int(c.Scale.Int64)
		}
		table.Columns = append(table.Columns, col)
	}

	for _, k := range keys {
		table, ok := byName[k.Table]
		if !ok {
			continue
		}
		if table.PrimaryKey == nil {
			table.PrimaryKey = &models.PrimaryKey{Name: k.ConstraintName}
		}
		table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, k.Column)
	}

	for _, f := range fks {
		table, ok := byName[f.Table]
		if !ok {
			continue
		}
		fk := table.FindForeignKeyByName(f.ConstraintName)
		if fk == nil {
			fk = &models.ForeignKey{
				Name:     f.ConstraintName,
				ToSchema: f.ToSchema,
				ToTable:  f.ToTable,
				OnUpdate: referentialAction(f.UpdateRule),
				OnDelete: referentialAction(f.DeleteRule),
			}
			table.ForeignKeys = append(table.ForeignKeys, fk)
		}
		fk.References = append(fk.References, &models.Reference{FromColumn: f.Column, ToColumn: f.ToColumn})
	}

	sort.SliceStable(schema.Tables, func(i, j int) bool { return schema.Tables[i].Name < schema.Tables[j].Name })
	return schema
}

// The catalog reports the default rule explicitly; the model leaves it out.
func referentialAction(rule string) string {
	if rule == "NO ACTION" || rule == "RESTRICT" {
		return ""
	}
	return rule
}
