// Package diff compares two versions of a model database, typically the
// live catalog (source) against the configured model (target).
package diff

import (
	"slices"
	"strings"

	"dataportal/internal/models"
)

type Status int

const (
	Unchanged Status = iota
	// Added elements exist only in the source.
	Added
	// Removed elements exist only in the target.
	Removed
	Changed
)

func (s Status) String() string {
	switch s {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	default:
		return "unchanged"
	}
}

type DatabaseDiff struct {
	Source  *models.Database
	Target  *models.Database
	Schemas []*SchemaDiff
}

type SchemaDiff struct {
	Status Status
	Source *models.Schema
	Target *models.Schema
	Tables []*TableDiff
}

type TableDiff struct {
	Status      Status
	Source      *models.Table
	Target      *models.Table
	Columns     []*ColumnDiff
	PrimaryKey  Status
	ForeignKeys []*ForeignKeyDiff
}

type ColumnDiff struct {
	Status  Status
	Source  *models.Column
	Target  *models.Column
	Changes []string
}

type ForeignKeyDiff struct {
	Status Status
	Source *models.ForeignKey
	Target *models.ForeignKey
}

// DiffDatabases matches schemas, tables, columns and constraints by name.
// Either side may be nil.
func DiffDatabases(source, target *models.Database) *DatabaseDiff {
	d := &DatabaseDiff{Source: source, Target: target}

	var sourceSchemas, targetSchemas []*models.Schema
	if source != nil {
		sourceSchemas = source.Schemas
	}
	if target != nil {
		targetSchemas = target.Schemas
	}

	for _, s := range sourceSchemas {
		t := findSchema(targetSchemas, s.Name)
		d.Schemas = append(d.Schemas, diffSchema(s, t))
	}
	for _, t := range targetSchemas {
		if findSchema(sourceSchemas, t.Name) == nil {
			d.Schemas = append(d.Schemas, diffSchema(nil, t))
		}
	}
	return d
}

// HasChanges reports whether anything differs between the two sides.
func (d *DatabaseDiff) HasChanges() bool {
	for _, s := range d.Schemas {
		if s.Status != Unchanged {
			return true
		}
	}
	return false
}

func diffSchema(source, target *models.Schema) *SchemaDiff {
	d := &SchemaDiff{Source: source, Target: target}
	switch {
	case target == nil:
		d.Status = Added
	case source == nil:
		d.Status = Removed
	}

	var sourceTables, targetTables []*models.Table
	if source != nil {
		sourceTables = source.Tables
	}
	if target != nil {
		targetTables = target.Tables
	}

	for _, s := range sourceTables {
		d.Tables = append(d.Tables, diffTable(s, findTable(targetTables, s.Name)))
	}
	for _, t := range targetTables {
		if findTable(sourceTables, t.Name) == nil {
			d.Tables = append(d.Tables, diffTable(nil, t))
		}
	}

	if d.Status == Unchanged {
		for _, t := range d.Tables {
			if t.Status != Unchanged {
				d.Status = Changed
				break
			}
		}
	}
	return d
}

func diffTable(source, target *models.Table) *TableDiff {
	d := &TableDiff{Source: source, Target: target}
	switch {
	case target == nil:
		d.Status = Added
	case source == nil:
		d.Status = Removed
	}

	var sourceCols, targetCols []*models.Column
	var sourceFKs, targetFKs []*models.ForeignKey
	if source != nil {
		sourceCols, sourceFKs = source.Columns, source.ForeignKeys
	}
	if target != nil {
		targetCols, targetFKs = target.Columns, target.ForeignKeys
	}

	for _, s := range sourceCols {
		d.Columns = append(d.Columns, diffColumn(s, findColumn(targetCols, s.Name)))
	}
	for _, t := range targetCols {
		if findColumn(sourceCols, t.Name) == nil {
			d.Columns = append(d.Columns, diffColumn(nil, t))
		}
	}

	for _, s := range sourceFKs {
		d.ForeignKeys = append(d.ForeignKeys, diffForeignKey(s, findForeignKey(targetFKs, s.Name)))
	}
	for _, t := range targetFKs {
		if findForeignKey(sourceFKs, t.Name) == nil {
			d.ForeignKeys = append(d.ForeignKeys, diffForeignKey(nil, t))
		}
	}

	if source != nil && target != nil {
		d.PrimaryKey = diffPrimaryKey(source.PrimaryKey, target.PrimaryKey)
	}

	if d.Status == Unchanged {
		changed := d.PrimaryKey != Unchanged
		for _, c := range d.Columns {
			changed = changed || c.Status != Unchanged
		}
		for _, fk := range d.ForeignKeys {
			changed = changed || fk.Status != Unchanged
		}
		if changed {
			d.Status = Changed
		}
	}
	return d
}

func diffColumn(source, target *models.Column) *ColumnDiff {
	d := &ColumnDiff{Source: source, Target: target}
	switch {
	case target == nil:
		d.Status = Added
		return d
	case source == nil:
		d.Status = Removed
		return d
	}

	if !strings.EqualFold(source.ColumnType, target.ColumnType) {
		d.Changes = append(d.Changes, "type")
	}
	if source.Length != target.Length {
		d.Changes = append(d.Changes, "length")
	}
	if source.Scale != target.Scale {
		d.Changes = append(d.Changes, "scale")
	}
	if source.Nullable != target.Nullable {
		d.Changes = append(d.Changes, "nullable")
	}
	if source.AutoIncrement != target.AutoIncrement {
		d.Changes = append(d.Changes, "autoIncrement")
	}
	if len(d.Changes) > 0 {
		d.Status = Changed
	}
	return d
}

func diffPrimaryKey(source, target *models.PrimaryKey) Status {
	switch {
	case source == nil && target == nil:
		return Unchanged
	case target == nil:
		return Added
	case source == nil:
		return Removed
	case !slices.Equal(source.Columns, target.Columns):
		return Changed
	}
	return Unchanged
}

func diffForeignKey(source, target *models.ForeignKey) *ForeignKeyDiff {
	d := &ForeignKeyDiff{Source: source, Target: target}
	switch {
	case target == nil:
		d.Status = Added
	case source == nil:
		d.Status = Removed
	case !sameForeignKey(source, target):
		d.Status = Changed
	}
	return d
}

func sameForeignKey(a, b *models.ForeignKey) bool {
	if (a.ToSchema != "" && b.ToSchema != "" && a.ToSchema != b.ToSchema) ||
		a.ToTable != b.ToTable || a.OnUpdate != b.OnUpdate || a.OnDelete != b.OnDelete ||
		len(a.References) != len(b.References) {
		return false
	}
	for i := range a.References {
		if a.References[i].FromColumn != b.References[i].FromColumn || a.References[i].ToColumn != b.References[i].ToColumn {
			return false
		}
	}
	return true
}

func findSchema(schemas []*models.Schema, name string) *models.Schema {
	for _, s := range schemas {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func findTable(tables []*models.Table, name string) *models.Table {
	for _, t := range tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func findColumn(columns []*models.Column, name string) *models.Column {
	for _, c := range columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func findForeignKey(fks []*models.ForeignKey, name string) *models.ForeignKey {
	for _, fk := range fks {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}
