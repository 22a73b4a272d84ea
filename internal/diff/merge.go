package diff

import (
	"slices"

	"dataportal/internal/models"
)

// MergeDiffer applies the source structure of a diff onto its target while
// keeping the annotations only the model carries: entity names, property
// names and relationship names.
type MergeDiffer struct{}

// MergeDatabase updates the diff target in place and returns it. A nil
// target is created from the source name. Call Model.Init afterwards.
func (MergeDiffer) MergeDatabase(d *DatabaseDiff) *models.Database {
	target := d.Target
	if target == nil {
		target = &models.Database{Name: d.Source.Name}
	}

	for _, sd := range d.Schemas {
		switch sd.Status {
		case Added:
			target.Schemas = append(target.Schemas, cloneSchema(sd.Source))
		case Removed:
			target.Schemas = slices.DeleteFunc(target.Schemas, func(s *models.Schema) bool { return s == sd.Target })
		case Changed:
			mergeSchema(sd)
		}
	}
	return target
}

func mergeSchema(sd *SchemaDiff) {
	schema := sd.Target
	for _, td := range sd.Tables {
		switch td.Status {
		case Added:
			schema.Tables = append(schema.Tables, cloneTable(td.Source))
		case Removed:
			schema.Tables = slices.DeleteFunc(schema.Tables, func(t *models.Table) bool { return t == td.Target })
		case Changed:
			mergeTable(td)
		}
	}
}

func mergeTable(td *TableDiff) {
	table := td.Target

	for _, cd := range td.Columns {
		switch cd.Status {
		case Added:
			table.Columns = append(table.Columns, cloneColumn(cd.Source))
		case Removed:
			table.Columns = slices.DeleteFunc(table.Columns, func(c *models.Column) bool { return c == cd.Target })
		case Changed:
			cd.Target.ColumnType = cd.Source.ColumnType
			cd.Target.Length = cd.Source.Length
			cd.Target.Scale = cd.Source.Scale
			cd.Target.Nullable = cd.Source.Nullable
			cd.Target.AutoIncrement = cd.Source.AutoIncrement
		}
	}

	if td.PrimaryKey != Unchanged {
		if td.Source.PrimaryKey == nil {
			table.PrimaryKey = nil
		} else {
			table.PrimaryKey = &models.PrimaryKey{
				Name:    td.Source.PrimaryKey.Name,
				Columns: slices.Clone(td.Source.PrimaryKey.Columns),
			}
		}
	}

	for _, fd := range td.ForeignKeys {
		switch fd.Status {
		case Added:
			table.ForeignKeys = append(table.ForeignKeys, cloneForeignKey(fd.Source))
		case Removed:
			table.ForeignKeys = slices.DeleteFunc(table.ForeignKeys, func(fk *models.ForeignKey) bool { return fk == fd.Target })
		case Changed:
			fk := fd.Target
			fk.ToSchema = fd.Source.ToSchema
			fk.ToTable = fd.Source.ToTable
			fk.OnUpdate = fd.Source.OnUpdate
			fk.OnDelete = fd.Source.OnDelete
			fk.References = cloneReferences(fd.Source.References)
		}
	}
}

func cloneSchema(s *models.Schema) *models.Schema {
	c := &models.Schema{Name: s.Name}
	for _, t := range s.Tables {
		c.Tables = append(c.Tables, cloneTable(t))
	}
	return c
}

func cloneTable(t *models.Table) *models.Table {
	c := &models.Table{Name: t.Name, EntityName: t.EntityName}
	for _, col := range t.Columns {
		c.Columns = append(c.Columns, cloneColumn(col))
	}
	if t.PrimaryKey != nil {
		c.PrimaryKey = &models.PrimaryKey{Name: t.PrimaryKey.Name, Columns: slices.Clone(t.PrimaryKey.Columns)}
	}
	for _, fk := range t.ForeignKeys {
		c.ForeignKeys = append(c.ForeignKeys, cloneForeignKey(fk))
	}
	return c
}

func cloneColumn(col *models.Column) *models.Column {
	return &models.Column{
		Name:          col.Name,
		ColumnType:    col.ColumnType,
		Length:        col.Length,
		Scale:         col.Scale,
		Nullable:      col.Nullable,
		AutoIncrement: col.AutoIncrement,
		PropertyName:  col.PropertyName,
	}
}

func cloneForeignKey(fk *models.ForeignKey) *models.ForeignKey {
	return &models.ForeignKey{
		Name:             fk.Name,
		ToDatabase:       fk.ToDatabase,
		ToSchema:         fk.ToSchema,
		ToTable:          fk.ToTable,
		OnUpdate:         fk.OnUpdate,
		OnDelete:         fk.OnDelete,
		ManyPropertyName: fk.ManyPropertyName,
		OnePropertyName:  fk.OnePropertyName,
		References:       cloneReferences(fk.References),
	}
}

func cloneReferences(refs []*models.Reference) []*models.Reference {
	out := make([]*models.Reference, len(refs))
	for i, r := range refs {
		out[i] = &models.Reference{FromColumn: r.FromColumn, ToColumn: r.ToColumn}
	}
	return out
}
