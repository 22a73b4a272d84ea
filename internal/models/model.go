package models

import (
	"fmt"
	"strings"
)

// Model is the runtime-editable data model: every database the portal
// knows about, with its schemas, tables, columns and foreign keys.
type Model struct {
	Databases []*Database `yaml:"databases" json:"databases"`
}

type Database struct {
	Name    string    `yaml:"name" json:"name"`
	Schemas []*Schema `yaml:"schemas" json:"schemas"`
}

type Schema struct {
	Name   string   `yaml:"name" json:"name"`
	Tables []*Table `yaml:"tables" json:"tables"`

	database *Database
}

type Table struct {
	Name        string        `yaml:"name" json:"name"`
	EntityName  string        `yaml:"entityName,omitempty" json:"entity_name,omitempty"`
	Columns     []*Column     `yaml:"columns" json:"columns"`
	PrimaryKey  *PrimaryKey   `yaml:"primaryKey,omitempty" json:"primary_key,omitempty"`
	ForeignKeys []*ForeignKey `yaml:"foreignKeys,omitempty" json:"foreign_keys,omitempty"`

	schema *Schema
}

type Column struct {
	Name          string `yaml:"name" json:"name"`
	ColumnType    string `yaml:"type" json:"type"`
	Length        int    `yaml:"length,omitempty" json:"length,omitempty"`
	Scale         int    `yaml:"scale,omitempty" json:"scale,omitempty"`
	Nullable      bool   `yaml:"nullable" json:"nullable"`
	AutoIncrement bool   `yaml:"autoIncrement,omitempty" json:"auto_increment,omitempty"`
	PropertyName  string `yaml:"propertyName,omitempty" json:"property_name,omitempty"`

	table *Table
}

type PrimaryKey struct {
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
}

// ForeignKey is a many-to-one reference from the owning table to ToTable.
// Seen from ToTable it is the one-to-many relationship named by
// ActualManyPropertyName.
type ForeignKey struct {
	Name             string       `yaml:"name" json:"name"`
	ToDatabase       string       `yaml:"toDatabase,omitempty" json:"to_database,omitempty"`
	ToSchema         string       `yaml:"toSchema" json:"to_schema"`
	ToTable          string       `yaml:"toTable" json:"to_table"`
	OnUpdate         string       `yaml:"onUpdate,omitempty" json:"on_update,omitempty"`
	OnDelete         string       `yaml:"onDelete,omitempty" json:"on_delete,omitempty"`
	ManyPropertyName string       `yaml:"manyPropertyName,omitempty" json:"many_property_name,omitempty"`
	OnePropertyName  string       `yaml:"onePropertyName,omitempty" json:"one_property_name,omitempty"`
	References       []*Reference `yaml:"references" json:"references"`

	fromTable *Table
	toTable   *Table
}

type Reference struct {
	FromColumn string `yaml:"fromColumn" json:"from_column"`
	ToColumn   string `yaml:"toColumn" json:"to_column"`

	fromColumn *Column
	toColumn   *Column
}

// Init links every element to its parent and resolves foreign key targets.
// Unresolvable references are reported, not fatal: the rest of the model
// stays usable.
func (m *Model) Init() []error {
	var problems []error

	for _, db := range m.Databases {
		for _, schema := range db.Schemas {
			schema.database = db
			for _, table := range schema.Tables {
				table.schema = schema
				for _, col := range table.Columns {
					col.table = table
				}
				if table.PrimaryKey != nil {
					for _, name := range table.PrimaryKey.Columns {
						if table.FindColumnByName(name) == nil {
							problems = append(problems, fmt.Errorf("table %s: primary key column %q not found", table.QualifiedName(), name))
						}
					}
				}
			}
		}
	}

	for _, db := range m.Databases {
		for _, schema := range db.Schemas {
			for _, table := range schema.Tables {
				for _, fk := range table.ForeignKeys {
					fk.fromTable = table
					if fk.ToDatabase == "" {
						fk.ToDatabase = db.Name
					}
					if fk.ToSchema == "" {
						fk.ToSchema = schema.Name
					}
					fk.toTable = m.FindTable(fk.ToDatabase, fk.ToSchema, fk.ToTable)
					if fk.toTable == nil {
						problems = append(problems, fmt.Errorf("foreign key %s on %s: target table %s.%s.%s not found",
							fk.Name, table.QualifiedName(), fk.ToDatabase, fk.ToSchema, fk.ToTable))
					}
					for _, ref := range fk.References {
						ref.fromColumn = table.FindColumnByName(ref.FromColumn)
						if ref.fromColumn == nil {
							problems = append(problems, fmt.Errorf("foreign key %s: column %q not found in %s", fk.Name, ref.FromColumn, table.QualifiedName()))
						}
						ref.toColumn = nil
						if fk.toTable != nil {
							ref.toColumn = fk.toTable.FindColumnByName(ref.ToColumn)
							if ref.toColumn == nil {
								problems = append(problems, fmt.Errorf("foreign key %s: column %q not found in %s", fk.Name, ref.ToColumn, fk.toTable.QualifiedName()))
							}
						}
					}
				}
			}
		}
	}

	return problems
}

func (m *Model) FindDatabaseByName(name string) *Database {
	for _, db := range m.Databases {
		if db.Name == name {
			return db
		}
	}
	return nil
}

func (m *Model) FindTable(database, schema, table string) *Table {
	db := m.FindDatabaseByName(database)
	if db == nil {
		return nil
	}
	s := db.FindSchemaByName(schema)
	if s == nil {
		return nil
	}
	return s.FindTableByName(table)
}

// FindTableByQualifiedName looks up "database.schema.table".
func (m *Model) FindTableByQualifiedName(qualifiedName string) *Table {
	parts := strings.Split(qualifiedName, ".")
	if len(parts) != 3 {
		return nil
	}
	return m.FindTable(parts[0], parts[1], parts[2])
}

// AllTables returns every table of every database in declaration order.
func (m *Model) AllTables() []*Table {
	var tables []*Table
	for _, db := range m.Databases {
		tables = append(tables, db.AllTables()...)
	}
	return tables
}

// FindOneToManyRelationship returns the foreign key pointing at the given
// table whose one-to-many side is called relationshipName.
func (m *Model) FindOneToManyRelationship(qualifiedTableName, relationshipName string) *ForeignKey {
	target := m.FindTableByQualifiedName(qualifiedTableName)
	if target == nil {
		return nil
	}
	for _, table := range m.AllTables() {
		for _, fk := range table.ForeignKeys {
			if fk.toTable == target && fk.ActualManyPropertyName() == relationshipName {
				return fk
			}
		}
	}
	return nil
}

func (d *Database) FindSchemaByName(name string) *Schema {
	for _, s := range d.Schemas {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (d *Database) AllTables() []*Table {
	var tables []*Table
	for _, s := range d.Schemas {
		tables = append(tables, s.Tables...)
	}
	return tables
}

func (s *Schema) Database() *Database { return s.database }

func (s *Schema) FindTableByName(name string) *Table {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (t *Table) Schema() *Schema { return t.schema }

func (t *Table) SchemaName() string {
	if t.schema == nil {
		return ""
	}
	return t.schema.Name
}

func (t *Table) DatabaseName() string {
	if t.schema == nil || t.schema.database == nil {
		return ""
	}
	return t.schema.database.Name
}

func (t *Table) QualifiedName() string {
	return fmt.Sprintf("%s.%s.%s", t.DatabaseName(), t.SchemaName(), t.Name)
}

func (t *Table) ActualEntityName() string {
	if t.EntityName != "" {
		return t.EntityName
	}
	return t.Name
}

func (t *Table) FindColumnByName(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (t *Table) FindColumnByPropertyName(property string) *Column {
	for _, c := range t.Columns {
		if c.ActualPropertyName() == property {
			return c
		}
	}
	return nil
}

// KeyColumns returns the primary key columns in key order.
func (t *Table) KeyColumns() []*Column {
	if t.PrimaryKey == nil {
		return nil
	}
	cols := make([]*Column, 0, len(t.PrimaryKey.Columns))
	for _, name := range t.PrimaryKey.Columns {
		if c := t.FindColumnByName(name); c != nil {
			cols = append(cols, c)
		}
	}
	return cols
}

func (t *Table) IsKeyColumn(name string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, pk := range t.PrimaryKey.Columns {
		if pk == name {
			return true
		}
	}
	return false
}

func (t *Table) FindForeignKeyByName(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

func (c *Column) Table() *Table { return c.table }

func (c *Column) ActualPropertyName() string {
	if c.PropertyName != "" {
		return c.PropertyName
	}
	return c.Name
}

func (fk *ForeignKey) FromTable() *Table { return fk.fromTable }

func (fk *ForeignKey) ActualToTable() *Table { return fk.toTable }

// ActualManyPropertyName names the relationship as seen from the referenced
// table. Defaults to the constraint name.
func (fk *ForeignKey) ActualManyPropertyName() string {
	if fk.ManyPropertyName != "" {
		return fk.ManyPropertyName
	}
	return fk.Name
}

func (fk *ForeignKey) ActualOnePropertyName() string {
	if fk.OnePropertyName != "" {
		return fk.OnePropertyName
	}
	return fk.Name
}

func (r *Reference) ActualFromColumn() *Column { return r.fromColumn }

func (r *Reference) ActualToColumn() *Column { return r.toColumn }
