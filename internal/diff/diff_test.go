package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataportal/internal/database"
	"dataportal/internal/models"
)

// liveDatabase is what the catalog reports.
func liveDatabase() *models.Database {
	return &models.Database{Name: "shop", Schemas: []*models.Schema{{
		Name: "public",
		Tables: []*models.Table{
			{
				Name: "customers",
				Columns: []*models.Column{
					{Name: "id", ColumnType: "int4", AutoIncrement: true},
					{Name: "email", ColumnType: "varchar", Length: 120},
					{Name: "created_at", ColumnType: "timestamptz", Nullable: true},
				},
				PrimaryKey: &models.PrimaryKey{Name: "customers_pkey", Columns: []string{"id"}},
			},
			{
				Name:       "invoices",
				Columns:    []*models.Column{{Name: "id", ColumnType: "int4"}},
				PrimaryKey: &models.PrimaryKey{Columns: []string{"id"}},
			},
		},
	}}}
}

// configuredDatabase is the model, with annotations and a table the live
// database lacks.
func configuredDatabase() *models.Database {
	return &models.Database{Name: "shop", Schemas: []*models.Schema{{
		Name: "public",
		Tables: []*models.Table{
			{
				Name:       "customers",
				EntityName: "Customer",
				Columns: []*models.Column{
					{Name: "id", ColumnType: "int4", AutoIncrement: true},
					{Name: "email", ColumnType: "varchar", Length: 100, PropertyName: "mail"},
					{Name: "legacy_code", ColumnType: "varchar", Length: 5, Nullable: true},
				},
				PrimaryKey: &models.PrimaryKey{Name: "customers_pkey", Columns: []string{"id"}},
			},
			{
				Name: "orders",
				Columns: []*models.Column{
					{Name: "id", ColumnType: "int4"},
					{Name: "customer_id", ColumnType: "int4"},
				},
				PrimaryKey: &models.PrimaryKey{Columns: []string{"id"}},
				ForeignKeys: []*models.ForeignKey{{
					Name:             "fk_orders_customer",
					ToTable:          "customers",
					ManyPropertyName: "orders",
					References:       []*models.Reference{{FromColumn: "customer_id", ToColumn: "id"}},
				}},
			},
		},
	}}}
}

func tableDiff(t *testing.T, d *DatabaseDiff, name string) *TableDiff {
	t.Helper()
	for _, td := range d.Schemas[0].Tables {
		if (td.Source != nil && td.Source.Name == name) || (td.Target != nil && td.Target.Name == name) {
			return td
		}
	}
	t.Fatalf("no diff for table %s", name)
	return nil
}

func TestDiffDatabases(t *testing.T) {
	t.Parallel()

	d := DiffDatabases(liveDatabase(), configuredDatabase())
	require.Len(t, d.Schemas, 1)
	assert.True(t, d.HasChanges())
	assert.Equal(t, Changed, d.Schemas[0].Status)

	customers := tableDiff(t, d, "customers")
	assert.Equal(t, Changed, customers.Status)
	assert.Equal(t, Unchanged, customers.PrimaryKey)

	statuses := map[string]Status{}
	for _, cd := range customers.Columns {
		if cd.Source != nil {
			statuses[cd.Source.Name] = cd.Status
		} else {
			statuses[cd.Target.Name] = cd.Status
		}
	}
	assert.Equal(t, map[string]Status{
		"id":          Unchanged,
		"email":       Changed,
		"created_at":  Added,
		"legacy_code": Removed,
	}, statuses)

	assert.Equal(t, Added, tableDiff(t, d, "invoices").Status)
	assert.Equal(t, Removed, tableDiff(t, d, "orders").Status)
}

func TestDiffIdentical(t *testing.T) {
	t.Parallel()

	d := DiffDatabases(liveDatabase(), liveDatabase())
	assert.False(t, d.HasChanges())
}

func TestDiffNilTarget(t *testing.T) {
	t.Parallel()

	d := DiffDatabases(liveDatabase(), nil)
	require.Len(t, d.Schemas, 1)
	assert.Equal(t, Added, d.Schemas[0].Status)
}

func TestMergeDatabase(t *testing.T) {
	t.Parallel()

	target := configuredDatabase()
	merged := MergeDiffer{}.MergeDatabase(DiffDatabases(liveDatabase(), target))
	assert.Same(t, target, merged)

	m := &models.Model{Databases: []*models.Database{merged}}
	require.Empty(t, m.Init())

	customers := m.FindTableByQualifiedName("shop.public.customers")
	require.NotNil(t, customers)
	assert.Equal(t, "Customer", customers.EntityName)

	email := customers.FindColumnByName("email")
	assert.Equal(t, 120, email.Length)
	assert.Equal(t, "mail", email.PropertyName)
	assert.NotNil(t, customers.FindColumnByName("created_at"))
	assert.Nil(t, customers.FindColumnByName("legacy_code"))

	assert.NotNil(t, m.FindTableByQualifiedName("shop.public.invoices"))
	assert.Nil(t, m.FindTableByQualifiedName("shop.public.orders"))

	assert.False(t, DiffDatabases(liveDatabase(), merged).HasChanges())
}

func TestMergeNilTarget(t *testing.T) {
	t.Parallel()

	merged := MergeDiffer{}.MergeDatabase(DiffDatabases(liveDatabase(), nil))
	assert.Equal(t, "shop", merged.Name)
	require.Len(t, merged.Schemas, 1)
	assert.Len(t, merged.Schemas[0].Tables, 2)
}

func TestMergeForeignKeyKeepsRelationshipName(t *testing.T) {
	t.Parallel()

	live := configuredDatabase()
	live.Schemas[0].Tables[1].ForeignKeys[0].ManyPropertyName = ""
	live.Schemas[0].Tables[1].ForeignKeys[0].OnDelete = "CASCADE"

	target := configuredDatabase()
	MergeDiffer{}.MergeDatabase(DiffDatabases(live, target))

	fk := target.Schemas[0].Tables[1].ForeignKeys[0]
	assert.Equal(t, "CASCADE", fk.OnDelete)
	assert.Equal(t, "orders", fk.ManyPropertyName)
}

func TestUpdateStatements(t *testing.T) {
	t.Parallel()

	model := &models.Model{Databases: []*models.Database{configuredDatabase()}}
	require.Empty(t, model.Init())

	stmts := UpdateStatements(database.PostgresPlatform{}, DiffDatabases(liveDatabase(), model.Databases[0]))
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], `CREATE TABLE "public"."orders"`)
	assert.Equal(t, `ALTER TABLE "public"."customers" ADD COLUMN "legacy_code" varchar(5)`, stmts[1])
	assert.Contains(t, stmts[2], `ADD CONSTRAINT "fk_orders_customer"`)
}
