package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataportal/internal/models"
)

func shopModel(t *testing.T) *models.Model {
	t.Helper()

	m := &models.Model{Databases: []*models.Database{{
		Name: "shop",
		Schemas: []*models.Schema{{
			Name: "public",
			Tables: []*models.Table{
				{
					Name: "customers",
					Columns: []*models.Column{
						{Name: "id", ColumnType: "int4", AutoIncrement: true},
						{Name: "email", ColumnType: "varchar", Length: 100},
						{Name: "balance", ColumnType: "numeric", Length: 10, Scale: 2, Nullable: true},
					},
					PrimaryKey: &models.PrimaryKey{Columns: []string{"id"}},
				},
				{
					Name: "orders",
					Columns: []*models.Column{
						{Name: "id", ColumnType: "int8", AutoIncrement: true},
						{Name: "customer_id", ColumnType: "int4"},
					},
					PrimaryKey: &models.PrimaryKey{Columns: []string{"id"}},
					ForeignKeys: []*models.ForeignKey{{
						Name:       "fk_orders_customer",
						ToTable:    "customers",
						OnDelete:   "CASCADE",
						References: []*models.Reference{{FromColumn: "customer_id", ToColumn: "id"}},
					}},
				},
			},
		}},
	}}}
	require.Empty(t, m.Init())
	return m
}

func TestPlatformForDriver(t *testing.T) {
	t.Parallel()

	for driver, want := range map[string]string{"pgx": "postgresql", "postgres": "postgresql", "mysql": "mysql"} {
		p, err := PlatformForDriver(driver)
		require.NoError(t, err)
		assert.Equal(t, want, p.Name())
	}

	_, err := PlatformForDriver("oracle")
	require.Error(t, err)
}

func TestQuoting(t *testing.T) {
	t.Parallel()

	pg := PostgresPlatform{}
	assert.Equal(t, `"order"`, pg.Quote("order"))
	assert.Equal(t, `"a""b"`, pg.Quote(`a"b`))
	assert.Equal(t, `"public"."orders"`, pg.QualifiedTable("public", "orders"))

	my := MySQLPlatform{}
	assert.Equal(t, "`order`", my.Quote("order"))
	assert.Equal(t, "`shop`.`orders`", my.QualifiedTable("shop", "orders"))
	assert.Equal(t, "`orders`", my.QualifiedTable("", "orders"))
}

func TestRebind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a = $1 AND b = $2", Rebind(PostgresPlatform{}, "a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", Rebind(MySQLPlatform{}, "a = ? AND b = ?"))
}

func TestRebindSkipsLiteralsAndComments(t *testing.T) {
	t.Parallel()

	pg := PostgresPlatform{}
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM t WHERE note LIKE '%?%' AND id = ?", "SELECT * FROM t WHERE note LIKE '%?%' AND id = $1"},
		{`SELECT "what?" FROM t WHERE a = ?`, `SELECT "what?" FROM t WHERE a = $1`},
		{"SELECT 'it''s ?' , ? FROM t", "SELECT 'it''s ?' , $1 FROM t"},
		{"SELECT ? -- why?\nFROM t WHERE b = ?", "SELECT $1 -- why?\nFROM t WHERE b = $2"},
		{"SELECT /* ? */ a FROM t WHERE b = ?", "SELECT /* ? */ a FROM t WHERE b = $1"},
		{"SELECT data ?? 'k' FROM t WHERE id = ?", "SELECT data ? 'k' FROM t WHERE id = $1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rebind(pg, tt.in), tt.in)
	}

	assert.Equal(t, "a LIKE '%?%' AND b = ?", Rebind(MySQLPlatform{}, "a LIKE '%?%' AND b = ?"))
}

func TestColumnDefinition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		col      models.Column
		postgres string
		mysql    string
	}{
		{models.Column{ColumnType: "int4", AutoIncrement: true}, "serial NOT NULL", "int4 NOT NULL AUTO_INCREMENT"},
		{models.Column{ColumnType: "int8", AutoIncrement: true}, "bigserial NOT NULL", "int8 NOT NULL AUTO_INCREMENT"},
		{models.Column{ColumnType: "varchar", Length: 40, Nullable: true}, "varchar(40)", "varchar(40)"},
		{models.Column{ColumnType: "numeric", Length: 10, Scale: 2}, "numeric(10,2) NOT NULL", "numeric(10,2) NOT NULL"},
		{models.Column{ColumnType: "TEXT", Length: 65535, Nullable: true}, "text", "text"},
	}
	for _, tt := range tests {
		col := tt.col
		assert.Equal(t, tt.postgres, PostgresPlatform{}.ColumnDefinition(&col))
		assert.Equal(t, tt.mysql, MySQLPlatform{}.ColumnDefinition(&col))
	}
}

func TestStatements(t *testing.T) {
	t.Parallel()

	m := shopModel(t)
	customers := m.FindTableByQualifiedName("shop.public.customers")
	orders := m.FindTableByQualifiedName("shop.public.orders")
	pg := PostgresPlatform{}

	assert.Equal(t,
		"CREATE TABLE \"public\".\"customers\" (\n"+
			"  \"id\" serial NOT NULL,\n"+
			"  \"email\" varchar(100) NOT NULL,\n"+
			"  \"balance\" numeric(10,2),\n"+
			"  PRIMARY KEY (\"id\")\n)",
		CreateTableStatement(pg, customers))

	assert.Equal(t,
		`ALTER TABLE "public"."orders" ADD CONSTRAINT "fk_orders_customer" FOREIGN KEY ("customer_id") REFERENCES "public"."customers" ("id") ON DELETE CASCADE`,
		AddForeignKeyStatement(pg, orders.ForeignKeys[0]))

	assert.Equal(t,
		`ALTER TABLE "public"."customers" ADD COLUMN "email" varchar(100) NOT NULL`,
		AddColumnStatement(pg, customers.FindColumnByName("email")))
}

func TestBuildSchema(t *testing.T) {
	t.Parallel()

	schema := buildSchema("public",
		[]tableRow{{Name: "orders"}, {Name: "customers"}},
		[]columnRow{
			{Table: "customers", Name: "id", DataType: "int4", IsNullable: "NO", AutoIncrement: true},
			{Table: "customers", Name: "name", DataType: "varchar", CharLength: sql.NullInt64{Int64: 50, Valid: true}, IsNullable: "YES"},
			{Table: "orders", Name: "id", DataType: "int4", IsNullable: "NO"},
			{Table: "orders", Name: "customer_id", DataType: "int4", IsNullable: "NO"},
			{Table: "orders", Name: "total", DataType: "numeric",
				Precision: sql.NullInt64{Int64: 12, Valid: true}, Scale: sql.NullInt64{Int64: 2, Valid: true}, IsNullable: "YES"},
			{Table: "ghost", Name: "x", DataType: "int4"},
		},
		[]keyRow{
			{Table: "customers", ConstraintName: "customers_pkey", Column: "id"},
			{Table: "orders", ConstraintName: "orders_pkey", Column: "id"},
		},
		[]foreignKeyRow{
			{Table: "orders", ConstraintName: "fk_customer", Column: "customer_id", ToSchema: "public",
				ToTable: "customers", ToColumn: "id", UpdateRule: "NO ACTION", DeleteRule: "CASCADE"},
		},
	)

	require.Len(t, schema.Tables, 2)
	assert.Equal(t, "customers", schema.Tables[0].Name)

	customers := schema.Tables[0]
	assert.True(t, customers.Columns[0].AutoIncrement)
	assert.Equal(t, 50, customers.Columns[1].Length)
	assert.True(t, customers.Columns[1].Nullable)
	assert.Equal(t, []string{"id"}, customers.PrimaryKey.Columns)

	orders := schema.Tables[1]
	total := orders.FindColumnByName("total")
	assert.Equal(t, 12, total.Length)
	assert.Equal(t, 2, total.Scale)

	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	assert.Equal(t, "customers", fk.ToTable)
	assert.Empty(t, fk.OnUpdate)
	assert.Equal(t, "CASCADE", fk.OnDelete)
	assert.Len(t, fk.References, 1)
}
