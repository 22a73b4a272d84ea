package modelio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelYAML = `
databases:
  - name: shop
    schemas:
      - name: public
        tables:
          - name: customers
            columns:
              - name: id
                type: integer
                autoIncrement: true
              - name: email
                type: varchar
                length: 100
            primaryKey:
              columns: [id]
          - name: orders
            entityName: Order
            columns:
              - name: id
                type: integer
              - name: customer_id
                type: integer
                propertyName: customerId
            primaryKey:
              columns: [id]
            foreignKeys:
              - name: fk_orders_customer
                toSchema: public
                toTable: customers
                manyPropertyName: orders
                references:
                  - fromColumn: customer_id
                    toColumn: id
`

func TestParseModel(t *testing.T) {
	t.Parallel()

	model, problems, err := ParseModel([]byte(modelYAML))
	require.NoError(t, err)
	require.Empty(t, problems)

	orders := model.FindTableByQualifiedName("shop.public.orders")
	require.NotNil(t, orders)
	assert.Equal(t, "Order", orders.ActualEntityName())
	require.NotNil(t, orders.ForeignKeys[0].ActualToTable())
	assert.Equal(t, "customers", orders.ForeignKeys[0].ActualToTable().Name)
}

func TestParseModelInvalidYAML(t *testing.T) {
	t.Parallel()

	_, _, err := ParseModel([]byte("databases: [:"))
	require.Error(t, err)
}

func TestSaveAndLoadModel(t *testing.T) {
	t.Parallel()

	model, _, err := ParseModel([]byte(modelYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, SaveModel(model, path))

	loaded, problems, err := LoadModel(path)
	require.NoError(t, err)
	require.Empty(t, problems)
	assert.Len(t, loaded.AllTables(), 2)
	assert.Equal(t, "customerId", loaded.FindTableByQualifiedName("shop.public.orders").FindColumnByName("customer_id").PropertyName)
}

func TestSaveModelWithoutPath(t *testing.T) {
	t.Parallel()

	model, _, err := ParseModel([]byte(modelYAML))
	require.NoError(t, err)
	require.Error(t, SaveModel(model, ""))
}

func TestParseConnections(t *testing.T) {
	require.NoError(t, os.Setenv("MODELIO_TEST_PASSWORD", "s3cret"))
	t.Cleanup(func() { os.Unsetenv("MODELIO_TEST_PASSWORD") })

	conns, err := ParseConnections([]byte(`
connections:
  - database: shop
    host: localhost
    port: 5432
    user: shop
    password: ${MODELIO_TEST_PASSWORD}
    dbname: shop
  - database: legacy
    driver: mysql
    url: root:pw@tcp(localhost:3306)/legacy
`))
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "pgx", conns[0].Driver)
	assert.Equal(t, "s3cret", conns[0].Password)
	assert.Equal(t, "mysql", conns[1].Driver)
}

func TestParseConnectionsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := ParseConnections([]byte(`
connections:
  - database: shop
  - database: shop
`))
	require.ErrorContains(t, err, "duplicate")
}

func TestLoadConnectionsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConnections(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
