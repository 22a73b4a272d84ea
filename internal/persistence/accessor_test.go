package persistence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataportal/internal/models"
)

func TestAccessorConvert(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	orders := NewTableAccessor(m.FindTableByQualifiedName("shop.public.orders"))
	customers := NewTableAccessor(m.FindTableByQualifiedName("shop.public.customers"))

	v, err := orders.Convert("customerId", " 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = orders.Convert("total", "12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.5", v.(decimal.Decimal).String())

	v, err = orders.Convert("placed_on", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), v)

	v, err = orders.Convert("placed_at", "2024-03-01 10:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), v)

	v, err = orders.Convert("total", "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = customers.Convert("name", "")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = customers.Convert("vip", "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = orders.Convert("customerId", "forty")
	assert.Error(t, err)

	_, err = orders.Convert("missing", "1")
	assert.Error(t, err)
}

func TestAccessorKeyOf(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	orders := NewTableAccessor(m.FindTableByQualifiedName("shop.public.orders"))

	key, err := orders.KeyOf(Object{"id": int64(7), "total": 3.0})
	require.NoError(t, err)
	assert.Equal(t, Object{"id": int64(7)}, key)

	_, err = orders.KeyOf(Object{"total": 3.0})
	assert.Error(t, err)

	_, err = orders.KeyOf(Object{"id": nil})
	assert.Error(t, err)
}

func TestAccessorFromRow(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	orders := NewTableAccessor(m.FindTableByQualifiedName("shop.public.orders"))

	obj := orders.FromRow(map[string]any{
		"id":          int64(1),
		"customer_id": []byte("9"),
		"total":       "19.90",
		"placed_at":   nil,
		"extra":       "kept",
	})

	total, ok := obj["total"].(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "19.90", total.StringFixed(2))
	delete(obj, "total")

	assert.Equal(t, Object{
		"id":         int64(1),
		"customerId": int64(9),
		"placed_at":  nil,
		"extra":      "kept",
	}, obj)
}

func TestAccessorKeepsDecimalPrecision(t *testing.T) {
	t.Parallel()

	col := &models.Column{Name: "amount", ColumnType: "numeric(20,2)"}

	v, err := ConvertValue(col, "123456789012345678.91")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678.91", v.(decimal.Decimal).String())

	n := normalize(col, []byte("123456789012345678.91"))
	assert.Equal(t, "123456789012345678.91", n.(decimal.Decimal).String())

	_, err = ConvertValue(col, "12,5")
	assert.Error(t, err)

	approx := &models.Column{Name: "ratio", ColumnType: "double precision"}
	v, err = ConvertValue(approx, "0.25")
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
	assert.Equal(t, 0.5, normalize(approx, "0.5"))
}

func TestAccessorProperties(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	customers := NewTableAccessor(m.FindTableByQualifiedName("shop.public.customers"))

	assert.Equal(t, "shop.public.customers", customers.QualifiedName())
	assert.True(t, customers.HasProperty("name"))
	assert.False(t, customers.HasProperty("full_name"))
	assert.Equal(t, "full_name", customers.Property("name").Name)
	require.Len(t, customers.KeyProperties(), 1)
	assert.Equal(t, "id", customers.KeyProperties()[0].Name)
}
