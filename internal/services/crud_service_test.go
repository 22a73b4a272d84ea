package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataportal/internal/forms"
	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/pages"
	"dataportal/internal/persistence"
)

// memoryObjects keeps rows per table keyed by their formatted id.
type memoryObjects struct {
	model  *models.Model
	rows   map[string]map[string]persistence.Object
	nextID int64
	query  string
}

func newMemoryObjects(t *testing.T) *memoryObjects {
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
						{Name: "name", ColumnType: "varchar", Length: 20},
					},
					PrimaryKey: &models.PrimaryKey{Columns: []string{"id"}},
				},
				{
					Name: "orders",
					Columns: []*models.Column{
						{Name: "id", ColumnType: "int4", AutoIncrement: true},
						{Name: "customer_id", ColumnType: "int4"},
						{Name: "total", ColumnType: "numeric", Length: 10, Scale: 2},
					},
					PrimaryKey: &models.PrimaryKey{Columns: []string{"id"}},
					ForeignKeys: []*models.ForeignKey{{
						Name: "fk_orders_customer", ToSchema: "public", ToTable: "customers",
						References: []*models.Reference{{FromColumn: "customer_id", ToColumn: "id"}},
					}},
				},
			},
		}},
	}}}
	require.Empty(t, m.Init())

	store := &memoryObjects{model: m, rows: map[string]map[string]persistence.Object{}}
	require.NoError(t, store.SaveObject(context.Background(), "shop.public.customers", persistence.Object{"name": "Ada"}))
	return store
}

func (m *memoryObjects) TableAccessor(name string) (*persistence.TableAccessor, error) {
	table := m.model.FindTableByQualifiedName(name)
	if table == nil {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTableNotFound, name)
	}
	return persistence.NewTableAccessor(table), nil
}

func (m *memoryObjects) GetAllObjects(_ context.Context, name string) ([]persistence.Object, error) {
	var out []persistence.Object
	for _, obj := range m.rows[name] {
		out = append(out, obj)
	}
	return out, nil
}

func (m *memoryObjects) GetObjectsForTable(ctx context.Context, name, query string, _ any) ([]persistence.Object, error) {
	m.query = query
	return m.GetAllObjects(ctx, name)
}

func (m *memoryObjects) GetObjectByPK(_ context.Context, name string, pk persistence.Object) (persistence.Object, error) {
	obj, ok := m.rows[name][fmt.Sprint(pk["id"])]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	copied := persistence.Object{}
	for k, v := range obj {
		copied[k] = v
	}
	return copied, nil
}

func (m *memoryObjects) SaveObject(_ context.Context, name string, obj persistence.Object) error {
	m.nextID++
	obj["id"] = m.nextID
	if m.rows[name] == nil {
		m.rows[name] = map[string]persistence.Object{}
	}
	m.rows[name][fmt.Sprint(obj["id"])] = obj
	return nil
}

func (m *memoryObjects) UpdateObject(_ context.Context, name string, obj persistence.Object) error {
	key := fmt.Sprint(obj["id"])
	if _, ok := m.rows[name][key]; !ok {
		return persistence.ErrNotFound
	}
	m.rows[name][key] = obj
	return nil
}

func (m *memoryObjects) DeleteObject(_ context.Context, name string, obj persistence.Object) error {
	delete(m.rows[name], fmt.Sprint(obj["id"]))
	return nil
}

func crudInstance(table, query string, params ...string) *pages.PageInstance {
	return &pages.PageInstance{
		Page:       &pages.Page{ID: "orders", Type: pages.TypeCrud},
		Parameters: params,
		Crud:       &pages.CrudConfiguration{Table: table, Query: query},
	}
}

func TestCrudCreateReadUpdateDelete(t *testing.T) {
	t.Parallel()

	store := newMemoryObjects(t)
	svc := NewCrudService(store, logger.Test(t))
	ctx := context.Background()
	const orders = "shop.public.orders"

	form, obj, err := svc.Create(ctx, crudInstance(orders, ""), map[string]string{"customer_id": "1", "total": "12.50"})
	require.NoError(t, err)
	require.NotNil(t, form)
	assert.Equal(t, int64(1), obj["customer_id"])
	assert.Equal(t, "12.5", fmt.Sprint(obj["total"]))
	id := fmt.Sprint(obj["id"])

	read, err := svc.Read(ctx, crudInstance(orders, "", id))
	require.NoError(t, err)
	assert.Equal(t, "12.5", fmt.Sprint(read["total"]))

	edit, err := svc.Form(ctx, crudInstance(orders, "", id))
	require.NoError(t, err)
	customer := edit.FindFieldByPropertyName("customer_id")
	assert.Equal(t, forms.TypeSelect, customer.Type)
	assert.Equal(t, "1", customer.Value)
	require.Len(t, customer.Options, 1)
	assert.Equal(t, "Ada", customer.Options[0].Label)

	_, updated, err := svc.Update(ctx, crudInstance(orders, "", id), map[string]string{"total": "20", "id": "99"})
	require.NoError(t, err)
	assert.Equal(t, "20", fmt.Sprint(updated["total"]))
	assert.Equal(t, obj["id"], updated["id"])

	list, err := svc.List(ctx, crudInstance(orders, "FROM shop.public.orders WHERE total > 10"))
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "FROM shop.public.orders WHERE total > 10", store.query)

	require.NoError(t, svc.Delete(ctx, crudInstance(orders, "", id)))
	_, err = svc.Read(ctx, crudInstance(orders, "", id))
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestCrudWritesReportCommitFailure(t *testing.T) {
	t.Parallel()

	store := newMemoryObjects(t)
	svc := NewCrudService(store, logger.Test(t))
	ctx := context.Background()
	const orders = "shop.public.orders"

	_, obj, err := svc.Create(ctx, crudInstance(orders, ""), map[string]string{"customer_id": "1", "total": "1"})
	require.NoError(t, err)
	id := fmt.Sprint(obj["id"])

	commitErr := errors.New("serialization failure")
	commits := 0
	svc.commit = func(context.Context) error {
		commits++
		return commitErr
	}

	_, _, err = svc.Create(ctx, crudInstance(orders, ""), map[string]string{"customer_id": "1", "total": "2"})
	require.ErrorIs(t, err, commitErr)
	_, _, err = svc.Update(ctx, crudInstance(orders, "", id), map[string]string{"total": "3"})
	require.ErrorIs(t, err, commitErr)
	err = svc.Delete(ctx, crudInstance(orders, "", id))
	require.ErrorIs(t, err, commitErr)
	assert.Equal(t, 3, commits)

	_, _, err = svc.Create(ctx, crudInstance(orders, ""), map[string]string{"customer_id": "7", "total": "abc"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 3, commits)
}

func TestCrudUpdateKeepsUntouchedDecimals(t *testing.T) {
	t.Parallel()

	svc := NewCrudService(newMemoryObjects(t), logger.Test(t))
	ctx := context.Background()
	const orders = "shop.public.orders"

	_, obj, err := svc.Create(ctx, crudInstance(orders, ""), map[string]string{"customer_id": "1", "total": "123456789012345678.91"})
	require.NoError(t, err)

	_, updated, err := svc.Update(ctx, crudInstance(orders, "", fmt.Sprint(obj["id"])), map[string]string{"customer_id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678.91", fmt.Sprint(updated["total"]))
}

func TestCommitSession(t *testing.T) {
	t.Parallel()

	require.NoError(t, commitSession(context.Background()))

	sess := persistence.NewStore(logger.Test(t), nil).OpenSession()
	t.Cleanup(sess.Close)
	require.NoError(t, commitSession(persistence.WithSession(context.Background(), sess)))
}

func TestCrudValidation(t *testing.T) {
	t.Parallel()

	svc := NewCrudService(newMemoryObjects(t), logger.Test(t))
	ctx := context.Background()

	form, _, err := svc.Create(ctx, crudInstance("shop.public.orders", ""), map[string]string{"customer_id": "7", "total": "abc"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{"invalid option"}, form.FindFieldByPropertyName("customer_id").Errors)
	assert.Equal(t, []string{"not a number"}, form.FindFieldByPropertyName("total").Errors)
}

func TestCrudPageErrors(t *testing.T) {
	t.Parallel()

	svc := NewCrudService(newMemoryObjects(t), logger.Test(t))
	ctx := context.Background()

	chart := &pages.PageInstance{Page: &pages.Page{ID: "sales", Type: pages.TypeChart}}
	_, err := svc.List(ctx, chart)
	require.ErrorIs(t, err, ErrNotCrudPage)

	_, err = svc.Read(ctx, crudInstance("shop.public.orders", ""))
	require.ErrorIs(t, err, pages.ErrPageNotFound)
	_, err = svc.Read(ctx, crudInstance("shop.public.orders", "", "1", "2"))
	require.ErrorIs(t, err, pages.ErrPageNotFound)
	_, err = svc.Read(ctx, crudInstance("shop.public.orders", "", "abc"))
	require.ErrorIs(t, err, pages.ErrPageNotFound)

	_, err = svc.List(ctx, crudInstance("shop.public.missing", ""))
	require.ErrorIs(t, err, persistence.ErrTableNotFound)
}
