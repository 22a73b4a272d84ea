package services

import (
	"context"
	"errors"
	"fmt"

	"dataportal/internal/forms"
	"dataportal/internal/logger"
	"dataportal/internal/pages"
	"dataportal/internal/persistence"
)

var (
	ErrNotCrudPage = errors.New("not a crud page")
	ErrValidation  = errors.New("validation failed")
)

// ObjectStore is the persistence surface used by crud pages.
type ObjectStore interface {
	TableAccessor(qualifiedTableName string) (*persistence.TableAccessor, error)
	GetAllObjects(ctx context.Context, qualifiedTableName string) ([]persistence.Object, error)
	GetObjectsForTable(ctx context.Context, qualifiedTableName, query string, root any) ([]persistence.Object, error)
	GetObjectByPK(ctx context.Context, qualifiedTableName string, pk persistence.Object) (persistence.Object, error)
	SaveObject(ctx context.Context, qualifiedTableName string, obj persistence.Object) error
	UpdateObject(ctx context.Context, qualifiedTableName string, obj persistence.Object) error
	DeleteObject(ctx context.Context, qualifiedTableName string, obj persistence.Object) error
}

type CrudService struct {
	store  ObjectStore
	commit func(ctx context.Context) error
	lggr   logger.Logger
}

func NewCrudService(store ObjectStore, lggr logger.Logger) *CrudService {
	return &CrudService{store: store, commit: commitSession, lggr: lggr.Named("CrudService")}
}

// commitSession commits the request session so that a failed commit is
// reported to the caller instead of after the response is written.
func commitSession(ctx context.Context) error {
	sess, ok := persistence.SessionFrom(ctx)
	if !ok {
		return nil
	}
	if err := sess.CommitAll(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func crudTable(pi *pages.PageInstance) (string, error) {
	if pi.Page.Type != pages.TypeCrud || pi.Crud == nil || pi.Crud.Table == "" {
		return "", fmt.Errorf("%w: %s", ErrNotCrudPage, pi.Path())
	}
	return pi.Crud.Table, nil
}

// List returns the rows of the page's table, filtered by its query when
// one is configured.
func (s *CrudService) List(ctx context.Context, pi *pages.PageInstance) ([]persistence.Object, error) {
	table, err := crudTable(pi)
	if err != nil {
		return nil, err
	}
	if pi.Crud.Query != "" {
		return s.store.GetObjectsForTable(ctx, table, pi.Crud.Query, nil)
	}
	return s.store.GetAllObjects(ctx, table)
}

// Read loads the row whose key values are the page parameters.
func (s *CrudService) Read(ctx context.Context, pi *pages.PageInstance) (persistence.Object, error) {
	table, _, pk, err := s.keyOf(pi)
	if err != nil {
		return nil, err
	}
	return s.store.GetObjectByPK(ctx, table, pk)
}

// Form returns the edit form of the page's table, filled with the row named
// by the parameters when there are any.
func (s *CrudService) Form(ctx context.Context, pi *pages.PageInstance) (*forms.Form, error) {
	table, err := crudTable(pi)
	if err != nil {
		return nil, err
	}
	accessor, err := s.store.TableAccessor(table)
	if err != nil {
		return nil, err
	}
	form, err := s.form(ctx, accessor)
	if err != nil {
		return nil, err
	}
	if len(pi.Parameters) > 0 {
		obj, err := s.Read(ctx, pi)
		if err != nil {
			return nil, err
		}
		form.ReadFromObject(obj)
	}
	return form, nil
}

// Create validates values and saves them as a new row. On ErrValidation
// the returned form carries the field errors.
func (s *CrudService) Create(ctx context.Context, pi *pages.PageInstance, values map[string]string) (*forms.Form, persistence.Object, error) {
	table, err := crudTable(pi)
	if err != nil {
		return nil, nil, err
	}
	accessor, err := s.store.TableAccessor(table)
	if err != nil {
		return nil, nil, err
	}
	form, err := s.form(ctx, accessor)
	if err != nil {
		return nil, nil, err
	}

	form.ReadFromRequest(values)
	if !form.Validate() {
		return form, nil, ErrValidation
	}

	obj := persistence.Object{}
	if err := form.WriteToObject(obj, accessor); err != nil {
		return form, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.store.SaveObject(ctx, table, obj); err != nil {
		return form, nil, err
	}
	if err := s.commit(ctx); err != nil {
		return form, nil, err
	}
	s.lggr.Debugw("Object created", "table", table)
	return form, obj, nil
}

// Update applies values to the row named by the parameters. Key values
// cannot change.
func (s *CrudService) Update(ctx context.Context, pi *pages.PageInstance, values map[string]string) (*forms.Form, persistence.Object, error) {
	table, accessor, pk, err := s.keyOf(pi)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.store.GetObjectByPK(ctx, table, pk)
	if err != nil {
		return nil, nil, err
	}
	form, err := s.form(ctx, accessor)
	if err != nil {
		return nil, nil, err
	}

	// Properties missing from values keep their stored value.
	form.ReadFromObject(obj)
	merged := form.Values()
	for k, v := range values {
		merged[k] = v
	}
	form.ReadFromRequest(merged)
	if !form.Validate() {
		return form, nil, ErrValidation
	}

	if err := form.WriteToObject(obj, accessor); err != nil {
		return form, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for k, v := range pk {
		obj[k] = v
	}
	if err := s.store.UpdateObject(ctx, table, obj); err != nil {
		return form, nil, err
	}
	if err := s.commit(ctx); err != nil {
		return form, nil, err
	}
	return form, obj, nil
}

func (s *CrudService) Delete(ctx context.Context, pi *pages.PageInstance) error {
	table, _, pk, err := s.keyOf(pi)
	if err != nil {
		return err
	}
	if err := s.store.DeleteObject(ctx, table, pk); err != nil {
		return err
	}
	return s.commit(ctx)
}

func (s *CrudService) form(ctx context.Context, accessor *persistence.TableAccessor) (*forms.Form, error) {
	return forms.NewTableBuilder(accessor).
		ConfigForeignKeyProviders(accessor.Table(), s.store).
		Build(ctx)
}

// keyOf converts the page parameters into the key of a row, one parameter
// per key property in key order.
func (s *CrudService) keyOf(pi *pages.PageInstance) (string, *persistence.TableAccessor, persistence.Object, error) {
	table, err := crudTable(pi)
	if err != nil {
		return "", nil, nil, err
	}
	accessor, err := s.store.TableAccessor(table)
	if err != nil {
		return "", nil, nil, err
	}

	keys := accessor.KeyProperties()
	if len(keys) == 0 || len(keys) != len(pi.Parameters) {
		return "", nil, nil, fmt.Errorf("%w: %s", pages.ErrPageNotFound, pi.Path())
	}

	pk := persistence.Object{}
	for i, col := range keys {
		prop := col.ActualPropertyName()
		v, err := accessor.Convert(prop, pi.Parameters[i])
		if err != nil {
			return "", nil, nil, fmt.Errorf("%w: %s", pages.ErrPageNotFound, pi.Path())
		}
		pk[prop] = v
	}
	return table, accessor, pk, nil
}
