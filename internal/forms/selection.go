package forms

import (
	"context"
	"fmt"
	"sort"

	"dataportal/internal/models"
	"dataportal/internal/persistence"
)

// Option is one choice of a select field.
type Option struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// SelectionProvider supplies the options of a select field.
type SelectionProvider interface {
	Name() string
	Options(ctx context.Context) ([]Option, error)
}

// DefaultSelectionProvider is a fixed list of rows.
type DefaultSelectionProvider struct {
	name string
	rows []Option
}

func NewDefaultSelectionProvider(name string) *DefaultSelectionProvider {
	return &DefaultSelectionProvider{name: name}
}

func (p *DefaultSelectionProvider) Name() string { return p.name }

// AppendRow adds an option. Inactive rows are shown but cannot be chosen.
func (p *DefaultSelectionProvider) AppendRow(value, label string, active bool) {
	p.rows = append(p.rows, Option{Value: value, Label: label, Active: active})
}

func (p *DefaultSelectionProvider) Options(context.Context) ([]Option, error) {
	return append([]Option(nil), p.rows...), nil
}

// DatabaseSelectionProvider lists the databases of a model.
func DatabaseSelectionProvider(model *models.Model) *DefaultSelectionProvider {
	p := NewDefaultSelectionProvider("database")
	if model == nil {
		return p
	}
	for _, db := range model.Databases {
		p.AppendRow(db.Name, db.Name, true)
	}
	return p
}

// ObjectLoader is the part of the persistence store a foreign key provider
// reads from.
type ObjectLoader interface {
	GetAllObjects(ctx context.Context, qualifiedTableName string) ([]persistence.Object, error)
}

// ForeignKeySelectionProvider offers the rows of the table a single-column
// foreign key points at.
type ForeignKeySelectionProvider struct {
	fk     *models.ForeignKey
	loader ObjectLoader
}

func NewForeignKeySelectionProvider(fk *models.ForeignKey, loader ObjectLoader) *ForeignKeySelectionProvider {
	return &ForeignKeySelectionProvider{fk: fk, loader: loader}
}

func (p *ForeignKeySelectionProvider) Name() string { return p.fk.Name }

func (p *ForeignKeySelectionProvider) Options(ctx context.Context) ([]Option, error) {
	target := p.fk.ActualToTable()
	if target == nil || len(p.fk.References) != 1 || p.fk.References[0].ActualToColumn() == nil {
		return nil, fmt.Errorf("foreign key %s cannot provide options", p.fk.Name)
	}
	valueProp := p.fk.References[0].ActualToColumn().ActualPropertyName()
	labelProp := labelProperty(target, valueProp)

	objects, err := p.loader.GetAllObjects(ctx, target.QualifiedName())
	if err != nil {
		return nil, err
	}

	options := make([]Option, 0, len(objects))
	for _, obj := range objects {
		value := FormatValue(obj[valueProp])
		label := FormatValue(obj[labelProp])
		if label == "" {
			label = value
		}
		options = append(options, Option{Value: value, Label: label, Active: true})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Label < options[j].Label })
	return options, nil
}

// labelProperty picks the first non-key text column, falling back to the
// value itself.
func labelProperty(table *models.Table, valueProp string) string {
	for _, col := range table.Columns {
		if !table.IsKeyColumn(col.Name) && col.Kind() == models.KindString {
			return col.ActualPropertyName()
		}
	}
	return valueProp
}
