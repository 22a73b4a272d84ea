package forms

import (
	"context"
	"fmt"
	"strings"

	"dataportal/internal/models"
	"dataportal/internal/persistence"
)

// Descriptor describes one field of a configuration form.
type Descriptor struct {
	Name      string
	Label     string
	Type      FieldType
	Required  bool
	MaxLength int
}

// Builder assembles a Form. Fields come from a table accessor or from
// descriptors; ConfigFields picks and orders them.
type Builder struct {
	available map[string]*Field
	order     []string
	groups    [][]string
	setNames  []string
	providers map[string]SelectionProvider
}

func newBuilder() *Builder {
	return &Builder{
		available: make(map[string]*Field),
		providers: make(map[string]SelectionProvider),
	}
}

func (b *Builder) add(field *Field) {
	if _, ok := b.available[field.Name]; !ok {
		b.order = append(b.order, field.Name)
	}
	b.available[field.Name] = field
}

// NewTableBuilder offers one field per table property. Auto increment
// columns are read only.
func NewTableBuilder(accessor *persistence.TableAccessor) *Builder {
	b := newBuilder()
	for _, col := range accessor.Properties() {
		b.add(fieldForColumn(col))
	}
	return b
}

func NewDescriptorBuilder(descriptors []Descriptor) *Builder {
	b := newBuilder()
	for _, d := range descriptors {
		label := d.Label
		if label == "" {
			label = humanize(d.Name)
		}
		t := d.Type
		if t == "" {
			t = TypeText
		}
		b.add(&Field{Name: d.Name, Label: label, Type: t, Required: d.Required, MaxLength: d.MaxLength})
	}
	return b
}

func fieldForColumn(col *models.Column) *Field {
	f := &Field{
		Name:     col.ActualPropertyName(),
		Label:    humanize(col.ActualPropertyName()),
		Required: !col.Nullable && !col.AutoIncrement,
		ReadOnly: col.AutoIncrement,
	}
	switch col.Kind() {
	case models.KindInteger:
		f.Type = TypeInteger
	case models.KindDecimal:
		f.Type = TypeDecimal
	case models.KindBoolean:
		f.Type = TypeBoolean
		f.Required = false
	case models.KindDate:
		f.Type = TypeDate
	case models.KindTimestamp:
		f.Type = TypeTimestamp
	default:
		f.Type = TypeText
		if strings.Contains(strings.ToLower(col.ColumnType), "text") {
			f.Type = TypeTextArea
		}
		f.MaxLength = col.Length
	}
	return f
}

// ConfigFields adds a field set made of the named fields, in order. Without
// any call every available field goes in a single set.
func (b *Builder) ConfigFields(names ...string) *Builder {
	b.groups = append(b.groups, names)
	return b
}

func (b *Builder) ConfigFieldSetNames(names ...string) *Builder {
	b.setNames = names
	return b
}

// ConfigSelectionProvider turns field into a select fed by provider.
func (b *Builder) ConfigSelectionProvider(provider SelectionProvider, field string) *Builder {
	b.providers[field] = provider
	return b
}

// ConfigForeignKeyProviders attaches a selection provider to every
// single-column foreign key of table.
func (b *Builder) ConfigForeignKeyProviders(table *models.Table, loader ObjectLoader) *Builder {
	for _, fk := range table.ForeignKeys {
		if len(fk.References) != 1 || fk.References[0].ActualFromColumn() == nil || fk.ActualToTable() == nil {
			continue
		}
		b.providers[fk.References[0].ActualFromColumn().ActualPropertyName()] = NewForeignKeySelectionProvider(fk, loader)
	}
	return b
}

// Build resolves selection options and returns the form.
func (b *Builder) Build(ctx context.Context) (*Form, error) {
	groups := b.groups
	if len(groups) == 0 {
		groups = [][]string{b.order}
	}

	form := &Form{}
	for i, names := range groups {
		fs := &FieldSet{}
		if i < len(b.setNames) {
			fs.Name = b.setNames[i]
		}
		for _, name := range names {
			proto, ok := b.available[name]
			if !ok {
				return nil, fmt.Errorf("unknown field %q", name)
			}
			field := *proto
			if provider, ok := b.providers[name]; ok {
				options, err := provider.Options(ctx)
				if err != nil {
					return nil, fmt.Errorf("options of %s: %w", name, err)
				}
				field.Type = TypeSelect
				field.Options = options
			}
			fs.Fields = append(fs.Fields, &field)
		}
		form.FieldSets = append(form.FieldSets, fs)
	}
	return form, nil
}

// humanize turns "customer_id" or "urlExpression" into "Customer id" and
// "Url expression".
func humanize(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r == '_':
			sb.WriteByte(' ')
		case r >= 'A' && r <= 'Z' && i > 0:
			sb.WriteByte(' ')
			sb.WriteRune(r + ('a' - 'A'))
		case i == 0 && r >= 'a' && r <= 'z':
			sb.WriteRune(r - ('a' - 'A'))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
