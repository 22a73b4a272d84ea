package persistence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dataportal/internal/models"
)

// Object is a table row keyed by property name.
type Object map[string]any

// TableAccessor exposes a model table as a set of typed properties.
type TableAccessor struct {
	table *models.Table
}

func NewTableAccessor(table *models.Table) *TableAccessor {
	return &TableAccessor{table: table}
}

func (a *TableAccessor) Table() *models.Table { return a.table }

func (a *TableAccessor) QualifiedName() string { return a.table.QualifiedName() }

func (a *TableAccessor) HasProperty(name string) bool {
	return a.table.FindColumnByPropertyName(name) != nil
}

func (a *TableAccessor) Property(name string) *models.Column {
	return a.table.FindColumnByPropertyName(name)
}

func (a *TableAccessor) Properties() []*models.Column { return a.table.Columns }

func (a *TableAccessor) KeyProperties() []*models.Column { return a.table.KeyColumns() }

// KeyOf extracts the primary key properties of obj.
func (a *TableAccessor) KeyOf(obj Object) (Object, error) {
	keys := a.KeyProperties()
	if len(keys) == 0 {
		return nil, fmt.Errorf("table %s has no primary key", a.QualifiedName())
	}
	pk := make(Object, len(keys))
	for _, col := range keys {
		prop := col.ActualPropertyName()
		v, ok := obj[prop]
		if !ok || v == nil {
			return nil, fmt.Errorf("missing key property %q for %s", prop, a.QualifiedName())
		}
		pk[prop] = v
	}
	return pk, nil
}

// FromRow turns a row keyed by column name into an Object.
func (a *TableAccessor) FromRow(row map[string]any) Object {
	obj := make(Object, len(row))
	for name, v := range row {
		col := a.table.FindColumnByName(name)
		if col == nil {
			obj[name] = v
			continue
		}
		obj[col.ActualPropertyName()] = normalize(col, v)
	}
	return obj
}

// Convert parses a submitted string into the Go value of the property's
// column type. Empty input is nil for every non-string property.
func (a *TableAccessor) Convert(property, raw string) (any, error) {
	col := a.Property(property)
	if col == nil {
		return nil, fmt.Errorf("property %q not found in %s", property, a.QualifiedName())
	}
	return ConvertValue(col, raw)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ConvertValue(col *models.Column, raw string) (any, error) {
	kind := col.Kind()
	if kind == models.KindString {
		return raw, nil
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	switch kind {
	case models.KindInteger:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", col.Name, raw)
		}
		return v, nil
	case models.KindDecimal:
		if col.IsExactDecimal() {
			v, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a number", col.Name, raw)
			}
			return v, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", col.Name, raw)
		}
		return v, nil
	case models.KindBoolean:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean", col.Name, raw)
		}
		return v, nil
	case models.KindDate:
		v, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a date", col.Name, raw)
		}
		return v, nil
	case models.KindTimestamp:
		for _, layout := range timestampLayouts {
			if v, err := time.Parse(layout, s); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%s: %q is not a timestamp", col.Name, raw)
	case models.KindBinary:
		return []byte(raw), nil
	}
	return raw, nil
}

// normalize evens out what different drivers return for the same type:
// text encoded numbers and booleans become Go values. Numeric and decimal
// columns become decimal.Decimal so no digits are lost.
func normalize(col *models.Column, v any) any {
	if f, ok := v.(float64); ok && col.IsExactDecimal() {
		return decimal.NewFromFloat(f)
	}

	var s string
	switch t := v.(type) {
	case []byte:
		if col.Kind() == models.KindBinary {
			return t
		}
		s = string(t)
	case string:
		s = t
	default:
		return v
	}

	switch col.Kind() {
	case models.KindInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case models.KindDecimal:
		if col.IsExactDecimal() {
			if d, err := decimal.NewFromString(s); err == nil {
				return d
			}
			break
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case models.KindBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}
