// Package forms builds editable forms over model tables and configuration
// descriptors, reads and validates submitted values and writes them back.
package forms

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type FieldType string

const (
	TypeText      FieldType = "text"
	TypeTextArea  FieldType = "textarea"
	TypeInteger   FieldType = "integer"
	TypeDecimal   FieldType = "decimal"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeTimestamp FieldType = "timestamp"
	TypeSelect    FieldType = "select"
)

const dateLayout = "2006-01-02"

type Field struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	ReadOnly  bool      `json:"read_only,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
	Options   []Option  `json:"options,omitempty"`
	Value     string    `json:"value"`
	Errors    []string  `json:"errors,omitempty"`
}

type FieldSet struct {
	Name   string   `json:"name,omitempty"`
	Fields []*Field `json:"fields"`
}

type Form struct {
	FieldSets []*FieldSet `json:"field_sets"`
}

// Fields returns every field in field set order.
func (f *Form) Fields() []*Field {
	var fields []*Field
	for _, fs := range f.FieldSets {
		fields = append(fields, fs.Fields...)
	}
	return fields
}

func (f *Form) FindFieldByPropertyName(name string) *Field {
	for _, field := range f.Fields() {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// ReadFromObject loads field values from a row or configuration map.
// Properties missing from obj leave the field empty.
func (f *Form) ReadFromObject(obj map[string]any) {
	for _, field := range f.Fields() {
		v, ok := obj[field.Name]
		if !ok {
			field.Value = ""
			continue
		}
		field.Value = formatFieldValue(field, v)
	}
}

// ReadFromRequest loads submitted values. Read-only fields are ignored and
// absent checkboxes read as false.
func (f *Form) ReadFromRequest(values map[string]string) {
	for _, field := range f.Fields() {
		field.Errors = nil
		if field.ReadOnly {
			continue
		}
		v, ok := values[field.Name]
		if !ok && field.Type == TypeBoolean {
			v = "false"
		}
		field.Value = v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil
	})
	_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := parseTimestamp(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every editable field and records messages on the fields.
// It reports whether the form is valid.
func (f *Form) Validate() bool {
	valid := true
	for _, field := range f.Fields() {
		field.Errors = nil
		if field.ReadOnly {
			continue
		}
		if err := validate.Var(field.Value, field.tag()); err != nil {
			field.Errors = append(field.Errors, messages(err)...)
		}
		if field.Type == TypeSelect && field.Value != "" && !field.hasActiveOption(field.Value) {
			field.Errors = append(field.Errors, "invalid option")
		}
		if len(field.Errors) > 0 {
			valid = false
		}
	}
	return valid
}

// tag renders the validator rules for the field's current settings.
func (field *Field) tag() string {
	tag := "omitempty"
	if field.Required {
		tag = "required"
	}
	if field.MaxLength > 0 {
		tag += fmt.Sprintf(",max=%d", field.MaxLength)
	}
	switch field.Type {
	case TypeInteger:
		tag += ",integer"
	case TypeDecimal:
		tag += ",numeric"
	case TypeBoolean:
		tag += ",boolean"
	case TypeDate:
		tag += ",datetime=" + dateLayout
	case TypeTimestamp:
		tag += ",timestamp"
	}
	return tag
}

func (field *Field) hasActiveOption(value string) bool {
	for _, o := range field.Options {
		if o.Value == value && o.Active {
			return true
		}
	}
	return false
}

func messages(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out = append(out, "required")
		case "max":
			out = append(out, "too long, maximum "+fe.Param()+" characters")
		case "integer":
			out = append(out, "not an integer")
		case "numeric":
			out = append(out, "not a number")
		case "boolean":
			out = append(out, "not a boolean")
		case "datetime":
			out = append(out, "not a date")
		case "timestamp":
			out = append(out, "not a timestamp")
		default:
			out = append(out, "invalid")
		}
	}
	return out
}

// Converter turns a submitted string into the typed value of a property.
type Converter interface {
	Convert(property, raw string) (any, error)
}

// WriteToObject stores the field values into obj. With a nil converter the
// raw strings are written. Read-only fields are skipped.
func (f *Form) WriteToObject(obj map[string]any, conv Converter) error {
	for _, field := range f.Fields() {
		if field.ReadOnly {
			continue
		}
		if conv == nil {
			obj[field.Name] = field.Value
			continue
		}
		v, err := conv.Convert(field.Name, field.Value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		obj[field.Name] = v
	}
	return nil
}

// Values returns the field values by name.
func (f *Form) Values() map[string]string {
	out := make(map[string]string)
	for _, field := range f.Fields() {
		out[field.Name] = field.Value
	}
	return out
}

func formatFieldValue(field *Field, v any) string {
	if t, ok := v.(time.Time); ok && field.Type == TypeDate {
		return t.Format(dateLayout)
	}
	return FormatValue(v)
}

// FormatValue renders a property value the way forms display it.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04", dateLayout}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
