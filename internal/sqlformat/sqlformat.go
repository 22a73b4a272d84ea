// Package sqlformat handles query strings carrying %{path} expressions that
// are resolved against a root object when the query runs.
package sqlformat

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

var ErrUnresolved = errors.New("expression cannot be resolved")

var expressionPattern = regexp.MustCompile(`%\{([^}]*)\}`)

// Format is a parsed query: Text has one "?" per expression.
type Format struct {
	Text        string
	Expressions []string
}

func Parse(query string) *Format {
	f := &Format{}
	f.Text = expressionPattern.ReplaceAllStringFunc(query, func(m string) string {
		expr := strings.TrimSpace(expressionPattern.FindStringSubmatch(m)[1])
		f.Expressions = append(f.Expressions, expr)
		return "?"
	})
	return f
}

// Evaluate resolves every expression against root, in order. With a nil
// root every parameter is nil.
func (f *Format) Evaluate(root any) ([]any, error) {
	params := make([]any, len(f.Expressions))
	if root == nil {
		return params, nil
	}
	for i, expr := range f.Expressions {
		v, err := Resolve(root, expr)
		if err != nil {
			return nil, err
		}
		params[i] = v
	}
	return params, nil
}

// Resolve walks a dotted path through maps, structs and pointers. Struct
// fields match by name or by their db or json tag.
func Resolve(root any, path string) (any, error) {
	current := reflect.ValueOf(root)
	if path == "" {
		return root, nil
	}

	for _, segment := range strings.Split(path, ".") {
		for current.IsValid() && (current.Kind() == reflect.Pointer || current.Kind() == reflect.Interface) {
			if current.IsNil() {
				return nil, nil
			}
			current = current.Elem()
		}
		if !current.IsValid() {
			return nil, nil
		}

		switch current.Kind() {
		case reflect.Map:
			if current.Type().Key().Kind() != reflect.String {
				return nil, fmt.Errorf("%w: %q has non-string map keys", ErrUnresolved, path)
			}
			v := current.MapIndex(reflect.ValueOf(segment).Convert(current.Type().Key()))
			if !v.IsValid() {
				return nil, nil
			}
			current = v
		case reflect.Struct:
			field, ok := structField(current, segment)
			if !ok {
				return nil, fmt.Errorf("%w: no field %q in %s", ErrUnresolved, segment, current.Type())
			}
			current = field
		default:
			return nil, fmt.Errorf("%w: cannot select %q from %s", ErrUnresolved, segment, current.Kind())
		}
	}

	if !current.IsValid() || !current.CanInterface() {
		return nil, nil
	}
	return current.Interface(), nil
}

func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if strings.EqualFold(sf.Name, name) || tagName(sf, "db") == name || tagName(sf, "json") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(sf reflect.StructField, key string) string {
	tag, ok := sf.Tag.Lookup(key)
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}
