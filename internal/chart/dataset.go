package chart

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"dataportal/internal/forms"
	"dataportal/internal/persistence"
)

// Runner executes the native query behind a chart.
type Runner interface {
	RunSQL(ctx context.Context, databaseName, query string) (*persistence.SQLResult, error)
}

// Slice is one value of a 1D dataset.
type Slice struct {
	Key   string
	Value float64
	Label string
}

// Dataset1D is built from rows of (key, value[, label]).
type Dataset1D struct {
	Slices []Slice
}

// Dataset2D is built from rows of (series, category, value). Series and
// categories keep the order in which they first appear.
type Dataset2D struct {
	Series     []string
	Categories []string
	// Values[s][c] is the value of series s at category c.
	Values [][]float64
}

func Load1D(result *persistence.SQLResult) (*Dataset1D, error) {
	ds := &Dataset1D{}
	for i, row := range result.Rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected (key, value[, label]), got %d columns", i+1, len(row))
		}
		v, err := toFloat(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		key := forms.FormatValue(row[0])
		label := key
		if len(row) > 2 && row[2] != nil {
			label = forms.FormatValue(row[2])
		}
		ds.Slices = append(ds.Slices, Slice{Key: key, Value: v, Label: label})
	}
	return ds, nil
}

func Load2D(result *persistence.SQLResult) (*Dataset2D, error) {
	ds := &Dataset2D{}
	seriesIdx := map[string]int{}
	categoryIdx := map[string]int{}

	type cell struct {
		s, c int
		v    float64
	}
	var cells []cell

	for i, row := range result.Rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: expected (series, category, value), got %d columns", i+1, len(row))
		}
		v, err := toFloat(row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		s := forms.FormatValue(row[0])
		c := forms.FormatValue(row[1])
		si, ok := seriesIdx[s]
		if !ok {
			si = len(ds.Series)
			seriesIdx[s] = si
			ds.Series = append(ds.Series, s)
		}
		ci, ok := categoryIdx[c]
		if !ok {
			ci = len(ds.Categories)
			categoryIdx[c] = ci
			ds.Categories = append(ds.Categories, c)
		}
		cells = append(cells, cell{s: si, c: ci, v: v})
	}

	ds.Values = make([][]float64, len(ds.Series))
	for s := range ds.Values {
		ds.Values[s] = make([]float64, len(ds.Categories))
	}
	for _, c := range cells {
		ds.Values[c.s][c.c] += c.v
	}
	return ds, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	case decimal.Decimal:
		return t.InexactFloat64(), nil
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric", s)
	}
	return f, nil
}
