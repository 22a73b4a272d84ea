// Package criteria builds filter predicates over a model table and
// translates them into entity query fragments.
package criteria

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCriterion = errors.New("unknown criterion")
	ErrUnknownMatchMode = errors.New("unknown text match mode")
	ErrNoTable          = errors.New("criteria has no table")
)

const whereKeyword = " WHERE "

// Table is the view of a model table a Criteria is bound to.
type Table interface {
	QualifiedName() string
	HasProperty(name string) bool
}

// Criterion is a single predicate on one property.
type Criterion interface {
	Property() string
}

type EqCriterion struct {
	Name  string
	Value any
}

type NeCriterion struct {
	Name  string
	Value any
}

type BetweenCriterion struct {
	Name     string
	Min, Max any
}

type GtCriterion struct {
	Name  string
	Value any
}

type GeCriterion struct {
	Name  string
	Value any
}

type LtCriterion struct {
	Name  string
	Value any
}

type LeCriterion struct {
	Name  string
	Value any
}

type LikeCriterion struct {
	Name  string
	Value string
	Mode  TextMatchMode
}

type IlikeCriterion struct {
	Name  string
	Value string
	Mode  TextMatchMode
}

type IsNullCriterion struct {
	Name string
}

type IsNotNullCriterion struct {
	Name string
}

func (c EqCriterion) Property() string        { return c.Name }
func (c NeCriterion) Property() string        { return c.Name }
func (c BetweenCriterion) Property() string   { return c.Name }
func (c GtCriterion) Property() string        { return c.Name }
func (c GeCriterion) Property() string        { return c.Name }
func (c LtCriterion) Property() string        { return c.Name }
func (c LeCriterion) Property() string        { return c.Name }
func (c LikeCriterion) Property() string      { return c.Name }
func (c IlikeCriterion) Property() string     { return c.Name }
func (c IsNullCriterion) Property() string    { return c.Name }
func (c IsNotNullCriterion) Property() string { return c.Name }

// Criteria is an ordered conjunction of criteria on a single table.
type Criteria struct {
	table Table
	items []Criterion
}

func New(table Table) *Criteria {
	return &Criteria{table: table}
}

func (c *Criteria) Table() Table { return c.table }

func (c *Criteria) Items() []Criterion { return c.items }

func (c *Criteria) Len() int { return len(c.items) }

func (c *Criteria) Add(criterion Criterion) *Criteria {
	c.items = append(c.items, criterion)
	return c
}

func (c *Criteria) Eq(property string, value any) *Criteria {
	return c.Add(EqCriterion{Name: property, Value: value})
}

func (c *Criteria) Ne(property string, value any) *Criteria {
	return c.Add(NeCriterion{Name: property, Value: value})
}

func (c *Criteria) Between(property string, lo, hi any) *Criteria {
	return c.Add(BetweenCriterion{Name: property, Min: lo, Max: hi})
}

func (c *Criteria) Gt(property string, value any) *Criteria {
	return c.Add(GtCriterion{Name: property, Value: value})
}

func (c *Criteria) Ge(property string, value any) *Criteria {
	return c.Add(GeCriterion{Name: property, Value: value})
}

func (c *Criteria) Lt(property string, value any) *Criteria {
	return c.Add(LtCriterion{Name: property, Value: value})
}

func (c *Criteria) Le(property string, value any) *Criteria {
	return c.Add(LeCriterion{Name: property, Value: value})
}

func (c *Criteria) Like(property, value string, mode TextMatchMode) *Criteria {
	return c.Add(LikeCriterion{Name: property, Value: value, Mode: mode})
}

func (c *Criteria) Ilike(property, value string, mode TextMatchMode) *Criteria {
	return c.Add(IlikeCriterion{Name: property, Value: value, Mode: mode})
}

func (c *Criteria) IsNull(property string) *Criteria {
	return c.Add(IsNullCriterion{Name: property})
}

func (c *Criteria) IsNotNull(property string) *Criteria {
	return c.Add(IsNotNullCriterion{Name: property})
}

// Query is an entity query string with its positional parameters.
type Query struct {
	Text   string
	Params []any
}

// QueryString renders the criteria as "FROM <table> [WHERE <clause>]".
// A nil Criteria renders as an empty query; one without a table cannot be
// rendered.
func (c *Criteria) QueryString() (Query, error) {
	if c == nil {
		return Query{}, nil
	}
	if c.table == nil {
		return Query{}, ErrNoTable
	}

	clause, params, err := c.WhereClause()
	if err != nil {
		return Query{}, err
	}

	text := "FROM " + c.table.QualifiedName()
	if clause != "" {
		text += whereKeyword + clause
	}
	return Query{Text: text, Params: params}, nil
}

// WhereClause renders only the predicates, joined with AND.
func (c *Criteria) WhereClause() (string, []any, error) {
	if c == nil {
		return "", nil, nil
	}

	var (
		fragments []string
		params    []any
	)
	for _, item := range c.items {
		if c.table != nil && !c.table.HasProperty(item.Property()) {
			return "", nil, fmt.Errorf("property %q not found in %s", item.Property(), c.table.QualifiedName())
		}

		var format string
		switch cr := item.(type) {
		case EqCriterion:
			format = "%[1]s = ?"
			params = append(params, cr.Value)
		case NeCriterion:
			format = "%[1]s <> ?"
			params = append(params, cr.Value)
		case BetweenCriterion:
			format = "%[1]s >= ? AND %[1]s <= ?"
			params = append(params, cr.Min, cr.Max)
		case GtCriterion:
			format = "%[1]s > ?"
			params = append(params, cr.Value)
		case GeCriterion:
			format = "%[1]s >= ?"
			params = append(params, cr.Value)
		case LtCriterion:
			format = "%[1]s < ?"
			params = append(params, cr.Value)
		case LeCriterion:
			format = "%[1]s <= ?"
			params = append(params, cr.Value)
		case LikeCriterion:
			pattern, err := cr.Mode.Pattern(cr.Value)
			if err != nil {
				return "", nil, err
			}
			format = "%[1]s like ?"
			params = append(params, pattern)
		case IlikeCriterion:
			pattern, err := cr.Mode.Pattern(cr.Value)
			if err != nil {
				return "", nil, err
			}
			format = "lower(%[1]s) like lower(?)"
			params = append(params, pattern)
		case IsNullCriterion:
			format = "%[1]s is null"
		case IsNotNullCriterion:
			format = "%[1]s is not null"
		default:
			return "", nil, fmt.Errorf("%w: %T", ErrUnknownCriterion, item)
		}
		fragments = append(fragments, fmt.Sprintf(format, item.Property()))
	}
	return strings.Join(fragments, " AND "), params, nil
}

// MergeWhere appends the criteria predicates to a base entity query. The
// base parameters come first. Predicates are placed before a trailing
// ORDER BY so the merged query stays valid.
func MergeWhere(base Query, c *Criteria) (Query, error) {
	clause, params, err := c.WhereClause()
	if err != nil {
		return Query{}, err
	}

	merged := Query{Text: base.Text, Params: append(append([]any{}, base.Params...), params...)}
	if clause == "" {
		return merged, nil
	}

	head, tail := base.Text, ""
	if i := strings.LastIndex(strings.ToUpper(head), " ORDER BY "); i >= 0 {
		head, tail = head[:i], head[i:]
	}

	if strings.Contains(strings.ToUpper(head), whereKeyword) {
		merged.Text = head + " AND " + clause + tail
	} else {
		merged.Text = head + whereKeyword + clause + tail
	}
	return merged, nil
}
