package models

import "strings"

type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInteger
	KindDecimal
	KindBoolean
	KindDate
	KindTimestamp
	KindBinary
)

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindBinary:
		return "binary"
	default:
		return "string"
	}
}

var integerTypes = map[string]bool{
	"int": true, "int2": true, "int4": true, "int8": true, "integer": true,
	"smallint": true, "bigint": true, "tinyint": true, "mediumint": true,
	"serial": true, "serial2": true, "serial4": true, "serial8": true,
	"smallserial": true, "bigserial": true,
}

// baseType strips the length or precision suffix and the MySQL "unsigned"
// and "zerofill" modifiers: "int(11) unsigned" becomes "int".
func baseType(t string) string {
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), " zerofill")
	t = strings.TrimSuffix(strings.TrimSpace(t), " unsigned")
	return strings.TrimSpace(t)
}

// Kind classifies the column's SQL type. Integer types are matched on the
// bare type name so that "interval" and "int4range" stay strings; the other
// buckets match by prefix so that both "varchar" and "character varying(50)"
// land in the same one.
func (c *Column) Kind() ColumnKind {
	t := strings.ToLower(strings.TrimSpace(c.ColumnType))
	base := baseType(t)

	switch {
	case t == "bool" || t == "boolean" || t == "bit" || t == "tinyint(1)":
		return KindBoolean
	case integerTypes[base]:
		return KindInteger
	case c.IsExactDecimal(), strings.HasPrefix(t, "real"),
		strings.HasPrefix(t, "double"), strings.HasPrefix(t, "float"), strings.HasPrefix(t, "money"):
		return KindDecimal
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"):
		return KindTimestamp
	case t == "date":
		return KindDate
	case t == "bytea", strings.HasSuffix(t, "blob"), strings.HasPrefix(t, "binary"), strings.HasPrefix(t, "varbinary"):
		return KindBinary
	default:
		return KindString
	}
}

// IsExactDecimal reports whether the column holds fixed-point values that
// must not go through float64.
func (c *Column) IsExactDecimal() bool {
	switch baseType(strings.ToLower(strings.TrimSpace(c.ColumnType))) {
	case "numeric", "decimal", "dec", "number":
		return true
	}
	return false
}
