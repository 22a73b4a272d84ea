package persistence

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"dataportal/internal/database"
	"dataportal/internal/models"
)

var fromPattern = regexp.MustCompile(`(?s)^[fF][rR][oO][mM]\s+(\S+\.\S+\.\S+)`)

// QualifiedTableNameFromQuery returns the table named by the leading
// "FROM db.schema.table" of an entity query, or "" when there is none.
func QualifiedTableNameFromQuery(query string) string {
	m := fromPattern.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return ""
	}
	return m[1]
}

// Words that are never rewritten as properties.
var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "like": true, "is": true, "null": true,
	"in": true, "between": true, "order": true, "by": true, "asc": true, "desc": true,
	"where": true, "lower": true, "upper": true, "true": true, "false": true,
}

// translate turns an entity query on table into platform SQL selecting
// every column. The query must start with "FROM db.schema.table"; an empty
// query selects the whole table.
func translate(p database.Platform, table *models.Table, query string) (string, error) {
	rest := ""
	if q := strings.TrimSpace(query); q != "" {
		loc := fromPattern.FindStringIndex(q)
		if loc == nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidQuery, query)
		}
		rest = q[loc[1]:]
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList(p, table))
	sb.WriteString(" FROM ")
	sb.WriteString(p.QualifiedTable(table.SchemaName(), table.Name))
	sb.WriteString(rewriteProperties(p, table, rest))
	return database.Rebind(p, sb.String()), nil
}

func selectList(p database.Platform, table *models.Table) string {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = p.Quote(col.Name)
	}
	return strings.Join(cols, ", ")
}

// rewriteProperties replaces bare property names with quoted column names.
// String literals and quoted identifiers are copied untouched.
func rewriteProperties(p database.Platform, table *models.Table, s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			j := i + 1
			for j < len(runes) {
				if runes[j] == r {
					if j+1 < len(runes) && runes[j+1] == r {
						j += 2
						continue
					}
					break
				}
				j++
			}
			end := min(j+1, len(runes))
			sb.WriteString(string(runes[i:end]))
			i = end
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			col := table.FindColumnByPropertyName(word)
			if col != nil && !keywords[strings.ToLower(word)] && !followedByParen(runes, j) {
				sb.WriteString(p.Quote(col.Name))
			} else {
				sb.WriteString(word)
			}
			i = j
		default:
			sb.WriteRune(r)
			i++
		}
	}
	return sb.String()
}

func followedByParen(runes []rune, i int) bool {
	for ; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			return runes[i] == '('
		}
	}
	return false
}
