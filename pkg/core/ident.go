package core

import (
	"strings"
	"unicode"
)

const quoteChars = "[]'\"`"

// IsQuoteChar reports whether c opens a quoted identifier
func IsQuoteChar(c byte) bool {
	return c == '"' || c == '\'' || c == '[' || c == '`'
}

// NeedsQuoting reports whether a bare name must be quoted before it is
// spliced into SQL: it starts with a digit or contains a hyphen. Names that
// already start with a quote character are assumed to be quoted.
func NeedsQuoting(name string) bool {
	if name == "" {
		return false
	}
	first := name[0]
	if IsQuoteChar(first) {
		return false
	}
	return (first >= '0' && first <= '9') || strings.Contains(name, "-")
}

// Dequote trims quote characters from both ends of name
func Dequote(name string) string {
	return strings.Trim(name, quoteChars)
}

// QuoteIdentifier returns name as a double-quoted SQL identifier. Existing
// quoting is removed first and embedded double quotes are doubled, so the
// result is always safe to splice into a statement.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(Dequote(name), `"`, `""`) + `"`
}

// IndexTableName returns the quoted conventional name of the spatial index
// for a table's geometry field: "idx_<table>_<field>".
func IndexTableName(table, field string) string {
	return QuoteIdentifier("idx_" + Dequote(table) + "_" + Dequote(field))
}

// IndexPathFor returns the default index database path for a source database
func IndexPathFor(path string) string {
	return path + ".index"
}

// IsSubquery reports whether table is a SELECT statement rather than a name
func IsSubquery(table string) bool {
	t := strings.TrimSpace(table)
	if strings.HasPrefix(t, "(") {
		return true
	}
	return hasKeyword(t, "select") || hasKeyword(t, "with")
}

// hasKeyword reports whether s starts with the SQL keyword kw followed by
// whitespace or an opening parenthesis.
func hasKeyword(s, kw string) bool {
	if len(s) <= len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
		return false
	}
	next := rune(s[len(kw)])
	return next == '(' || unicode.IsSpace(next)
}

// sourceExpr renders table for a FROM clause: subqueries are parenthesized,
// names are quoted.
func sourceExpr(table string) string {
	t := strings.TrimSpace(table)
	switch {
	case strings.HasPrefix(t, "("):
		return t
	case IsSubquery(t):
		return "(" + t + ")"
	default:
		return QuoteIdentifier(t)
	}
}

// TableFromSQL extracts the table named by the last FROM clause of a query.
// Plain table names are returned unchanged.
func TableFromSQL(query string) string {
	flat := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, query)

	idx := strings.LastIndex(asciiLower(flat), " from ")
	if idx < 0 {
		return strings.TrimSpace(flat)
	}

	rest := strings.TrimLeft(flat[idx+len(" from "):], " (")
	if rest != "" && IsQuoteChar(rest[0]) {
		closing := rest[0]
		if closing == '[' {
			closing = ']'
		}
		if end := strings.IndexByte(rest[1:], closing); end >= 0 {
			return rest[:end+2]
		}
	}
	if end := strings.IndexAny(rest, " ),;"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// asciiLower lowercases ASCII letters only, keeping byte offsets stable
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
