package common

import "strings"

// QuoteIdent double-quotes a SQL identifier (table/column/alias name),
// escaping embedded double quotes, so generated DDL and dynamically
// qualified columns survive reserved words and mixed-case names.
func QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a SQL string literal, escaping embedded single
// quotes.
func QuoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
