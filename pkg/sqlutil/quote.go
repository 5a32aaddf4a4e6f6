// Package sqlutil provides the small amount of SQL string handling the
// daemon needs when composing catalog queries.
package sqlutil

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// QuoteLiteral doubles embedded single quotes so a value can be
// interpolated into a SQL string literal.
//
// Example:
//
//	QuoteLiteral("O'Brien") == "O''Brien"
//
// This is literal escaping only. Callers interpolating identifiers are
// responsible for their hygiene; pair this with CheckLiteral to log
// suspicious values.
func QuoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// CheckLiteral runs an advisory SQL injection scan over a value about
// to be interpolated. It returns whether the value looks like an
// injection attempt and the libinjection fingerprint of the match. The
// result is for logging; the daemon never blocks on it.
func CheckLiteral(value string) (bool, string) {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	return isSQLi, string(fingerprint)
}
