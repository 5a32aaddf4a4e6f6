package logging

import "regexp"

const (
	// MaxQueryLogLength is the maximum length of a SQL query to log.
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Matches bearer credentials in header dumps or error text.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)

	// Matches userinfo credentials in postgres:// style URIs
	// (the Neon-Connection-String carries the API key this way).
	uriCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// Matches api_key=... style parameters with long values.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|access[_-]?token)=[A-Za-z0-9._~+/-]{12,}`)

	// Matches password=... in key-value connection strings, which show
	// up in pgconn parse errors.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
)

// Redact removes credentials from a string before it is logged.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	out := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	out = uriCredsPattern.ReplaceAllString(out, "://"+RedactedText+"@")
	out = apiKeyPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = passwordPattern.ReplaceAllString(out, "${1}="+RedactedText)
	return out
}

// RedactURI removes the userinfo section of a connection URI, keeping
// host and database visible for diagnostics.
func RedactURI(uri string) string {
	if uri == "" {
		return ""
	}
	return uriCredsPattern.ReplaceAllString(uri, "://"+RedactedText+"@")
}

// SanitizeError redacts credentials from an error's message. HTTP
// client errors embed the full request URL, which can carry secrets.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}

// TruncateQuery shortens a SQL query for logging.
func TruncateQuery(query string) string {
	if len(query) <= MaxQueryLogLength {
		return query
	}
	return query[:MaxQueryLogLength] + "..."
}
