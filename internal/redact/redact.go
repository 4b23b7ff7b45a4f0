// Package redact removes sensitive values from strings before they are logged
// or returned in error responses. It targets what the auth service handles:
// bearer and refresh tokens, passwords, signing secrets, connection strings
// and email addresses.
package redact

import (
	"regexp"
)

// Placeholders substituted for redacted values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order. Connection strings go first so their embedded passwords
// and hosts are replaced as a unit; JWTs go before the generic key rule so the
// whole token is removed rather than just its prefix.
var rules = []rule{
	{
		// postgres://user:pw@host, redis://:pw@host, rediss://...
		pattern:     regexp.MustCompile(`(?i)\b(postgres(?:ql)?|rediss?|mysql|mongodb(?:\+srv)?)://[^@\s]*@`),
		replacement: "${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		// key=value connection strings: password=secret
		pattern:     regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*=\s*[^\s&;]+`),
		replacement: "${1}=" + RedactedCredentialPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`),
		replacement: RedactedJWTPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`),
		replacement: "Bearer " + RedactedKeyPlaceholder,
	},
	{
		// JSON fields: "password":"...", "refresh_token": "..."
		pattern: regexp.MustCompile(
			`(?i)"((?:current_|new_)?password|(?:access_|refresh_)?token|[a-z_]*secret)"\s*:\s*"[^"]*"`),
		replacement: `"${1}":"` + RedactionPlaceholder + `"`,
	},
	{
		// key: value or key=value for secrets and tokens, including env vars
		// such as TASKHUB_AUTH_ACCESS_TOKEN_SECRET=...
		pattern: regexp.MustCompile(
			`(?i)\b([a-z_]*(?:secret|api[_-]?key|token|password))(\s*[:=]\s*)['"]?[^'"\s,;&\[]{3,}['"]?`),
		replacement: "${1}${2}" + RedactedKeyPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		replacement: RedactedEmailPlaceholder,
	},
	{
		pattern: regexp.MustCompile(
			`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[\s\S]*?\b(FROM|INTO|SET|WHERE)\b[^\n]*`),
		replacement: RedactedSQLPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		replacement: RedactedStackPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(^|\s)(?:/[\w.-]+){2,}`),
		replacement: "${1}" + RedactedPathPlaceholder,
	},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// Token returns a short, non-reversible label for a token so log lines can be
// correlated without exposing the token itself.
func Token(token string) string {
	const visible = 6
	if len(token) <= visible*2 {
		return RedactionPlaceholder
	}
	return token[len(token)-visible:] + "…"
}
