package respond

import (
	"regexp"
)

var (
	// Bearer tokens and raw JWTs leak through wrapped errors from the auth
	// layer. The JWT pattern is applied first (more specific).
	jwtPattern    = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/-]+=*`)

	// Database password pattern (inside a DSN)
	dbPasswordPattern = regexp.MustCompile(`://([^:]+):([^@]+)@`)
)

// SanitizeError returns the error message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	// Token masking (order matters: more specific pattern first)
	msg = jwtPattern.ReplaceAllString(msg, "eyJ****")
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")

	// DB password masking
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")

	return msg
}
