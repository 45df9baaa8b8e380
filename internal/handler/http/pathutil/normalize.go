package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its replacement template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// The service fronts arbitrary metered API routes, so the patterns match any
// /api/<resource>/<id> shape rather than a fixed route list. Patterns are
// evaluated in order from most specific to least specific and are
// pre-compiled at initialization.
var pathPatterns = []*PathPattern{
	// Numeric identifiers, with and without a trailing sub-resource
	{Pattern: regexp.MustCompile(`^(/api/[a-z0-9-]+)/\d+(/[a-z0-9-]+)$`), Template: "$1/:id$2"},
	{Pattern: regexp.MustCompile(`^(/api/[a-z0-9-]+)/\d+$`), Template: "$1/:id"},

	// UUID identifiers
	{Pattern: regexp.MustCompile(`^(/api/[a-z0-9-]+)/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/[a-z0-9-]+)$`), Template: "$1/:id$2"},
	{Pattern: regexp.MustCompile(`^(/api/[a-z0-9-]+)/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`), Template: "$1/:id"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /api/items/123) to template format (e.g., /api/items/:id).
// Static paths remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/api/items/123")         // "/api/items/:id"
//	NormalizePath("/api/items/456/tags")    // "/api/items/:id/tags"
//	NormalizePath("/api/quota")             // "/api/quota" (unchanged)
//	NormalizePath("/admin/violations/top")  // "/admin/violations/top" (unchanged)
//	NormalizePath("/health")                // "/health" (unchanged)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/api/items/123?page=1")  // "/api/items/:id"
//	NormalizePath("/api/items/123/")        // "/api/items/:id"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Pattern.ReplaceAllString(path, p.Template)
		}
	}

	// No match found, return original path
	// This is safe - static paths like /health, /metrics, /api/quota
	// and the admin endpoints will pass through unchanged
	return path
}
