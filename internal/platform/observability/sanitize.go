package observability

import "unicode"

// sanitizeString drops control characters other than whitespace and truncates to limit
// runes so request data cannot forge log lines.
func sanitizeString(value string, limit int) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if len(out) == limit {
			break
		}
		if unicode.IsControl(r) && r != '\t' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// SanitizeRoute cleans a route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}
