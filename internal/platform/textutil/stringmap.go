// Package textutil cleans user supplied free text before it is stored.
package textutil

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText NFC-normalises value, strips any markup, drops control characters other
// than newlines and tabs, and trims surrounding whitespace.
func CleanText(value string) string {
	if value == "" {
		return ""
	}
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, norm.NFC.String(value))
	value = unescapeEntities(strictPolicy.Sanitize(value))
	return strings.TrimSpace(value)
}

// RuneLength counts characters after cleaning, which is what length limits apply to.
func RuneLength(value string) int {
	return len([]rune(value))
}

// NormalizeStringMap cleans keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		cleanedKey := CleanText(key)
		if cleanedKey == "" {
			continue
		}
		result[cleanedKey] = CleanText(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// bluemonday escapes the text it keeps; stored values are plain text, not HTML.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#34;", `"`,
	"&#39;", "'",
	"&quot;", `"`,
)

func unescapeEntities(value string) string {
	return entityReplacer.Replace(value)
}
