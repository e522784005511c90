package utils

import "strings"

// QuoteIdentifier wraps an identifier in double quotes, handling qualified
// names. Embedded quotes are doubled per the SQL standard.
//
// Examples:
//   - "guests" -> "\"guests\""
//   - "public.guests" -> "\"public\".\"guests\""
//   - "\"guests\"" -> "\"guests\"" (already quoted, not double-quoted)
//   - "" -> ""
//
// This function is used wherever table or routine names from configuration or
// payload files are interpolated into generated SQL.
func QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		if IsQuoted(part) {
			continue
		}
		parts[i] = `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// IsQuoted checks if a string is already wrapped in double quotes.
//
// Examples:
//   - "\"guests\"" -> true
//   - "guests" -> false
//   - "" -> false
func IsQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && !strings.Contains(s[1:len(s)-1], `"`)
}

// StripQuotes removes double quotes from an identifier if present.
//
// Examples:
//   - "\"guests\"" -> "guests"
//   - "guests" -> "guests"
//   - "\"public\".\"guests\"" -> "public.guests"
func StripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

// SplitQualifiedName splits an optionally schema-qualified name into its
// schema and object parts. The schema is empty when the name is unqualified.
func SplitQualifiedName(name string) (schema, object string) {
	clean := StripQuotes(name)
	if i := strings.LastIndex(clean, "."); i >= 0 {
		return clean[:i], clean[i+1:]
	}
	return "", clean
}
