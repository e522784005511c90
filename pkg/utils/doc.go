// Package utils provides common utility functions used throughout the
// stevedore codebase.
//
// # Identifier Utilities (identifier.go)
//
// The identifier utilities provide consistent handling of PostgreSQL
// identifiers, including double-quote quoting for names that may contain
// special characters or reserved keywords.
//
//	// Simple identifier
//	name := utils.QuoteIdentifier("guests")
//	// Result: "guests" (quoted)
//
//	// Qualified identifier
//	qualified := utils.QuoteIdentifier("public.guests")
//	// Result: "public"."guests"
//
// The utilities are safe and idempotent: quoting an already quoted identifier
// does not double-quote it.
package utils
