// Package migrator applies versioned schema-change scripts to a PostgreSQL
// database exactly once, in order, with verifiable success.
//
// The package covers the full migration lifecycle:
//   - Loading migration files from a directory (lexical version order)
//   - Tracking applied migrations in the stevedore_revisions ledger table
//   - Executing payloads transactionally, coupling the ledger write with the
//     migration's own DDL so partial state cannot occur
//   - Post-commit schema verification probes
//   - Remote execution over HTTP when a direct connection is unavailable
//
// Execution is idempotent: re-invoking a migration whose version is already
// recorded as completed is a logged no-op, which is what makes operator-driven
// re-invocation after a failure safe. There are no automatic retries.
package migrator
