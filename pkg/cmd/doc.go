// Package cmd provides CLI commands for the stevedore tool.
//
// This package implements the command-line interface for stevedore,
// providing commands for migration execution, migration status, bulk data
// transfer between databases, and backup restoration.
//
// # Available Commands
//
//   - migrate: Apply pending migrations (optionally a named subset)
//   - status: Show migration status against the revision ledger
//   - export: Dump configured tables into a transfer payload file
//   - import: Replace target data from a transfer payload file
//   - restore: Replay the latest backup dump into the database
//
// # Command Structure
//
// Each command is implemented as a separate function that returns a
// *cli.Command, following the urfave/cli/v3 pattern. Commands are assembled
// through fx and share the loaded project configuration.
//
// # Global Options
//
// All commands support global flags:
//   - --dir, -d: Specify project directory (defaults to current directory)
//   - --help, -h: Display command help
//   - --version: Display version information
//
// # Exit Codes
//
// Commands exit 0 on success and 1 on fatal errors (configuration,
// connection, migration, cycle, missing backup). Verification failures exit
// 2: the underlying change is already committed and only the post-condition
// check failed, so these need operator review rather than a retry.
package cmd
