// Package transfer performs whole-database export and import cycles that
// preserve referential integrity across dependent tables.
//
// The operator configures the participating tables and their foreign-key
// dependencies; the planner turns that graph into two orders derived from one
// topological sort:
//
//   - InsertOrder: parents before children, used for bulk inserts
//   - DeleteOrder: children before parents, used for delete-all sweeps
//
// A cycle in the configured dependencies is a configuration error detected
// before any destructive operation runs.
//
// The runner executes the plan sequentially: export streams every table into
// a self-describing YAML payload; import deletes in DeleteOrder then inserts
// in InsertOrder, reporting per-table row counts; verification compares
// post-import counts against the payload's declared counts and reports
// discrepancies without rolling back.
package transfer
