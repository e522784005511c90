// Package postgres provides the PostgreSQL connection used by all stevedore
// operations.
//
// The package exposes a narrow Conn interface (Query/Exec with context) that
// the migrator, transfer, and backup packages consume, keeping those packages
// testable with injected fakes. *Client is the production implementation over
// database/sql with the lib/pq driver.
//
// Connections are scoped resources acquired once per run:
//
//	client, err := postgres.Connect(ctx, dsn, postgres.Options{})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Engine behavior that affects correctness (whether DDL participates in
// transactions) is surfaced through Capabilities rather than type checks, so
// callers branch on the flag and fakes can exercise both paths.
package postgres
