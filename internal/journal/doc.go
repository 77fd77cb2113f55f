// Package journal persists an audit trail of every tiering action.
//
// Two drivers are supported: SQLite (modernc.org/sqlite, the default, stored
// under the state directory) and Postgres (pgx through database/sql) for
// shared deployments. Each driver has its own embedded schema guarded by a
// schema_version row; a version mismatch asks the operator to clear the
// journal rather than migrating in place.
package journal
