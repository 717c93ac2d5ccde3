// Package store implements the query-executor contract over SQLite.
//
// The store is deliberately dumb: it executes one select, insert, update,
// delete, or raw statement at a time against a named table, binding the
// parameters the engine hands it. It knows nothing about bindings, join
// rules, or records - the engine layers all consistency rules on top.
//
// Beyond the five executor operations the store offers column-set
// discovery for a table and a cooperative per-table lock registry. Locks
// are explicit acquire/release pairs around read-then-modify-then-store
// sequences (for example sequence-number generation); the store never
// auto-releases on error, so callers must release on every exit path.
//
// The underlying connection pool is limited to a single connection, which
// serializes all access - the engine itself is single-threaded and relies
// on the store for nothing more.
package store
