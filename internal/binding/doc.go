// Package binding implements the table binding: the in-memory working set of
// rows for one backing table, together with the pending-change log that is
// accumulated between commits.
//
// A Binding owns an ordered row set, the column set of its table, and an
// append-only change log. Mutations (Set, Append, InsertRow, DeleteRow) are
// recorded as tagged Change values; Store turns the current state into
// insert/update/delete statements against the injected Executor.
//
// STORAGE STRATEGY:
//
// Tables with a single-column unique key are diffed row by row: rows with an
// empty key are inserted (and stamped with the generated key), rows with a
// key are updated in place, and deletions are issued by key.
//
// Tables without a reliable unique key are never diffed. The first store for
// a filter inserts every row; every later store deletes the previously
// loaded rows (by the original load filter, never one derived from the new
// data) and reinserts the current row set, then reloads so the in-memory
// state picks up any store-side defaults.
//
// CHANGE LOG:
//
// The change log is a sealed set of variants (Append, Insert, Replace,
// Delete). Replace entries carry a per-row map from column to original and
// updated value; repeated Set calls for the same row merge into the pending
// Replace instead of duplicating it. Each Store moves the log into the prior
// log, which HasChanged falls back to for post-store inspection.
//
// The package is single-threaded by design: a Binding must not be shared
// across goroutines.
package binding
