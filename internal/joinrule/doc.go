// Package joinrule declares the cross-reference rules that wire an
// aggregate record's dependent selections to its already-known values, and
// resolves them into concrete filter trees.
//
// A Rule describes one dependent selection: its backing table, an optional
// unique key, a filter tree over a closed set of clause types, an optional
// ORDER BY fragment, and an optional back-propagation column. Rules are
// built once per entity type at startup - there is no string mini-language
// re-parsed per call.
//
// FILTER TREES:
//
// Node and RHS are sealed interfaces. A clause compares a dependent column
// against either a literal or a reference to another selection's current
// value (Ref). Clauses combine through explicit And/Or nodes. A rule may
// instead carry a verbatim filter that is used as-is, escaping the
// declarative layer entirely.
//
// RESOLUTION:
//
// Resolve walks the tree and replaces every Ref with the referenced
// selection's current value, taken from a Source (in practice the aggregate
// record). When a referenced value is not yet known - typically the main
// key of a record that has never been stored - resolution fails with
// UnresolvedError, meaning "selection not yet loadable", not a hard fault.
package joinrule
