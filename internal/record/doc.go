// Package record implements the aggregate record: a named root entity made
// of one main table binding plus dependent bindings wired together by join
// rules.
//
// A Definition declares an entity type once, at startup: the main table and
// its key column, one join rule per dependent selection, optional
// afterburner formulas, and optional special selections (hook pairs for
// relationships that are not simple equi-joins). Definitions can be built
// in Go or loaded from a YAML file.
//
// A Record is one live root entity over a Definition: created new (bindings
// empty, filled by the caller) or opened on an existing key (bindings
// loaded lazily on first access). Values are read and written through the
// record, which routes to the right binding's change log.
//
// STORE CASCADE:
//
// Store walks the aggregate in a fixed order: pre-store hooks, then the
// main binding, then - if the record was new - the freshly generated main
// key is propagated into every dependent whose rule references it
// (sign-flipped when the rule says so). Changed dependents are stored next,
// each followed by back-propagation of its generated value into the root
// where the rule declares it. The dependent pass runs exactly twice, so
// bindings whose only change came from key propagation are picked up.
//
// The cascade is not atomic: each statement commits independently, and a
// failure partway leaves already-stored bindings committed. Re-running
// Store is the intended recovery - unchanged bindings issue no statements.
package record
