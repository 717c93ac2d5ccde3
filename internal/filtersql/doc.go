// Package filtersql compiles resolved join-rule filter trees to
// parameterized SQL WHERE fragments.
//
// The compiler is the only place filter SQL text is produced. Literal
// values are never interpolated into the fragment - they always travel as
// bound parameters, so neither the engine nor its callers ever quote or
// escape anything.
//
// A verbatim rule bypasses compilation entirely: its raw filter is passed
// through with no parameters.
package filtersql
