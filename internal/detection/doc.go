// Package detection defines the runtime record that pairs a trigger process
// with a resolved catalog entry, and the predicates that decide whether an
// observed process satisfies a trigger.
//
// # Predicates
//
// Every Detection carries a Predicate. Predicates are evaluated only after the
// process name has already matched the index bucket key, so they express the
// richer matching on top of the name:
//
//	ProcessNameOnly   - always true; the name match alone decides
//	WindowTitle       - the process's window title must match a regexp
//	PredicateFunc     - adapts an arbitrary func(types.ProcessInfo) bool
//
// ForTrigger picks the predicate for a curation trigger.
package detection
