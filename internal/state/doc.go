// Package state holds the shared research-session state and its merge rules.
//
// Message logs merge by identity: a message whose ID is already present
// replaces the existing entry in place, a new ID is appended. Text
// accumulators merge by plain concatenation. The research brief and final
// report are singletons with last-write-wins semantics. PipelineState
// composes these and refuses writes that would populate a field before the
// field it depends on.
package state
