// Package graph loads the wire-format document describing a chain of function
// invocations into an in-memory computation graph.
//
// A Graph is an ordered list of calls. Its order is both the declaration order
// and the evaluation order: no dependency inference or topological sort is
// performed, and callers are expected to list calls so that every argument is
// already bound when it is used.
package graph
