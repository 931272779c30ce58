// Package fragment provides an in-memory ports.Fragment, the partitioners used to
// split a graph into fragments, and an edge-list reader for graph input.
//
// Fragments are immutable once built and safe to share between workers.
package fragment
