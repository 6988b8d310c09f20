// Package schema holds the table graph the query compiler joins over and
// the resolver that turns a set of needed tables into a join chain back to
// the root.
//
// The graph is declared in CUE. The embedded mimic.cue describes the
// clinical database; a custom graph file may be supplied instead, as long
// as it satisfies the constraints in graph.cue.
//
// A Graph is immutable once built and safe to share between goroutines.
package schema
