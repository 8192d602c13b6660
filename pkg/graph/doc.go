// Package graph holds the in-memory dependency graph between rule artifacts:
// conditions, variables and effects.
//
// Nodes are keyed by "<TYPE>:<entityId>" and re-adding a node replaces it in
// place without touching its edges. Edges point from the dependent artifact
// to what it depends on:
//
//	CONDITION:c1 --READS-->  VARIABLE:v1
//	EFFECT:e1    --WRITES--> VARIABLE:v1
//
// The graph keeps outgoing and incoming adjacency lists per node so both
// directions are O(1) lookups, and removing a node removes every edge that
// touches it. Cycles are data, not errors: DetectCycles and TopologicalSort
// return structured results instead of failing.
package graph
