// SPDX-License-Identifier: MPL-2.0

// Package dag orders release targets by their dependencies. The publish
// coordinator uses it to compute execution stages: targets in the same stage
// have no ordering constraint between them and may be published concurrently,
// while a target in a later stage waits for every earlier stage to finish.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError indicates the dependency declarations contain a cycle and
	// no valid publish order exists.
	CycleError struct {
		// Nodes contains the members of the cycle (enough of them to
		// identify the problem).
		Nodes []string
	}

	// Graph is a directed dependency graph over string-keyed nodes.
	// An edge from A to B means A must finish before B starts.
	Graph struct {
		deps    map[string][]string // node -> nodes it depends on
		nodes   []string            // insertion order, for deterministic output
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Nodes, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		deps:    make(map[string][]string),
		nodeSet: make(map[string]bool),
	}
}

// Add registers a node with zero or more dependencies. Dependencies are
// implicitly added as nodes. Adding the same node twice merges the
// dependency lists.
func (g *Graph) Add(node string, dependsOn ...string) {
	g.addNode(node)
	for _, dep := range dependsOn {
		g.addNode(dep)
		g.deps[node] = append(g.deps[node], dep)
	}
}

func (g *Graph) addNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// Stages partitions the graph into ordered layers. Every node appears in
// exactly one stage, and each node's dependencies all sit in strictly earlier
// stages. Within a stage, nodes keep insertion order. Returns CycleError when
// the graph cannot be layered.
func (g *Graph) Stages() ([][]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	remaining := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		remaining[node] = len(g.deps[node])
	}

	placed := make(map[string]bool, len(g.nodes))
	var stages [][]string

	for len(placed) < len(g.nodes) {
		var stage []string
		for _, node := range g.nodes {
			if !placed[node] && remaining[node] == 0 {
				stage = append(stage, node)
			}
		}

		if len(stage) == 0 {
			// Everything left is part of (or downstream of) a cycle.
			var cycle []string
			for _, node := range g.nodes {
				if !placed[node] {
					cycle = append(cycle, node)
				}
			}
			return nil, &CycleError{Nodes: cycle}
		}

		for _, node := range stage {
			placed[node] = true
		}
		// Release nodes whose dependencies are now fully placed.
		for _, node := range g.nodes {
			if placed[node] {
				continue
			}
			count := 0
			for _, dep := range g.deps[node] {
				if !placed[dep] {
					count++
				}
			}
			remaining[node] = count
		}

		stages = append(stages, stage)
	}

	return stages, nil
}
