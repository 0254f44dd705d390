// Package diag finds the objects a registry can never reclaim.
package diag

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/arcmem/arcmem/std/arc"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Cycle is a strongly connected group of live objects. Every member is
// kept alive by another member through strong references only.
type Cycle struct {
	Objects []arc.ObjectInfo
	// Edges are the strong references inside the group.
	Edges []Link
}

// Link is one strong reference between two members of a cycle.
type Link struct {
	From  arc.ID
	Field string
	To    arc.ID
}

// Cycles returns the strong reference cycles among the live objects of
// a snapshot, ordered by their smallest id.
func Cycles(snapshot []arc.ObjectInfo) []Cycle {
	byID := make(map[arc.ID]arc.ObjectInfo, len(snapshot))
	g := simple.NewDirectedGraph()
	for _, info := range snapshot {
		if info.State == arc.StateLive {
			byID[info.ID] = info
			g.AddNode(simple.Node(info.ID))
		}
	}
	for _, info := range byID {
		for _, e := range info.Edges {
			// self references are found below, the graph cannot hold them
			if e.Kind != arc.RefStrong || e.To == info.ID {
				continue
			}
			if _, live := byID[e.To]; live {
				g.SetEdge(g.NewEdge(simple.Node(info.ID), simple.Node(e.To)))
			}
		}
	}

	var cycles []Cycle
	for _, nodes := range topo.TarjanSCC(g) {
		group := make([]arc.ID, 0, len(nodes))
		members := make(map[arc.ID]bool, len(nodes))
		for _, n := range nodes {
			id := arc.ID(n.ID())
			group = append(group, id)
			members[id] = true
		}

		var c Cycle
		slices.Sort(group)
		for _, id := range group {
			info := byID[id]
			c.Objects = append(c.Objects, info)
			for _, e := range info.Edges {
				if e.Kind == arc.RefStrong && members[e.To] {
					c.Edges = append(c.Edges, Link{From: id, Field: e.Field, To: e.To})
				}
			}
		}
		// a single object only forms a cycle through itself
		if len(group) == 1 && len(c.Edges) == 0 {
			continue
		}
		cycles = append(cycles, c)
	}

	slices.SortFunc(cycles, func(a, b Cycle) int {
		switch {
		case a.Objects[0].ID < b.Objects[0].ID:
			return -1
		case a.Objects[0].ID > b.Objects[0].ID:
			return 1
		}
		return 0
	})
	return cycles
}

// Report writes one paragraph per cycle to w.
func Report(w io.Writer, cycles []Cycle) error {
	if len(cycles) == 0 {
		_, err := fmt.Fprintln(w, "No reference cycles.")
		return err
	}
	for i, c := range cycles {
		labels := make([]string, 0, len(c.Objects))
		for _, info := range c.Objects {
			labels = append(labels, fmt.Sprintf("%s %s (strong=%d)", info.ID, info.Label, info.Strong))
		}
		if _, err := fmt.Fprintf(w, "Cycle %d: %s\n", i+1, strings.Join(labels, ", ")); err != nil {
			return err
		}
		for _, l := range c.Edges {
			if _, err := fmt.Fprintf(w, "  %s.%s -> %s\n", l.From, l.Field, l.To); err != nil {
				return err
			}
		}
	}
	return nil
}
