// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"math"
	"sort"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	longNameThreshold = 8
	longNameWeight    = 1.0
	shortNameWeight   = 0.5
	underscoreWeight  = 0.1
	commonThreshold   = 5
	commonFactor      = 0.1

	defaultDamping    = 0.85
	defaultMaxIter    = 100
	defaultTolerance  = 1e-6
	personalizeFactor = 100.0
)

// edge is a directed edge in the file dependency graph.
type edge struct {
	from   string
	to     string
	weight float64
}

// buildGraph constructs the file dependency graph from a snapshot's
// references: an edge points from the referencing file to each file that
// defines the referenced symbol.
func buildGraph(s *Snapshot) (nodes []string, edges []edge) {
	defs := make(map[string][]string) // symbol name -> defining files
	nodeSet := make(map[string]bool)

	for _, sym := range s.Symbols {
		nodeSet[sym.FilePath] = true
		defs[sym.Name] = append(defs[sym.Name], sym.FilePath)
	}
	for _, r := range s.Refs {
		nodeSet[r.FilePath] = true
	}

	for f := range nodeSet {
		nodes = append(nodes, f)
	}
	sort.Strings(nodes)

	type edgeKey struct{ from, to, ref string }
	edgeCounts := make(map[edgeKey]int)
	for _, r := range s.Refs {
		for _, defFile := range defs[r.Name] {
			if defFile == r.FilePath {
				continue // Skip self-references.
			}
			edgeCounts[edgeKey{from: r.FilePath, to: defFile, ref: r.Name}]++
		}
	}

	keys := make([]edgeKey, 0, len(edgeCounts))
	for k := range edgeCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.to != b.to {
			return a.to < b.to
		}
		return a.ref < b.ref
	})

	for _, k := range keys {
		weight := float64(edgeCounts[k]) * identifierWeight(k.ref) * commonWeight(k.ref, defs)
		edges = append(edges, edge{from: k.from, to: k.to, weight: weight})
	}

	return nodes, edges
}

// identifierWeight scores a symbol name based on length and prefix.
func identifierWeight(name string) float64 {
	if len(name) > 0 && name[0] == '_' {
		return underscoreWeight
	}
	if len(name) >= longNameThreshold {
		return longNameWeight
	}
	return shortNameWeight
}

// commonWeight reduces weight for symbols defined in many files.
func commonWeight(name string, defs map[string][]string) float64 {
	if len(defs[name]) >= commonThreshold {
		return commonFactor
	}
	return 1.0
}

// Rank runs personalized PageRank over the snapshot's file dependency
// graph and returns the snapshot's symbols ordered by the rank of their
// defining file, highest first. Seed symbol names personalize the walk
// toward the files that define them; an empty seed list yields the plain
// global ranking.
func Rank(s *Snapshot, seeds []string) []types.RankedSymbol {
	nodes, edges := buildGraph(s)
	n := len(nodes)
	if n == 0 {
		return nil
	}

	idx := make(map[string]int, n)
	for i, node := range nodes {
		idx[node] = i
	}

	// Personalize toward files defining the seed symbols.
	seedFiles := make(map[string]bool)
	for _, name := range seeds {
		for _, sym := range s.LookupName(name) {
			seedFiles[sym.FilePath] = true
		}
	}

	personalization := make([]float64, n)
	totalPersonal := 0.0
	for i, node := range nodes {
		if seedFiles[node] {
			personalization[i] = personalizeFactor
		} else {
			personalization[i] = 1.0
		}
		totalPersonal += personalization[i]
	}
	for i := range personalization {
		personalization[i] /= totalPersonal
	}

	type outEdge struct {
		to     int
		weight float64
	}
	outEdges := make([][]outEdge, n)
	outWeight := make([]float64, n)
	for _, e := range edges {
		fromIdx, okF := idx[e.from]
		toIdx, okT := idx[e.to]
		if !okF || !okT {
			continue
		}
		outEdges[fromIdx] = append(outEdges[fromIdx], outEdge{to: toIdx, weight: e.weight})
		outWeight[fromIdx] += e.weight
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	newRank := make([]float64, n)
	for iter := 0; iter < defaultMaxIter; iter++ {
		for i := range newRank {
			newRank[i] = (1.0 - defaultDamping) * personalization[i]
		}
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				// Dangling node: distribute rank via personalization.
				for j := range newRank {
					newRank[j] += defaultDamping * rank[i] * personalization[j]
				}
				continue
			}
			for _, e := range outEdges[i] {
				share := rank[i] * (e.weight / outWeight[i])
				newRank[e.to] += defaultDamping * share
			}
		}

		diff := 0.0
		for i := range rank {
			diff += math.Abs(newRank[i] - rank[i])
		}
		copy(rank, newRank)
		if diff < defaultTolerance {
			break
		}
	}

	var ranked []types.RankedSymbol
	for _, sym := range s.Symbols {
		fileIdx, ok := idx[sym.FilePath]
		if !ok {
			continue
		}
		ranked = append(ranked, types.RankedSymbol{
			Name:      sym.Name,
			FilePath:  sym.FilePath,
			Line:      sym.Line,
			Score:     rank[fileIdx],
			Signature: sym.Signature,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].FilePath != ranked[j].FilePath {
			return ranked[i].FilePath < ranked[j].FilePath
		}
		return ranked[i].Line < ranked[j].Line
	})

	return ranked
}
