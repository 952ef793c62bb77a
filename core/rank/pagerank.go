package rank

import (
	"context"
	"math"
	"sort"

	"github.com/siherrmann/kgraph/model"
)

// WeightedEdge is a directed edge of the ranked graph.
type WeightedEdge struct {
	From   string
	To     string
	Weight float64
}

// Graph is the input of PageRank. Edges with an endpoint outside Nodes are ignored.
type Graph struct {
	Nodes []string
	Edges []WeightedEdge
}

// Ranking is the output of PageRank.
type Ranking struct {
	Scores     map[string]float64
	Iterations int
	Converged  bool
	Cancelled  bool
}

// PageRank runs weighted power iteration over graph. The rank mass of nodes
// without outgoing weight is spread evenly over all nodes, so scores always
// sum to one. Iteration stops when the L1 change drops below cfg.Epsilon,
// after cfg.MaxIterations, or when ctx is done; in the last case the current
// scores are returned with Cancelled set.
func PageRank(ctx context.Context, graph Graph, cfg model.RankConfig) Ranking {
	nodes := distinctSorted(graph.Nodes)
	n := len(nodes)
	ranking := Ranking{Scores: make(map[string]float64, n)}
	if n == 0 {
		ranking.Converged = true
		return ranking
	}

	index := make(map[string]int, n)
	for i, id := range nodes {
		index[id] = i
	}

	type inbound struct {
		from   int
		weight float64
	}
	incoming := make([][]inbound, n)
	outWeight := make([]float64, n)

	edges := append([]WeightedEdge(nil), graph.Edges...)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		from, okFrom := index[e.From]
		to, okTo := index[e.To]
		if !okFrom || !okTo || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight <= 0 {
			continue
		}
		incoming[to] = append(incoming[to], inbound{from: from, weight: e.Weight})
		outWeight[from] += e.Weight
	}

	d := cfg.Damping
	uniform := 1 / float64(n)
	ranks := make([]float64, n)
	for i := range ranks {
		ranks[i] = uniform
	}
	next := make([]float64, n)

	for ranking.Iterations < cfg.MaxIterations {
		if ctx.Err() != nil {
			ranking.Cancelled = true
			break
		}

		var dangling float64
		for i, r := range ranks {
			if outWeight[i] == 0 {
				dangling += r
			}
		}

		base := (1-d)*uniform + d*dangling*uniform
		var delta float64
		for v := range nodes {
			sum := 0.0
			for _, in := range incoming[v] {
				sum += ranks[in.from] * in.weight / outWeight[in.from]
			}
			next[v] = base + d*sum
			delta += math.Abs(next[v] - ranks[v])
		}

		ranks, next = next, ranks
		ranking.Iterations++

		if delta < cfg.Epsilon {
			ranking.Converged = true
			break
		}
	}

	for i, id := range nodes {
		ranking.Scores[id] = ranks[i]
	}
	return ranking
}

func distinctSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
