package workflow

import "slices"

// TopoSort orders node ids so that every edge points forward, using Kahn's
// algorithm. Only edges whose both ends are in nodes are considered. Among the
// nodes ready at any step the one listed first in nodes wins, so the same input
// always yields the same order.
//
// Nodes caught in a cycle can never become ready; they are appended at the end
// in input order so that no node is silently lost.
func TopoSort(nodes []Node, edges []Edge) []string {
	if len(nodes) == 0 {
		return []string{}
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	inDegree := make([]int, len(nodes))
	children := make([][]int, len(nodes))
	for _, e := range edges {
		from, ok := index[e.FromNodeID]
		if !ok {
			continue
		}
		to, ok := index[e.ToNodeID]
		if !ok {
			continue
		}
		inDegree[to]++
		children[from] = append(children[from], to)
	}

	// ready is kept sorted by input position.
	ready := make([]int, 0, len(nodes))
	for i, n := range nodes {
		if index[n.ID] == i && inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(index))
	done := make([]bool, len(nodes))
	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]

		order = append(order, nodes[idx].ID)
		done[idx] = true

		for _, child := range children[idx] {
			inDegree[child]--
			if inDegree[child] == 0 {
				pos, _ := slices.BinarySearch(ready, child)
				ready = slices.Insert(ready, pos, child)
			}
		}
	}

	for i, n := range nodes {
		if index[n.ID] == i && !done[i] {
			order = append(order, n.ID)
		}
	}
	return order
}
