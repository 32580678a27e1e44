package workflow

// HasCycle reports whether adding the edge from -> to to w would create a
// directed cycle. The existing edge set is assumed acyclic but is checked in
// full anyway, so a corrupted graph also reports true.
func HasCycle(w Workflow, from, to string) bool {
	edges := make([]Edge, 0, len(w.Edges)+1)
	edges = append(edges, w.Edges...)
	edges = append(edges, Edge{FromNodeID: from, ToNodeID: to})
	return findCycle(w.Nodes, edges)
}

// findCycle runs a three-colour DFS from every node, in graph order.
func findCycle(nodes []Node, edges []Edge) bool {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ToNodeID)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	// Also include nodes referenced only in edges.
	order := make([]string, 0, len(nodes))
	state := make(map[string]int)
	add := func(id string) {
		if _, ok := state[id]; !ok {
			state[id] = unvisited
			order = append(order, id)
		}
	}
	for _, n := range nodes {
		add(n.ID)
	}
	for _, e := range edges {
		add(e.FromNodeID)
		add(e.ToNodeID)
	}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for _, id := range order {
		if state[id] == unvisited && dfs(id) {
			return true
		}
	}
	return false
}
