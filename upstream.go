package workflow

import "fmt"

// Upstream is the set of ancestors of a target node and the edges among them.
type Upstream struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// CollectUpstream walks edges backwards from targetID and returns every
// transitively connected ancestor, each exactly once, in depth-first
// first-encounter order. Edges are those whose both ends lie in the ancestor
// set or the target. A target without ancestors yields an empty Upstream.
func CollectUpstream(w Workflow, targetID string) (Upstream, error) {
	if _, ok := w.Node(targetID); !ok {
		return Upstream{}, fmt.Errorf("%w: %s", ErrNodeNotFound, targetID)
	}

	incoming := make(map[string][]string)
	for _, e := range w.Edges {
		incoming[e.ToNodeID] = append(incoming[e.ToNodeID], e.FromNodeID)
	}

	type frame struct {
		id   string
		next int
	}

	visited := map[string]bool{targetID: true}
	var ids []string
	stack := []frame{{id: targetID}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		parents := incoming[top.id]
		if top.next >= len(parents) {
			stack = stack[:len(stack)-1]
			continue
		}
		parent := parents[top.next]
		top.next++
		if visited[parent] {
			continue
		}
		visited[parent] = true
		ids = append(ids, parent)
		stack = append(stack, frame{id: parent})
	}

	up := Upstream{Nodes: make([]Node, 0, len(ids)), Edges: []Edge{}}
	for _, id := range ids {
		// Edges pointing at ids that are not nodes are dangling; skip them.
		if n, ok := w.Node(id); ok {
			up.Nodes = append(up.Nodes, n)
		}
	}
	for _, e := range w.Edges {
		if visited[e.FromNodeID] && visited[e.ToNodeID] && e.FromNodeID != targetID {
			up.Edges = append(up.Edges, e)
		}
	}
	return up, nil
}
