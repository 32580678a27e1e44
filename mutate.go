package workflow

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ConnectionError is returned when a proposed edge is rejected.
// Reason is suitable for showing to the user; Err is one of the sentinel errors.
type ConnectionError struct {
	From   string
	To     string
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s: %s", e.Err, e.From, e.To, e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// New returns an empty workflow. An empty id gets a generated UUID.
func New(id, name string) Workflow {
	if id == "" {
		id = uuid.NewString()
	}
	t := now()
	return Workflow{ID: id, Name: name, Nodes: []Node{}, Edges: []Edge{}, CreatedAt: t, UpdatedAt: t}
}

// Clone returns a copy of w that shares no slices with it.
func (w Workflow) Clone() Workflow {
	c := w
	c.Nodes = slices.Clone(w.Nodes)
	c.Edges = slices.Clone(w.Edges)
	if c.Nodes == nil {
		c.Nodes = []Node{}
	}
	if c.Edges == nil {
		c.Edges = []Edge{}
	}
	return c
}

// AddNode returns a copy of w with n appended.
// If n.ID is empty, a UUID is generated.
func (w Workflow) AddNode(n Node) (Workflow, Node, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, exists := w.Node(n.ID); exists {
		return w, Node{}, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if err := validateNode(n); err != nil {
		return w, Node{}, err
	}
	next := w.Clone()
	next.Nodes = append(next.Nodes, n)
	next.UpdatedAt = now()
	return next, n, nil
}

// UpdateNode replaces the node with the same id. The node type cannot change,
// since existing edges were validated against it.
func (w Workflow) UpdateNode(n Node) (Workflow, error) {
	i := slices.IndexFunc(w.Nodes, func(x Node) bool { return x.ID == n.ID })
	if i < 0 {
		return w, fmt.Errorf("%w: %s", ErrNodeNotFound, n.ID)
	}
	if w.Nodes[i].Type != n.Type {
		return w, fmt.Errorf("%w: %s: type cannot change from %s to %s", ErrInvalidNode, n.ID, w.Nodes[i].Type, n.Type)
	}
	if err := validateNode(n); err != nil {
		return w, err
	}
	next := w.Clone()
	next.Nodes[i] = n
	next.UpdatedAt = now()
	return next, nil
}

// RemoveNode returns a copy of w without the node and without every edge
// touching it. Removing a missing node is a no-op.
func (w Workflow) RemoveNode(id string) Workflow {
	if _, ok := w.Node(id); !ok {
		return w
	}
	next := w.Clone()
	next.Nodes = slices.DeleteFunc(next.Nodes, func(n Node) bool { return n.ID == id })
	next.Edges = slices.DeleteFunc(next.Edges, func(e Edge) bool {
		return e.FromNodeID == id || e.ToNodeID == id
	})
	next.UpdatedAt = now()
	return next
}

// AddConnection returns a copy of w with a new edge from -> to. The edge must
// pass CanConnect and must not close a cycle; otherwise w is returned as is,
// together with a *ConnectionError.
func (w Workflow) AddConnection(from, to string) (Workflow, Edge, error) {
	return w.addEdge(Edge{ID: uuid.NewString(), FromNodeID: from, ToNodeID: to})
}

func (w Workflow) addEdge(e Edge) (Workflow, Edge, error) {
	reject := func(err error, reason string) (Workflow, Edge, error) {
		return w, Edge{}, &ConnectionError{From: e.FromNodeID, To: e.ToNodeID, Reason: reason, Err: err}
	}

	if v := CanConnect(w, e.FromNodeID, e.ToNodeID); !v.Allowed {
		_, fromOK := w.Node(e.FromNodeID)
		_, toOK := w.Node(e.ToNodeID)
		if !fromOK || !toOK {
			return reject(ErrNodeNotFound, v.Reason)
		}
		return reject(ErrConnectionNotAllowed, v.Reason)
	}
	for _, existing := range w.Edges {
		if existing.FromNodeID == e.FromNodeID && existing.ToNodeID == e.ToNodeID {
			return reject(ErrDuplicateEdge, ReasonDuplicate)
		}
	}
	if HasCycle(w, e.FromNodeID, e.ToNodeID) {
		return reject(ErrCycleDetected, ReasonCycle)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	next := w.Clone()
	next.Edges = append(next.Edges, e)
	next.UpdatedAt = now()
	return next, e, nil
}

// RemoveEdge returns a copy of w without the edge.
func (w Workflow) RemoveEdge(id string) (Workflow, error) {
	if !slices.ContainsFunc(w.Edges, func(e Edge) bool { return e.ID == id }) {
		return w, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	next := w.Clone()
	next.Edges = slices.DeleteFunc(next.Edges, func(e Edge) bool { return e.ID == id })
	next.UpdatedAt = now()
	return next, nil
}

// Validate rebuilds w from scratch through AddNode and the connection gates.
// It is used for graphs loaded from outside the package, such as files.
func (w Workflow) Validate() error {
	_, err := w.Rebuild()
	return err
}

// Rebuild replays every node and edge of w through the mutation gates and
// returns the result. Nodes and edges without an id get a UUID; a repeated
// edge id is ErrDuplicateEdge. Stores persist the rebuilt graph.
func (w Workflow) Rebuild() (Workflow, error) {
	rebuilt := Workflow{ID: w.ID}
	var err error
	for _, n := range w.Nodes {
		if n.ID == "" {
			return Workflow{}, fmt.Errorf("%w: node without id", ErrInvalidNode)
		}
		if rebuilt, _, err = rebuilt.AddNode(n); err != nil {
			return Workflow{}, err
		}
	}
	seen := make(map[string]bool, len(w.Edges))
	for _, e := range w.Edges {
		if e.ID != "" && seen[e.ID] {
			return Workflow{}, fmt.Errorf("%w: edge id %s used twice", ErrDuplicateEdge, e.ID)
		}
		seen[e.ID] = true
		if rebuilt, _, err = rebuilt.addEdge(e); err != nil {
			return Workflow{}, fmt.Errorf("edge %s: %w", e.ID, err)
		}
	}
	out := w.Clone()
	out.Nodes, out.Edges = rebuilt.Nodes, rebuilt.Edges
	return out.Clone(), nil
}

func validateNode(n Node) error {
	switch n.Type {
	case NodeTypeInput:
		if n.Input == nil || n.Agent != nil {
			return fmt.Errorf("%w: %s: input node needs input data only", ErrInvalidNode, n.ID)
		}
		switch n.Input.Kind {
		case InputProduct, InputPersona, InputKnowledge, InputIntent:
		default:
			return fmt.Errorf("%w: %s: unknown input kind %q", ErrInvalidNode, n.ID, n.Input.Kind)
		}
	case NodeTypeAgent:
		if n.Agent == nil || n.Input != nil {
			return fmt.Errorf("%w: %s: agent node needs agent data only", ErrInvalidNode, n.ID)
		}
	default:
		return fmt.Errorf("%w: %s: unknown node type %q", ErrInvalidNode, n.ID, n.Type)
	}
	return nil
}
