package graph

import (
	"github.com/pkg/errors"
)

// Model represents a probabilistic graph: nodes in topological order plus a
// name index. Built from one or more terminal (response) nodes; every
// transitive input is included automatically.
type Model struct {
	Name   string
	Nodes  []*Node // Topological order: parents before children
	byName map[string]*Node
}

// NewModel assembles a model from its response nodes. Anonymous nodes get
// letter names, cycles and duplicate names are rejected, distributions are
// validated, and weak values are computed once so the model starts
// consistent.
func NewModel(name string, responses ...*Node) (*Model, error) {
	if len(responses) < 1 {
		return nil, errors.Errorf("At least one response node required for model %s", name)
	}

	m := &Model{
		Name:   name,
		byName: make(map[string]*Node),
	}

	// Depth-first walk from the responses: post-order append yields a
	// topological sort, the on-stack mark catches cycles.
	const (
		unseen = 0
		open   = 1
		done   = 2
	)
	state := make(map[*Node]int)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch state[n] {
		case done:
			return nil
		case open:
			return errors.Errorf("Model %s contains a cycle through node %s", name, n.Name)
		}
		state[n] = open
		for _, p := range n.parents() {
			if err := visit(p); err != nil {
				return err
			}
		}
		state[n] = done
		m.Nodes = append(m.Nodes, n)
		return nil
	}

	for _, r := range responses {
		if r == nil {
			return nil, errors.Errorf("Model %s given a nil response node", name)
		}
		if err := visit(r); err != nil {
			return nil, err
		}
	}

	// Assign IDs and names, then index
	for i, n := range m.Nodes {
		n.ID = i
		if n.Name == "" {
			n.Name = letter26(i)
		}
	}
	for _, n := range m.Nodes {
		if _, ok := m.byName[n.Name]; ok {
			return nil, errors.Errorf("Duplicate node name %s in model %s", n.Name, name)
		}
		m.byName[n.Name] = n
	}

	m.Recompute()

	if err := m.Check(); err != nil {
		return nil, errors.Wrapf(err, "Assembled model %s is not valid", name)
	}

	return m, nil
}

// Check returns an error if there is a problem with the model
func (m *Model) Check() error {
	distCount := 0
	for _, n := range m.Nodes {
		if err := n.Check(); err != nil {
			return errors.Wrapf(err, "Model %s has an invalid node %s", m.Name, n.Name)
		}
		if n.Dist != nil {
			distCount++
		}
	}

	if distCount < 1 {
		return errors.Errorf("Model %s has no distributed nodes - log probability is undefined", m.Name)
	}

	return nil
}

// Node returns the named node, or false when absent.
func (m *Model) Node(name string) (*Node, bool) {
	n, ok := m.byName[name]
	return n, ok
}

// Value returns a copy of the named node's current value.
func (m *Model) Value(name string) ([]float64, error) {
	n, ok := m.byName[name]
	if !ok {
		return nil, errors.Errorf("Model %s has no node %s", m.Name, name)
	}
	out := make([]float64, len(n.Val))
	copy(out, n.Val)
	return out, nil
}

// SetValue overwrites a strong node's value. Weak nodes are computed, not
// set; length changes are rejected so downstream broadcasting stays valid.
func (m *Model) SetValue(name string, vals []float64) error {
	n, ok := m.byName[name]
	if !ok {
		return errors.Errorf("Model %s has no node %s", m.Name, name)
	}
	if !n.Strong() {
		return errors.Errorf("Node %s is weak - its value is computed, not set", name)
	}
	if len(vals) != len(n.Val) {
		return errors.Errorf("Node %s has len %d, can not set len %d", name, len(n.Val), len(vals))
	}
	copy(n.Val, vals)
	return nil
}

// Params returns the free nodes: strong, unobserved, distributed. These are
// what sampling kernels bind to, in topological order.
func (m *Model) Params() []*Node {
	out := make([]*Node, 0, 4)
	for _, n := range m.Nodes {
		if n.Free() {
			out = append(out, n)
		}
	}
	return out
}

// Recompute refreshes every weak node in topological order so all derived
// values are consistent with the current strong values.
func (m *Model) Recompute() {
	for _, n := range m.Nodes {
		if n.Calc == nil {
			continue
		}
		args := make([][]float64, len(n.Inputs))
		for i, in := range n.Inputs {
			args[i] = in.Val
		}
		n.Val = n.Calc(args...)
	}
}

// LogProb recomputes the weak nodes and returns the model log probability:
// the sum of every distributed node's log density at its current value.
func (m *Model) LogProb() (float64, error) {
	m.Recompute()

	total := 0.0
	scored := 0
	for _, n := range m.Nodes {
		if n.Dist == nil {
			continue
		}
		lp, err := n.LogProb()
		if err != nil {
			return 0, errors.Wrapf(err, "Model %s log probability failed", m.Name)
		}
		total += lp
		scored++
	}

	if scored < 1 {
		return 0, errors.Errorf("Model %s has no distributed nodes", m.Name)
	}

	return total, nil
}

// Clone returns a deep copy of the model: fresh nodes with copied values and
// rewired edges. Calc functions are shared (they are pure by contract).
func (m *Model) Clone() *Model {
	fresh := make(map[*Node]*Node, len(m.Nodes))

	for _, n := range m.Nodes {
		cp := &Node{
			ID:       n.ID,
			Name:     n.Name,
			Val:      make([]float64, len(n.Val)),
			Observed: n.Observed,
			Calc:     n.Calc,
		}
		copy(cp.Val, n.Val)
		fresh[n] = cp
	}

	// Second pass: rewire inputs and dist args to the fresh nodes
	for _, n := range m.Nodes {
		cp := fresh[n]
		if len(n.Inputs) > 0 {
			cp.Inputs = make([]*Node, len(n.Inputs))
			for i, in := range n.Inputs {
				cp.Inputs[i] = fresh[in]
			}
		}
		if n.Dist != nil {
			args := make(map[string]*Node, len(n.Dist.Args))
			for k, p := range n.Dist.Args {
				args[k] = fresh[p]
			}
			cp.Dist = &DistRef{Name: n.Dist.Name, Args: args, Trans: n.Dist.Trans}
		}
	}

	out := &Model{
		Name:   m.Name,
		Nodes:  make([]*Node, len(m.Nodes)),
		byName: make(map[string]*Node, len(m.byName)),
	}
	for i, n := range m.Nodes {
		out.Nodes[i] = fresh[n]
		out.byName[n.Name] = fresh[n]
	}

	return out
}
