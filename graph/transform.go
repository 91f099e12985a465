package graph

import (
	"github.com/pkg/errors"

	"github.com/tmoller/quiver/dist"
)

// TransformParameter returns a new model in which the named free parameter is
// reparameterized through the given monotonic transform. The original model
// is left untouched.
//
// In the returned model a new strong node <name>_transformed holds the
// unconstrained value and carries the original distribution with the change
// of variables correction. The original node keeps its name but becomes a
// weak back-transform node, so every consumer still sees the constrained
// value.
func TransformParameter(m *Model, name string, t dist.Transform) (*Model, error) {
	if t == nil {
		return nil, errors.Errorf("No transform supplied for parameter %s", name)
	}

	cp := m.Clone()

	target, ok := cp.Node(name)
	if !ok {
		return nil, errors.Errorf("Model %s has no node %s", m.Name, name)
	}
	if !target.Free() {
		return nil, errors.Errorf("Node %s is not a free parameter - can not reparameterize", name)
	}

	transName := name + "_transformed"
	if _, exists := cp.Node(transName); exists {
		return nil, errors.Errorf("Model %s already has a node %s", m.Name, transName)
	}

	// The unconstrained twin takes over the distribution, corrected by the
	// transform's Jacobian.
	unconstrained := make([]float64, len(target.Val))
	for i, v := range target.Val {
		unconstrained[i] = t.Forward(v)
	}
	twin := &Node{
		Name: transName,
		Val:  unconstrained,
		Dist: &DistRef{Name: target.Dist.Name, Args: target.Dist.Args, Trans: t},
	}

	// The original node becomes the weak back-transform of its twin. Its
	// pointer identity is preserved, so consumers inside the clone stay wired.
	target.Dist = nil
	target.Inputs = []*Node{twin}
	target.Calc = func(inputs ...[]float64) []float64 {
		y := inputs[0]
		out := make([]float64, len(y))
		for i, v := range y {
			out[i] = t.Backward(v)
		}
		return out
	}

	// Splice the twin in just before its consumer to keep topological order.
	idx := -1
	for i, n := range cp.Nodes {
		if n == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.Errorf("BUG: node %s indexed but not present in model %s", name, m.Name)
	}

	nodes := make([]*Node, 0, len(cp.Nodes)+1)
	nodes = append(nodes, cp.Nodes[:idx]...)
	nodes = append(nodes, twin)
	nodes = append(nodes, cp.Nodes[idx:]...)
	cp.Nodes = nodes
	cp.byName[transName] = twin

	for i, n := range cp.Nodes {
		n.ID = i
	}

	cp.Recompute()

	if err := cp.Check(); err != nil {
		return nil, errors.Wrapf(err, "Reparameterized model is not valid")
	}

	return cp, nil
}
