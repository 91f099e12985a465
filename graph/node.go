// Package graph builds probabilistic models as directed acyclic graphs of
// typed nodes. Strong nodes hold values set from outside (data, parameters,
// hyperparameters); weak nodes compute their value deterministically from
// input nodes. A node may carry a named distribution whose keyword parameters
// reference other nodes, and the model log probability is the sum of every
// distributed node's log density at its current value.
package graph

import (
	"github.com/pkg/errors"

	"github.com/tmoller/quiver/dist"
)

// CalcFunc computes a weak node's value from its input node values. The
// inputs arrive in the order the node declared them.
type CalcFunc func(inputs ...[]float64) []float64

// DistRef attaches a named distribution to a node. Args maps the
// distribution's keywords to the nodes supplying each parameter. Trans, when
// set, marks the node as living on the unconstrained scale of the transform
// while the base density stays on the constrained scale.
type DistRef struct {
	Name  string
	Args  map[string]*Node
	Trans dist.Transform
}

// Node is a single named unit in a probabilistic graph.
type Node struct {
	ID       int       // Topological index, assigned when a Model is built
	Name     string    // Node name - unique within a model, auto-assigned if empty
	Val      []float64 // Current value
	Observed bool      // Observed nodes are never sampled
	Inputs   []*Node   // Inputs for weak nodes
	Calc     CalcFunc  // Weak compute function - nil means the node is strong
	Dist     *DistRef  // Optional distribution
}

// Hyper creates a strong, observed node for a fixed hyperparameter value.
func Hyper(name string, vals ...float64) *Node {
	return &Node{Name: name, Val: vals, Observed: true}
}

// Param creates a strong, unobserved node: a parameter to be sampled once a
// distribution is attached.
func Param(name string, vals ...float64) *Node {
	return &Node{Name: name, Val: vals}
}

// Covariate creates a strong, observed node holding data. A covariate with a
// distribution attached is a response (likelihood) node.
func Covariate(name string, vals ...float64) *Node {
	return &Node{Name: name, Val: vals, Observed: true}
}

// Weak creates a deterministic node computed from the given inputs. The value
// is not populated until the node is part of a model and Recompute runs.
func Weak(name string, fn CalcFunc, inputs ...*Node) *Node {
	return &Node{Name: name, Inputs: inputs, Calc: fn}
}

// SetDist attaches a named distribution with keyword node parameters and
// returns the node for chaining. Identifier and keywords are validated when
// the node is assembled into a model, not here.
func (n *Node) SetDist(name string, args map[string]*Node) *Node {
	n.Dist = &DistRef{Name: name, Args: args}
	return n
}

// Strong is true for nodes whose value is set externally.
func (n *Node) Strong() bool {
	return n.Calc == nil
}

// Free is true for nodes a sampler may move: strong, unobserved, and
// carrying a distribution.
func (n *Node) Free() bool {
	return n.Strong() && !n.Observed && n.Dist != nil
}

// parents returns every node this node depends on: weak inputs plus
// distribution parameter nodes.
func (n *Node) parents() []*Node {
	out := make([]*Node, 0, len(n.Inputs)+4)
	out = append(out, n.Inputs...)
	if n.Dist != nil {
		// Keyword order for determinism
		kws, err := dist.Keywords(n.Dist.Name)
		if err != nil {
			// Unknown dist name: caught later by Check. Fall back to any order.
			for _, p := range n.Dist.Args {
				out = append(out, p)
			}
			return out
		}
		for _, k := range kws {
			if p, ok := n.Dist.Args[k]; ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// Check returns an error if there is a problem with the node on its own.
func (n *Node) Check() error {
	if n.Calc != nil && len(n.Inputs) < 1 {
		return errors.Errorf("Weak node %s has no inputs", n.Name)
	}
	if n.Calc == nil && len(n.Inputs) > 0 {
		return errors.Errorf("Strong node %s has inputs but no calc function", n.Name)
	}
	if n.Calc == nil && len(n.Val) < 1 {
		return errors.Errorf("Strong node %s has no value", n.Name)
	}

	if n.Dist != nil {
		kws := make([]string, 0, len(n.Dist.Args))
		for k, p := range n.Dist.Args {
			if p == nil {
				return errors.Errorf("Node %s dist keyword %q references a nil node", n.Name, k)
			}
			kws = append(kws, k)
		}
		if err := dist.Validate(n.Dist.Name, kws); err != nil {
			return errors.Wrapf(err, "Node %s has an invalid distribution", n.Name)
		}
	}

	return nil
}

// distParams snapshots the current values of the distribution argument nodes.
func (n *Node) distParams() dist.Params {
	p := make(dist.Params, len(n.Dist.Args))
	for k, arg := range n.Dist.Args {
		p[k] = arg.Val
	}
	return p
}

// LogProb returns this node's contribution to the model log probability: the
// log density of the current value under the attached distribution, with the
// Jacobian correction when the node is reparameterized.
func (n *Node) LogProb() (float64, error) {
	if n.Dist == nil {
		return 0, errors.Errorf("Node %s has no distribution", n.Name)
	}

	lp, err := dist.TransformedLogProb(n.Dist.Name, n.distParams(), n.Dist.Trans, n.Val)
	if err != nil {
		return 0, errors.Wrapf(err, "Could not score node %s", n.Name)
	}
	return lp, nil
}

func divmod(numerator, denominator int) (quotient, remainder int) {
	quotient = numerator / denominator // integer division, decimals are truncated
	remainder = numerator % denominator
	return
}

// letter26 is sort of base-26 with only letters, but A=0 *and* the start digit
// (so 0=A, 1=B, and ZZ+1=AAA). Used to auto-name anonymous nodes.
func letter26(n int) string {
	// Easy for n==0
	if n == 0 {
		return "A"
	}
	// Need to bump up one
	n++

	const LETTERS = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits := make([]byte, 0, 8)
	var remain int
	for n > 0 {
		n, remain = divmod(n-1, 26)
		digits = append(digits, LETTERS[remain])
	}

	//reverse
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return string(digits)
}
