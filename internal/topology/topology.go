// Package topology builds the provider/type/resource hierarchy used for the
// infrastructure map view.
package topology

import (
	"github.com/yairfalse/nimbus/pkg/resource"
)

// MaxPerType caps the resources listed under each type node.
const MaxPerType = 5

// Kind is the level of a node in the tree.
type Kind string

// Node kinds from the root down.
const (
	KindRoot     Kind = "Root"
	KindProvider Kind = "Provider"
	KindType     Kind = "Type"
	KindResource Kind = "Resource"
)

// Root node identity.
const (
	RootID   = "cloud-root"
	RootName = "Cloud Infrastructure"
)

// Node is one element of the hierarchy. Weight is set on leaves only; use
// Total for the rolled-up value of an inner node.
type Node struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"type"`
	Cost     float64 `json:"value,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Build groups resources by provider, then by type in first-seen order.
// All providers are present even without resources.
func Build(resources []resource.Resource) *Node {
	root := &Node{ID: RootID, Name: RootName, Kind: KindRoot}

	for _, p := range resource.Providers {
		pNode := &Node{ID: string(p), Name: string(p), Kind: KindProvider, Children: []*Node{}}
		root.Children = append(root.Children, pNode)

		types := map[resource.Type]*Node{}
		for _, r := range resources {
			if r.Provider != p {
				continue
			}
			tNode, ok := types[r.Type]
			if !ok {
				tNode = &Node{ID: string(p) + "-" + string(r.Type), Name: string(r.Type), Kind: KindType}
				types[r.Type] = tNode
				pNode.Children = append(pNode.Children, tNode)
			}
			if len(tNode.Children) >= MaxPerType {
				continue
			}
			tNode.Children = append(tNode.Children, &Node{
				ID:     r.ID,
				Name:   r.Name,
				Kind:   KindResource,
				Cost:   r.CostPerMonth,
				Weight: weight(r.CostPerMonth),
			})
		}
	}
	return root
}

// weight keeps free resources visible: cost plus 10, or 1 when the cost is zero.
func weight(cost float64) float64 {
	if cost == 0 {
		return 1
	}
	return cost + 10
}

// Total sums the leaf weights below n, counting every empty inner node as 1.
func (n *Node) Total() float64 {
	if len(n.Children) == 0 {
		if n.Kind == KindResource {
			return n.Weight
		}
		return 1
	}
	var sum float64
	for _, c := range n.Children {
		sum += c.Total()
	}
	return sum
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}
