package resolve

import (
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/utils"
	"golang.org/x/exp/slices"
)

// Context separates what is linked into the artifact (host) from the tools used to build it (build).
type Context string

const (
	ContextHost  Context = "host"
	ContextBuild Context = "build"
)

const RootID = "root"

// Node is one concrete package of the graph.
type Node struct {
	// ID is unique in the graph, a package needed in both contexts has two nodes.
	ID        string
	Ref       manifest.Reference
	Context   Context
	Direct    bool
	PackageID string
	Settings  map[string]string
	// Options holds the effective options keyed by bare option name.
	Options   manifest.Options
	Requires  []string
	Recipe    *Recipe
	Checksums utils.Checksums
}

// NodeID identifies a package within a context.
func NodeID(context Context, ref manifest.Reference) string {
	return string(context) + ":" + ref.String()
}

func (n *Node) Name() string {
	return n.Ref.Name
}

func (n *Node) Version() string {
	return n.Ref.Version
}

// Key returns the build-info dependency id, name:version.
func (n *Node) Key() string {
	return n.Ref.Key()
}

func (n *Node) String() string {
	if n.ID == RootID && n.Ref.Version == "" {
		return n.Ref.Name
	}
	return n.Ref.String()
}

type Edge struct {
	From string
	To   string
}

// Graph is the result of a resolution. Nodes are kept in resolution order, host context first.
type Graph struct {
	Root  *Node
	Nodes []*Node
	Edges []Edge
	index map[string]*Node
}

func NewGraph(root *Node) *Graph {
	return &Graph{Root: root, index: map[string]*Node{root.ID: root}}
}

func (g *Graph) AddNode(node *Node) {
	g.Nodes = append(g.Nodes, node)
	g.index[node.ID] = node
}

// AddEdge records that from requires to. Both nodes must already be in the graph.
func (g *Graph) AddEdge(from, to string) {
	parent := g.index[from]
	if slices.Contains(parent.Requires, to) {
		return
	}
	parent.Requires = append(parent.Requires, to)
	g.Edges = append(g.Edges, Edge{From: from, To: to})
}

// Get returns the node with the given id, the root included.
func (g *Graph) Get(id string) *Node {
	return g.index[id]
}

// Node returns the package named name, looking in the host context first.
func (g *Graph) Node(name string) *Node {
	if node := g.NodeIn(ContextHost, name); node != nil {
		return node
	}
	return g.NodeIn(ContextBuild, name)
}

func (g *Graph) NodeIn(context Context, name string) *Node {
	for _, node := range g.Nodes {
		if node.Context == context && node.Ref.Name == name {
			return node
		}
	}
	return nil
}

func (g *Graph) Host() []*Node {
	return g.filter(ContextHost)
}

func (g *Graph) Build() []*Node {
	return g.filter(ContextBuild)
}

func (g *Graph) filter(context Context) []*Node {
	var nodes []*Node
	for _, node := range g.Nodes {
		if node.Context == context {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// RequestedBy returns the ids of the nodes requiring id, in edge order.
func (g *Graph) RequestedBy(id string) []string {
	var parents []string
	for _, edge := range g.Edges {
		if edge.To == id {
			parents = append(parents, edge.From)
		}
	}
	return parents
}

// TopoOrder returns the nodes with dependencies before their dependents. The root is not included.
func (g *Graph) TopoOrder() ([]*Node, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	order := make([]*Node, 0, len(g.Nodes))
	var path []string
	var visit func(node *Node) error
	visit = func(node *Node) error {
		switch state[node.ID] {
		case done:
			return nil
		case visiting:
			start := slices.Index(path, node.ID)
			return &CycleError{Path: append(slices.Clone(path[start:]), node.ID)}
		}
		state[node.ID] = visiting
		path = append(path, node.ID)
		for _, child := range node.Requires {
			if err := visit(g.index[child]); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[node.ID] = done
		if node != g.Root {
			order = append(order, node)
		}
		return nil
	}
	if err := visit(g.Root); err != nil {
		return nil, err
	}
	return order, nil
}
