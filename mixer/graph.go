package mixer

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// NodeID identifies a node in the processing graph. IDs are stable for the
// lifetime of the node and may be reused after removal.
type NodeID int32

// InvalidNode is returned by failed node operations.
const InvalidNode NodeID = -1

// Processor transforms one block of planar stereo audio in place. fx.Unit
// satisfies this.
type Processor interface {
	Process(left, right []float64)
}

var (
	errUnknownNode   = errors.New("mixer: unknown node")
	errGraphCycle    = errors.New("mixer: graph contains a cycle")
	errNotPrepared   = errors.New("mixer: graph not prepared")
	errSelfLoop      = errors.New("mixer: node cannot connect to itself")
	errDuplicateEdge = errors.New("mixer: connection already exists")
)

// node is one arena slot. Structural nodes (pure mix points) have neither
// a processor nor a source; source nodes generate audio; processor nodes
// transform the mix of their parents.
type node struct {
	used bool
	name string

	proc   Processor
	source Source

	inputs  []NodeID
	outputs []NodeID

	bufL, bufR []float64
}

// Graph is a directed acyclic processing graph over planar stereo blocks.
// Nodes live in an arena indexed by NodeID; removal pushes the slot onto a
// free list for reuse. Topology edits mark the traversal order dirty; the
// next Compile rebuilds it with a Kahn sort. Process itself never
// allocates once Prepare has run.
type Graph struct {
	nodes []node
	free  []NodeID

	order    []NodeID
	indegree []int
	queue    []NodeID
	dirty    bool

	maxBlock int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Prepare sizes every node buffer for blocks up to maxBlock samples.
func (g *Graph) Prepare(maxBlock int) error {
	if maxBlock <= 0 {
		return fmt.Errorf("mixer: max block size must be > 0: %d", maxBlock)
	}

	g.maxBlock = maxBlock
	for i := range g.nodes {
		if g.nodes[i].used {
			g.sizeBuffers(&g.nodes[i])
		}
	}

	return nil
}

func (g *Graph) sizeBuffers(n *node) {
	n.bufL = core.EnsureLen(n.bufL, g.maxBlock)
	n.bufR = core.EnsureLen(n.bufR, g.maxBlock)
}

// AddNode inserts a node with an optional processor. A nil processor makes
// a structural node that only mixes its parents.
func (g *Graph) AddNode(name string, proc Processor) NodeID {
	id := g.alloc()
	n := &g.nodes[id]

	n.used = true
	n.name = name
	n.proc = proc
	n.source = nil
	n.inputs = n.inputs[:0]
	n.outputs = n.outputs[:0]

	if g.maxBlock > 0 {
		g.sizeBuffers(n)
	}

	g.dirty = true

	return id
}

// AddSource inserts a generator node. Sources have no parents; any
// connections into them are ignored during processing.
func (g *Graph) AddSource(name string, source Source) NodeID {
	id := g.AddNode(name, nil)
	g.nodes[id].source = source

	return id
}

func (g *Graph) alloc() NodeID {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]

		return id
	}

	g.nodes = append(g.nodes, node{})

	return NodeID(len(g.nodes) - 1)
}

// SetNodeSource swaps the generator on a source node. A nil source makes
// the node render silence.
func (g *Graph) SetNodeSource(id NodeID, source Source) error {
	n, err := g.lookup(id)
	if err != nil {
		return err
	}

	n.source = source

	return nil
}

// RemoveNode detaches the node from all neighbors and frees its slot.
func (g *Graph) RemoveNode(id NodeID) error {
	n, err := g.lookup(id)
	if err != nil {
		return err
	}

	for _, parent := range n.inputs {
		g.nodes[parent].outputs = removeID(g.nodes[parent].outputs, id)
	}

	for _, child := range n.outputs {
		g.nodes[child].inputs = removeID(g.nodes[child].inputs, id)
	}

	n.used = false
	n.proc = nil
	n.source = nil
	n.inputs = n.inputs[:0]
	n.outputs = n.outputs[:0]

	g.free = append(g.free, id)
	g.dirty = true

	return nil
}

// Connect adds a stereo-wide edge from one node to another.
func (g *Graph) Connect(from, to NodeID) error {
	if from == to {
		return errSelfLoop
	}

	src, err := g.lookup(from)
	if err != nil {
		return err
	}

	dst, err := g.lookup(to)
	if err != nil {
		return err
	}

	for _, existing := range src.outputs {
		if existing == to {
			return errDuplicateEdge
		}
	}

	src.outputs = append(src.outputs, to)
	dst.inputs = append(dst.inputs, from)
	g.dirty = true

	return nil
}

// Disconnect removes the edge if it exists.
func (g *Graph) Disconnect(from, to NodeID) error {
	src, err := g.lookup(from)
	if err != nil {
		return err
	}

	dst, err := g.lookup(to)
	if err != nil {
		return err
	}

	src.outputs = removeID(src.outputs, to)
	dst.inputs = removeID(dst.inputs, from)
	g.dirty = true

	return nil
}

// Connected reports whether the edge exists.
func (g *Graph) Connected(from, to NodeID) bool {
	src, err := g.lookup(from)
	if err != nil {
		return false
	}

	for _, existing := range src.outputs {
		if existing == to {
			return true
		}
	}

	return false
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	count := 0
	for i := range g.nodes {
		if g.nodes[i].used {
			count++
		}
	}

	return count
}

// NodeName returns the node's name, or "" for an unknown ID.
func (g *Graph) NodeName(id NodeID) string {
	n, err := g.lookup(id)
	if err != nil {
		return ""
	}

	return n.name
}

func (g *Graph) lookup(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(g.nodes) || !g.nodes[id].used {
		return nil, fmt.Errorf("%w: %d", errUnknownNode, id)
	}

	return &g.nodes[id], nil
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}

	return ids
}

// Compile rebuilds the topological traversal order after topology edits.
// It fails on cycles; the graph stays dirty until the cycle is removed and
// Process refuses to run in the meantime.
func (g *Graph) Compile() error {
	if !g.dirty {
		return nil
	}

	if cap(g.indegree) < len(g.nodes) {
		g.indegree = make([]int, len(g.nodes))
	}

	indegree := g.indegree[:len(g.nodes)]
	live := 0

	for i := range g.nodes {
		indegree[i] = 0

		if g.nodes[i].used {
			live++
			indegree[i] = len(g.nodes[i].inputs)
		}
	}

	g.queue = g.queue[:0]
	for i := range g.nodes {
		if g.nodes[i].used && indegree[i] == 0 {
			g.queue = append(g.queue, NodeID(i))
		}
	}

	order := g.order[:0]
	for len(g.queue) > 0 {
		id := g.queue[0]
		g.queue = g.queue[1:]
		order = append(order, id)

		for _, child := range g.nodes[id].outputs {
			indegree[child]--
			if indegree[child] == 0 {
				g.queue = append(g.queue, child)
			}
		}
	}

	if len(order) != live {
		return errGraphCycle
	}

	g.order = order
	g.dirty = false

	return nil
}

// Process runs one block of blockLen samples through the graph in
// topological order. Each node mixes its parents by summation, then either
// renders (sources) or transforms (processors) its buffers. The events
// slice is handed to every source.
func (g *Graph) Process(blockLen int, events []Event) error {
	if g.maxBlock <= 0 {
		return errNotPrepared
	}

	if blockLen <= 0 || blockLen > g.maxBlock {
		return fmt.Errorf("mixer: block length %d out of range (1..%d)", blockLen, g.maxBlock)
	}

	err := g.Compile()
	if err != nil {
		return err
	}

	for _, id := range g.order {
		n := &g.nodes[id]

		bufL := n.bufL[:blockLen]
		bufR := n.bufR[:blockLen]

		if n.source != nil {
			n.source.Render(bufL, bufR, events)
		} else {
			g.gather(n, bufL, bufR)
		}

		if n.proc != nil {
			n.proc.Process(bufL, bufR)
		}
	}

	return nil
}

// gather sums the parents' output buffers into the node's buffers.
func (g *Graph) gather(n *node, bufL, bufR []float64) {
	blockLen := len(bufL)

	switch len(n.inputs) {
	case 0:
		core.Zero(bufL)
		core.Zero(bufR)
	case 1:
		parent := &g.nodes[n.inputs[0]]
		copy(bufL, parent.bufL[:blockLen])
		copy(bufR, parent.bufR[:blockLen])
	default:
		first := &g.nodes[n.inputs[0]]
		copy(bufL, first.bufL[:blockLen])
		copy(bufR, first.bufR[:blockLen])

		for _, id := range n.inputs[1:] {
			parent := &g.nodes[id]
			vecmath.AddBlockInPlace(bufL, parent.bufL[:blockLen])
			vecmath.AddBlockInPlace(bufR, parent.bufR[:blockLen])
		}
	}
}

// Buffers exposes a node's output buffers for the given block length. The
// engine uses this to feed the input node and drain the output node.
func (g *Graph) Buffers(id NodeID, blockLen int) (left, right []float64, err error) {
	n, err := g.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	if blockLen <= 0 || blockLen > g.maxBlock {
		return nil, nil, fmt.Errorf("mixer: block length %d out of range (1..%d)", blockLen, g.maxBlock)
	}

	return n.bufL[:blockLen], n.bufR[:blockLen], nil
}
