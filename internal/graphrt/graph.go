package graphrt

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Graph is the deserialized topology descriptor of a compiled model.
type Graph struct {
	Nodes      []Node      `json:"nodes"`
	ArgNodes   []int       `json:"arg_nodes"`
	Heads      []NodeEntry `json:"heads"`
	NodeRowPtr []int       `json:"node_row_ptr"`
	Attrs      GraphAttrs  `json:"attrs"`
}

// Node is one vertex of the graph. Op is "null" for graph inputs (data and
// weights) and "tvm_op" for operator nodes.
type Node struct {
	Op     string         `json:"op"`
	Name   string         `json:"name"`
	Inputs []NodeEntry    `json:"inputs"`
	Attrs  map[string]any `json:"attrs,omitempty"`
	Param  map[string]any `json:"param,omitempty"`
}

// NodeEntry references output Index of node NodeID.
type NodeEntry struct {
	NodeID  int
	Index   int
	Version int
}

// GraphAttrs holds the per-entry attributes of the graph, indexed by entry id.
type GraphAttrs struct {
	Shape       [][]int64
	DLType      []string
	StorageID   []int
	DeviceIndex []int
}

// UnmarshalJSON decodes [node_id, index] or [node_id, index, version].
func (e *NodeEntry) UnmarshalJSON(data []byte) error {
	var fields []int
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) < 2 || len(fields) > 3 {
		return fmt.Errorf("%w: node entry %s", ErrInvalidGraph, data)
	}

	e.NodeID, e.Index = fields[0], fields[1]
	if len(fields) == 3 {
		e.Version = fields[2]
	}
	return nil
}

// MarshalJSON encodes the entry as [node_id, index, version].
func (e NodeEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]int{e.NodeID, e.Index, e.Version})
}

// UnmarshalJSON decodes the ["type_tag", value] pairs of the attrs object.
func (a *GraphAttrs) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decode := func(key string, out any) error {
		pair, ok := raw[key]
		if !ok {
			return nil
		}
		if len(pair) != 2 {
			return fmt.Errorf("%w: attrs.%s is not a [type, value] pair", ErrInvalidGraph, key)
		}
		if err := json.Unmarshal(pair[1], out); err != nil {
			return fmt.Errorf("%w: attrs.%s: %v", ErrInvalidGraph, key, err)
		}
		return nil
	}

	if err := decode("shape", &a.Shape); err != nil {
		return err
	}
	if err := decode("dltype", &a.DLType); err != nil {
		return err
	}
	if err := decode("storage_id", &a.StorageID); err != nil {
		return err
	}
	return decode("device_index", &a.DeviceIndex)
}

// MarshalJSON encodes the attrs object with its type tags.
func (a GraphAttrs) MarshalJSON() ([]byte, error) {
	out := map[string][2]any{
		"shape":      {"list_shape", a.Shape},
		"dltype":     {"list_str", a.DLType},
		"storage_id": {"list_int", a.StorageID},
	}
	if a.DeviceIndex != nil {
		out["device_index"] = [2]any{"list_int", a.DeviceIndex}
	}
	return json.Marshal(out)
}

// ParseGraph decodes and validates a topology descriptor.
func ParseGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	if len(g.NodeRowPtr) == 0 {
		g.NodeRowPtr = make([]int, 0, len(g.Nodes)+1)
		g.NodeRowPtr = append(g.NodeRowPtr, 0)
		for _, n := range g.Nodes {
			g.NodeRowPtr = append(g.NodeRowPtr, g.NodeRowPtr[len(g.NodeRowPtr)-1]+n.NumOutputs())
		}
	}

	if err := g.validate(); err != nil {
		return nil, err
	}

	return &g, nil
}

// NumEntries returns the total number of node outputs in the graph.
func (g *Graph) NumEntries() int {
	return g.NodeRowPtr[len(g.NodeRowPtr)-1]
}

// EntryID maps a node output to its flat entry id.
func (g *Graph) EntryID(nodeID, index int) int {
	return g.NodeRowPtr[nodeID] + index
}

func (g *Graph) validate() error {
	if len(g.NodeRowPtr) != len(g.Nodes)+1 {
		return fmt.Errorf("%w: node_row_ptr has %d entries for %d nodes", ErrInvalidGraph, len(g.NodeRowPtr), len(g.Nodes))
	}

	if g.NodeRowPtr[0] != 0 {
		return fmt.Errorf("%w: node_row_ptr starts at %d", ErrInvalidGraph, g.NodeRowPtr[0])
	}
	for i := 1; i < len(g.NodeRowPtr); i++ {
		if g.NodeRowPtr[i] < g.NodeRowPtr[i-1] {
			return fmt.Errorf("%w: node_row_ptr decreases at node %d", ErrInvalidGraph, i-1)
		}
	}

	n := g.NumEntries()
	if len(g.Attrs.Shape) != n || len(g.Attrs.DLType) != n || len(g.Attrs.StorageID) != n {
		return fmt.Errorf("%w: attrs describe %d/%d/%d entries, graph has %d",
			ErrInvalidGraph, len(g.Attrs.Shape), len(g.Attrs.DLType), len(g.Attrs.StorageID), n)
	}

	for eid := range n {
		if _, ok := checkedBytes(g.Attrs.Shape[eid], 1); !ok {
			return fmt.Errorf("%w: entry %d has invalid shape %v", ErrInvalidGraph, eid, g.Attrs.Shape[eid])
		}
		// A storage plan never needs more buffers than entries.
		if sid := g.Attrs.StorageID[eid]; sid < 0 || sid >= n {
			return fmt.Errorf("%w: entry %d has storage id %d", ErrInvalidGraph, eid, sid)
		}
	}

	for _, nid := range g.ArgNodes {
		if nid < 0 || nid >= len(g.Nodes) {
			return fmt.Errorf("%w: arg node %d out of range", ErrInvalidGraph, nid)
		}
	}

	check := func(e NodeEntry) error {
		if e.NodeID < 0 || e.NodeID >= len(g.Nodes) {
			return fmt.Errorf("%w: entry references node %d", ErrInvalidGraph, e.NodeID)
		}
		if e.Index < 0 || g.EntryID(e.NodeID, e.Index) >= g.NodeRowPtr[e.NodeID+1] {
			return fmt.Errorf("%w: node %d has no output %d", ErrInvalidGraph, e.NodeID, e.Index)
		}
		return nil
	}

	for _, h := range g.Heads {
		if err := check(h); err != nil {
			return err
		}
	}
	for _, node := range g.Nodes {
		for _, in := range node.Inputs {
			if err := check(in); err != nil {
				return err
			}
		}
	}

	return nil
}

// Attr returns a node attribute as a string, looking in attrs then param.
func (n *Node) Attr(key string) (string, bool) {
	for _, m := range []map[string]any{n.Attrs, n.Param} {
		if v, ok := m[key]; ok {
			switch x := v.(type) {
			case string:
				return x, true
			case float64:
				return strconv.FormatFloat(x, 'f', -1, 64), true
			default:
				return fmt.Sprint(x), true
			}
		}
	}
	return "", false
}

// NumOutputs returns the node's declared output count, 1 when absent.
func (n *Node) NumOutputs() int {
	if s, ok := n.Attr("num_outputs"); ok {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return 1
}
