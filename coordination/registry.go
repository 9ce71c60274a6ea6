package coordination

import (
	"slices"
	"sync"
)

type NodeInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Addr string `json:"addr"`
}

type RegisterRequest struct {
	Node NodeInfo `json:"node"`
}

type ListResponse struct {
	Nodes []NodeInfo `json:"nodes"`
}

// Registry is the in-memory membership table behind the HTTP API.
type Registry struct {
	mu    sync.RWMutex
	nodes []NodeInfo
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds n, or replaces the entry with the same kind and id in place.
func (r *Registry) Register(n NodeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.nodes, func(e NodeInfo) bool { return e.Kind == n.Kind && e.ID == n.ID })
	if idx >= 0 {
		r.nodes[idx] = n
		return
	}
	r.nodes = append(r.nodes, n)
}

// Deregister removes the entry and reports whether it existed.
func (r *Registry) Deregister(kind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.nodes)
	r.nodes = slices.DeleteFunc(r.nodes, func(e NodeInfo) bool { return e.Kind == kind && e.ID == id })
	return len(r.nodes) != before
}

// Nodes lists entries of kind in registration order; an empty kind lists all.
func (r *Registry) Nodes(kind string) []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		if kind == "" || n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
