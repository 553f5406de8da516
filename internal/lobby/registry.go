// internal/lobby/registry.go
package lobby

import "sort"

// Registry owns every lobby this peer knows about: locally owned rooms and
// copies learned from remote snapshots alike. It is not internally locked;
// the matchmaker's critical section guards all access.
type Registry struct {
	lobbies map[RoomID]*Lobby
}

// NewRegistry initializes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{lobbies: make(map[RoomID]*Lobby)}
}

// Find retrieves a lobby by room id, or nil when unknown.
func (r *Registry) Find(id RoomID) *Lobby {
	return r.lobbies[id]
}

// Insert adds a lobby. An existing lobby with the same room id is replaced.
func (r *Registry) Insert(l *Lobby) {
	r.lobbies[l.RoomID] = l
}

// Remove deletes the lobby with the given room id.
func (r *Registry) Remove(id RoomID) {
	delete(r.lobbies, id)
}

// Len returns the number of known lobbies.
func (r *Registry) Len() int {
	return len(r.lobbies)
}

// All returns the known lobbies in ascending room-id order. Iteration order
// must be stable so that tick-driven sweeps behave deterministically.
func (r *Registry) All() []*Lobby {
	out := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
