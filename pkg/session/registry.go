package session

import (
	"sort"
	"sync"

	"irondiscipline/warden/pkg/subject"
)

// Registry is an in-process Directory of online players.
type Registry struct {
	mu      sync.RWMutex
	players map[subject.ID]Player
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[subject.ID]Player)}
}

// Join marks a player online. A second join for the same ID replaces the
// previous live handle.
func (r *Registry) Join(p Player) {
	r.mu.Lock()
	r.players[p.ID()] = p
	r.mu.Unlock()
}

// Leave marks a player offline. It reports whether the player was online.
func (r *Registry) Leave(id subject.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// IsOnline implements Directory.
func (r *Registry) IsOnline(id subject.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[id]
	return ok
}

// Get implements Directory.
func (r *Registry) Get(id subject.ID) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// Online returns the online subjects ordered by name.
func (r *Registry) Online() []subject.Subject {
	r.mu.RLock()
	out := make([]subject.Subject, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Subject())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
