package websocket

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry tracks the live connections of each room. It is observational:
// delivery goes through the broker, never through the registry.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uint]map[*Client]struct{}),
	}
}

func (r *Registry) Add(roomID uint, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[roomID] = members
	}
	members[c] = struct{}{}
}

// Remove drops c from the room. Removing an absent connection is a no-op; a
// room left without members is deleted.
func (r *Registry) Remove(roomID uint, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members returns a snapshot of the room's connections.
func (r *Registry) Members(roomID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return []*Client{}
	}
	return lo.Keys(members)
}

func (r *Registry) Contains(roomID uint, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

// Rooms lists rooms with at least one live connection, in ascending order.
func (r *Registry) Rooms() []uint {
	r.mu.RLock()
	ids := lo.Keys(r.rooms)
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count is the total number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(lo.Values(r.rooms), func(m map[*Client]struct{}) int { return len(m) })
}

// RoomCounts maps each occupied room to its connection count.
func (r *Registry) RoomCounts() map[uint]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapValues(r.rooms, func(m map[*Client]struct{}, _ uint) int { return len(m) })
}

// CloseAll tears down every registered connection. Teardown removes each
// connection from the registry, so the snapshot is taken before any Close.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	clients := lo.FlatMap(lo.Values(r.rooms), func(m map[*Client]struct{}, _ int) []*Client {
		return lo.Keys(m)
	})
	r.mu.RUnlock()

	for _, c := range clients {
		c.Shutdown()
	}
	return len(clients)
}
