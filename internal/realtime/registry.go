package realtime

import (
	"sort"
	"sync"
)

// Registry tracks which user listens on which channel. There is at most one
// Client per (channel, user); a newer registration supersedes the older one.
type Registry struct {
	mu       sync.RWMutex
	channels map[Channel]map[int]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[Channel]map[int]*Client),
	}
}

// Register stores c under (ch, c.UserID) and returns the client it replaced, if any.
func (r *Registry) Register(ch Channel, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[ch]
	if !ok {
		members = make(map[int]*Client)
		r.channels[ch] = members
	}
	previous := members[c.UserID]
	members[c.UserID] = c
	if previous == c {
		return nil
	}
	return previous
}

// Unregister drops whatever is registered under (ch, userID). No-op when absent.
func (r *Registry) Unregister(ch Channel, userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(ch, userID)
}

// Remove drops the entry for (ch, c.UserID) only if it still points at c, so
// a superseded session never removes its successor. It reports whether an
// entry was removed.
func (r *Registry) Remove(ch Channel, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[ch]
	if !ok || members[c.UserID] != c {
		return false
	}
	r.deleteLocked(ch, c.UserID)
	return true
}

func (r *Registry) Lookup(ch Channel, userID int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.channels[ch][userID]
	return c, ok
}

// Members returns a sorted snapshot of the users registered on ch.
func (r *Registry) Members(ch Channel) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.channels[ch]))
	for id := range r.channels[ch] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IsRegistered reports whether userID has a live handle on ch.
func (r *Registry) IsRegistered(ch Channel, userID int) bool {
	_, ok := r.Lookup(ch, userID)
	return ok
}

// Channels returns the channels that currently have at least one member.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Channel, 0, len(r.channels))
	for ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// CloseAll closes and forgets every registered client.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	var clients []*Client
	for _, members := range r.channels {
		for _, c := range members {
			clients = append(clients, c)
		}
	}
	r.channels = make(map[Channel]map[int]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close(code, reason)
	}
	return len(clients)
}

func (r *Registry) snapshot(ch Channel, userIDs []int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[ch]
	if len(members) == 0 {
		return nil
	}
	if userIDs == nil {
		out := make([]*Client, 0, len(members))
		for _, c := range members {
			out = append(out, c)
		}
		return out
	}
	out := make([]*Client, 0, len(userIDs))
	seen := make(map[int]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c, ok := members[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) deleteLocked(ch Channel, userID int) {
	members, ok := r.channels[ch]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.channels, ch)
	}
}
