package ble

import (
	"strings"
	"sync"
)

// Registry maps a fixed set of known characteristic UUIDs to the
// characteristics resolved on one connection. Keys are fixed at construction;
// an entry stays absent until discovery fills it. Safe for concurrent use.
type Registry struct {
	keys []string // canonical UUIDs in display order

	mu    sync.RWMutex
	chars map[string]Characteristic
}

// NewRegistry creates an empty registry for the given UUIDs. Order is kept
// and duplicates are ignored. UUIDs that do not parse are kept verbatim
// (lowercased) and can still match exactly.
func NewRegistry(known []string) *Registry {
	r := &Registry{chars: make(map[string]Characteristic, len(known))}
	seen := make(map[string]bool, len(known))
	for _, k := range known {
		key := canonicalKey(k)
		if seen[key] {
			continue
		}
		seen[key] = true
		r.keys = append(r.keys, key)
	}
	return r
}

// Keys returns the known UUIDs in display order.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Known reports whether uuid is one of the registry's fixed keys.
func (r *Registry) Known(uuid string) bool {
	if r == nil {
		return false
	}
	key := canonicalKey(uuid)
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Add stores c under its UUID if that UUID is known. It reports whether the
// characteristic was stored.
func (r *Registry) Add(c Characteristic) bool {
	key := canonicalKey(c.UUID())
	if !r.Known(key) {
		return false
	}
	r.mu.Lock()
	r.chars[key] = c
	r.mu.Unlock()
	return true
}

// Lookup returns the characteristic resolved for uuid.
func (r *Registry) Lookup(uuid string) (Characteristic, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chars[canonicalKey(uuid)]
	return c, ok
}

// Len returns the number of resolved characteristics.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chars)
}

// Missing returns the known UUIDs that were not resolved, in display order.
func (r *Registry) Missing() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, k := range r.keys {
		if _, ok := r.chars[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func canonicalKey(uuid string) string {
	if n, err := NormalizeUUID(uuid); err == nil {
		return n
	}
	return strings.ToLower(strings.TrimSpace(uuid))
}
