// Package usernames implements the process-wide username registry: a
// simple bidirectional claim table guarded by a single mutex.
package usernames

import (
	"sync"

	"snake-lobby-server/internal/ids"
)

// Registry tracks which connection currently holds which username.
// A connection may hold at most one username at a time.
type Registry struct {
	mu       sync.RWMutex
	byName   map[ids.UserName]ids.Con
	byCon    map[ids.Con]ids.UserName
}

// New builds an empty username registry.
func New() *Registry {
	return &Registry{
		byName: make(map[ids.UserName]ids.Con),
		byCon:  make(map[ids.Con]ids.UserName),
	}
}

// TryInsert attempts to claim name for con. It fails if name is already
// held by a different connection. If con already holds a (possibly
// different) name, that claim is released first — a connection holds at
// most one username at a time.
func (r *Registry) TryInsert(name ids.UserName, con ids.Con) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, ok := r.byName[name]; ok && holder != con {
		return false
	}

	if old, ok := r.byCon[con]; ok && old != name {
		delete(r.byName, old)
	}

	r.byName[name] = con
	r.byCon[con] = name
	return true
}

// Get returns the username held by con, if any.
func (r *Registry) Get(con ids.Con) (ids.UserName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byCon[con]
	return name, ok
}

// CleanCon releases every name held by con. Called unconditionally on
// connection teardown.
func (r *Registry) CleanCon(con ids.Con) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.byCon[con]; ok {
		delete(r.byName, name)
		delete(r.byCon, con)
	}
}
