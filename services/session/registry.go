package session

import (
	"context"
	"sync"
)

// GlobalKey is the default session key. The gateway addresses a single
// logical session today; the registry keeps the door open for more.
const GlobalKey = "global"

// OpenFunc constructs an actor for a key, blocking until its state is loaded
type OpenFunc func(ctx context.Context, key string) (*Actor, error)

// Registry hands out session actors by key, creating each at most once.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor
	open   OpenFunc
}

// NewRegistry creates a registry backed by the given open function
func NewRegistry(open OpenFunc) *Registry {
	return &Registry{
		actors: make(map[string]*Actor),
		open:   open,
	}
}

// Open returns the actor for key, constructing it on first use. The first
// caller blocks on the state load; later callers get the same instance.
func (r *Registry) Open(ctx context.Context, key string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.actors[key]; ok {
		return actor, nil
	}

	actor, err := r.open(ctx, key)
	if err != nil {
		return nil, err
	}
	r.actors[key] = actor
	return actor, nil
}

// Close shuts down every open actor's realtime sessions
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, actor := range r.actors {
		actor.CloseSessions()
	}
}
