package gate

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Factory creates the orchestrator of a browser.
type Factory func(browserID string) *Orchestrator

// Registry holds the orchestrators of active browsers. Entries expire after being idle for the
// configured timeout; every Get renews the timeout.
type Registry struct {
	mu      sync.Mutex
	cache   *gocache.Cache
	factory Factory
}

// NewRegistry creates a registry. A non-positive idle timeout keeps entries forever.
func NewRegistry(idle time.Duration, factory Factory) *Registry {
	cleanup := idle
	if idle <= 0 {
		idle = gocache.NoExpiration
		cleanup = 0
	}
	return &Registry{
		cache:   gocache.New(idle, cleanup),
		factory: factory,
	}
}

// Get returns the orchestrator of the browser, creating it if needed.
// fresh reports whether it was just created and still needs to be bootstrapped.
func (r *Registry) Get(browserID string) (o *Orchestrator, fresh bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(browserID); ok {
		o = v.(*Orchestrator)
		r.cache.SetDefault(browserID, o)
		return o, false
	}

	o = r.factory(browserID)
	r.cache.SetDefault(browserID, o)
	return o, true
}

// Len returns the number of live orchestrators.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
