package session

import (
	"sync"
	"time"

	"advising-chat/internal/identity"

	gocache "github.com/patrickmn/go-cache"
)

// Handle pairs a manager with the bearer session its remote calls draw credentials from.
type Handle struct {
	Manager *Manager
	Bearer  *identity.BearerSession
}

// Factory builds the manager for a newly seen identity.
type Factory func(identityId string, bearer *identity.BearerSession) *Manager

// Registry keeps one manager per identity and closes managers left idle past the timeout.
type Registry struct {
	cache   *gocache.Cache
	mu      sync.Mutex
	factory Factory
}

func NewRegistry(idleTimeout time.Duration, factory Factory) *Registry {
	// Purge idle sessions every 10 minutes
	c := gocache.New(idleTimeout, 10*time.Minute)
	c.OnEvicted(func(_ string, x interface{}) {
		x.(*Handle).Manager.Close()
	})
	return &Registry{cache: c, factory: factory}
}

// Acquire returns the identity's handle, creating it on first use. Each call extends the idle timeout.
func (r *Registry) Acquire(identityId string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(identityId); found {
		handle := x.(*Handle)
		r.cache.SetDefault(identityId, handle)
		return handle
	}

	// An expired handle may linger until the janitor runs; Delete evicts and closes it.
	r.cache.Delete(identityId)
	bearer := identity.NewBearerSession(identityId)
	handle := &Handle{Manager: r.factory(identityId, bearer), Bearer: bearer}
	r.cache.SetDefault(identityId, handle)
	return handle
}

func (r *Registry) Get(identityId string) (*Handle, bool) {
	if x, found := r.cache.Get(identityId); found {
		return x.(*Handle), true
	}
	return nil, false
}

// Release signs the identity out and closes its manager.
func (r *Registry) Release(identityId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if x, found := r.cache.Get(identityId); found {
		x.(*Handle).Bearer.SignOut()
	}
	r.cache.Delete(identityId)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Close releases every identity.
func (r *Registry) Close() {
	for id := range r.cache.Items() {
		r.Release(id)
	}
}
