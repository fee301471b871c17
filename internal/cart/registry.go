package cart

import (
	"sync"
)

// Registry keeps one cart per session key (the operator's username).
type Registry struct {
	mu            sync.Mutex
	catalog       Catalog
	maxPerProduct int
	sessions      map[string]*session
}

type session struct {
	mu   sync.Mutex
	cart *Cart
}

func NewRegistry(catalog Catalog, maxPerProduct int) *Registry {
	return &Registry{
		catalog:       catalog,
		maxPerProduct: maxPerProduct,
		sessions:      make(map[string]*session),
	}
}

// With runs fn while holding the session's lock, creating the cart on first use.
func (r *Registry) With(key string, fn func(c *Cart) error) error {
	r.mu.Lock()
	sess, ok := r.sessions[key]
	if !ok {
		sess = &session{cart: New(r.catalog, r.maxPerProduct)}
		r.sessions[key] = sess
	}
	r.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.cart)
}

func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}
