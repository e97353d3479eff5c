package cache

// Bucket is a typed view of one namespace.
type Bucket[T any] struct {
	store *Store
	ns    Namespace
}

// NewBucket returns a typed view of ns.
func NewBucket[T any](store *Store, ns Namespace) *Bucket[T] {
	return &Bucket[T]{store: store, ns: ns}
}

// Get returns the fresh value for key.
func (b *Bucket[T]) Get(key string) (T, bool) {
	var v T
	if !b.store.Get(b.ns, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Put caches v under key. See Store.Put for the meaning of the error.
func (b *Bucket[T]) Put(key string, v T) error {
	return b.store.Put(b.ns, key, v)
}

// Delete removes key.
func (b *Bucket[T]) Delete(key string) {
	b.store.Delete(b.ns, key)
}
