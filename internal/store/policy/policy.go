package policy

// EvictionPolicy decides which key a bounded store gives up when it is full.
// Implementations are safe for concurrent use.
type EvictionPolicy[K comparable] interface {
	// Touch records a read or an overwrite of key.
	Touch(key K)

	// Admit records a newly stored key.
	Admit(key K)

	// Forget drops key from the policy's bookkeeping.
	Forget(key K)

	// Victim returns the next key to evict; ok is false when nothing is tracked.
	Victim() (key K, ok bool)

	// Len reports how many keys are tracked.
	Len() int
}

// ByName returns the policy called name ("lru" or "fifo").
func ByName[K comparable](name string) (EvictionPolicy[K], bool) {
	switch name {
	case "", "lru":
		return NewLRU[K](), true
	case "fifo":
		return NewFIFO[K](), true
	}
	return nil, false
}
