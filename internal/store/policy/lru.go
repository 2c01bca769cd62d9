package policy

import (
	"container/list"
	"sync"
)

// LRU evicts the least recently used key.
type LRU[K comparable] struct {
	mu    sync.Mutex
	order *list.List // front = most recent
	items map[K]*list.Element
}

func NewLRU[K comparable]() *LRU[K] {
	return &LRU[K]{
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

func (p *LRU[K]) Touch(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem, ok := p.items[key]; ok {
		p.order.MoveToFront(elem)
	}
}

func (p *LRU[K]) Admit(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem, ok := p.items[key]; ok {
		p.order.MoveToFront(elem)
		return
	}
	p.items[key] = p.order.PushFront(key)
}

func (p *LRU[K]) Forget(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem, ok := p.items[key]; ok {
		p.order.Remove(elem)
		delete(p.items, key)
	}
}

func (p *LRU[K]) Victim() (K, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem := p.order.Back(); elem != nil {
		return elem.Value.(K), true
	}
	var zero K
	return zero, false
}

func (p *LRU[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
