package policy

import (
	"container/list"
	"sync"
)

// FIFO evicts keys in insertion order. Reads and overwrites do not refresh
// a key's position; a key only moves to the back after being forgotten and
// admitted again.
type FIFO[K comparable] struct {
	mu    sync.Mutex
	order *list.List // front = oldest
	items map[K]*list.Element
}

func NewFIFO[K comparable]() *FIFO[K] {
	return &FIFO[K]{
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

func (p *FIFO[K]) Touch(K) {}

func (p *FIFO[K]) Admit(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[key]; ok {
		return
	}
	p.items[key] = p.order.PushBack(key)
}

func (p *FIFO[K]) Forget(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem, ok := p.items[key]; ok {
		p.order.Remove(elem)
		delete(p.items, key)
	}
}

func (p *FIFO[K]) Victim() (K, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if elem := p.order.Front(); elem != nil {
		return elem.Value.(K), true
	}
	var zero K
	return zero, false
}

func (p *FIFO[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
