// Package lru provides a bounded map that keeps its entries in
// least-recently-used order.
package lru

import (
	"container/list"
	"iter"
)

// Unbounded is the capacity reported by a Map that never evicts.
const Unbounded = -1

// Entry is a single key/value pair, used to seed a Map and to enumerate it.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an ordered key/value container that evicts its least recently used
// entry once it holds more than its capacity. Both Get and Set count as a use.
//
// Iteration order is recency order: oldest (LRU) first, newest (MRU) last.
//
// Map is not safe for concurrent use. Callers sharing a Map between goroutines
// must serialize access themselves.
type Map[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = LRU, back = MRU
	onEvict  func(K, V)
}

// New creates a Map holding at most capacity entries. A capacity of zero or
// less creates an unbounded map.
//
// Seed entries are applied in order through Set, so later entries end up more
// recently used and the capacity bound applies to them as well.
func New[K comparable, V any](capacity int, entries ...Entry[K, V]) *Map[K, V] {
	if capacity <= 0 {
		capacity = Unbounded
	}
	m := &Map[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, len(entries)),
		order:    list.New(),
	}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Get returns the value stored for key and marks it most recently used.
// The second result is false if the key is absent; nothing is inserted.
func (m *Map[K, V]) Get(key K) (V, bool) {
	elem, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	m.order.MoveToBack(elem)
	return elem.Value.(*Entry[K, V]).Value, true
}

// Peek returns the value stored for key without changing its position.
func (m *Map[K, V]) Peek(key K) (V, bool) {
	elem, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return elem.Value.(*Entry[K, V]).Value, true
}

// Set stores value under key and marks it most recently used, then evicts
// from the LRU end until the map is within capacity. With a capacity of zero
// the entry just stored is evicted as well.
//
// Set returns the map so calls can be chained.
func (m *Map[K, V]) Set(key K, value V) *Map[K, V] {
	if elem, ok := m.items[key]; ok {
		elem.Value.(*Entry[K, V]).Value = value
		m.order.MoveToBack(elem)
	} else {
		m.items[key] = m.order.PushBack(&Entry[K, V]{Key: key, Value: value})
	}
	m.evictOverflow()
	return m
}

// Has reports whether key is present. It does not change the order.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.items[key]
	return ok
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	elem, ok := m.items[key]
	if !ok {
		return false
	}
	m.order.Remove(elem)
	delete(m.items, key)
	return true
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.order.Len()
}

// Capacity returns the maximum number of entries, or Unbounded.
func (m *Map[K, V]) Capacity() int {
	return m.capacity
}

// SetCapacity changes the maximum number of entries. A negative value makes
// the map unbounded; zero makes it retain nothing.
//
// Shrinking below the current size does not evict anything by itself. The
// excess is trimmed by the next Set. Use Resize to trim immediately.
func (m *Map[K, V]) SetCapacity(capacity int) {
	if capacity < 0 {
		capacity = Unbounded
	}
	m.capacity = capacity
}

// Resize changes the capacity like SetCapacity and evicts any excess entries
// right away. It returns the number of entries evicted.
func (m *Map[K, V]) Resize(capacity int) int {
	m.SetCapacity(capacity)
	return m.evictOverflow()
}

// OnEvict registers fn to be called for every entry dropped to satisfy the
// capacity. It is not called for Delete or Clear.
func (m *Map[K, V]) OnEvict(fn func(key K, value V)) {
	m.onEvict = fn
}

// Oldest returns the least recently used entry without touching it.
func (m *Map[K, V]) Oldest() (K, V, bool) {
	front := m.order.Front()
	if front == nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	e := front.Value.(*Entry[K, V])
	return e.Key, e.Value, true
}

// Keys returns the keys from least to most recently used.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*Entry[K, V]).Key)
	}
	return keys
}

// Values returns the values from least to most recently used.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		values = append(values, e.Value.(*Entry[K, V]).Value)
	}
	return values
}

// Entries returns copies of all entries from least to most recently used.
func (m *Map[K, V]) Entries() []Entry[K, V] {
	entries := make([]Entry[K, V], 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		entries = append(entries, *e.Value.(*Entry[K, V]))
	}
	return entries
}

// All yields entries from least to most recently used. The map must not be
// modified during iteration, and that includes Get.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for e := m.order.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*Entry[K, V])
			if !yield(entry.Key, entry.Value) {
				return
			}
		}
	}
}

// Clear removes all entries. The capacity is unchanged.
func (m *Map[K, V]) Clear() {
	m.items = make(map[K]*list.Element)
	m.order.Init()
}

func (m *Map[K, V]) evictOverflow() int {
	if m.capacity == Unbounded {
		return 0
	}
	evicted := 0
	for m.order.Len() > m.capacity {
		oldest := m.order.Front()
		entry := m.order.Remove(oldest).(*Entry[K, V])
		delete(m.items, entry.Key)
		evicted++
		if m.onEvict != nil {
			m.onEvict(entry.Key, entry.Value)
		}
	}
	return evicted
}
