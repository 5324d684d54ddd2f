// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

// LruCache is a fixed capacity map evicting its least recently used entry
// when full. It is not safe for concurrent use.
type LruCache[K comparable, V any] struct {
	cache    map[K]*entry[K, V]
	capacity int
	head     *entry[K, V]
	tail     *entry[K, V]
}

type entry[K comparable, V any] struct {
	key        K
	val        V
	prev, next *entry[K, V]
}

// NewLruCache creates a cache holding up to capacity entries. The capacity
// must be positive.
func NewLruCache[K comparable, V any](capacity int) *LruCache[K, V] {
	if capacity <= 0 {
		panic("cache capacity must be positive")
	}
	return &LruCache[K, V]{
		cache:    make(map[K]*entry[K, V], capacity),
		capacity: capacity,
	}
}

// Get returns the value of the key and marks it as most recently used.
func (c *LruCache[K, V]) Get(key K) (V, bool) {
	item, exists := c.cache[key]
	if !exists {
		var zero V
		return zero, false
	}
	c.unlink(item)
	c.pushFront(item)
	return item.val, true
}

// Set stores the value of the key, evicting the least recently used entry
// if the cache is full.
func (c *LruCache[K, V]) Set(key K, val V) (evictedKey K, evictedValue V, evicted bool) {
	if item, exists := c.cache[key]; exists {
		item.val = val
		c.unlink(item)
		c.pushFront(item)
		return
	}

	item := new(entry[K, V])
	if len(c.cache) >= c.capacity {
		item = c.tail
		c.unlink(item)
		delete(c.cache, item.key)
		evictedKey, evictedValue, evicted = item.key, item.val, true
	}
	item.key, item.val = key, val
	c.cache[key] = item
	c.pushFront(item)
	return
}

// Remove drops the key from the cache.
func (c *LruCache[K, V]) Remove(key K) (V, bool) {
	item, exists := c.cache[key]
	if !exists {
		var zero V
		return zero, false
	}
	c.unlink(item)
	delete(c.cache, key)
	return item.val, true
}

// Keys lists the cached keys, most recently used first.
func (c *LruCache[K, V]) Keys() []K {
	res := make([]K, 0, len(c.cache))
	for cur := c.head; cur != nil; cur = cur.next {
		res = append(res, cur.key)
	}
	return res
}

func (c *LruCache[K, V]) Len() int {
	return len(c.cache)
}

func (c *LruCache[K, V]) unlink(item *entry[K, V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	item.prev, item.next = nil, nil
}

func (c *LruCache[K, V]) pushFront(item *entry[K, V]) {
	item.next = c.head
	if c.head != nil {
		c.head.prev = item
	}
	c.head = item
	if c.tail == nil {
		c.tail = item
	}
}
