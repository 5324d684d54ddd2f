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

import (
	"fmt"
	"iter"
	"slices"
)

// SortedMap is a read-only map keeping its entries in ascending key order.
// It is created once from a list of sorted, unique entries and never modified
// afterwards, which makes it safe to share between goroutines. The zero value
// is an empty map.
type SortedMap[K any, V any] struct {
	list       []MapEntry[K, V]
	comparator Comparator[K]
}

// NewSortedMap creates a map from the given entries, which must be in strictly
// ascending key order. The map takes ownership of the entry slice.
func NewSortedMap[K any, V any](entries []MapEntry[K, V], comparator Comparator[K]) (SortedMap[K, V], error) {
	for i := 1; i < len(entries); i++ {
		if comparator.Compare(&entries[i-1].Key, &entries[i].Key) >= 0 {
			return SortedMap[K, V]{}, fmt.Errorf("entries are not sorted or not unique at position %d", i)
		}
	}
	return SortedMap[K, V]{list: entries, comparator: comparator}, nil
}

// Get returns a value from the table or false.
func (m SortedMap[K, V]) Get(key K) (val V, exists bool) {
	if index, exists := m.findItem(key); exists {
		return m.list[index].Val, true
	}
	return
}

// Size returns the number of entries.
func (m SortedMap[K, V]) Size() int {
	return len(m.list)
}

// At returns the entry at the given position in key order.
func (m SortedMap[K, V]) At(i int) MapEntry[K, V] {
	return m.list[i]
}

// ForEach calls the callback for each key-value pair in ascending key order.
func (m SortedMap[K, V]) ForEach(callback func(K, V)) {
	for _, entry := range m.list {
		callback(entry.Key, entry.Val)
	}
}

// All iterates all entries in ascending key order.
func (m SortedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, entry := range m.list {
			if !yield(entry.Key, entry.Val) {
				return
			}
		}
	}
}

// Keys returns a copy of all keys in ascending order.
func (m SortedMap[K, V]) Keys() []K {
	res := make([]K, len(m.list))
	for i, entry := range m.list {
		res[i] = entry.Key
	}
	return res
}

// findItem finds a key in the list using binary search. It returns the index
// of the key and true if it was found.
func (m SortedMap[K, V]) findItem(key K) (index int, exists bool) {
	if len(m.list) == 0 {
		return 0, false
	}
	return slices.BinarySearchFunc(m.list, key, func(entry MapEntry[K, V], key K) int {
		return m.comparator.Compare(&entry.Key, &key)
	})
}
