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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLruCache_GetReturnsStoredValues(t *testing.T) {
	c := NewLruCache[int, string](3)
	_, found := c.Get(1)
	require.False(t, found)

	c.Set(1, "a")
	c.Set(2, "b")
	value, found := c.Get(1)
	require.True(t, found)
	require.Equal(t, "a", value)

	c.Set(1, "c")
	value, _ = c.Get(1)
	require.Equal(t, "c", value)
	require.Equal(t, 2, c.Len())
}

func TestLruCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLruCache[int, string](2)
	c.Set(1, "a")
	c.Set(2, "b")
	c.Get(1)

	key, value, evicted := c.Set(3, "c")
	require.True(t, evicted)
	require.Equal(t, 2, key)
	require.Equal(t, "b", value)
	require.Equal(t, []int{3, 1}, c.Keys())

	_, _, evicted = c.Set(3, "d")
	require.False(t, evicted)
}

func TestLruCache_CapacityOfOne(t *testing.T) {
	c := NewLruCache[int, int](1)
	for i := 0; i < 5; i++ {
		c.Set(i, i)
		require.Equal(t, []int{i}, c.Keys())
	}
}

func TestLruCache_Remove(t *testing.T) {
	c := NewLruCache[int, string](3)
	c.Set(1, "a")
	c.Set(2, "b")
	c.Set(3, "c")

	value, found := c.Remove(2)
	require.True(t, found)
	require.Equal(t, "b", value)
	require.Equal(t, []int{3, 1}, c.Keys())

	c.Remove(1)
	c.Remove(3)
	_, found = c.Remove(3)
	require.False(t, found)
	require.Empty(t, c.Keys())

	c.Set(4, "d")
	require.Equal(t, []int{4}, c.Keys())
}

func TestLruCache_RejectsNonPositiveCapacity(t *testing.T) {
	require.Panics(t, func() { NewLruCache[int, int](0) })
}
