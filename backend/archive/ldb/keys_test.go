// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"bytes"
	"testing"

	"github.com/Fantom-foundation/statediff/backend"
	"github.com/Fantom-foundation/statediff/common"
	"github.com/stretchr/testify/require"
)

func TestBlockKey(t *testing.T) {
	var key blockKey
	for _, block := range []uint64{0, 1, 1 << 32, maxBlock} {
		key.set(block)
		require.Equal(t, byte(backend.BlockArchiveKey), key[0])
		require.Equal(t, block, key.get())
	}
}

func TestBlockKey_NewerBlocksSortFirst(t *testing.T) {
	var older, newer blockKey
	older.set(5)
	newer.set(6)
	require.Negative(t, bytes.Compare(newer[:], older[:]))
}

func TestBlockKey_RangeFromContainsOlderBlocksOnly(t *testing.T) {
	keyRange := getBlockKeyRangeFrom(10)
	for block, want := range map[uint64]bool{0: true, 9: true, 10: true, 11: false} {
		var key blockKey
		key.set(block)
		inRange := bytes.Compare(key[:], keyRange.Start) >= 0 && bytes.Compare(key[:], keyRange.Limit) < 0
		require.Equal(t, want, inRange, "block %d", block)
	}
}

func TestAccountBlockKey(t *testing.T) {
	address := common.Address{0x01, 0x02}
	var key accountBlockKey
	key.set(backend.NonceArchiveKey, address, 42)
	require.Equal(t, byte(backend.NonceArchiveKey), key[0])

	gotAddress, gotBlock, ok := parseAccountBlockKey(key[:])
	require.True(t, ok)
	require.Equal(t, address, gotAddress)
	require.Equal(t, uint64(42), gotBlock)

	_, _, ok = parseAccountBlockKey(key[1:])
	require.False(t, ok)
}

func TestAccountBlockKey_RangeCoversAccountHistory(t *testing.T) {
	address := common.Address{0x01}
	var start accountBlockKey
	start.set(backend.BalanceArchiveKey, address, 10)
	keyRange := start.getRange()

	tests := []struct {
		address common.Address
		block   uint64
		want    bool
	}{
		{address, 0, true},
		{address, 10, true},
		{address, 11, false},
		{common.Address{0x02}, 5, false},
	}
	for _, test := range tests {
		var key accountBlockKey
		key.set(backend.BalanceArchiveKey, test.address, test.block)
		inRange := bytes.Compare(key[:], keyRange.Start) >= 0 && bytes.Compare(key[:], keyRange.Limit) < 0
		require.Equal(t, test.want, inRange, "%v at %d", test.address, test.block)
	}
}

func TestAccountKeyBlockKey(t *testing.T) {
	address := common.Address{0x03}
	slot := common.Key{0x04, 0x05}
	var key accountKeyBlockKey
	key.set(backend.StorageArchiveKey, address, 7, slot, 99)

	gotSlot, gotBlock, ok := parseAccountKeyBlockKey(key[:])
	require.True(t, ok)
	require.Equal(t, slot, gotSlot)
	require.Equal(t, uint64(99), gotBlock)

	_, _, ok = parseAccountKeyBlockKey(key[:len(key)-1])
	require.False(t, ok)
}

func TestAccountKeyBlockKey_IncarnationRangeSeparatesIncarnations(t *testing.T) {
	address := common.Address{0x03}
	keyRange := getIncarnationRange(backend.StorageArchiveKey, address, 2)

	tests := []struct {
		reincarnation int
		want          bool
	}{
		{1, false},
		{2, true},
		{3, false},
	}
	for _, test := range tests {
		var key accountKeyBlockKey
		key.set(backend.StorageArchiveKey, address, test.reincarnation, common.Key{0xFF}, 1)
		inRange := bytes.Compare(key[:], keyRange.Start) >= 0 && bytes.Compare(key[:], keyRange.Limit) < 0
		require.Equal(t, test.want, inRange, "reincarnation %d", test.reincarnation)
	}
}

func TestAccountStatusValue(t *testing.T) {
	for _, exists := range []bool{true, false} {
		for _, reincarnation := range []int{0, 1, 1 << 20} {
			var value accountStatusValue
			value.set(exists, reincarnation)
			gotExists, gotReincarnation := value.get()
			require.Equal(t, exists, gotExists)
			require.Equal(t, reincarnation, gotReincarnation)
		}
	}
}
