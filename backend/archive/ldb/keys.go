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
	"encoding/binary"

	"github.com/Fantom-foundation/statediff/backend"
	"github.com/Fantom-foundation/statediff/common"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Block numbers are stored inverted so that the most recent entry of a key
// is the first one visited by a forward iterator.

const blockSize = 8                 // block number size (uint64)
const maxBlock = 0xFFFFFFFFFFFFFFFE // max block number (uint64) - must be less than the max value to fit into limit range
const reincSize = 4                 // reincarnation (uint32)

var limitBlock = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF} // max range value, must be greater than maxBlock

func encodeBlock(dst []byte, block uint64) {
	binary.BigEndian.PutUint64(dst, maxBlock-block)
}

func decodeBlock(src []byte) uint64 {
	return maxBlock - binary.BigEndian.Uint64(src)
}

type blockKey [1 + blockSize]byte

func (k *blockKey) set(block uint64) {
	k[0] = byte(backend.BlockArchiveKey)
	encodeBlock(k[1:], block)
}

func (k *blockKey) get() (block uint64) {
	return decodeBlock(k[1:])
}

func getBlockKeyRangeFrom(block uint64) util.Range {
	var start, end blockKey
	start.set(block)
	end[0] = start[0]
	copy(end[1:], limitBlock)
	return util.Range{Start: start[:], Limit: end[:]}
}

func getBlockKeyRangeFromHighest() util.Range {
	return getBlockKeyRangeFrom(maxBlock)
}

// accountBlockKey addresses a per-account property at a given block.
type accountBlockKey [1 + common.AddressSize + blockSize]byte

func (k *accountBlockKey) set(table backend.TableSpace, account common.Address, block uint64) {
	k[0] = byte(table)
	copy(k[1:1+common.AddressSize], account[:])
	encodeBlock(k[1+common.AddressSize:], block)
}

// parseAccountBlockKey splits a raw key of an account table.
func parseAccountBlockKey(key []byte) (account common.Address, block uint64, ok bool) {
	if len(key) != len(accountBlockKey{}) {
		return account, 0, false
	}
	copy(account[:], key[1:1+common.AddressSize])
	return account, decodeBlock(key[1+common.AddressSize:]), true
}

// getRange covers all entries of the key's account at or before its block.
func (k *accountBlockKey) getRange() util.Range {
	end := *k
	copy(end[1+common.AddressSize:], limitBlock)
	return util.Range{Start: k[:], Limit: end[:]}
}

// accountKeyBlockKey addresses a storage slot of an account incarnation at a
// given block.
type accountKeyBlockKey [1 + common.AddressSize + reincSize + common.KeySize + blockSize]byte

func (k *accountKeyBlockKey) set(table backend.TableSpace, account common.Address, reincarnation int, slot common.Key, block uint64) {
	k[0] = byte(table)
	copy(k[1:1+common.AddressSize], account[:])
	binary.BigEndian.PutUint32(k[1+common.AddressSize:], uint32(reincarnation))
	copy(k[1+common.AddressSize+reincSize:], slot[:])
	encodeBlock(k[1+common.AddressSize+reincSize+common.KeySize:], block)
}

func (k *accountKeyBlockKey) getRange() util.Range {
	end := *k
	copy(end[1+common.AddressSize+reincSize+common.KeySize:], limitBlock)
	return util.Range{Start: k[:], Limit: end[:]}
}

// getIncarnationRange covers all slots of a single account incarnation.
func getIncarnationRange(table backend.TableSpace, account common.Address, reincarnation int) *util.Range {
	prefix := make([]byte, 1+common.AddressSize+reincSize)
	prefix[0] = byte(table)
	copy(prefix[1:], account[:])
	binary.BigEndian.PutUint32(prefix[1+common.AddressSize:], uint32(reincarnation))
	return util.BytesPrefix(prefix)
}

// parseAccountKeyBlockKey extracts slot and block of a raw storage key.
func parseAccountKeyBlockKey(key []byte) (slot common.Key, block uint64, ok bool) {
	if len(key) != len(accountKeyBlockKey{}) {
		return slot, 0, false
	}
	offset := 1 + common.AddressSize + reincSize
	copy(slot[:], key[offset:offset+common.KeySize])
	return slot, decodeBlock(key[offset+common.KeySize:]), true
}

type accountStatusValue [1 + reincSize]byte

func (k *accountStatusValue) set(exists bool, reincarnation int) {
	if exists {
		k[0] = 1
	} else {
		k[0] = 0
	}
	binary.BigEndian.PutUint32(k[1:], uint32(reincarnation))
}

func (k *accountStatusValue) get() (exists bool, reincarnation int) {
	exists = k[0] != 0
	reincarnation = int(binary.BigEndian.Uint32(k[1:]))
	return exists, reincarnation
}
