// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"fmt"
	"iter"
	"slices"

	"github.com/Fantom-foundation/statediff/common"
)

// World is an immutable snapshot of the entire world state at one instant:
// an ordered map from addresses to account snapshots.
type World struct {
	accounts common.SortedMap[common.Address, *Account]
}

// NewWorld creates a world state snapshot from the given accounts. Nil
// accounts are ignored.
func NewWorld(accounts map[common.Address]*Account) *World {
	entries := make([]common.MapEntry[common.Address, *Account], 0, len(accounts))
	for address, account := range accounts {
		if account != nil {
			entries = append(entries, common.MapEntry[common.Address, *Account]{Key: address, Val: account})
		}
	}
	slices.SortFunc(entries, func(a, b common.MapEntry[common.Address, *Account]) int {
		return a.Key.Compare(&b.Key)
	})
	return newWorld(entries)
}

func newWorld(entries []common.MapEntry[common.Address, *Account]) *World {
	accounts, err := common.NewSortedMap(entries, common.AddressComparator{})
	if err != nil {
		panic(fmt.Sprintf("invalid account order: %v", err))
	}
	return &World{accounts: accounts}
}

// Get returns the snapshot of the given account, if it exists.
func (w *World) Get(address common.Address) (*Account, bool) {
	if w == nil {
		return nil, false
	}
	return w.accounts.Get(address)
}

// Len returns the number of accounts in the world.
func (w *World) Len() int {
	if w == nil {
		return 0
	}
	return w.accounts.Size()
}

// At returns the i-th account in ascending address order.
func (w *World) At(i int) (common.Address, *Account) {
	entry := w.accounts.At(i)
	return entry.Key, entry.Val
}

// All iterates over all accounts in ascending address order.
func (w *World) All() iter.Seq2[common.Address, *Account] {
	if w == nil {
		return func(func(common.Address, *Account) bool) {}
	}
	return w.accounts.All()
}

// Equal is true if both worlds contain the same accounts with equal content.
func (w *World) Equal(o *World) bool {
	if w.Len() != o.Len() {
		return false
	}
	for i := 0; i < w.Len(); i++ {
		addrA, accountA := w.At(i)
		addrB, accountB := o.At(i)
		if addrA != addrB || !accountA.Equal(accountB) {
			return false
		}
	}
	return true
}
