// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package diff

import (
	"iter"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/state"
)

// StateDiff is an immutable ordered map from addresses to the changes of the
// corresponding accounts. Accounts without changes are never included.
type StateDiff struct {
	accounts common.SortedMap[common.Address, *AccountDiff]
}

// Compute computes the difference between two world states. The address
// lists of both worlds are merged in a single ascending pass.
func Compute(pre, post *state.World) *StateDiff {
	var entries []common.MapEntry[common.Address, *AccountDiff]
	add := func(address common.Address, before, after *state.Account) {
		if diff, changed := ComputeAccount(before, after); changed {
			entries = append(entries, common.MapEntry[common.Address, *AccountDiff]{Key: address, Val: diff})
		}
	}

	i, j := 0, 0
	for i < pre.Len() && j < post.Len() {
		addrA, accountA := pre.At(i)
		addrB, accountB := post.At(j)
		switch cmp := addrA.Compare(&addrB); {
		case cmp < 0:
			add(addrA, accountA, nil)
			i++
		case cmp > 0:
			add(addrB, nil, accountB)
			j++
		default:
			add(addrA, accountA, accountB)
			i++
			j++
		}
	}
	for ; i < pre.Len(); i++ {
		address, account := pre.At(i)
		add(address, account, nil)
	}
	for ; j < post.Len(); j++ {
		address, account := post.At(j)
		add(address, nil, account)
	}

	accounts, err := common.NewSortedMap(entries, common.AddressComparator{})
	if err != nil {
		panic(err)
	}
	return &StateDiff{accounts: accounts}
}

// Get returns the diff of the given account, if it changed.
func (d *StateDiff) Get(address common.Address) (*AccountDiff, bool) {
	return d.accounts.Get(address)
}

// Len returns the number of changed accounts.
func (d *StateDiff) Len() int {
	return d.accounts.Size()
}

func (d *StateDiff) IsEmpty() bool {
	return d.Len() == 0
}

// All iterates over all changed accounts in ascending address order.
func (d *StateDiff) All() iter.Seq2[common.Address, *AccountDiff] {
	return d.accounts.All()
}

// Addresses returns the addresses of all changed accounts in ascending order.
func (d *StateDiff) Addresses() []common.Address {
	return d.accounts.Keys()
}
