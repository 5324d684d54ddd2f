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
	"slices"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/immutable"
)

// Account is an immutable snapshot of a single account. Its storage is an
// ordered map from slot keys to non-zero values; a slot not listed is zero.
type Account struct {
	balance amount.Amount
	nonce   common.Nonce
	code    immutable.Bytes
	storage common.SortedMap[common.Key, common.Value]
}

// NewAccount creates an account snapshot. Zero-valued slots are dropped since
// they are indistinguishable from absent slots.
func NewAccount(balance amount.Amount, nonce common.Nonce, code []byte, storage map[common.Key]common.Value) *Account {
	entries := make([]common.MapEntry[common.Key, common.Value], 0, len(storage))
	for key, value := range storage {
		if !value.IsZero() {
			entries = append(entries, common.MapEntry[common.Key, common.Value]{Key: key, Val: value})
		}
	}
	slices.SortFunc(entries, func(a, b common.MapEntry[common.Key, common.Value]) int {
		return a.Key.Compare(&b.Key)
	})
	return newAccount(balance, nonce, immutable.NewBytes(code), entries)
}

// newAccount creates an account from an already sorted list of non-zero slots.
func newAccount(balance amount.Amount, nonce common.Nonce, code immutable.Bytes, slots []common.MapEntry[common.Key, common.Value]) *Account {
	storage, err := common.NewSortedMap(slots, common.KeyComparator{})
	if err != nil {
		panic(fmt.Sprintf("invalid slot order: %v", err))
	}
	return &Account{
		balance: balance,
		nonce:   nonce,
		code:    code,
		storage: storage,
	}
}

func (a *Account) Balance() amount.Amount {
	return a.balance
}

func (a *Account) Nonce() common.Nonce {
	return a.nonce
}

func (a *Account) Code() immutable.Bytes {
	return a.code
}

// Storage returns the non-zero slots of the account in ascending key order.
func (a *Account) Storage() common.SortedMap[common.Key, common.Value] {
	return a.storage
}

// GetStorage returns the value of the given slot, zero if it is not set.
func (a *Account) GetStorage(key common.Key) common.Value {
	value, _ := a.storage.Get(key)
	return value
}

// Equal is true if both accounts hold the same balance, nonce, code and
// storage.
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.balance != b.balance || a.nonce != b.nonce || a.code != b.code {
		return false
	}
	if a.storage.Size() != b.storage.Size() {
		return false
	}
	for i := 0; i < a.storage.Size(); i++ {
		if a.storage.At(i) != b.storage.At(i) {
			return false
		}
	}
	return true
}

func (a *Account) String() string {
	return fmt.Sprintf("{balance: %v, nonce: %v, code: %v, slots: %d}", a.balance, a.nonce, a.code, a.storage.Size())
}
