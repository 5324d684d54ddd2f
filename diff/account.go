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
	"slices"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/immutable"
	"github.com/Fantom-foundation/statediff/state"
)

// SlotChange is the change of a single storage slot.
type SlotChange struct {
	Key    common.Key
	Change Change[common.Value]
}

// AccountDiff summarizes all changes of a single account. Storage lists only
// slots whose effective value differs, in ascending key order.
type AccountDiff struct {
	Balance Change[amount.Amount]
	Nonce   Change[common.Nonce]
	Code    Change[immutable.Bytes]
	Storage []SlotChange
}

// ComputeAccount computes the difference between two observations of an
// account, where nil marks an account that does not exist. If nothing
// changed, (nil, false) is returned.
func ComputeAccount(pre, post *state.Account) (*AccountDiff, bool) {
	if pre == nil && post == nil {
		return nil, false
	}
	res := &AccountDiff{
		Balance: field(pre, post, (*state.Account).Balance),
		Nonce:   field(pre, post, (*state.Account).Nonce),
		Code:    field(pre, post, (*state.Account).Code),
		Storage: diffStorage(pre, post),
	}
	if res.IsEmpty() {
		return nil, false
	}
	return res, true
}

func field[T comparable](pre, post *state.Account, get func(*state.Account) T) Change[T] {
	var before, after *T
	if pre != nil {
		value := get(pre)
		before = &value
	}
	if post != nil {
		value := get(post)
		after = &value
	}
	res, _ := NewChange(before, after)
	return res
}

// diffStorage merges the ascending slot lists of both accounts. While an
// account exists, a slot missing in its storage reads as zero. Slots of an
// account that does not exist are absent, and zero slots of a created or
// deleted account are ignored.
func diffStorage(pre, post *state.Account) []SlotChange {
	var preSlots, postSlots common.SortedMap[common.Key, common.Value]
	if pre != nil {
		preSlots = pre.Storage()
	}
	if post != nil {
		postSlots = post.Storage()
	}

	observe := func(account *state.Account, value common.Value) *common.Value {
		if account == nil {
			return nil
		}
		return &value
	}

	var res []SlotChange
	add := func(key common.Key, before, after *common.Value) {
		if (before == nil && after.IsZero()) || (after == nil && before.IsZero()) {
			return
		}
		if change, changed := NewChange(before, after); changed {
			res = append(res, SlotChange{Key: key, Change: change})
		}
	}

	i, j := 0, 0
	for i < preSlots.Size() && j < postSlots.Size() {
		a, b := preSlots.At(i), postSlots.At(j)
		switch cmp := a.Key.Compare(&b.Key); {
		case cmp < 0:
			add(a.Key, &a.Val, observe(post, common.Value{}))
			i++
		case cmp > 0:
			add(b.Key, observe(pre, common.Value{}), &b.Val)
			j++
		default:
			add(a.Key, &a.Val, &b.Val)
			i++
			j++
		}
	}
	for ; i < preSlots.Size(); i++ {
		a := preSlots.At(i)
		add(a.Key, &a.Val, observe(post, common.Value{}))
	}
	for ; j < postSlots.Size(); j++ {
		b := postSlots.At(j)
		add(b.Key, observe(pre, common.Value{}), &b.Val)
	}
	return res
}

// IsEmpty is true if no field and no slot changed.
func (d *AccountDiff) IsEmpty() bool {
	return d.Balance.IsSame() && d.Nonce.IsSame() && d.Code.IsSame() && len(d.Storage) == 0
}

// Existence classifies the account as a whole: Born if it did not exist
// before, Died if it does not exist after, Changed if it exists in both
// observations and Same if nothing changed.
func (d *AccountDiff) Existence() Kind {
	switch d.Balance.Kind() {
	case Born:
		return Born
	case Died:
		return Died
	}
	if d.IsEmpty() {
		return Same
	}
	return Changed
}

// GetStorage returns the change of the given slot.
func (d *AccountDiff) GetStorage(key common.Key) (Change[common.Value], bool) {
	i, found := slices.BinarySearchFunc(d.Storage, key, func(slot SlotChange, key common.Key) int {
		return slot.Key.Compare(&key)
	})
	if !found {
		return Change[common.Value]{}, false
	}
	return d.Storage[i].Change, true
}
