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
	"github.com/Fantom-foundation/statediff/common"
)

// ToUpdate converts the diff into the update transforming the pre state into
// the post state it was computed from. Created accounts get all their fields
// set, even if zero, so the update fully defines them.
func (d *StateDiff) ToUpdate() common.Update {
	res := common.Update{}
	for address, account := range d.All() {
		switch account.Existence() {
		case Died:
			res.AppendDeleteAccount(address)
			continue
		case Born:
			res.AppendCreateAccount(address)
		}
		if balance, present := account.Balance.After(); present {
			res.AppendBalanceUpdate(address, balance)
		}
		if nonce, present := account.Nonce.After(); present {
			res.AppendNonceUpdate(address, nonce)
		}
		if code, present := account.Code.After(); present {
			res.AppendCodeUpdate(address, code.ToBytes())
		}
		for _, slot := range account.Storage {
			value, _ := slot.Change.After()
			res.AppendSlotUpdate(address, slot.Key, value)
		}
	}
	return res
}
