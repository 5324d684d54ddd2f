// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package archive

import (
	"encoding/binary"
	"hash"
	"slices"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
)

// AccountUpdate is the part of a block update affecting a single account.
type AccountUpdate struct {
	Created    bool
	Deleted    bool
	HasBalance bool
	Balance    amount.Amount
	HasNonce   bool
	Nonce      common.Nonce
	HasCode    bool
	Code       []byte
	Storage    []AccountSlotUpdate
}

type AccountSlotUpdate struct {
	Key   common.Key
	Value common.Value
}

// AccountUpdatesFrom splits a block update into per-account updates. The
// touched accounts are returned in ascending order.
func AccountUpdatesFrom(update *common.Update) ([]common.Address, map[common.Address]*AccountUpdate) {
	accountUpdates := make(map[common.Address]*AccountUpdate)

	get := func(address common.Address) *AccountUpdate {
		au, exists := accountUpdates[address]
		if !exists {
			au = new(AccountUpdate)
			accountUpdates[address] = au
		}
		return au
	}

	for _, address := range update.CreatedAccounts {
		get(address).Created = true
	}
	for _, address := range update.DeletedAccounts {
		get(address).Deleted = true
	}
	for _, balanceUpdate := range update.Balances {
		accountUpdate := get(balanceUpdate.Account)
		accountUpdate.HasBalance = true
		accountUpdate.Balance = balanceUpdate.Balance
	}
	for _, nonceUpdate := range update.Nonces {
		accountUpdate := get(nonceUpdate.Account)
		accountUpdate.HasNonce = true
		accountUpdate.Nonce = nonceUpdate.Nonce
	}
	for _, codeUpdate := range update.Codes {
		accountUpdate := get(codeUpdate.Account)
		accountUpdate.HasCode = true
		accountUpdate.Code = codeUpdate.Code
	}
	for _, slotUpdate := range update.Slots {
		accountUpdate := get(slotUpdate.Account)
		accountUpdate.Storage = append(accountUpdate.Storage, AccountSlotUpdate{
			Key:   slotUpdate.Key,
			Value: slotUpdate.Value,
		})
	}

	accounts := make([]common.Address, 0, len(accountUpdates))
	for account := range accountUpdates {
		accounts = append(accounts, account)
	}
	slices.SortFunc(accounts, func(a, b common.Address) int { return a.Compare(&b) })

	return accounts, accountUpdates
}

// GetHash computes the hash of the account update using the given hasher.
// The hashed byte string is composed as follows:
//   - a byte summarizing account change events: bit 0 is set if the account
//     is created, bit 1 if it is deleted, bits 2, 3 and 4 if the balance,
//     nonce or code is changed;
//   - the 32 byte of the updated balance, if it was updated;
//   - the 8 byte of the updated nonce, if it was updated;
//   - the 4 byte of the new code size followed by the code, if it was updated;
//   - the concatenated list of updated slots.
func (au *AccountUpdate) GetHash(hasher hash.Hash) common.Hash {
	hasher.Reset()
	var stateChange byte
	if au.Created {
		stateChange |= 1
	}
	if au.Deleted {
		stateChange |= 2
	}
	if au.HasBalance {
		stateChange |= 4
	}
	if au.HasNonce {
		stateChange |= 8
	}
	if au.HasCode {
		stateChange |= 16
	}
	hasher.Write([]byte{stateChange})
	if au.HasBalance {
		b := au.Balance.Bytes32()
		hasher.Write(b[:])
	}
	if au.HasNonce {
		hasher.Write(au.Nonce[:])
	}
	if au.HasCode {
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(au.Code)))
		hasher.Write(size[:])
		hasher.Write(au.Code)
	}
	for _, slotUpdate := range au.Storage {
		hasher.Write(slotUpdate.Key[:])
		hasher.Write(slotUpdate.Value[:])
	}
	var res common.Hash
	copy(res[:], hasher.Sum(nil))
	return res
}

// NextAccountHash chains the previous hash of an account with the hash of
// its latest update.
func NextAccountHash(hasher hash.Hash, last common.Hash, update common.Hash) common.Hash {
	hasher.Reset()
	hasher.Write(last[:])
	hasher.Write(update[:])
	var res common.Hash
	copy(res[:], hasher.Sum(nil))
	return res
}
