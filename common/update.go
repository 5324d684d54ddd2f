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
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/statediff/common/amount"
)

// Update summarizes the effective changes to a state at the end of a block.
// It combines changes to the account state (created or deleted), balances,
// nonces, codes, and slot updates.
//
// An example use of an update would look like this:
//
//	// Create an update.
//	update := Update{}
//	// Fill in changes.
//	// Note: for each type of change, updates must be in order and unique.
//	update.AppendCreateAccount(..)
//	update.AppendBalanceUpdate(..)
//	...
//	// Optionally, check that the provided data is valid (sorted and unique).
//	err := update.Check()
//
// Valid instances can then be added to an archive or applied to a state
// builder as a block update.
type Update struct {
	DeletedAccounts []Address
	CreatedAccounts []Address
	Balances        []BalanceUpdate
	Nonces          []NonceUpdate
	Codes           []CodeUpdate
	Slots           []SlotUpdate
}

type BalanceUpdate struct {
	Account Address
	Balance amount.Amount
}

type NonceUpdate struct {
	Account Address
	Nonce   Nonce
}

type CodeUpdate struct {
	Account Address
	Code    []byte
}

type SlotUpdate struct {
	Account Address
	Key     Key
	Value   Value
}

// IsEmpty is true if there is no change covered by this update.
func (u *Update) IsEmpty() bool {
	return len(u.DeletedAccounts) == 0 &&
		len(u.CreatedAccounts) == 0 &&
		len(u.Balances) == 0 &&
		len(u.Nonces) == 0 &&
		len(u.Codes) == 0 &&
		len(u.Slots) == 0
}

// AppendDeleteAccount registers an account to be deleted in this block. Delete
// operations are the first to be carried out, leading to a clearing of the
// account's storage. Subsequent account creations or balance / nonce / slot
// updates will take effect after the deletion of the account.
func (u *Update) AppendDeleteAccount(addr Address) {
	u.DeletedAccounts = append(u.DeletedAccounts, addr)
}

// AppendCreateAccount registers a new account to be created in this block.
// This takes affect after deleting the accounts listed in this update.
func (u *Update) AppendCreateAccount(addr Address) {
	u.CreatedAccounts = append(u.CreatedAccounts, addr)
}

// AppendBalanceUpdate registers a balance update to be conducted.
func (u *Update) AppendBalanceUpdate(addr Address, balance amount.Amount) {
	u.Balances = append(u.Balances, BalanceUpdate{addr, balance})
}

// AppendNonceUpdate registers a nonce update to be conducted.
func (u *Update) AppendNonceUpdate(addr Address, nonce Nonce) {
	u.Nonces = append(u.Nonces, NonceUpdate{addr, nonce})
}

// AppendCodeUpdate registers a code update to be conducted.
func (u *Update) AppendCodeUpdate(addr Address, code []byte) {
	u.Codes = append(u.Codes, CodeUpdate{addr, code})
}

// AppendSlotUpdate registers a slot value update to be conducted.
func (u *Update) AppendSlotUpdate(addr Address, key Key, value Value) {
	u.Slots = append(u.Slots, SlotUpdate{addr, key, value})
}

// Normalize sorts all updates and removes duplicates. Conflicting updates,
// e.g. two different balances for the same account, are reported as errors.
func (u *Update) Normalize() error {
	u.DeletedAccounts = sortUnique(u.DeletedAccounts, accountLess, accountEqual)
	u.CreatedAccounts = sortUnique(u.CreatedAccounts, accountLess, accountEqual)
	u.Balances = sortUnique(u.Balances, balanceLess, balanceEqual)
	u.Codes = sortUnique(u.Codes, codeLess, codeEqual)
	u.Nonces = sortUnique(u.Nonces, nonceLess, nonceEqual)
	u.Slots = sortUnique(u.Slots, slotLess, slotEqual)

	if !isSortedAndUnique(u.Balances, balanceLess) {
		return fmt.Errorf("%w: conflicting balance updates", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Codes, codeLess) {
		return fmt.Errorf("%w: conflicting code updates", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Nonces, nonceLess) {
		return fmt.Errorf("%w: conflicting nonce updates", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Slots, slotLess) {
		return fmt.Errorf("%w: conflicting slot updates", ErrInvalidUpdate)
	}
	return nil
}

// Check verifies that all updates are unique and in order.
func (u *Update) Check() error {
	if !isSortedAndUnique(u.CreatedAccounts, accountLess) {
		return fmt.Errorf("%w: created accounts are not in order or unique", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.DeletedAccounts, accountLess) {
		return fmt.Errorf("%w: deleted accounts are not in order or unique", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Balances, balanceLess) {
		return fmt.Errorf("%w: balance updates are not in order or unique", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Nonces, nonceLess) {
		return fmt.Errorf("%w: nonce updates are not in order or unique", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Codes, codeLess) {
		return fmt.Errorf("%w: code updates are not in order or unique", ErrInvalidUpdate)
	}
	if !isSortedAndUnique(u.Slots, slotLess) {
		return fmt.Errorf("%w: storage updates are not in order or unique", ErrInvalidUpdate)
	}

	// Make sure that there is no account created and deleted.
	for i, j := 0, 0; i < len(u.CreatedAccounts) && j < len(u.DeletedAccounts); {
		cmp := u.CreatedAccounts[i].Compare(&u.DeletedAccounts[j])
		if cmp == 0 {
			return fmt.Errorf("%w: unable to create and delete same address in update: %v", ErrInvalidUpdate, u.CreatedAccounts[i])
		}
		if cmp < 0 {
			i++
		} else {
			j++
		}
	}
	return nil
}

// ApplyTo applies this update to the provided target in a standardized
// order: delete accounts, create accounts, set balances, set nonces,
// set codes, and set storage values.
func (u *Update) ApplyTo(s UpdateTarget) error {
	for _, addr := range u.DeletedAccounts {
		if err := s.DeleteAccount(addr); err != nil {
			return err
		}
	}
	for _, addr := range u.CreatedAccounts {
		if err := s.CreateAccount(addr); err != nil {
			return err
		}
	}
	for _, change := range u.Balances {
		if err := s.SetBalance(change.Account, change.Balance); err != nil {
			return err
		}
	}
	for _, change := range u.Nonces {
		if err := s.SetNonce(change.Account, change.Nonce); err != nil {
			return err
		}
	}
	for _, change := range u.Codes {
		if err := s.SetCode(change.Account, change.Code); err != nil {
			return err
		}
	}
	for _, change := range u.Slots {
		if err := s.SetStorage(change.Account, change.Key, change.Value); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTarget is implemented by everything an Update can be applied to, for
// instance a state snapshot builder.
type UpdateTarget interface {
	// CreateAccount creates a new account with the given address.
	CreateAccount(address Address) error

	// DeleteAccount deletes the account with the given address.
	DeleteAccount(address Address) error

	// SetBalance provides balance for the input account address.
	SetBalance(address Address, balance amount.Amount) error

	// SetNonce updates nonce of the account for the input account address.
	SetNonce(address Address, nonce Nonce) error

	// SetStorage updates the slot for the account address and the slot key.
	SetStorage(address Address, key Key, value Value) error

	// SetCode updates code of the contract for the input contract address.
	SetCode(address Address, code []byte) error
}

const updateEncodingVersion byte = 1

// UpdateFromBytes decodes an update encoded by ToBytes.
func UpdateFromBytes(data []byte) (Update, error) {
	if len(data) < 1+6*4 {
		return Update{}, fmt.Errorf("%w: too few bytes", ErrInvalidUpdate)
	}
	if data[0] != updateEncodingVersion {
		return Update{}, fmt.Errorf("%w: unknown encoding version: %d", ErrInvalidUpdate, data[0])
	}

	data = data[1:]
	deletedAccountSize := readUint32(data[0:])
	createdAccountSize := readUint32(data[4:])
	balancesSize := readUint32(data[8:])
	codesSize := readUint32(data[12:])
	noncesSize := readUint32(data[16:])
	slotsSize := readUint32(data[20:])

	data = data[24:]

	res := Update{}

	readAddresses := func(size uint32) ([]Address, error) {
		if size == 0 {
			return nil, nil
		}
		if uint64(len(data)) < uint64(size)*AddressSize {
			return nil, fmt.Errorf("%w: truncated address list", ErrInvalidUpdate)
		}
		list := make([]Address, size)
		for i := range list {
			copy(list[i][:], data)
			data = data[AddressSize:]
		}
		return list, nil
	}

	var err error
	if res.DeletedAccounts, err = readAddresses(deletedAccountSize); err != nil {
		return res, err
	}
	if res.CreatedAccounts, err = readAddresses(createdAccountSize); err != nil {
		return res, err
	}

	if balancesSize > 0 {
		if uint64(len(data)) < uint64(balancesSize)*(AddressSize+amount.BytesLength) {
			return res, fmt.Errorf("%w: balance list truncated", ErrInvalidUpdate)
		}
		res.Balances = make([]BalanceUpdate, balancesSize)
		for i := range res.Balances {
			copy(res.Balances[i].Account[:], data)
			data = data[AddressSize:]
			res.Balances[i].Balance = amount.NewFromBytes(data[:amount.BytesLength]...)
			data = data[amount.BytesLength:]
		}
	}

	if codesSize > 0 {
		res.Codes = make([]CodeUpdate, codesSize)
		for i := range res.Codes {
			if len(data) < AddressSize+4 {
				return res, fmt.Errorf("%w: truncated code list", ErrInvalidUpdate)
			}
			copy(res.Codes[i].Account[:], data)
			data = data[AddressSize:]
			codeLength := readUint32(data)
			data = data[4:]
			if uint64(len(data)) < uint64(codeLength) {
				return res, fmt.Errorf("%w: truncated code", ErrInvalidUpdate)
			}
			res.Codes[i].Code = make([]byte, codeLength)
			copy(res.Codes[i].Code, data[0:codeLength])
			data = data[codeLength:]
		}
	}

	if noncesSize > 0 {
		if uint64(len(data)) < uint64(noncesSize)*(AddressSize+NonceSize) {
			return res, fmt.Errorf("%w: nonce list truncated", ErrInvalidUpdate)
		}
		res.Nonces = make([]NonceUpdate, noncesSize)
		for i := range res.Nonces {
			copy(res.Nonces[i].Account[:], data)
			data = data[AddressSize:]
			copy(res.Nonces[i].Nonce[:], data)
			data = data[NonceSize:]
		}
	}

	if slotsSize > 0 {
		if uint64(len(data)) < uint64(slotsSize)*(AddressSize+KeySize+ValueSize) {
			return res, fmt.Errorf("%w: slot list truncated", ErrInvalidUpdate)
		}
		res.Slots = make([]SlotUpdate, slotsSize)
		for i := range res.Slots {
			copy(res.Slots[i].Account[:], data)
			data = data[AddressSize:]
			copy(res.Slots[i].Key[:], data)
			data = data[KeySize:]
			copy(res.Slots[i].Value[:], data)
			data = data[ValueSize:]
		}
	}

	if len(data) != 0 {
		return res, fmt.Errorf("%w: %d trailing bytes", ErrInvalidUpdate, len(data))
	}
	return res, nil
}

// ToBytes encodes the update in a versioned binary format.
func (u *Update) ToBytes() []byte {
	size := 1 + 6*4 // version + sizes
	size += len(u.DeletedAccounts) * AddressSize
	size += len(u.CreatedAccounts) * AddressSize
	size += len(u.Balances) * (AddressSize + amount.BytesLength)
	size += len(u.Nonces) * (AddressSize + NonceSize)
	size += len(u.Slots) * (AddressSize + KeySize + ValueSize)
	for _, cur := range u.Codes {
		size += AddressSize + 4 + len(cur.Code)
	}

	res := make([]byte, 0, size)

	res = append(res, updateEncodingVersion)
	res = appendUint32(res, uint32(len(u.DeletedAccounts)))
	res = appendUint32(res, uint32(len(u.CreatedAccounts)))
	res = appendUint32(res, uint32(len(u.Balances)))
	res = appendUint32(res, uint32(len(u.Codes)))
	res = appendUint32(res, uint32(len(u.Nonces)))
	res = appendUint32(res, uint32(len(u.Slots)))

	for _, addr := range u.DeletedAccounts {
		res = append(res, addr[:]...)
	}
	for _, addr := range u.CreatedAccounts {
		res = append(res, addr[:]...)
	}
	for _, cur := range u.Balances {
		res = append(res, cur.Account[:]...)
		balance := cur.Balance.Bytes32()
		res = append(res, balance[:]...)
	}
	for _, cur := range u.Codes {
		res = append(res, cur.Account[:]...)
		res = appendUint32(res, uint32(len(cur.Code)))
		res = append(res, cur.Code...)
	}
	for _, cur := range u.Nonces {
		res = append(res, cur.Account[:]...)
		res = append(res, cur.Nonce[:]...)
	}
	for _, cur := range u.Slots {
		res = append(res, cur.Account[:]...)
		res = append(res, cur.Key[:]...)
		res = append(res, cur.Value[:]...)
	}
	return res
}

func readUint32(data []byte) uint32 {
	return binary.BigEndian.Uint32(data)
}

func appendUint32(data []byte, value uint32) []byte {
	return binary.BigEndian.AppendUint32(data, value)
}

func accountLess(a, b *Address) bool {
	return a.Compare(b) < 0
}

func accountEqual(a, b *Address) bool {
	return *a == *b
}

func balanceLess(a, b *BalanceUpdate) bool {
	return accountLess(&a.Account, &b.Account)
}

func balanceEqual(a, b *BalanceUpdate) bool {
	return *a == *b
}

func nonceLess(a, b *NonceUpdate) bool {
	return accountLess(&a.Account, &b.Account)
}

func nonceEqual(a, b *NonceUpdate) bool {
	return *a == *b
}

func codeLess(a, b *CodeUpdate) bool {
	return accountLess(&a.Account, &b.Account)
}

func codeEqual(a, b *CodeUpdate) bool {
	return a.Account == b.Account && bytes.Equal(a.Code, b.Code)
}

func slotLess(a, b *SlotUpdate) bool {
	accountCompare := a.Account.Compare(&b.Account)
	return accountCompare < 0 || (accountCompare == 0 && a.Key.Compare(&b.Key) < 0)
}

func slotEqual(a, b *SlotUpdate) bool {
	return *a == *b
}

func isSortedAndUnique[T any](list []T, less func(a, b *T) bool) bool {
	for i := 0; i < len(list)-1; i++ {
		if !less(&list[i], &list[i+1]) {
			return false
		}
	}
	return true
}

// sortUnique sorts an input array and removes duplicities.
// The resulting array is returned.
// The first callback function is used to compare items of the array to sort them.
// The callback should return true if a < b.
// The other callback function is used to compare values of the sorted array to remove duplicities.
// Since two distinct functions are provided, sorting and equality check can be done partly differently.
// For instance, a balance update is sorted by the address only, but duplicates are removed using both the address
// and the balance.
func sortUnique[T any](list []T, less func(a, b *T) bool, equal func(a, b *T) bool) []T {
	if len(list) <= 1 {
		return list
	}
	sort.SliceStable(list, func(i, j int) bool { return less(&list[i], &list[j]) })
	j := 0
	for i := 1; i < len(list); i++ {
		if !equal(&list[j], &list[i]) {
			j++
			list[j] = list[i]
		}
	}
	return list[:j+1]
}
