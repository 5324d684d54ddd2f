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

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/immutable"
	"github.com/google/btree"
)

const builderDegree = 32

// ErrUnknownAccount is reported when modifying an account that does not exist.
const ErrUnknownAccount = common.ConstError("unknown account")

// Builder is a mutable accumulator of accounts producing World snapshots.
// It implements common.UpdateTarget so that block updates can be applied to
// it. A Builder is not safe for concurrent use.
type Builder struct {
	accounts *btree.BTreeG[*accountEntry]
}

type accountEntry struct {
	address common.Address
	balance amount.Amount
	nonce   common.Nonce
	code    immutable.Bytes
	storage *btree.BTreeG[slotEntry]
}

type slotEntry struct {
	key   common.Key
	value common.Value
}

func accountLess(a, b *accountEntry) bool {
	return a.address.Compare(&b.address) < 0
}

func slotLess(a, b slotEntry) bool {
	return a.key.Compare(&b.key) < 0
}

func newAccountEntry(address common.Address) *accountEntry {
	return &accountEntry{
		address: address,
		storage: btree.NewG(builderDegree, slotLess),
	}
}

// NewBuilder creates a builder for an empty world.
func NewBuilder() *Builder {
	return &Builder{
		accounts: btree.NewG(builderDegree, accountLess),
	}
}

// NewBuilderFrom creates a builder initialized with the content of the given
// world. The world itself is not modified.
func NewBuilderFrom(world *World) *Builder {
	res := NewBuilder()
	for address, account := range world.All() {
		entry := newAccountEntry(address)
		entry.balance = account.Balance()
		entry.nonce = account.Nonce()
		entry.code = account.Code()
		for key, value := range account.Storage().All() {
			entry.storage.ReplaceOrInsert(slotEntry{key, value})
		}
		res.accounts.ReplaceOrInsert(entry)
	}
	return res
}

func (b *Builder) get(address common.Address) (*accountEntry, error) {
	entry, found := b.accounts.Get(&accountEntry{address: address})
	if !found {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAccount, address)
	}
	return entry, nil
}

// Exists is true if the given account is present in the builder.
func (b *Builder) Exists(address common.Address) bool {
	return b.accounts.Has(&accountEntry{address: address})
}

// CreateAccount creates a new, empty account. An existing account with the
// same address is replaced, clearing its storage.
func (b *Builder) CreateAccount(address common.Address) error {
	b.accounts.ReplaceOrInsert(newAccountEntry(address))
	return nil
}

// DeleteAccount removes the account. Deleting a missing account is a no-op.
func (b *Builder) DeleteAccount(address common.Address) error {
	b.accounts.Delete(&accountEntry{address: address})
	return nil
}

func (b *Builder) SetBalance(address common.Address, balance amount.Amount) error {
	entry, err := b.get(address)
	if err != nil {
		return err
	}
	entry.balance = balance
	return nil
}

func (b *Builder) SetNonce(address common.Address, nonce common.Nonce) error {
	entry, err := b.get(address)
	if err != nil {
		return err
	}
	entry.nonce = nonce
	return nil
}

func (b *Builder) SetCode(address common.Address, code []byte) error {
	entry, err := b.get(address)
	if err != nil {
		return err
	}
	entry.code = immutable.NewBytes(code)
	return nil
}

// SetStorage sets the value of a slot. Setting the zero value clears it.
func (b *Builder) SetStorage(address common.Address, key common.Key, value common.Value) error {
	entry, err := b.get(address)
	if err != nil {
		return err
	}
	if value.IsZero() {
		entry.storage.Delete(slotEntry{key: key})
	} else {
		entry.storage.ReplaceOrInsert(slotEntry{key, value})
	}
	return nil
}

// Apply applies the given update to the builder.
func (b *Builder) Apply(update common.Update) error {
	return update.ApplyTo(b)
}

// Len returns the number of accounts currently in the builder.
func (b *Builder) Len() int {
	return b.accounts.Len()
}

// Build freezes the current content into an immutable World. The builder
// remains usable; later modifications do not affect the returned world.
func (b *Builder) Build() *World {
	entries := make([]common.MapEntry[common.Address, *Account], 0, b.accounts.Len())
	b.accounts.Ascend(func(entry *accountEntry) bool {
		slots := make([]common.MapEntry[common.Key, common.Value], 0, entry.storage.Len())
		entry.storage.Ascend(func(slot slotEntry) bool {
			slots = append(slots, common.MapEntry[common.Key, common.Value]{Key: slot.key, Val: slot.value})
			return true
		})
		account := newAccount(entry.balance, entry.nonce, entry.code, slots)
		entries = append(entries, common.MapEntry[common.Address, *Account]{Key: entry.address, Val: account})
		return true
	})
	return newWorld(entries)
}

// Apply returns the world resulting from applying the given update to the
// given world.
func Apply(world *World, update common.Update) (*World, error) {
	builder := NewBuilderFrom(world)
	if err := builder.Apply(update); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}
