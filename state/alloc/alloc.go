// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package alloc converts between world state snapshots and genesis
// allocations as used by go-ethereum.
package alloc

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/state"
	geth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Load reads a JSON encoded genesis allocation and converts it into a world.
func Load(in io.Reader) (*state.World, error) {
	var alloc types.GenesisAlloc
	if err := json.NewDecoder(in).Decode(&alloc); err != nil {
		return nil, fmt.Errorf("failed to decode allocation; %w", err)
	}
	return ToWorld(alloc)
}

// LoadFile reads a genesis allocation from the given file.
func LoadFile(path string) (*state.World, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	world, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return world, nil
}

// ToWorld converts a genesis allocation into a world snapshot.
func ToWorld(alloc types.GenesisAlloc) (*state.World, error) {
	builder := state.NewBuilder()
	for address, account := range alloc {
		addr := common.Address(address)
		balance, err := amount.NewFromBigInt(account.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid balance of %v; %w", addr, err)
		}
		if err := builder.CreateAccount(addr); err != nil {
			return nil, err
		}
		if err := builder.SetBalance(addr, balance); err != nil {
			return nil, err
		}
		if err := builder.SetNonce(addr, common.ToNonce(account.Nonce)); err != nil {
			return nil, err
		}
		if err := builder.SetCode(addr, account.Code); err != nil {
			return nil, err
		}
		for key, value := range account.Storage {
			if err := builder.SetStorage(addr, common.Key(key), common.Value(value)); err != nil {
				return nil, err
			}
		}
	}
	return builder.Build(), nil
}

// Export converts a world snapshot into a genesis allocation.
func Export(world *state.World) types.GenesisAlloc {
	res := make(types.GenesisAlloc, world.Len())
	for address, account := range world.All() {
		exported := types.Account{
			Balance: account.Balance().ToBig(),
			Nonce:   account.Nonce().ToUint64(),
		}
		if !account.Code().IsEmpty() {
			exported.Code = account.Code().ToBytes()
		}
		if account.Storage().Size() > 0 {
			exported.Storage = make(map[geth.Hash]geth.Hash, account.Storage().Size())
			for key, value := range account.Storage().All() {
				exported.Storage[geth.Hash(key)] = geth.Hash(value)
			}
		}
		res[geth.Address(address)] = exported
	}
	return res
}

// Write writes the world as a JSON encoded genesis allocation.
func Write(out io.Writer, world *state.World) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Export(world))
}
