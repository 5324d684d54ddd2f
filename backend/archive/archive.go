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
	"context"
	"io"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/state"
)

const (
	// ErrBlockNotFound is reported for blocks beyond the last block of an
	// archive, or for any block of an empty archive.
	ErrBlockNotFound = common.ConstError("block not found")

	// ErrBlockOrder is reported when adding a block that is not newer than
	// the last block of an archive.
	ErrBlockOrder = common.ConstError("blocks must be added in increasing order")
)

// Archive retains the per-block updates of a chain and reconstructs the world
// state at the end of any recorded block.
type Archive interface {

	// Add adds the changes of the given block to this archive. Blocks must be
	// added in strictly increasing order. Blocks in between are implicitly empty.
	Add(block uint64, update common.Update) error

	// GetLastBlockHeight gets the maximum block height inserted so far. If
	// there is no block, empty is true.
	GetLastBlockHeight() (block uint64, empty bool, err error)

	// GetHash provides a hash summarizing all updates up to the given block.
	GetHash(block uint64) (hash common.Hash, err error)

	// GetAccountHash provides a hash summarizing all updates of the given
	// account up to the given block.
	GetAccountHash(block uint64, account common.Address) (hash common.Hash, err error)

	// Exists allows to fetch a historic existence status of a given account.
	Exists(block uint64, account common.Address) (exists bool, err error)

	// GetAccount fetches the snapshot of the given account at the end of the
	// given block, nil if it did not exist.
	GetAccount(block uint64, account common.Address) (*state.Account, error)

	// GetWorld materializes the full world state at the end of the given block.
	GetWorld(ctx context.Context, block uint64) (*state.World, error)

	io.Closer
}

// CheckBlock verifies that the given block can be queried from an archive with
// the given last block height.
func CheckBlock(block, last uint64, empty bool) error {
	if empty || block > last {
		return ErrBlockNotFound
	}
	return nil
}
