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

//go:generate mockgen -source provider.go -destination provider_mocks.go -package state

import (
	"context"

	"github.com/Fantom-foundation/statediff/common"
)

// ErrUnknownBlock is reported by providers asked for a block they do not know.
const ErrUnknownBlock = common.ConstError("unknown block")

// Provider is a source of fully materialized world state snapshots.
type Provider interface {
	// GetWorld returns the world state at the end of the given block.
	GetWorld(ctx context.Context, block uint64) (*World, error)

	// GetLastBlockHeight returns the most recent block available. If no
	// block is available, ErrUnknownBlock is returned.
	GetLastBlockHeight() (uint64, error)
}
