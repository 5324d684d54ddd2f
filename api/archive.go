// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package api

//go:generate mockgen -source archive.go -destination archive_mocks.go -package api

import (
	"github.com/Fantom-foundation/statediff/common"
)

// Archive provides the hashes and account status recorded by an archive
// next to the world states served through the state.Provider.
type Archive interface {
	// GetHash provides a hash summarizing all updates up to the given block.
	GetHash(block uint64) (common.Hash, error)

	// GetAccountHash provides a hash summarizing all updates of the given
	// account up to the given block.
	GetAccountHash(block uint64, account common.Address) (common.Hash, error)

	// Exists reports whether the account existed at the end of the block.
	Exists(block uint64, account common.Address) (bool, error)
}
