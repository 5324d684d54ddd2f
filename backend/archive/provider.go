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
	"errors"
	"fmt"

	"github.com/Fantom-foundation/statediff/state"
)

// provider adapts an archive to the state.Provider interface.
type provider struct {
	archive Archive
}

// NewProvider creates a state provider serving world states from the given
// archive. Unknown blocks are reported as state.ErrUnknownBlock.
func NewProvider(archive Archive) state.Provider {
	return &provider{archive: archive}
}

func (p *provider) GetWorld(ctx context.Context, block uint64) (*state.World, error) {
	world, err := p.archive.GetWorld(ctx, block)
	if err != nil {
		return nil, translate(err, block)
	}
	return world, nil
}

func (p *provider) GetLastBlockHeight() (uint64, error) {
	block, empty, err := p.archive.GetLastBlockHeight()
	if err != nil {
		return 0, err
	}
	if empty {
		return 0, fmt.Errorf("%w: archive is empty", state.ErrUnknownBlock)
	}
	return block, nil
}

func translate(err error, block uint64) error {
	if errors.Is(err, ErrBlockNotFound) {
		return fmt.Errorf("%w: %d; %w", state.ErrUnknownBlock, block, err)
	}
	return err
}
