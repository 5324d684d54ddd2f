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
	"context"
	"sync"

	"github.com/Fantom-foundation/statediff/common"
)

// cachedProvider keeps the most recently requested worlds in memory.
type cachedProvider struct {
	provider Provider
	cache    *common.LruCache[uint64, *World]
	mutex    sync.Mutex
}

// NewCachedProvider wraps the provider with a cache of up to capacity
// worlds. Worlds are immutable, so cached instances are shared between
// callers. A non-positive capacity disables caching.
func NewCachedProvider(provider Provider, capacity int) Provider {
	if capacity <= 0 {
		return provider
	}
	return &cachedProvider{
		provider: provider,
		cache:    common.NewLruCache[uint64, *World](capacity),
	}
}

func (p *cachedProvider) GetWorld(ctx context.Context, block uint64) (*World, error) {
	p.mutex.Lock()
	world, found := p.cache.Get(block)
	p.mutex.Unlock()
	if found {
		return world, nil
	}

	world, err := p.provider.GetWorld(ctx, block)
	if err != nil {
		return nil, err
	}
	p.mutex.Lock()
	p.cache.Set(block, world)
	p.mutex.Unlock()
	return world, nil
}

func (p *cachedProvider) GetLastBlockHeight() (uint64, error) {
	return p.provider.GetLastBlockHeight()
}
