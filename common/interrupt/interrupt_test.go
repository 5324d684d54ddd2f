// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interrupt

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/stretchr/testify/require"
)

func TestRegister_CancelsContextWhenInterrupted(t *testing.T) {
	ctx, cancel := Register(context.Background(), logging.Nop())
	defer cancel()
	require.False(t, IsCancelled(ctx))

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled")
	}
	require.True(t, IsCancelled(ctx))
}

func TestRegister_FollowsParentContext(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := Register(parent, logging.Nop())
	defer cancel()

	cancelParent()
	<-ctx.Done()
	require.True(t, IsCancelled(ctx))
}
