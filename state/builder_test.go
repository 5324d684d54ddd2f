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
	"testing"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/stretchr/testify/require"
)

func TestBuilder_EmptyBuilderProducesEmptyWorld(t *testing.T) {
	require.Equal(t, 0, NewBuilder().Build().Len())
}

func TestBuilder_AccountsCanBeCreatedAndModified(t *testing.T) {
	require := require.New(t)
	addr := common.Address{1}

	builder := NewBuilder()
	require.NoError(builder.CreateAccount(addr))
	require.True(builder.Exists(addr))
	require.NoError(builder.SetBalance(addr, amount.New(12)))
	require.NoError(builder.SetNonce(addr, common.ToNonce(3)))
	require.NoError(builder.SetCode(addr, []byte{0x60}))
	require.NoError(builder.SetStorage(addr, common.Key{1}, common.Value{2}))

	world := builder.Build()
	require.Equal(1, world.Len())
	want := NewAccount(amount.New(12), common.ToNonce(3), []byte{0x60}, map[common.Key]common.Value{{1}: {2}})
	got, found := world.Get(addr)
	require.True(found)
	require.True(want.Equal(got), "want %v, got %v", want, got)
}

func TestBuilder_ModifyingMissingAccountFails(t *testing.T) {
	require := require.New(t)
	builder := NewBuilder()
	addr := common.Address{1}
	require.ErrorIs(builder.SetBalance(addr, amount.New(1)), ErrUnknownAccount)
	require.ErrorIs(builder.SetNonce(addr, common.ToNonce(1)), ErrUnknownAccount)
	require.ErrorIs(builder.SetCode(addr, []byte{1}), ErrUnknownAccount)
	require.ErrorIs(builder.SetStorage(addr, common.Key{}, common.Value{1}), ErrUnknownAccount)
}

func TestBuilder_SettingZeroValueClearsSlot(t *testing.T) {
	require := require.New(t)
	addr := common.Address{1}
	builder := NewBuilder()
	require.NoError(builder.CreateAccount(addr))
	require.NoError(builder.SetStorage(addr, common.Key{1}, common.Value{1}))
	require.NoError(builder.SetStorage(addr, common.Key{1}, common.Value{}))

	account, _ := builder.Build().Get(addr)
	require.Equal(0, account.Storage().Size())
}

func TestBuilder_RecreatingAccountClearsIt(t *testing.T) {
	require := require.New(t)
	addr := common.Address{1}
	builder := NewBuilder()
	require.NoError(builder.CreateAccount(addr))
	require.NoError(builder.SetBalance(addr, amount.New(5)))
	require.NoError(builder.SetStorage(addr, common.Key{1}, common.Value{1}))
	require.NoError(builder.CreateAccount(addr))

	account, found := builder.Build().Get(addr)
	require.True(found)
	require.True(account.Balance().IsZero())
	require.Equal(0, account.Storage().Size())
}

func TestBuilder_DeletedAccountsAreRemoved(t *testing.T) {
	require := require.New(t)
	builder := NewBuilder()
	require.NoError(builder.CreateAccount(common.Address{1}))
	require.NoError(builder.CreateAccount(common.Address{2}))
	require.NoError(builder.DeleteAccount(common.Address{1}))
	require.NoError(builder.DeleteAccount(common.Address{3}))

	world := builder.Build()
	require.Equal(1, world.Len())
	_, found := world.Get(common.Address{2})
	require.True(found)
}

func TestBuilder_BuiltWorldIsNotAffectedByLaterModifications(t *testing.T) {
	require := require.New(t)
	addr := common.Address{1}
	builder := NewBuilder()
	require.NoError(builder.CreateAccount(addr))
	require.NoError(builder.SetStorage(addr, common.Key{1}, common.Value{1}))
	first := builder.Build()

	require.NoError(builder.SetStorage(addr, common.Key{1}, common.Value{2}))
	require.NoError(builder.SetBalance(addr, amount.New(1)))

	account, _ := first.Get(addr)
	require.Equal(common.Value{1}, account.GetStorage(common.Key{1}))
	require.True(account.Balance().IsZero())
}

func TestBuilder_NewBuilderFromReproducesWorld(t *testing.T) {
	world := NewWorld(map[common.Address]*Account{
		{1}: NewAccount(amount.New(1), common.ToNonce(1), []byte{1}, map[common.Key]common.Value{{1}: {1}, {2}: {2}}),
		{2}: NewAccount(amount.New(2), common.ToNonce(2), nil, nil),
	})
	require.True(t, world.Equal(NewBuilderFrom(world).Build()))
}

func TestApply_UpdateIsAppliedToCopyOfWorld(t *testing.T) {
	require := require.New(t)
	pre := NewWorld(map[common.Address]*Account{
		{1}: NewAccount(amount.New(1), common.ToNonce(1), nil, map[common.Key]common.Value{{1}: {1}}),
		{2}: NewAccount(amount.New(2), common.ToNonce(2), nil, nil),
	})

	update := common.Update{}
	update.AppendDeleteAccount(common.Address{2})
	update.AppendCreateAccount(common.Address{3})
	update.AppendBalanceUpdate(common.Address{1}, amount.New(10))
	update.AppendBalanceUpdate(common.Address{3}, amount.New(30))
	update.AppendSlotUpdate(common.Address{1}, common.Key{1}, common.Value{})

	post, err := Apply(pre, update)
	require.NoError(err)

	want := NewWorld(map[common.Address]*Account{
		{1}: NewAccount(amount.New(10), common.ToNonce(1), nil, nil),
		{3}: NewAccount(amount.New(30), common.Nonce{}, nil, nil),
	})
	require.True(want.Equal(post))
	require.Equal(2, pre.Len())
}

func TestApply_FailsOnUpdateOfMissingAccount(t *testing.T) {
	update := common.Update{}
	update.AppendNonceUpdate(common.Address{1}, common.ToNonce(1))
	_, err := Apply(NewWorld(nil), update)
	require.ErrorIs(t, err, ErrUnknownAccount)
}
