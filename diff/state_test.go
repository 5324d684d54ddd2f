// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package diff

import (
	"testing"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/immutable"
	"github.com/Fantom-foundation/statediff/state"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	addr1 = common.Address{19: 1}
	addr2 = common.Address{19: 2}
)

func account(balance, nonce uint64) *state.Account {
	return state.NewAccount(amount.New(balance), common.ToNonce(nonce), nil, nil)
}

func world(accounts map[common.Address]*state.Account) *state.World {
	return state.NewWorld(accounts)
}

func TestCompute_CreateDelete(t *testing.T) {
	require := require.New(t)
	pre := world(nil)
	post := world(map[common.Address]*state.Account{addr1: account(69, 0)})

	diff := Compute(pre, post)
	require.Equal(1, diff.Len())
	got, found := diff.Get(addr1)
	require.True(found)
	require.Equal(&AccountDiff{
		Balance: NewBorn(amount.New(69)),
		Nonce:   NewBorn(common.ToNonce(0)),
		Code:    NewBorn(immutable.Bytes{}),
	}, got)

	diff = Compute(post, pre)
	require.Equal(1, diff.Len())
	got, found = diff.Get(addr1)
	require.True(found)
	require.Equal(&AccountDiff{
		Balance: NewDied(amount.New(69)),
		Nonce:   NewDied(common.ToNonce(0)),
		Code:    NewDied(immutable.Bytes{}),
	}, got)
}

func TestCompute_CreateDeleteWithUnchanged(t *testing.T) {
	require := require.New(t)
	pre := world(map[common.Address]*state.Account{addr1: account(69, 0)})
	post := world(map[common.Address]*state.Account{addr1: account(69, 0), addr2: account(69, 0)})

	diff := Compute(pre, post)
	require.Equal([]common.Address{addr2}, diff.Addresses())
	got, _ := diff.Get(addr2)
	require.Equal(Born, got.Existence())

	diff = Compute(post, pre)
	require.Equal([]common.Address{addr2}, diff.Addresses())
	got, _ = diff.Get(addr2)
	require.Equal(Died, got.Existence())
}

func TestCompute_ChangeWithUnchanged(t *testing.T) {
	require := require.New(t)
	pre := world(map[common.Address]*state.Account{addr1: account(69, 0), addr2: account(69, 0)})
	post := world(map[common.Address]*state.Account{addr1: account(69, 1), addr2: account(69, 0)})

	diff := Compute(pre, post)
	require.Equal(1, diff.Len())
	got, found := diff.Get(addr1)
	require.True(found)
	require.Equal(&AccountDiff{
		Nonce: NewChanged(common.ToNonce(0), common.ToNonce(1)),
	}, got)
	require.Equal(Changed, got.Existence())
	_, found = diff.Get(addr2)
	require.False(found)
}

func TestCompute_EmptyWorldsProduceEmptyDiff(t *testing.T) {
	diff := Compute(world(nil), world(nil))
	require.True(t, diff.IsEmpty())
	require.Empty(t, diff.Addresses())
	require.Equal(t, "", diff.String())

	diff = Compute(nil, nil)
	require.True(t, diff.IsEmpty())
}

func TestCompute_ResultIsOrderedByAddress(t *testing.T) {
	pre := world(map[common.Address]*state.Account{
		{5}: account(1, 0),
		{3}: account(1, 0),
		{1}: account(1, 0),
	})
	post := world(map[common.Address]*state.Account{
		{4}: account(1, 0),
		{3}: account(2, 0),
		{2}: account(1, 0),
	})
	diff := Compute(pre, post)
	require.Equal(t, []common.Address{{1}, {2}, {3}, {4}, {5}}, diff.Addresses())

	var iterated []common.Address
	for address := range diff.All() {
		iterated = append(iterated, address)
	}
	require.Equal(t, diff.Addresses(), iterated)
}

func genAccount() *rapid.Generator[*state.Account] {
	return rapid.Custom(func(t *rapid.T) *state.Account {
		balance := rapid.Uint64Range(0, 3).Draw(t, "balance")
		nonce := rapid.Uint64Range(0, 3).Draw(t, "nonce")
		code := rapid.SliceOfN(rapid.ByteRange(0, 2), 0, 2).Draw(t, "code")
		keys := rapid.Custom(func(t *rapid.T) common.Key {
			return common.Key{31: rapid.ByteRange(0, 3).Draw(t, "key")}
		})
		values := rapid.Custom(func(t *rapid.T) common.Value {
			return common.Value{31: rapid.ByteRange(0, 2).Draw(t, "value")}
		})
		storage := rapid.MapOfN(keys, values, 0, 4).Draw(t, "storage")
		return state.NewAccount(amount.New(balance), common.ToNonce(nonce), code, storage)
	})
}

func genWorld() *rapid.Generator[*state.World] {
	return rapid.Custom(func(t *rapid.T) *state.World {
		addresses := rapid.Custom(func(t *rapid.T) common.Address {
			return common.Address{19: rapid.ByteRange(0, 5).Draw(t, "address")}
		})
		return state.NewWorld(rapid.MapOfN(addresses, genAccount(), 0, 6).Draw(t, "accounts"))
	})
}

func TestCompute_IsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pre := genWorld().Draw(t, "pre")
		post := genWorld().Draw(t, "post")
		a := Compute(pre, post)
		b := Compute(pre, post)
		require.Equal(t, a.Addresses(), b.Addresses())
		require.Equal(t, a.String(), b.String())
	})
}

func TestCompute_IsReflexive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := genWorld().Draw(t, "world")
		require.True(t, Compute(w, w).IsEmpty())
	})
}

func TestCompute_AccountsPresentOnOneSideAreBornOrDied(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pre := genWorld().Draw(t, "pre")
		post := genWorld().Draw(t, "post")
		d := Compute(pre, post)
		for address, account := range d.All() {
			before, inPre := pre.Get(address)
			after, inPost := post.Get(address)
			require.True(t, inPre || inPost)
			switch {
			case !inPre:
				require.Equal(t, Born, account.Existence())
				require.Equal(t, NewBorn(after.Balance()), account.Balance)
				require.Equal(t, NewBorn(after.Nonce()), account.Nonce)
				require.Equal(t, NewBorn(after.Code()), account.Code)
				require.Equal(t, after.Storage().Size(), len(account.Storage))
				for _, slot := range account.Storage {
					require.Equal(t, Born, slot.Change.Kind())
				}
			case !inPost:
				require.Equal(t, Died, account.Existence())
				require.Equal(t, NewDied(before.Balance()), account.Balance)
				require.Equal(t, NewDied(before.Nonce()), account.Nonce)
				require.Equal(t, NewDied(before.Code()), account.Code)
				require.Equal(t, before.Storage().Size(), len(account.Storage))
				for _, slot := range account.Storage {
					require.Equal(t, Died, slot.Change.Kind())
				}
			default:
				require.Equal(t, Changed, account.Existence())
				require.False(t, before.Equal(after))
			}
		}
		// Every address that changed is included.
		for address, account := range pre.All() {
			other, found := post.Get(address)
			_, included := d.Get(address)
			require.Equal(t, !found || !account.Equal(other), included)
		}
	})
}

func TestCompute_SwappingInputsSwapsBornAndDied(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pre := genWorld().Draw(t, "pre")
		post := genWorld().Draw(t, "post")
		forward := Compute(pre, post)
		backward := Compute(post, pre)
		require.Equal(t, forward.Addresses(), backward.Addresses())
		for address, account := range forward.All() {
			other, _ := backward.Get(address)
			switch account.Existence() {
			case Born:
				require.Equal(t, Died, other.Existence())
			case Died:
				require.Equal(t, Born, other.Existence())
			default:
				require.Equal(t, Changed, other.Existence())
				require.Equal(t, len(account.Storage), len(other.Storage))
			}
		}
	})
}

func TestCompute_DiffRoundTripsAsUpdate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pre := genWorld().Draw(t, "pre")
		post := genWorld().Draw(t, "post")
		update := Compute(pre, post).ToUpdate()
		require.NoError(t, update.Check())

		got, err := state.Apply(pre, update)
		require.NoError(t, err)
		require.True(t, post.Equal(got))
	})
}
