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

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/diff"
	"github.com/Fantom-foundation/statediff/state"
	"github.com/stretchr/testify/require"
)

var (
	addr1 = common.Address{19: 1}
	addr2 = common.Address{19: 2}
	addr3 = common.Address{19: 3}
)

func examplePre() *state.World {
	return state.NewWorld(map[common.Address]*state.Account{
		addr1: state.NewAccount(amount.New(10), common.ToNonce(1), nil, map[common.Key]common.Value{{31: 1}: {31: 1}}),
		addr2: state.NewAccount(amount.New(5), common.ToNonce(0), nil, nil),
	})
}

func examplePost() *state.World {
	return state.NewWorld(map[common.Address]*state.Account{
		addr1: state.NewAccount(amount.New(16), common.ToNonce(1), nil, map[common.Key]common.Value{{31: 1}: {31: 2}}),
		addr3: state.NewAccount(amount.New(0), common.ToNonce(0), []byte{0x60, 0x00}, nil),
	})
}

const exampleJSON = `{
	"0x0000000000000000000000000000000000000001": {
		"balance": {"*": {"from": "0xa", "to": "0x10"}},
		"nonce": "=",
		"code": "=",
		"storage": {
			"0x0000000000000000000000000000000000000000000000000000000000000001": {"*": {
				"from": "0x0000000000000000000000000000000000000000000000000000000000000001",
				"to": "0x0000000000000000000000000000000000000000000000000000000000000002"
			}}
		}
	},
	"0x0000000000000000000000000000000000000002": {
		"balance": {"-": "0x5"},
		"nonce": {"-": "0x0"},
		"code": {"-": "0x"},
		"storage": {}
	},
	"0x0000000000000000000000000000000000000003": {
		"balance": {"+": "0x0"},
		"nonce": {"+": "0x0"},
		"code": {"+": "0x6000"},
		"storage": {}
	}
}`

func TestNewStateDiff_ProducesParityEncoding(t *testing.T) {
	encoded, err := json.Marshal(NewStateDiff(diff.Compute(examplePre(), examplePost())))
	require.NoError(t, err)
	require.JSONEq(t, exampleJSON, string(encoded))
}

func TestNewStateDiff_EmptyDiffIsEmptyObject(t *testing.T) {
	encoded, err := json.Marshal(NewStateDiff(diff.Compute(examplePre(), examplePre())))
	require.NoError(t, err)
	require.Equal(t, "{}", string(encoded))
}

func TestNewStateDiff_AccountsAreEncodedInAddressOrder(t *testing.T) {
	encoded, err := json.Marshal(NewStateDiff(diff.Compute(examplePre(), examplePost())))
	require.NoError(t, err)

	var keys []string
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	_, err = decoder.Token()
	require.NoError(t, err)
	for decoder.More() {
		token, err := decoder.Token()
		require.NoError(t, err)
		keys = append(keys, token.(string))
		var skip json.RawMessage
		require.NoError(t, decoder.Decode(&skip))
	}
	require.Equal(t, []string{
		"0x0000000000000000000000000000000000000001",
		"0x0000000000000000000000000000000000000002",
		"0x0000000000000000000000000000000000000003",
	}, keys)
}

func TestDelta_EncodesEveryKind(t *testing.T) {
	tests := map[string]struct {
		change diff.Change[common.Nonce]
		want   string
	}{
		"same":    {diff.NewChanged(common.ToNonce(1), common.ToNonce(1)), `"="`},
		"born":    {diff.NewBorn(common.ToNonce(2)), `{"+":"0x2"}`},
		"died":    {diff.NewDied(common.ToNonce(3)), `{"-":"0x3"}`},
		"changed": {diff.NewChanged(common.ToNonce(4), common.ToNonce(5)), `{"*":{"from":"0x4","to":"0x5"}}`},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			encoded, err := json.Marshal(newDelta(test.change, encodeNonce))
			require.NoError(t, err)
			require.Equal(t, test.want, string(encoded))
		})
	}
}
