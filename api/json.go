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
	"encoding/json"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/immutable"
	"github.com/Fantom-foundation/statediff/diff"
	geth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// StateDiff is the JSON form of a diff.StateDiff, keyed by lower case hex
// addresses. Accounts are encoded in ascending address order.
type StateDiff map[string]*AccountDiff

// AccountDiff is the JSON form of a diff.AccountDiff.
type AccountDiff struct {
	Balance Delta            `json:"balance"`
	Nonce   Delta            `json:"nonce"`
	Code    Delta            `json:"code"`
	Storage map[string]Delta `json:"storage"`
}

// Delta encodes a single change as "=", {"+": v}, {"-": v} or
// {"*": {"from": a, "to": b}}.
type Delta struct {
	kind diff.Kind
	from any
	to   any
}

type fromTo struct {
	From any `json:"from"`
	To   any `json:"to"`
}

func (d Delta) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case diff.Same:
		return json.Marshal("=")
	case diff.Born:
		return json.Marshal(map[string]any{"+": d.to})
	case diff.Died:
		return json.Marshal(map[string]any{"-": d.from})
	default:
		return json.Marshal(map[string]fromTo{"*": {From: d.from, To: d.to}})
	}
}

func newDelta[T comparable](change diff.Change[T], encode func(T) any) Delta {
	res := Delta{kind: change.Kind()}
	if before, present := change.Before(); present {
		res.from = encode(before)
	}
	if after, present := change.After(); present {
		res.to = encode(after)
	}
	return res
}

func encodeBalance(value amount.Amount) any {
	return (*hexutil.Big)(value.ToBig())
}

func encodeNonce(value common.Nonce) any {
	return hexutil.Uint64(value.ToUint64())
}

func encodeCode(value immutable.Bytes) any {
	return hexutil.Bytes(value.ToBytes())
}

func encodeValue(value common.Value) any {
	return geth.Hash(value)
}

// NewStateDiff converts a diff into its JSON form.
func NewStateDiff(d *diff.StateDiff) StateDiff {
	res := make(StateDiff, d.Len())
	for address, account := range d.All() {
		res[hexutil.Encode(address[:])] = NewAccountDiff(account)
	}
	return res
}

// NewAccountDiff converts the diff of a single account into its JSON form.
func NewAccountDiff(d *diff.AccountDiff) *AccountDiff {
	res := &AccountDiff{
		Balance: newDelta(d.Balance, encodeBalance),
		Nonce:   newDelta(d.Nonce, encodeNonce),
		Code:    newDelta(d.Code, encodeCode),
		Storage: make(map[string]Delta, len(d.Storage)),
	}
	for _, slot := range d.Storage {
		res.Storage[hexutil.Encode(slot.Key[:])] = newDelta(slot.Change, encodeValue)
	}
	return res
}
