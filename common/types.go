// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	AddressSize = 20
	KeySize     = 32
	ValueSize   = 32
	HashSize    = 32
	NonceSize   = 8
)

// Address is the 20-byte identifier of an account.
type Address [AddressSize]byte

// Key identifies a storage slot of an account.
type Key [KeySize]byte

// Value is the content of a storage slot. A slot not present in a state is
// equivalent to a slot holding the zero Value.
type Value [ValueSize]byte

// Hash is a 32-byte hash, e.g. the Keccak256 hash of a contract's code.
type Hash [HashSize]byte

// Nonce is the big-endian encoded transaction counter of an account.
type Nonce [NonceSize]byte

func (a *Address) Compare(b *Address) int {
	return bytes.Compare(a[:], b[:])
}

func (a Address) String() string {
	return hexutil.Encode(a[:])
}

func (k *Key) Compare(b *Key) int {
	return bytes.Compare(k[:], b[:])
}

func (k Key) String() string {
	return hexutil.Encode(k[:])
}

func (v *Value) Compare(b *Value) int {
	return bytes.Compare(v[:], b[:])
}

// IsZero is true for the value an absent slot is read as.
func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) String() string {
	return hexutil.Encode(v[:])
}

func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// ToNonce converts a numeric nonce into its byte representation.
func ToNonce(nonce uint64) Nonce {
	var res Nonce
	binary.BigEndian.PutUint64(res[:], nonce)
	return res
}

func (n Nonce) ToUint64() uint64 {
	return binary.BigEndian.Uint64(n[:])
}

func (n Nonce) String() string {
	return strconv.FormatUint(n.ToUint64(), 10)
}

// AddressComparator orders addresses bytewise.
type AddressComparator struct{}

func (c AddressComparator) Compare(a, b *Address) int {
	return a.Compare(b)
}

// KeyComparator orders slot keys bytewise.
type KeyComparator struct{}

func (c KeyComparator) Compare(a, b *Key) int {
	return a.Compare(b)
}
