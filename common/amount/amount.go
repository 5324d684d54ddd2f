// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package amount

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// BytesLength is the length of the byte representation of an amount.
const BytesLength = 32

// Amount is a 256-bit unsigned integer used for account balances. Amounts are
// values; two amounts are equal if and only if they compare equal with ==.
type Amount struct {
	internal uint256.Int
}

// New creates a new Amount from up to 4 uint64 arguments. The
// arguments are given in the Big Endian order. No argument results in a value of zero.
// The constructor panics if more than 4 arguments are given.
func New(args ...uint64) Amount {
	if len(args) > 4 {
		panic("too many arguments")
	}
	result := Amount{}
	offset := 4 - len(args)
	for i := 0; i < len(args); i++ {
		result.internal[3-i-offset] = args[i]
	}
	return result
}

// NewFromUint256 creates a new amount from an uint256.
func NewFromUint256(value *uint256.Int) Amount {
	return Amount{internal: *value}
}

// NewFromBytes creates a new Amount from its big-endian byte representation
// of at most 32 bytes. It panics if more bytes are given.
func NewFromBytes(bytes ...byte) Amount {
	if len(bytes) > BytesLength {
		panic("too many arguments")
	}
	result := Amount{}
	result.internal.SetBytes(bytes)
	return result
}

// NewFromBigInt creates a new Amount instance from a big.Int. A nil value is
// interpreted as zero.
func NewFromBigInt(b *big.Int) (Amount, error) {
	if b == nil {
		return New(), nil
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("cannot construct Amount from negative big.Int")
	}
	result := uint256.Int{}
	if overflow := result.SetFromBig(b); overflow {
		return Amount{}, fmt.Errorf("big.Int has more than 256 bits")
	}
	return Amount{internal: result}, nil
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.internal.IsZero()
}

// Cmp returns -1, 0, or +1 depending on whether a is less than, equal to, or
// greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.internal.Cmp(&b.internal)
}

// ToBig returns a bigInt version of the amount.
func (a Amount) ToBig() *big.Int {
	return a.internal.ToBig()
}

// Uint256 returns the amount as an uint256.
func (a Amount) Uint256() uint256.Int {
	return a.internal
}

// Bytes32 returns the amount as a 32 byte big-endian array.
func (a Amount) Bytes32() [32]byte {
	return a.internal.Bytes32()
}

// String returns the decimal representation of the amount.
func (a Amount) String() string {
	return a.internal.Dec()
}

// Hex returns the 0x-prefixed hexadecimal representation of the amount
// without leading zeros.
func (a Amount) Hex() string {
	return a.internal.Hex()
}
