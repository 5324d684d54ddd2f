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
	"fmt"
)

// Comparator defines a total order on K. The result is negative if a < b,
// zero if a == b, and positive if a > b.
type Comparator[K any] interface {
	Compare(a, b *K) int
}

// MapEntry wraps a map key-value par
type MapEntry[K any, V any] struct {
	Key K
	Val V
}

func (e MapEntry[K, V]) String() string {
	return fmt.Sprintf("Entry: %v -> %v", e.Key, e.Val)
}
