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

import "fmt"

// Kind classifies how a value changed between two observations.
type Kind byte

const (
	Same    Kind = iota // present and equal in both, or absent in both
	Born                // absent before, present after
	Died                // present before, absent after
	Changed             // present in both with different values
)

func (k Kind) String() string {
	switch k {
	case Same:
		return "same"
	case Born:
		return "born"
	case Died:
		return "died"
	case Changed:
		return "changed"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Change describes the change of a single value between a before and an
// after observation. The zero value is a Same change.
type Change[T comparable] struct {
	kind   Kind
	before T
	after  T
}

// NewChange compares an optional before and an optional after observation of
// the same value. A nil pointer denotes an absent observation. The boolean
// result is false if nothing changed, in which case a Same change is returned.
func NewChange[T comparable](before, after *T) (Change[T], bool) {
	switch {
	case before == nil && after == nil:
		return Change[T]{}, false
	case before == nil:
		return Change[T]{kind: Born, after: *after}, true
	case after == nil:
		return Change[T]{kind: Died, before: *before}, true
	case *before == *after:
		return Change[T]{}, false
	}
	return Change[T]{kind: Changed, before: *before, after: *after}, true
}

// NewBorn creates a change of a value that did not exist before.
func NewBorn[T comparable](value T) Change[T] {
	return Change[T]{kind: Born, after: value}
}

// NewDied creates a change of a value that no longer exists.
func NewDied[T comparable](value T) Change[T] {
	return Change[T]{kind: Died, before: value}
}

// NewChanged creates a change between two present values. Equal values
// result in a Same change.
func NewChanged[T comparable](before, after T) Change[T] {
	res, _ := NewChange(&before, &after)
	return res
}

func (c Change[T]) Kind() Kind {
	return c.kind
}

func (c Change[T]) IsSame() bool {
	return c.kind == Same
}

// Before returns the value before the change, if there was one. Same changes
// do not retain the unchanged value.
func (c Change[T]) Before() (T, bool) {
	return c.before, c.kind == Died || c.kind == Changed
}

// After returns the value after the change, if there is one.
func (c Change[T]) After() (T, bool) {
	return c.after, c.kind == Born || c.kind == Changed
}

func (c Change[T]) String() string {
	return c.format(func(value T) string { return fmt.Sprintf("%v", value) })
}

func (c Change[T]) format(print func(T) string) string {
	switch c.kind {
	case Born:
		return absent + arrow + print(c.after)
	case Died:
		return print(c.before) + arrow + absent
	case Changed:
		return print(c.before) + arrow + print(c.after)
	}
	return "="
}
