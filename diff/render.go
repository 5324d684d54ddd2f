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
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/immutable"
)

const (
	arrow  = " → "
	absent = "(absent)"

	// maxInlineCodeSize is the largest code printed in full; longer codes are
	// summarized by their size and hash.
	maxInlineCodeSize = 32
)

// Marker returns the prefix used when rendering accounts of the given
// existence classification.
func Marker(existence Kind) string {
	switch existence {
	case Born:
		return "+++"
	case Died:
		return "XXX"
	case Changed:
		return "***"
	}
	return "   "
}

// Lines renders one line per changed account, in ascending address order.
// Fields are listed in the order balance, nonce, code, storage; unchanged
// fields are skipped. Lines are produced lazily.
func Lines(d *StateDiff) iter.Seq[string] {
	return func(yield func(string) bool) {
		for address, account := range d.All() {
			if !yield(renderAccount(address, account)) {
				return
			}
		}
	}
}

func renderAccount(address common.Address, d *AccountDiff) string {
	var b strings.Builder
	b.WriteString(Marker(d.Existence()))
	b.WriteByte(' ')
	b.WriteString(address.String())
	b.WriteByte(':')
	b.WriteString(d.String())
	return b.String()
}

// String renders the changed fields of the account, each preceded by a
// space and separated by commas.
func (d *AccountDiff) String() string {
	fields := make([]string, 0, 3+len(d.Storage))
	if !d.Balance.IsSame() {
		fields = append(fields, "balance: "+d.Balance.format(amount.Amount.String))
	}
	if !d.Nonce.IsSame() {
		fields = append(fields, "nonce: "+d.Nonce.format(common.Nonce.String))
	}
	if !d.Code.IsSame() {
		fields = append(fields, "code: "+d.Code.format(formatCode))
	}
	for _, slot := range d.Storage {
		fields = append(fields, fmt.Sprintf("storage[%v]: %s", slot.Key, slot.Change.format(common.Value.String)))
	}
	if len(fields) == 0 {
		return ""
	}
	return " " + strings.Join(fields, ", ")
}

func formatCode(code immutable.Bytes) string {
	if code.Length() <= maxInlineCodeSize {
		return code.String()
	}
	return fmt.Sprintf("%d bytes @ %v", code.Length(), code.Hash())
}

// String renders the full diff, one line per account.
func (d *StateDiff) String() string {
	var b strings.Builder
	for line := range Lines(d) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo writes the rendered diff to the given writer.
func (d *StateDiff) WriteTo(out io.Writer) (int64, error) {
	var written int64
	for line := range Lines(d) {
		n, err := io.WriteString(out, line+"\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
