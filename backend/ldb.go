// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// TableSpace divides the key space of a LevelDB instance. Each key starts
// with the byte of the table space it belongs to.
type TableSpace byte

const (
	// BlockArchiveKey is a tablespace for archive mapping from block numbers to block hashes
	BlockArchiveKey TableSpace = '1'
	// AccountArchiveKey is a tablespace for archive account states
	AccountArchiveKey TableSpace = '2'
	// BalanceArchiveKey is a tablespace for archive balances
	BalanceArchiveKey TableSpace = '3'
	// CodeArchiveKey is a tablespace for archive codes of contracts
	CodeArchiveKey TableSpace = '4'
	// NonceArchiveKey is a tablespace for archive nonces
	NonceArchiveKey TableSpace = '5'
	// StorageArchiveKey is a tablespace for storage slots values
	StorageArchiveKey TableSpace = '6'
	// AccountHashArchiveKey is a tablespace for archive account hashes
	AccountHashArchiveKey TableSpace = '7'
)

// DefaultLevelDbOptions are the options used for archives unless specified
// otherwise.
var DefaultLevelDbOptions = &opt.Options{
	BlockCacheCapacity: 64 * opt.MiB,
	WriteBuffer:        16 * opt.MiB,
}

// OpenLevelDb opens a LevelDB instance in the given directory, creating it if
// needed. If options are nil, DefaultLevelDbOptions are used.
func OpenLevelDb(path string, options *opt.Options) (*leveldb.DB, error) {
	if options == nil {
		options = DefaultLevelDbOptions
	}
	return leveldb.OpenFile(path, options)
}
