// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/statediff/backend"
	"github.com/Fantom-foundation/statediff/backend/archive"
	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/state"
	"github.com/golang/snappy"
	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Archive is a LevelDB based archive. Every account property is stored per
// block it was modified in; queries look up the most recent entry at or
// before the requested block. Contract codes are stored snappy-compressed.
type Archive struct {
	db                       *leveldb.DB
	ownsDb                   bool
	reincarnationNumberCache map[common.Address]int
	batch                    leveldb.Batch
	lastBlockCache           blockCache
	addMutex                 sync.Mutex
	log                      zerolog.Logger
}

// reader is the read interface shared by the database and its snapshots.
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) (value []byte, err error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// NewArchive creates an archive on top of an open database. The database is
// not closed when the archive is closed.
func NewArchive(db *leveldb.DB) (*Archive, error) {
	return &Archive{
		db:                       db,
		reincarnationNumberCache: map[common.Address]int{},
		log:                      logging.NewLogger("ldb-archive"),
	}, nil
}

// OpenArchive opens or creates an archive in the given directory.
func OpenArchive(directory string) (*Archive, error) {
	db, err := backend.OpenLevelDb(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB in %s; %w", directory, err)
	}
	res, err := NewArchive(db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	res.ownsDb = true
	return res, nil
}

func (a *Archive) Close() error {
	if a.ownsDb {
		return a.db.Close()
	}
	return nil
}

func (a *Archive) Add(block uint64, update common.Update) error {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()

	if block > maxBlock {
		return fmt.Errorf("block number %d exceeds maximum of %d", block, uint64(maxBlock))
	}
	if err := update.Check(); err != nil {
		return err
	}

	lastBlock, lastHash, empty, err := a.getLastBlock()
	if err != nil {
		return fmt.Errorf("failed to get preceding block hash; %w", err)
	}
	if !empty && block <= lastBlock {
		return fmt.Errorf("%w: unable to add block %d, is higher or equal to already present block %d", archive.ErrBlockOrder, block, lastBlock)
	}

	a.batch.Reset()
	blockHash := lastHash
	if !update.IsEmpty() {
		if err := a.addUpdateIntoBatch(block, update); err != nil {
			return err
		}

		blockHasher := sha256.New()
		blockHasher.Write(lastHash[:])

		reusedHasher := sha256.New()
		updatedAccounts, accountUpdates := archive.AccountUpdatesFrom(&update)
		for _, account := range updatedAccounts {
			lastAccountHash, err := a.GetAccountHash(block, account)
			if err != nil {
				return fmt.Errorf("failed to get previous account hash; %w", err)
			}
			accountUpdateHash := accountUpdates[account].GetHash(reusedHasher)
			newAccountHash := archive.NextAccountHash(reusedHasher, lastAccountHash, accountUpdateHash)
			blockHasher.Write(newAccountHash[:])

			var accountK accountBlockKey
			accountK.set(backend.AccountHashArchiveKey, account, block)
			a.batch.Put(accountK[:], newAccountHash[:])
		}
		copy(blockHash[:], blockHasher.Sum(nil))
	}

	var blockK blockKey
	blockK.set(block)
	a.batch.Put(blockK[:], blockHash[:])

	if err := a.db.Write(&a.batch, nil); err != nil {
		// cached reincarnation numbers may reflect the failed update
		a.reincarnationNumberCache = map[common.Address]int{}
		return err
	}

	a.lastBlockCache.set(block, blockHash)
	a.log.Debug().
		Uint64(logging.FieldBlockNumber, block).
		Int(logging.FieldAccounts, len(update.CreatedAccounts)+len(update.DeletedAccounts)).
		Msg("block added")
	return nil
}

func (a *Archive) addUpdateIntoBatch(block uint64, update common.Update) error {
	// helper function for obtaining current reincarnation number of an account
	getReincarnationNumber := func(account common.Address) (int, error) {
		if res, exists := a.reincarnationNumberCache[account]; exists {
			return res, nil
		}
		_, reincarnation, _, err := getStatus(a.db, block, account)
		if err != nil {
			return 0, err
		}
		a.reincarnationNumberCache[account] = reincarnation
		return reincarnation, err
	}

	setStatus := func(account common.Address, exists bool) error {
		reincarnation, err := getReincarnationNumber(account)
		if err != nil {
			return fmt.Errorf("failed to get status; %w", err)
		}
		var accountK accountBlockKey
		accountK.set(backend.AccountArchiveKey, account, block)
		var accountStatusV accountStatusValue
		accountStatusV.set(exists, reincarnation+1)
		a.batch.Put(accountK[:], accountStatusV[:])
		a.reincarnationNumberCache[account] = reincarnation + 1
		return nil
	}

	for _, account := range update.DeletedAccounts {
		if err := setStatus(account, false); err != nil {
			return err
		}
	}
	for _, account := range update.CreatedAccounts {
		if err := setStatus(account, true); err != nil {
			return err
		}
	}

	for _, balanceUpdate := range update.Balances {
		var accountK accountBlockKey
		accountK.set(backend.BalanceArchiveKey, balanceUpdate.Account, block)
		balance := balanceUpdate.Balance.Bytes32()
		a.batch.Put(accountK[:], balance[:])
	}

	for _, codeUpdate := range update.Codes {
		var accountK accountBlockKey
		accountK.set(backend.CodeArchiveKey, codeUpdate.Account, block)
		a.batch.Put(accountK[:], snappy.Encode(nil, codeUpdate.Code))
	}

	for _, nonceUpdate := range update.Nonces {
		var accountK accountBlockKey
		accountK.set(backend.NonceArchiveKey, nonceUpdate.Account, block)
		a.batch.Put(accountK[:], nonceUpdate.Nonce[:])
	}

	for _, slotUpdate := range update.Slots {
		reincarnation, err := getReincarnationNumber(slotUpdate.Account) // use changes from status updates above
		if err != nil {
			return fmt.Errorf("failed to get status; %w", err)
		}
		var slotK accountKeyBlockKey
		slotK.set(backend.StorageArchiveKey, slotUpdate.Account, reincarnation, slotUpdate.Key, block)
		a.batch.Put(slotK[:], slotUpdate.Value[:])
	}

	return nil
}

func (a *Archive) getLastBlock() (number uint64, hash common.Hash, empty bool, err error) {
	if number, hash, valid := a.lastBlockCache.get(); valid {
		return number, hash, false, nil
	}
	keyRange := getBlockKeyRangeFromHighest()
	it := a.db.NewIterator(&keyRange, nil)
	defer it.Release()

	if it.Next() {
		var blockK blockKey
		copy(blockK[:], it.Key())
		copy(hash[:], it.Value())
		a.lastBlockCache.set(blockK.get(), hash)
		return blockK.get(), hash, false, nil
	}
	return 0, common.Hash{}, true, it.Error()
}

func (a *Archive) GetLastBlockHeight() (block uint64, empty bool, err error) {
	block, _, empty, err = a.getLastBlock()
	return block, empty, err
}

// getStatus returns the existence status of an account at the given block,
// its reincarnation number, and the block the status was last changed in.
func getStatus(db reader, block uint64, account common.Address) (exists bool, reincarnation int, since uint64, err error) {
	var key accountBlockKey
	key.set(backend.AccountArchiveKey, account, block)
	keyRange := key.getRange()
	it := db.NewIterator(&keyRange, nil)
	defer it.Release()

	if it.Next() {
		var accountStatusV accountStatusValue
		copy(accountStatusV[:], it.Value())
		exists, reincarnation = accountStatusV.get()
		_, since, _ = parseAccountBlockKey(it.Key())
		return exists, reincarnation, since, nil
	}
	return false, 0, 0, it.Error()
}

// getLatest returns the most recent value of an account property at the
// given block that was written no earlier than the since block.
func getLatest(db reader, table backend.TableSpace, account common.Address, block, since uint64) ([]byte, bool, error) {
	var key accountBlockKey
	key.set(table, account, block)
	keyRange := key.getRange()
	it := db.NewIterator(&keyRange, nil)
	defer it.Release()

	if it.Next() {
		_, written, _ := parseAccountBlockKey(it.Key())
		if written < since {
			return nil, false, nil
		}
		res := make([]byte, len(it.Value()))
		copy(res, it.Value())
		return res, true, nil
	}
	return nil, false, it.Error()
}

func (a *Archive) Exists(block uint64, account common.Address) (exists bool, err error) {
	exists, _, _, err = getStatus(a.db, block, account)
	return exists, err
}

func (a *Archive) GetAccount(block uint64, account common.Address) (*state.Account, error) {
	exists, reincarnation, since, err := getStatus(a.db, block, account)
	if err != nil || !exists {
		return nil, err
	}
	return loadAccount(a.db, block, account, reincarnation, since)
}

// loadAccount reads the properties of an account incarnation created in the
// since block. Properties written before belong to earlier incarnations.
func loadAccount(db reader, block uint64, account common.Address, reincarnation int, since uint64) (*state.Account, error) {
	var balance amount.Amount
	value, found, err := getLatest(db, backend.BalanceArchiveKey, account, block, since)
	if err != nil {
		return nil, err
	}
	if found {
		balance = amount.NewFromBytes(value...)
	}

	var nonce common.Nonce
	value, found, err = getLatest(db, backend.NonceArchiveKey, account, block, since)
	if err != nil {
		return nil, err
	}
	if found {
		copy(nonce[:], value)
	}

	var code []byte
	value, found, err = getLatest(db, backend.CodeArchiveKey, account, block, since)
	if err != nil {
		return nil, err
	}
	if found {
		if code, err = snappy.Decode(nil, value); err != nil {
			return nil, fmt.Errorf("failed to decode code of %v; %w", account, err)
		}
	}

	storage := map[common.Key]common.Value{}
	it := db.NewIterator(getIncarnationRange(backend.StorageArchiveKey, account, reincarnation), nil)
	defer it.Release()
	var last common.Key
	haveLast := false
	for it.Next() {
		slot, written, ok := parseAccountKeyBlockKey(it.Key())
		if !ok || written > block {
			continue
		}
		if haveLast && slot == last {
			continue
		}
		last, haveLast = slot, true
		var value common.Value
		copy(value[:], it.Value())
		storage[slot] = value
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	return state.NewAccount(balance, nonce, code, storage), nil
}

func (a *Archive) GetWorld(ctx context.Context, block uint64) (*state.World, error) {
	last, empty, err := a.GetLastBlockHeight()
	if err != nil {
		return nil, err
	}
	if err := archive.CheckBlock(block, last, empty); err != nil {
		return nil, fmt.Errorf("%w: %d", err, block)
	}

	snapshot, err := a.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	defer snapshot.Release()

	type incarnation struct {
		address       common.Address
		reincarnation int
		since         uint64
	}

	// Status entries are grouped by address, the most recent one first.
	var alive []incarnation
	it := snapshot.NewIterator(util.BytesPrefix([]byte{byte(backend.AccountArchiveKey)}), nil)
	var current common.Address
	resolved := false
	for it.Next() {
		address, written, ok := parseAccountBlockKey(it.Key())
		if !ok {
			continue
		}
		if address != current {
			current, resolved = address, false
		}
		if resolved || written > block {
			continue
		}
		resolved = true
		var status accountStatusValue
		copy(status[:], it.Value())
		if exists, reincarnation := status.get(); exists {
			alive = append(alive, incarnation{address, reincarnation, written})
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return nil, err
	}

	accounts := make(map[common.Address]*state.Account, len(alive))
	for _, cur := range alive {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		account, err := loadAccount(snapshot, block, cur.address, cur.reincarnation, cur.since)
		if err != nil {
			return nil, err
		}
		accounts[cur.address] = account
	}
	return state.NewWorld(accounts), nil
}

func (a *Archive) GetHash(block uint64) (hash common.Hash, err error) {
	keyRange := getBlockKeyRangeFrom(block)
	it := a.db.NewIterator(&keyRange, nil)
	defer it.Release()
	if it.Next() {
		copy(hash[:], it.Value())
		return hash, nil
	}
	return common.Hash{}, it.Error()
}

func (a *Archive) GetAccountHash(block uint64, account common.Address) (hash common.Hash, err error) {
	var key accountBlockKey
	key.set(backend.AccountHashArchiveKey, account, block)
	keyRange := key.getRange()
	it := a.db.NewIterator(&keyRange, nil)
	defer it.Release()

	if it.Next() {
		copy(hash[:], it.Value())
		return hash, nil
	}
	return common.Hash{}, it.Error()
}

type blockCache struct {
	mu            sync.Mutex
	valid         bool
	lastBlockNum  uint64
	lastBlockHash common.Hash
}

func (c *blockCache) set(number uint64, hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = true
	c.lastBlockNum = number
	c.lastBlockHash = hash
}

func (c *blockCache) get() (number uint64, hash common.Hash, valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastBlockNum, c.lastBlockHash, c.valid
}
