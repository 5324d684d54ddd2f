// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/statediff/backend/archive"
	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/amount"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/state"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// See https://www.sqlite.org/pragma.html
	kConfigureConnection = []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		"PRAGMA cache_size = -65536", // abs(N*1024) = 64MB
		"PRAGMA locking_mode = EXCLUSIVE",
	}
)

const (
	kCreateBlockTable   = "CREATE TABLE IF NOT EXISTS block (number INT PRIMARY KEY, hash BLOB)"
	kAddBlockStmt       = "INSERT INTO block(number, hash) VALUES (?,?)"
	kGetBlockHeightStmt = "SELECT number, hash FROM block ORDER BY number DESC LIMIT 1"
	kGetBlockHashStmt   = "SELECT hash FROM block WHERE number <= ? ORDER BY number DESC LIMIT 1"

	kCreateStatusTable  = "CREATE TABLE IF NOT EXISTS status (account BLOB, block INT, exist INT, reincarnation INT, PRIMARY KEY (account,block))"
	kAddStatusStmt      = "INSERT INTO status(account,block,exist,reincarnation) VALUES (?,?,?,?)"
	kGetStatusStmt      = "SELECT exist, reincarnation, block FROM status WHERE account = ? AND block <= ? ORDER BY block DESC LIMIT 1"
	kGetAllStatusesStmt = "SELECT account, exist, reincarnation, block FROM status WHERE block <= ? ORDER BY account, block DESC"

	kCreateBalanceTable = "CREATE TABLE IF NOT EXISTS balance (account BLOB, block INT, value BLOB, PRIMARY KEY (account,block))"
	kAddBalanceStmt     = "INSERT INTO balance(account,block,value) VALUES (?,?,?)"
	kGetBalanceStmt     = "SELECT value, block FROM balance WHERE account = ? AND block <= ? ORDER BY block DESC LIMIT 1"

	kCreateCodeTable = "CREATE TABLE IF NOT EXISTS code (account BLOB, block INT, code BLOB, PRIMARY KEY (account,block))"
	kAddCodeStmt     = "INSERT INTO code(account,block,code) VALUES (?,?,?)"
	kGetCodeStmt     = "SELECT code, block FROM code WHERE account = ? AND block <= ? ORDER BY block DESC LIMIT 1"

	kCreateNonceTable = "CREATE TABLE IF NOT EXISTS nonce (account BLOB, block INT, value BLOB, PRIMARY KEY (account,block))"
	kAddNonceStmt     = "INSERT INTO nonce(account,block,value) VALUES (?,?,?)"
	kGetNonceStmt     = "SELECT value, block FROM nonce WHERE account = ? AND block <= ? ORDER BY block DESC LIMIT 1"

	kCreateValueTable = "CREATE TABLE IF NOT EXISTS storage (account BLOB, reincarnation INT, slot BLOB, block INT, value BLOB, PRIMARY KEY (account,reincarnation,slot,block))"
	kAddValueStmt     = "INSERT INTO storage(account,reincarnation,slot,block,value) VALUES (?,?,?,?,?)"
	kGetValuesStmt    = "SELECT slot, value FROM storage WHERE account = ? AND reincarnation = ? AND block <= ? ORDER BY slot, block DESC"

	kCreateAccountHashTable = "CREATE TABLE IF NOT EXISTS account_hash (account BLOB, block INT, hash BLOB, PRIMARY KEY(account,block))"
	kAddAccountHashStmt     = "INSERT INTO account_hash(account, block, hash) VALUES (?,?,?)"
	kGetAccountHashStmt     = "SELECT hash FROM account_hash WHERE account = ? AND block <= ? ORDER BY block DESC LIMIT 1"
)

// Archive is an SQLite based archive. Each account property is kept in its
// own table, indexed by account and the block it was modified in.
type Archive struct {
	db    *sql.DB
	stmts map[string]*sql.Stmt

	reincarnationNumberCache map[common.Address]int
	log                      zerolog.Logger
}

// NewArchive opens or creates an archive stored in the given file.
func NewArchive(file string) (*Archive, error) {
	db, err := sql.Open("sqlite3", "file:"+file)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite; %w", err)
	}
	res, err := newArchive(db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return res, nil
}

func newArchive(db *sql.DB) (*Archive, error) {
	// The connection settings below apply per connection, and the exclusive
	// lock permits a single one.
	db.SetMaxOpenConns(1)
	for _, cmd := range kConfigureConnection {
		if _, err := db.Exec(cmd); err != nil {
			return nil, fmt.Errorf("failed to configure connection with %s; %w", cmd, err)
		}
	}
	tables := []string{
		kCreateBlockTable,
		kCreateStatusTable,
		kCreateBalanceTable,
		kCreateCodeTable,
		kCreateNonceTable,
		kCreateValueTable,
		kCreateAccountHashTable,
	}
	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return nil, fmt.Errorf("failed to create table with %s; %w", table, err)
		}
	}

	statements := []string{
		kAddBlockStmt, kGetBlockHeightStmt, kGetBlockHashStmt,
		kAddStatusStmt, kGetStatusStmt, kGetAllStatusesStmt,
		kAddBalanceStmt, kGetBalanceStmt,
		kAddCodeStmt, kGetCodeStmt,
		kAddNonceStmt, kGetNonceStmt,
		kAddValueStmt, kGetValuesStmt,
		kAddAccountHashStmt, kGetAccountHashStmt,
	}
	stmts := make(map[string]*sql.Stmt, len(statements))
	for _, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare %s; %w", query, err)
		}
		stmts[query] = stmt
	}

	return &Archive{
		db:                       db,
		stmts:                    stmts,
		reincarnationNumberCache: map[common.Address]int{},
		log:                      logging.NewLogger("sqlite-archive"),
	}, nil
}

func (a *Archive) Close() error {
	var errs []error
	for _, stmt := range a.stmts {
		errs = append(errs, stmt.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}

// stmt returns the prepared statement for the given query, bound to the
// transaction if there is one.
func (a *Archive) stmt(tx *sql.Tx, query string) *sql.Stmt {
	stmt := a.stmts[query]
	if tx != nil {
		return tx.Stmt(stmt)
	}
	return stmt
}

func (a *Archive) Add(block uint64, update common.Update) error {
	if err := update.Check(); err != nil {
		return err
	}

	tx, err := a.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	var succeed bool
	defer func() {
		if !succeed {
			if err := tx.Rollback(); err != nil {
				a.log.Error().Err(err).Msg("failed to rollback")
			}
			a.reincarnationNumberCache = map[common.Address]int{}
		}
	}()

	lastBlock, lastBlockHash, empty, err := a.getLastBlock(tx)
	if err != nil {
		return fmt.Errorf("failed to get preceding block; %w", err)
	}
	if !empty && block <= lastBlock {
		return fmt.Errorf("%w: unable to add block %d, is higher or equal to already present block %d", archive.ErrBlockOrder, block, lastBlock)
	}

	blockHash := lastBlockHash
	if !update.IsEmpty() {
		if err := a.addUpdate(tx, block, update); err != nil {
			return err
		}
		if blockHash, err = a.addAccountHashes(tx, block, lastBlockHash, &update); err != nil {
			return err
		}
	}

	if _, err = a.stmt(tx, kAddBlockStmt).Exec(block, blockHash[:]); err != nil {
		return fmt.Errorf("failed to add block %d; %w", block, err)
	}

	succeed = true
	if err := tx.Commit(); err != nil {
		return err
	}
	a.log.Debug().
		Uint64(logging.FieldBlockNumber, block).
		Int(logging.FieldAccounts, len(update.CreatedAccounts)+len(update.DeletedAccounts)).
		Msg("block added")
	return nil
}

func (a *Archive) addUpdate(tx *sql.Tx, block uint64, update common.Update) error {
	// helper function for obtaining current reincarnation number of an account
	getReincarnationNumber := func(account common.Address) (int, error) {
		if res, exists := a.reincarnationNumberCache[account]; exists {
			return res, nil
		}
		_, res, _, err := a.getStatus(tx, block, account)
		if err != nil {
			return 0, err
		}
		a.reincarnationNumberCache[account] = res
		return res, nil
	}

	stmt := a.stmt(tx, kAddStatusStmt)
	setStatus := func(account common.Address, exists bool) error {
		reincarnation, err := getReincarnationNumber(account)
		if err != nil {
			return fmt.Errorf("failed to get status; %w", err)
		}
		if _, err = stmt.Exec(account[:], block, exists, reincarnation+1); err != nil {
			return fmt.Errorf("failed to add status; %w", err)
		}
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

	stmt = a.stmt(tx, kAddBalanceStmt)
	for _, balanceUpdate := range update.Balances {
		balance := balanceUpdate.Balance.Bytes32()
		if _, err := stmt.Exec(balanceUpdate.Account[:], block, balance[:]); err != nil {
			return fmt.Errorf("failed to add balance; %w", err)
		}
	}

	stmt = a.stmt(tx, kAddCodeStmt)
	for _, codeUpdate := range update.Codes {
		code := codeUpdate.Code
		if code == nil {
			code = []byte{}
		}
		if _, err := stmt.Exec(codeUpdate.Account[:], block, code); err != nil {
			return fmt.Errorf("failed to add code; %w", err)
		}
	}

	stmt = a.stmt(tx, kAddNonceStmt)
	for _, nonceUpdate := range update.Nonces {
		if _, err := stmt.Exec(nonceUpdate.Account[:], block, nonceUpdate.Nonce[:]); err != nil {
			return fmt.Errorf("failed to add nonce; %w", err)
		}
	}

	stmt = a.stmt(tx, kAddValueStmt)
	for _, slotUpdate := range update.Slots {
		reincarnation, err := getReincarnationNumber(slotUpdate.Account)
		if err != nil {
			return fmt.Errorf("failed to get status; %w", err)
		}
		if _, err = stmt.Exec(slotUpdate.Account[:], reincarnation, slotUpdate.Key[:], block, slotUpdate.Value[:]); err != nil {
			return fmt.Errorf("failed to add storage value; %w", err)
		}
	}
	return nil
}

func (a *Archive) addAccountHashes(tx *sql.Tx, block uint64, lastBlockHash common.Hash, update *common.Update) (common.Hash, error) {
	blockHasher := sha256.New()
	blockHasher.Write(lastBlockHash[:])

	reusedHasher := sha256.New()
	stmt := a.stmt(tx, kAddAccountHashStmt)
	accounts, accountUpdates := archive.AccountUpdatesFrom(update)
	for _, account := range accounts {
		lastAccountHash, err := a.getAccountHash(tx, block, account)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to get previous account hash; %w", err)
		}
		accountUpdateHash := accountUpdates[account].GetHash(reusedHasher)
		newAccountHash := archive.NextAccountHash(reusedHasher, lastAccountHash, accountUpdateHash)
		blockHasher.Write(newAccountHash[:])

		if _, err = stmt.Exec(account[:], block, newAccountHash[:]); err != nil {
			return common.Hash{}, fmt.Errorf("failed to add account hash; %w", err)
		}
	}

	var res common.Hash
	copy(res[:], blockHasher.Sum(nil))
	return res, nil
}

func (a *Archive) getLastBlock(tx *sql.Tx) (number uint64, hash common.Hash, empty bool, err error) {
	rows, err := a.stmt(tx, kGetBlockHeightStmt).Query()
	if err != nil {
		return 0, common.Hash{}, false, err
	}
	defer rows.Close()
	if rows.Next() {
		var bytes []byte
		err = rows.Scan(&number, &bytes)
		copy(hash[:], bytes)
		return number, hash, false, err
	}
	return 0, common.Hash{}, true, rows.Err()
}

func (a *Archive) GetLastBlockHeight() (block uint64, empty bool, err error) {
	block, _, empty, err = a.getLastBlock(nil)
	return block, empty, err
}

func (a *Archive) getStatus(tx *sql.Tx, block uint64, account common.Address) (exists bool, reincarnation int, since uint64, err error) {
	rows, err := a.stmt(tx, kGetStatusStmt).Query(account[:], block)
	if err != nil {
		return false, 0, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		err = rows.Scan(&exists, &reincarnation, &since)
		return exists, reincarnation, since, err
	}
	return false, 0, 0, rows.Err()
}

func (a *Archive) Exists(block uint64, account common.Address) (exists bool, err error) {
	exists, _, _, err = a.getStatus(nil, block, account)
	return exists, err
}

// getLatest fetches the most recent value of an account property at the
// given block, ignoring values written before the since block.
func (a *Archive) getLatest(ctx context.Context, query string, account common.Address, block, since uint64) ([]byte, bool, error) {
	rows, err := a.stmt(nil, query).QueryContext(ctx, account[:], block)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	if rows.Next() {
		var value []byte
		var written uint64
		if err := rows.Scan(&value, &written); err != nil {
			return nil, false, err
		}
		return value, written >= since, nil
	}
	return nil, false, rows.Err()
}

func (a *Archive) GetAccount(block uint64, account common.Address) (*state.Account, error) {
	exists, reincarnation, since, err := a.getStatus(nil, block, account)
	if err != nil || !exists {
		return nil, err
	}
	return a.loadAccount(context.Background(), block, account, reincarnation, since)
}

func (a *Archive) loadAccount(ctx context.Context, block uint64, account common.Address, reincarnation int, since uint64) (*state.Account, error) {
	var balance amount.Amount
	value, found, err := a.getLatest(ctx, kGetBalanceStmt, account, block, since)
	if err != nil {
		return nil, err
	}
	if found {
		balance = amount.NewFromBytes(value...)
	}

	var nonce common.Nonce
	value, found, err = a.getLatest(ctx, kGetNonceStmt, account, block, since)
	if err != nil {
		return nil, err
	}
	if found {
		copy(nonce[:], value)
	}

	code, found, err := a.getLatest(ctx, kGetCodeStmt, account, block, since)
	if err != nil {
		return nil, err
	}
	if !found {
		code = nil
	}

	rows, err := a.stmt(nil, kGetValuesStmt).QueryContext(ctx, account[:], reincarnation, block)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	storage := map[common.Key]common.Value{}
	for rows.Next() {
		var slotBytes, valueBytes []byte
		if err := rows.Scan(&slotBytes, &valueBytes); err != nil {
			return nil, err
		}
		var slot common.Key
		copy(slot[:], slotBytes)
		// rows are ordered by block in descending order within each slot
		if _, seen := storage[slot]; seen {
			continue
		}
		var value common.Value
		copy(value[:], valueBytes)
		storage[slot] = value
	}
	if err := rows.Err(); err != nil {
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

	type incarnation struct {
		address       common.Address
		reincarnation int
		since         uint64
	}

	rows, err := a.stmt(nil, kGetAllStatusesStmt).QueryContext(ctx, block)
	if err != nil {
		return nil, err
	}
	var alive []incarnation
	var current common.Address
	first := true
	for rows.Next() {
		var addressBytes []byte
		var exists bool
		var cur incarnation
		if err := rows.Scan(&addressBytes, &exists, &cur.reincarnation, &cur.since); err != nil {
			rows.Close()
			return nil, err
		}
		copy(cur.address[:], addressBytes)
		if !first && cur.address == current {
			continue
		}
		first, current = false, cur.address
		if exists {
			alive = append(alive, cur)
		}
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, err
	}

	accounts := make(map[common.Address]*state.Account, len(alive))
	for _, cur := range alive {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		account, err := a.loadAccount(ctx, block, cur.address, cur.reincarnation, cur.since)
		if err != nil {
			return nil, err
		}
		accounts[cur.address] = account
	}
	return state.NewWorld(accounts), nil
}

func (a *Archive) GetHash(block uint64) (hash common.Hash, err error) {
	rows, err := a.stmt(nil, kGetBlockHashStmt).Query(block)
	if err != nil {
		return common.Hash{}, err
	}
	defer rows.Close()
	if rows.Next() {
		var bytes []byte
		err = rows.Scan(&bytes)
		copy(hash[:], bytes)
		return hash, err
	}
	return common.Hash{}, rows.Err()
}

func (a *Archive) getAccountHash(tx *sql.Tx, block uint64, account common.Address) (hash common.Hash, err error) {
	rows, err := a.stmt(tx, kGetAccountHashStmt).Query(account[:], block)
	if err != nil {
		return common.Hash{}, err
	}
	defer rows.Close()
	if rows.Next() {
		var bytes []byte
		err = rows.Scan(&bytes)
		copy(hash[:], bytes)
		return hash, err
	}
	return common.Hash{}, rows.Err()
}

func (a *Archive) GetAccountHash(block uint64, account common.Address) (hash common.Hash, err error) {
	return a.getAccountHash(nil, block, account)
}
