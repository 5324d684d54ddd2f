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
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/diff"
	"github.com/Fantom-foundation/statediff/state"
	geth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Namespace is the JSON-RPC namespace of the StateDiffAPI.
const Namespace = "statediff"

const (
	ErrInvalidRange = common.ConstError("invalid block range")
	ErrNoArchive    = common.ConstError("no archive attached")
)

// StateDiffAPI serves diffs between world states of a state.Provider.
type StateDiffAPI struct {
	provider state.Provider
	archive  Archive
	metrics  *Metrics
	log      zerolog.Logger
}

// NewStateDiffAPI creates the RPC service. The archive and the metrics may be
// nil; without an archive, hash and existence queries fail with ErrNoArchive.
func NewStateDiffAPI(provider state.Provider, archive Archive, metrics *Metrics, log zerolog.Logger) *StateDiffAPI {
	return &StateDiffAPI{
		provider: provider,
		archive:  archive,
		metrics:  metrics,
		log:      log,
	}
}

// DiffBlocks computes the changes leading from block from to block to.
// Exposed as statediff_diffBlocks.
func (api *StateDiffAPI) DiffBlocks(ctx context.Context, from, to hexutil.Uint64) (res StateDiff, err error) {
	defer api.track("diffBlocks", time.Now(), &err)
	d, err := api.diff(ctx, uint64(from), uint64(to))
	if err != nil {
		return nil, err
	}
	return NewStateDiff(d), nil
}

// DiffBlock computes the changes introduced by a single block. Block 0 is
// compared against an empty world. Exposed as statediff_diffBlock.
func (api *StateDiffAPI) DiffBlock(ctx context.Context, block hexutil.Uint64) (res StateDiff, err error) {
	defer api.track("diffBlock", time.Now(), &err)
	var d *diff.StateDiff
	if block == 0 {
		d, err = api.diffFromEmpty(ctx, 0)
	} else {
		d, err = api.diff(ctx, uint64(block)-1, uint64(block))
	}
	if err != nil {
		return nil, err
	}
	return NewStateDiff(d), nil
}

// LastBlock returns the most recent block available. Exposed as
// statediff_lastBlock.
func (api *StateDiffAPI) LastBlock() (res hexutil.Uint64, err error) {
	defer api.track("lastBlock", time.Now(), &err)
	last, err := api.provider.GetLastBlockHeight()
	if err != nil {
		return 0, err
	}
	return hexutil.Uint64(last), nil
}

// BlockHash returns the hash summarizing all updates up to the given block.
// Exposed as statediff_blockHash.
func (api *StateDiffAPI) BlockHash(block hexutil.Uint64) (res geth.Hash, err error) {
	defer api.track("blockHash", time.Now(), &err)
	if err := api.checkArchiveBlock(uint64(block)); err != nil {
		return geth.Hash{}, err
	}
	hash, err := api.archive.GetHash(uint64(block))
	if err != nil {
		return geth.Hash{}, err
	}
	return geth.Hash(hash), nil
}

// AccountHash returns the hash summarizing all updates of the account up to
// the given block. Exposed as statediff_accountHash.
func (api *StateDiffAPI) AccountHash(account geth.Address, block hexutil.Uint64) (res geth.Hash, err error) {
	defer api.track("accountHash", time.Now(), &err)
	if err := api.checkArchiveBlock(uint64(block)); err != nil {
		return geth.Hash{}, err
	}
	hash, err := api.archive.GetAccountHash(uint64(block), common.Address(account))
	if err != nil {
		return geth.Hash{}, err
	}
	return geth.Hash(hash), nil
}

// AccountExists reports whether the account existed at the end of the given
// block. Exposed as statediff_accountExists.
func (api *StateDiffAPI) AccountExists(account geth.Address, block hexutil.Uint64) (res bool, err error) {
	defer api.track("accountExists", time.Now(), &err)
	if err := api.checkArchiveBlock(uint64(block)); err != nil {
		return false, err
	}
	return api.archive.Exists(uint64(block), common.Address(account))
}

// checkArchiveBlock fails for blocks the archive has not recorded yet, for
// which it would report the zero hash.
func (api *StateDiffAPI) checkArchiveBlock(block uint64) error {
	if api.archive == nil {
		return ErrNoArchive
	}
	last, err := api.provider.GetLastBlockHeight()
	if err != nil {
		return err
	}
	if block > last {
		return fmt.Errorf("%w: block %d is beyond last block %d", ErrInvalidRange, block, last)
	}
	return nil
}

func (api *StateDiffAPI) diff(ctx context.Context, from, to uint64) (*diff.StateDiff, error) {
	if from > to {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, from, to)
	}
	last, err := api.provider.GetLastBlockHeight()
	if err != nil {
		return nil, err
	}
	if to > last {
		return nil, fmt.Errorf("%w: block %d is beyond last block %d", ErrInvalidRange, to, last)
	}
	pre, err := api.provider.GetWorld(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load block %d; %w", from, err)
	}
	post, err := api.provider.GetWorld(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load block %d; %w", to, err)
	}
	res := diff.Compute(pre, post)
	api.metrics.observeDiff(res.Len())
	return res, nil
}

func (api *StateDiffAPI) diffFromEmpty(ctx context.Context, block uint64) (*diff.StateDiff, error) {
	post, err := api.provider.GetWorld(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("failed to load block %d; %w", block, err)
	}
	res := diff.Compute(nil, post)
	api.metrics.observeDiff(res.Len())
	return res, nil
}

func (api *StateDiffAPI) track(method string, start time.Time, err *error) {
	api.metrics.observe(method, *err)
	event := api.log.Debug()
	if *err != nil {
		event = api.log.Warn().Err(*err)
	}
	event.
		Str(logging.FieldRpcMethod, method).
		Dur(logging.FieldDuration, time.Since(start)).
		Msg("Served request")
}

// NewServer creates a JSON-RPC server exposing the given API.
func NewServer(api *StateDiffAPI) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, api); err != nil {
		server.Stop()
		return nil, fmt.Errorf("failed to register %s API; %w", Namespace, err)
	}
	return server, nil
}

// NewHandler serves JSON-RPC requests on / and the metrics of the given
// gatherer on /metrics.
func NewHandler(server *rpc.Server, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/", server)
	return mux
}
