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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/Fantom-foundation/statediff/common/logging"
	"github.com/Fantom-foundation/statediff/state"
	geth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestClient(t *testing.T, provider state.Provider, metrics *Metrics) *rpc.Client {
	t.Helper()
	return newTestClientWithArchive(t, provider, nil, metrics)
}

func newTestClientWithArchive(t *testing.T, provider state.Provider, archive Archive, metrics *Metrics) *rpc.Client {
	t.Helper()
	server, err := NewServer(NewStateDiffAPI(provider, archive, metrics, logging.Nop()))
	require.NoError(t, err)
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func TestStateDiffAPI_DiffBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(9), nil)
	provider.EXPECT().GetWorld(gomock.Any(), uint64(3)).Return(examplePre(), nil)
	provider.EXPECT().GetWorld(gomock.Any(), uint64(7)).Return(examplePost(), nil)

	client := newTestClient(t, provider, nil)
	var res json.RawMessage
	require.NoError(t, client.CallContext(context.Background(), &res, "statediff_diffBlocks", hexutil.Uint64(3), hexutil.Uint64(7)))
	require.JSONEq(t, exampleJSON, string(res))
}

func TestStateDiffAPI_DiffBlockComparesWithParent(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(5), nil)
	provider.EXPECT().GetWorld(gomock.Any(), uint64(4)).Return(examplePre(), nil)
	provider.EXPECT().GetWorld(gomock.Any(), uint64(5)).Return(examplePost(), nil)

	client := newTestClient(t, provider, nil)
	var res json.RawMessage
	require.NoError(t, client.Call(&res, "statediff_diffBlock", hexutil.Uint64(5)))
	require.JSONEq(t, exampleJSON, string(res))
}

func TestStateDiffAPI_DiffOfGenesisBlockStartsFromEmptyWorld(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	provider.EXPECT().GetWorld(gomock.Any(), uint64(0)).Return(examplePre(), nil)

	client := newTestClient(t, provider, nil)
	var res map[string]map[string]any
	require.NoError(t, client.Call(&res, "statediff_diffBlock", hexutil.Uint64(0)))
	require.Len(t, res, 2)
	for _, account := range res {
		require.Contains(t, account["balance"], "+")
	}
}

func TestStateDiffAPI_RejectsInvalidRanges(t *testing.T) {
	tests := map[string]struct {
		from, to uint64
	}{
		"reversed":    {5, 4},
		"beyond last": {1, 11},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			provider := state.NewMockProvider(ctrl)
			provider.EXPECT().GetLastBlockHeight().Return(uint64(10), nil).AnyTimes()

			client := newTestClient(t, provider, nil)
			var res json.RawMessage
			err := client.Call(&res, "statediff_diffBlocks", hexutil.Uint64(test.from), hexutil.Uint64(test.to))
			require.ErrorContains(t, err, ErrInvalidRange.Error())
		})
	}
}

func TestStateDiffAPI_ForwardsProviderErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(10), nil)
	provider.EXPECT().GetWorld(gomock.Any(), uint64(1)).Return(nil, errors.New("injected"))

	client := newTestClient(t, provider, nil)
	var res json.RawMessage
	err := client.Call(&res, "statediff_diffBlocks", hexutil.Uint64(1), hexutil.Uint64(2))
	require.ErrorContains(t, err, "injected")
}

func TestStateDiffAPI_LastBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(0x42), nil)

	client := newTestClient(t, provider, nil)
	var res hexutil.Uint64
	require.NoError(t, client.Call(&res, "statediff_lastBlock"))
	require.Equal(t, hexutil.Uint64(0x42), res)
}

func TestStateDiffAPI_BlockHashIsReadFromArchive(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	archive := NewMockArchive(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(4), nil)
	archive.EXPECT().GetHash(uint64(3)).Return(common.Hash{1, 2, 3}, nil)

	client := newTestClientWithArchive(t, provider, archive, nil)
	var res geth.Hash
	require.NoError(t, client.Call(&res, "statediff_blockHash", hexutil.Uint64(3)))
	require.Equal(t, geth.Hash{1, 2, 3}, res)
}

func TestStateDiffAPI_AccountQueriesAreReadFromArchive(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	archive := NewMockArchive(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(4), nil).Times(2)
	archive.EXPECT().GetAccountHash(uint64(2), common.Address{7}).Return(common.Hash{9}, nil)
	archive.EXPECT().Exists(uint64(4), common.Address{7}).Return(true, nil)

	client := newTestClientWithArchive(t, provider, archive, nil)
	var hash geth.Hash
	require.NoError(t, client.Call(&hash, "statediff_accountHash", geth.Address{7}, hexutil.Uint64(2)))
	require.Equal(t, geth.Hash{9}, hash)

	var exists bool
	require.NoError(t, client.Call(&exists, "statediff_accountExists", geth.Address{7}, hexutil.Uint64(4)))
	require.True(t, exists)
}

func TestStateDiffAPI_ArchiveQueriesRejectUnrecordedBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	archive := NewMockArchive(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(4), nil).AnyTimes()

	client := newTestClientWithArchive(t, provider, archive, nil)
	var hash geth.Hash
	err := client.Call(&hash, "statediff_blockHash", hexutil.Uint64(5))
	require.ErrorContains(t, err, ErrInvalidRange.Error())
	var exists bool
	err = client.Call(&exists, "statediff_accountExists", geth.Address{1}, hexutil.Uint64(5))
	require.ErrorContains(t, err, ErrInvalidRange.Error())
}

func TestStateDiffAPI_ArchiveQueriesFailWithoutArchive(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)

	client := newTestClient(t, provider, nil)
	var hash geth.Hash
	err := client.Call(&hash, "statediff_blockHash", hexutil.Uint64(0))
	require.ErrorContains(t, err, ErrNoArchive.Error())
}

func TestStateDiffAPI_ArchiveErrorsAreForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	archive := NewMockArchive(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(4), nil)
	archive.EXPECT().GetHash(uint64(1)).Return(common.Hash{}, errors.New("injected"))

	client := newTestClientWithArchive(t, provider, archive, nil)
	var hash geth.Hash
	require.ErrorContains(t, client.Call(&hash, "statediff_blockHash", hexutil.Uint64(1)), "injected")
}

func TestStateDiffAPI_RequestsAreCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	gomock.InOrder(
		provider.EXPECT().GetLastBlockHeight().Return(uint64(1), nil),
		provider.EXPECT().GetLastBlockHeight().Return(uint64(0), state.ErrUnknownBlock),
	)

	metrics := NewMetrics(prometheus.NewRegistry())
	client := newTestClient(t, provider, metrics)
	var res hexutil.Uint64
	require.NoError(t, client.Call(&res, "statediff_lastBlock"))
	require.Error(t, client.Call(&res, "statediff_lastBlock"))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("lastBlock", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("lastBlock", "error")))
}

func TestNewHandler_ServesRpcAndMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := state.NewMockProvider(ctrl)
	provider.EXPECT().GetLastBlockHeight().Return(uint64(7), nil)

	registry := prometheus.NewRegistry()
	server, err := NewServer(NewStateDiffAPI(provider, nil, NewMetrics(registry), logging.Nop()))
	require.NoError(t, err)
	defer server.Stop()
	httpServer := httptest.NewServer(NewHandler(server, registry))
	defer httpServer.Close()

	client, err := rpc.Dial(httpServer.URL)
	require.NoError(t, err)
	defer client.Close()
	var res hexutil.Uint64
	require.NoError(t, client.Call(&res, "statediff_lastBlock"))
	require.Equal(t, hexutil.Uint64(7), res)

	response, err := http.Get(httpServer.URL + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `statediff_requests_total{method="lastBlock",outcome="ok"} 1`), string(body))
}
