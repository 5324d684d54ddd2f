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
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "statediff"

// Metrics tracks the requests served by the StateDiffAPI.
type Metrics struct {
	requests *prometheus.CounterVec
	accounts prometheus.Histogram
}

// NewMetrics creates the service metrics and registers them with the given
// registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Number of RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
		accounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "diff_accounts",
			Help:      "Number of accounts touched by a returned diff.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	registerer.MustRegister(m.requests, m.accounts)
	return m
}

func (m *Metrics) observe(method string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) observeDiff(accounts int) {
	if m == nil {
		return
	}
	m.accounts.Observe(float64(accounts))
}
