/*
 * Copyright 2024 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package aspect

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/api/types/metrics"
)

var _ types.Interceptor = (*MetricsAspect)(nil)

const (
	statusSuccess = "success"
	statusFailure = "failure"
	statusPanic   = "panic"
)

// MetricsAspect counts the calls of advised proxies, in process through
// metrics.InvocationMetrics and per method through prometheus collectors.
// MetricsAspect 统计代理调用，并按方法导出 prometheus 指标
type MetricsAspect struct {
	metrics *metrics.InvocationMetrics

	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
}

// NewMetricsAspect creates the aspect and registers its collectors with
// registerer, when not nil. A nil m creates new counters.
func NewMetricsAspect(m *metrics.InvocationMetrics, registerer prometheus.Registerer) (*MetricsAspect, error) {
	if m == nil {
		m = metrics.NewInvocationMetrics()
	}
	a := &MetricsAspect{
		metrics: m,
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aop_calls_total",
				Help: "Total number of proxied calls by method and status",
			},
			[]string{"method", "status"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aop_call_duration_seconds",
				Help:    "Proxied call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "aop_calls_in_flight",
				Help: "Number of proxied calls in progress",
			},
		),
	}
	if registerer != nil {
		for _, c := range a.Collectors() {
			if err := registerer.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					return nil, err
				}
			}
		}
	}
	return a, nil
}

func (a *MetricsAspect) Order() int {
	return 20
}

func (a *MetricsAspect) Kind() types.AdviceKind {
	return types.AdviceAround
}

func (a *MetricsAspect) Invoke(inv types.MethodInvocation) (result any, err error) {
	method := inv.Method().String()
	start := time.Now()
	a.metrics.Start()
	a.inFlight.Inc()
	status := statusPanic
	defer func() {
		a.inFlight.Dec()
		a.callDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		a.callsTotal.WithLabelValues(method, status).Inc()
		if status == statusPanic {
			a.metrics.End(fmt.Errorf("panic in %s", method))
		} else {
			a.metrics.End(err)
		}
	}()
	result, err = inv.Proceed()
	if err != nil {
		status = statusFailure
	} else {
		status = statusSuccess
	}
	return result, err
}

// Collectors returns the prometheus collectors of the aspect.
func (a *MetricsAspect) Collectors() []prometheus.Collector {
	return []prometheus.Collector{a.callsTotal, a.callDuration, a.inFlight}
}

// GetMetrics 返回当前的指标
func (a *MetricsAspect) GetMetrics() *metrics.InvocationMetrics {
	return a.metrics
}
