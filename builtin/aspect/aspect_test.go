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
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

type service struct {
	mu    sync.Mutex
	calls int
}

func (s *service) Greet(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return "hello " + name, nil
}

func (s *service) Fail() error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errFailed
}

func (s *service) Panic() {
	panic("boom")
}

func (s *service) Block(entered chan<- struct{}, release <-chan struct{}) {
	entered <- struct{}{}
	<-release
}

func (s *service) Current(ctx context.Context) (string, error) {
	inv, ok := engine.CurrentInvocation(ctx)
	if !ok {
		return "", errors.New("no invocation")
	}
	return inv.Method().Name, nil
}

func (s *service) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
	l.mu.Unlock()
}

func (l *lineLogger) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func newProxy(t *testing.T, target *service, advice ...types.Advice) *engine.Proxy {
	factory, err := engine.NewProxyFactoryFor(target, types.WithLogger(types.NopLogger()))
	require.Nil(t, err)
	for _, a := range advice {
		require.Nil(t, factory.AddAdvice(a))
	}
	p, err := factory.Proxy()
	require.Nil(t, err)
	return p
}

func TestConcurrencyLimiter(t *testing.T) {
	limiter := NewConcurrencyLimiterAspect(1)
	assert.Equal(t, 10, limiter.Order())
	p := newProxy(t, &service{}, limiter)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Invoke("Block", (chan<- struct{})(entered), (<-chan struct{})(release))
	}()
	<-entered
	assert.Equal(t, int64(1), limiter.Current())

	_, err := p.Invoke("Greet", context.Background(), "bob")
	assert.Equal(t, types.ErrConcurrencyLimitReached, err)

	close(release)
	<-done
	assert.Equal(t, int64(0), limiter.Current())
	result, err := p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)
	assert.Equal(t, "hello bob", result)

	// the slot is released when the target panics
	assert.Panics(t, func() { _, _ = p.Invoke("Panic") })
	assert.Equal(t, int64(0), limiter.Current())
}

func TestSkipFallback(t *testing.T) {
	target := &service{}
	fallback := &SkipFallbackAspect{ErrorCountLimit: 2, LimitDuration: time.Hour}
	p := newProxy(t, target, fallback)

	for i := 0; i < 2; i++ {
		_, err := p.Invoke("Fail")
		assert.Equal(t, errFailed, err)
	}
	m, ok := p.Method("Fail")
	require.True(t, ok)
	assert.Equal(t, int64(2), fallback.ErrorCount(p.ProxyType().Class, m))

	_, err := p.Invoke("Fail")
	assert.Equal(t, types.ErrFallback, err)
	assert.Equal(t, 2, target.Calls())

	// other methods are not affected
	_, err = p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)

	t.Run("customFallback", func(t *testing.T) {
		fallback := &SkipFallbackAspect{
			ErrorCountLimit: 1,
			LimitDuration:   time.Hour,
			Fallback: func(inv types.MethodInvocation) (any, error) {
				return nil, fmt.Errorf("skipped %s", inv.Method().Name)
			},
		}
		p := newProxy(t, &service{}, fallback)
		_, _ = p.Invoke("Fail")
		_, err := p.Invoke("Fail")
		assert.EqualError(t, err, "skipped Fail")
	})

	t.Run("recover", func(t *testing.T) {
		target := &service{}
		fallback := &SkipFallbackAspect{ErrorCountLimit: 1, LimitDuration: time.Millisecond}
		p := newProxy(t, target, fallback)
		_, _ = p.Invoke("Fail")
		time.Sleep(time.Millisecond * 10)
		_, err := p.Invoke("Fail")
		assert.Equal(t, errFailed, err)
		assert.Equal(t, 2, target.Calls())
	})
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	a, err := NewMetricsAspect(nil, registry)
	require.Nil(t, err)
	p := newProxy(t, &service{}, a)

	_, err = p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)
	_, err = p.Invoke("Fail")
	assert.Equal(t, errFailed, err)
	assert.Panics(t, func() { _, _ = p.Invoke("Panic") })

	m := a.GetMetrics().Get()
	assert.Equal(t, int64(0), m.Current)
	assert.Equal(t, int64(3), m.Total)
	assert.Equal(t, int64(1), m.Success)
	assert.Equal(t, int64(2), m.Failed)

	greet, _ := p.Method("Greet")
	fail, _ := p.Method("Fail")
	panicked, _ := p.Method("Panic")
	assert.Equal(t, float64(1), testutil.ToFloat64(a.callsTotal.WithLabelValues(greet.String(), statusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.callsTotal.WithLabelValues(fail.String(), statusFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.callsTotal.WithLabelValues(panicked.String(), statusPanic)))
	assert.Equal(t, float64(0), testutil.ToFloat64(a.inFlight))

	// registering the same collectors again is tolerated
	_, err = NewMetricsAspect(nil, registry)
	assert.Nil(t, err)

	a.GetMetrics().Reset()
	assert.Equal(t, int64(0), a.GetMetrics().Get().Total)
}

func TestDebug(t *testing.T) {
	logger := &lineLogger{}
	p := newProxy(t, &service{}, &Debug{Logger: logger})

	_, err := p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)
	lines := logger.list()
	require.Equal(t, 2, len(lines))
	assert.True(t, strings.Contains(lines[0], "In "))
	assert.True(t, strings.Contains(lines[1], "Out "))
	assert.True(t, strings.Contains(lines[1], "hello bob"))
	// both lines carry the same invocation id
	assert.Equal(t, lines[0][:strings.Index(lines[0], "]")], lines[1][:strings.Index(lines[1], "]")])

	assert.PanicsWithValue(t, "boom", func() { _, _ = p.Invoke("Panic") })
	lines = logger.list()
	assert.True(t, strings.Contains(lines[len(lines)-1], "Panic "))
}

func TestExposeInvocation(t *testing.T) {
	p := newProxy(t, &service{})
	_, err := p.Invoke("Current", context.Background())
	assert.NotNil(t, err)

	target := &service{}
	factory, err := engine.NewProxyFactoryFor(target, types.WithLogger(types.NopLogger()))
	require.Nil(t, err)
	require.Nil(t, factory.AddAdvisor(ExposeInvocationAdvisor))
	p, err = factory.Proxy()
	require.Nil(t, err)
	result, err := p.Invoke("Current", context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "Current", result)
	assert.True(t, IsExposeInvocationAdvisor(ExposeInvocationAdvisor))
}
