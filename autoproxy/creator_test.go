/*
 * Copyright 2025 The RuleGo Authors.
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

package autoproxy

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rulego/aop/advisor"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/aspect"
	builtin "github.com/rulego/aop/builtin/aspect"
	"github.com/rulego/aop/engine"
	"github.com/rulego/aop/pointcut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greetAdvisor(rec *recorder, name string) types.Advisor {
	return advisor.New(pointcut.MustNameMatch("Greet"), &namedInterceptor{rec: rec, name: name})
}

func newCreator(t *testing.T, opts ...Option) *Creator {
	opts = append([]Option{WithPool(engine.NewPool()), WithEngineOptions(types.WithLogger(types.NopLogger()))}, opts...)
	c, err := NewCreator(opts...)
	require.Nil(t, err)
	return c
}

func TestCreatorProxiesMatchingObjects(t *testing.T) {
	rec := &recorder{}
	c := newCreator(t, WithAdvisors(greetAdvisor(rec, "log")))

	target := &greeter{}
	obj, err := c.AfterInitialization(target, "greeter")
	require.Nil(t, err)
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	result, err := p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)
	assert.Equal(t, "hello bob", result)
	assert.Equal(t, []string{"log Greet"}, rec.list())

	proxy, ok := c.State().Decision("greeter")
	assert.True(t, ok)
	assert.True(t, proxy)
	proxyType, ok := c.PredictProxyType(reflect.TypeOf(target), "greeter")
	assert.True(t, ok)
	assert.Equal(t, engine.ClassProxy, proxyType.Strategy)
	pooled, ok := c.Pool().Get("greeter")
	assert.True(t, ok)
	assert.Same(t, p, pooled)

	advised, ok := p.Advised()
	require.True(t, ok)
	assert.True(t, advised.IsPreFiltered())

	// no advisor applies to a repository
	repo := &repository{}
	obj, err = c.AfterInitialization(repo, "repo")
	require.Nil(t, err)
	assert.Same(t, repo, obj)
	assert.True(t, c.State().IsExcluded("repo"))
	_, ok = c.PredictProxyType(reflect.TypeOf(repo), "repo")
	assert.False(t, ok)
}

func TestCreatorIdempotent(t *testing.T) {
	c := newCreator(t, WithAdvisors(greetAdvisor(&recorder{}, "log")))
	target := &greeter{}
	first, err := c.AfterInitialization(target, "greeter")
	require.Nil(t, err)
	second, err := c.AfterInitialization(target, "greeter")
	require.Nil(t, err)
	assert.Same(t, first, second)

	// another raw object under the same identifier gets its own proxy
	third, err := c.AfterInitialization(&greeter{}, "greeter")
	require.Nil(t, err)
	assert.NotSame(t, first, third)

	// anonymous objects are proxied without memoization
	anonymous, err := c.AfterInitialization(&greeter{}, "")
	require.Nil(t, err)
	_, ok := anonymous.(*engine.Proxy)
	assert.True(t, ok)
}

func TestCreatorConcurrentFirstUse(t *testing.T) {
	var created int32
	pool := engine.NewPool()
	pool.Callbacks.OnNew = func(name string, proxy *engine.Proxy) {
		atomic.AddInt32(&created, 1)
	}
	c := newCreator(t, WithAdvisors(greetAdvisor(&recorder{}, "log")), WithPool(pool))

	target := &greeter{}
	results := make([]any, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.AfterInitialization(target, "greeter")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestCreatorEarlyReference(t *testing.T) {
	c := newCreator(t, WithAdvisors(greetAdvisor(&recorder{}, "log")))
	target := &greeter{}
	early, err := c.EarlyReference(target, "a")
	require.Nil(t, err)
	_, ok := early.(*engine.Proxy)
	require.True(t, ok)

	// the container keeps the early proxy, so the raw object comes back
	obj, err := c.AfterInitialization(target, "a")
	require.Nil(t, err)
	assert.Same(t, target, obj)

	// the early exposure mark is consumed
	obj, err = c.AfterInitialization(target, "a")
	require.Nil(t, err)
	assert.Same(t, early, obj)
}

func TestCreatorExclusions(t *testing.T) {
	rec := &recorder{}
	everything := advisor.Always(&namedInterceptor{rec: rec, name: "all"})
	c := newCreator(t, WithAdvisors(everything), WithExclusions("*Repo"))

	cases := []struct {
		name string
		obj  any
		id   string
	}{
		{"advisor", everything, "adv"},
		{"interceptor", &namedInterceptor{}, "interceptor"},
		{"pointcut", pointcut.MustNameMatch("x"), "pc"},
		{"targetSource", engine.NewSingletonTargetSource(&greeter{}), "ts"},
		{"aspect", &auditAspect{}, "audit"},
		{"original", &greeter{}, "greeter" + OriginalSuffix},
		{"glob", &repository{}, "itemRepo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, err := c.AfterInitialization(tc.obj, tc.id)
			require.Nil(t, err)
			assert.Equal(t, tc.obj, obj)
			assert.True(t, c.State().IsExcluded(tc.id))
		})
	}

	before, err := c.BeforeInstantiation(reflect.TypeOf(&repository{}), "otherRepo")
	assert.Nil(t, err)
	assert.Nil(t, before)
	assert.True(t, c.State().IsExcluded("otherRepo"))

	_, err = NewCreator(WithExclusions("[unclosed"))
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	t.Run("includes", func(t *testing.T) {
		c := newCreator(t, WithAdvisors(everything), WithIncludes("svc.*"))
		obj, err := c.AfterInitialization(&greeter{}, "svc.greeter")
		require.Nil(t, err)
		_, ok := obj.(*engine.Proxy)
		assert.True(t, ok)
		target := &greeter{}
		obj, err = c.AfterInitialization(target, "greeter")
		require.Nil(t, err)
		assert.Same(t, target, obj)
	})
}

func TestCreatorClearCaches(t *testing.T) {
	source := &mutableSource{}
	c := newCreator(t, WithAdvisorSource(source))
	target := &greeter{}

	obj, err := c.AfterInitialization(target, "greeter")
	require.Nil(t, err)
	assert.Same(t, target, obj)

	// the "no" decision is not re-evaluated
	source.set(greetAdvisor(&recorder{}, "log"))
	obj, err = c.AfterInitialization(target, "greeter")
	require.Nil(t, err)
	assert.Same(t, target, obj)

	c.ClearCaches()
	obj, err = c.AfterInitialization(target, "greeter")
	require.Nil(t, err)
	_, ok := obj.(*engine.Proxy)
	assert.True(t, ok)
}

func TestCreatorCommonInterceptors(t *testing.T) {
	rec := &recorder{}
	resolver := newMapResolver().singleton("common", &namedInterceptor{rec: rec, name: "common"})
	specific := greetAdvisor(rec, "specific")

	c := newCreator(t, WithResolver(resolver), WithInterceptorNames("common"), WithAdvisors(specific))
	obj, err := c.AfterInitialization(&greeter{}, "first")
	require.Nil(t, err)
	_, err = obj.(*engine.Proxy).Invoke("Greet", context.Background(), "bob")
	require.Nil(t, err)
	assert.Equal(t, []string{"common Greet", "specific Greet"}, rec.list())

	rec2 := &recorder{}
	resolver2 := newMapResolver().singleton("common", &namedInterceptor{rec: rec2, name: "common"})
	c = newCreator(t, WithResolver(resolver2), WithInterceptorNames("common"),
		WithAdvisors(greetAdvisor(rec2, "specific")), WithApplyCommonInterceptorsFirst(false))
	obj, err = c.AfterInitialization(&greeter{}, "last")
	require.Nil(t, err)
	_, err = obj.(*engine.Proxy).Invoke("Greet", context.Background(), "bob")
	require.Nil(t, err)
	assert.Equal(t, []string{"specific Greet", "common Greet"}, rec2.list())

	_, err = NewCreator(WithInterceptorNames("common"))
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestCreatorTargetSourced(t *testing.T) {
	resolver := newMapResolver().
		prototypeOf("worker", func() any { return &greeter{} }).
		singleton("single", &greeter{})
	tc, err := NewPrototypeTargetSourceCreator(resolver, "work*")
	require.Nil(t, err)
	rec := &recorder{}
	c := newCreator(t, WithTargetSourceCreators(tc), WithAdvisors(greetAdvisor(rec, "log")))

	obj, err := c.BeforeInstantiation(reflect.TypeOf(&greeter{}), "worker")
	require.Nil(t, err)
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	assert.True(t, c.State().IsTargetSourced("worker"))
	for i := 0; i < 2; i++ {
		_, err = p.Invoke("Greet", context.Background(), "bob")
		assert.Nil(t, err)
	}
	assert.Equal(t, 2, resolver.createdCount("worker"))
	assert.Equal(t, []string{"log Greet", "log Greet"}, rec.list())

	// a target-sourced object is not wrapped again
	raw := &greeter{}
	obj, err = c.AfterInitialization(raw, "worker")
	require.Nil(t, err)
	assert.Same(t, raw, obj)

	// singletons keep their normal construction
	obj, err = c.BeforeInstantiation(reflect.TypeOf(&greeter{}), "single")
	assert.Nil(t, err)
	assert.Nil(t, obj)

	_, err = NewPrototypeTargetSourceCreator(nil, "")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	_, err = NewPrototypeTargetSourceCreator(resolver, "[unclosed")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestCreatorPoolingTargetSource(t *testing.T) {
	resolver := newMapResolver().prototypeOf("worker", func() any { return &greeter{} })
	tc, err := NewPoolingTargetSourceCreator(resolver, "", engine.PoolingConfig{MaxSize: 2}, types.NopLogger())
	require.Nil(t, err)
	defer tc.Close()
	c := newCreator(t, WithTargetSourceCreators(tc))

	obj, err := c.BeforeInstantiation(reflect.TypeOf(&greeter{}), "worker")
	require.Nil(t, err)
	p := obj.(*engine.Proxy)
	for i := 0; i < 3; i++ {
		_, err = p.Invoke("Greet", context.Background(), "bob")
		assert.Nil(t, err)
	}
	// sequential calls reuse the pooled target
	assert.Equal(t, 1, resolver.createdCount("worker"))
	pooled, ok := p.Advised()
	require.True(t, ok)
	assert.Equal(t, 1, pooled.TargetSource().(*engine.PoolingTargetSource).Idle())
	assert.Nil(t, tc.Close())
}

func TestCreatorAspects(t *testing.T) {
	rec := &recorder{}
	c := newCreator(t, WithAspects(aspect.NewSingletonInstanceFactory(&auditAspect{rec: rec})))

	obj, err := c.AfterInitialization(&greeter{}, "greeter")
	require.Nil(t, err)
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	advised, _ := p.Advised()
	require.Equal(t, 2, advised.AdvisorCount())
	assert.True(t, builtin.IsExposeInvocationAdvisor(advised.Advisors()[0]))

	_, err = p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)
	assert.Equal(t, []string{"audit Greet"}, rec.list())

	// no aspect advice applies to a repository
	repo := &repository{}
	obj, err = c.AfterInitialization(repo, "repo")
	require.Nil(t, err)
	assert.Same(t, repo, obj)
}

func TestResolverSources(t *testing.T) {
	rec := &recorder{}
	resolver := newMapResolver().
		singleton("aop.log", greetAdvisor(rec, "log")).
		singleton("other", greetAdvisor(rec, "other")).
		singleton("audit", &auditAspect{rec: rec}).
		prototypeOf("lazyAudit", func() any { return &auditAspect{rec: rec} })

	advisors, err := (&ResolverAdvisors{Resolver: resolver, Prefix: "aop."}).Advisors()
	require.Nil(t, err)
	assert.Equal(t, 1, len(advisors))

	source := &ResolverAspects{Resolver: resolver}
	advisors, err = source.Advisors()
	require.Nil(t, err)
	// one advisor for the singleton aspect, the lazy one adds its instantiation advisor
	require.Equal(t, 3, len(advisors))
	assert.False(t, aspect.IsInstantiationAdvisor(advisors[0]))
	assert.True(t, aspect.IsInstantiationAdvisor(advisors[1]))
	assert.Equal(t, 0, resolver.createdCount("lazyAudit"))

	again, err := source.Advisors()
	require.Nil(t, err)
	assert.Same(t, advisors[1], again[1])
}

func targetOf(t *testing.T, obj any) any {
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	advised, ok := p.Advised()
	require.True(t, ok)
	target, err := advised.TargetSource().GetTarget(context.Background())
	require.Nil(t, err)
	return target
}

func TestCreatorConcurrentDistinctObjects(t *testing.T) {
	source := newGateSource(greetAdvisor(&recorder{}, "log"))
	c := newCreator(t, WithAdvisorSource(source))

	a, b := &greeter{}, &greeter{}
	var first any
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		first, firstErr = c.AfterInitialization(a, "proto")
	}()
	<-source.entered

	second, err := c.AfterInitialization(b, "proto")
	require.Nil(t, err)
	close(source.release)
	<-done
	require.Nil(t, firstErr)

	assert.NotSame(t, first, second)
	assert.Same(t, a, targetOf(t, first))
	assert.Same(t, b, targetOf(t, second))
}

func TestCreatorFrozenSettings(t *testing.T) {
	rec := &recorder{}
	c := newCreator(t, WithAdvisors(greetAdvisor(rec, "log")), WithEngineOptions(types.WithFrozen(true)))

	obj, err := c.AfterInitialization(&greeter{}, "greeter")
	require.Nil(t, err)
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	advised, ok := p.Advised()
	require.True(t, ok)
	assert.True(t, advised.IsFrozen())
	assert.Equal(t, 1, advised.AdvisorCount())
	assert.NotNil(t, advised.AddAdvisor(greetAdvisor(rec, "late")))

	_, err = p.Invoke("Greet", context.Background(), "bob")
	assert.Nil(t, err)
	assert.Equal(t, []string{"log Greet"}, rec.list())
}

func TestCreatorFailedProxyLeavesNoDecision(t *testing.T) {
	c := newCreator(t, WithAdvisors(greetAdvisor(&recorder{}, "log")), WithInterceptorNames("missing"),
		WithResolver(newMapResolver()))

	_, err := c.AfterInitialization(&greeter{}, "greeter")
	require.NotNil(t, err)
	_, ok := c.State().Decision("greeter")
	assert.False(t, ok)
	_, ok = c.PredictProxyType(reflect.TypeOf(&greeter{}), "greeter")
	assert.False(t, ok)
}

func TestResolverAspectsLazyInstantiation(t *testing.T) {
	rec := &recorder{}
	resolver := newMapResolver().
		prototypeOf("lazyAudit", func() any { return &auditAspect{rec: rec} })
	c := newCreator(t, WithResolver(resolver),
		WithAdvisorSource(&ResolverAspects{Resolver: resolver}))

	obj, err := c.AfterInitialization(&greeter{}, "greeter")
	require.Nil(t, err)
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	assert.Equal(t, 0, resolver.createdCount("lazyAudit"))

	_, err = p.Invoke("Greet", context.Background(), "bob")
	require.Nil(t, err)
	_, err = p.Invoke("Greet", context.Background(), "ann")
	require.Nil(t, err)
	assert.Equal(t, 1, resolver.createdCount("lazyAudit"))
	assert.Equal(t, []string{"audit Greet", "audit Greet"}, rec.list())
}
