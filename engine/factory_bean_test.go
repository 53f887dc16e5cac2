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

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rulego/aop/advisor"
	"github.com/rulego/aop/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderedInterceptor struct {
	rec   *recorder
	name  string
	order int
}

func (i *orderedInterceptor) Kind() types.AdviceKind { return types.AdviceAround }

func (i *orderedInterceptor) Order() int { return i.order }

func (i *orderedInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	i.rec.add("around %s", i.name)
	return inv.Proceed()
}

// countingInterceptor holds per-instance state.
type countingInterceptor struct {
	count int
}

func (i *countingInterceptor) Kind() types.AdviceKind { return types.AdviceAround }

func (i *countingInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	i.count++
	return inv.Proceed()
}

func newTestConfig(t *testing.T) *AdvisedSupport {
	config, err := NewAdvisedSupport(types.WithLogger(types.NopLogger()))
	require.Nil(t, err)
	return config
}

func TestFactoryBeanSingleton(t *testing.T) {
	rec := &recorder{}
	target := newGreeter()
	resolver := newMapResolver().
		singleton("greeter", target).
		singleton("global.a", advisor.Always(&orderedInterceptor{rec: rec, name: "a"}).WithOrder(2)).
		singleton("global.b", &orderedInterceptor{rec: rec, name: "b", order: 1}).
		singleton("other.c", &orderedInterceptor{rec: rec, name: "c", order: 0}).
		singleton("log", &beforeAdvice{rec: rec, name: "log"})

	fb, err := NewFactoryBean(resolver, newTestConfig(t),
		WithInterceptorNames("global.*", "log"),
		WithTargetName("greeter"))
	require.Nil(t, err)
	assert.True(t, fb.IsSingleton())

	p1, err := fb.Object()
	require.Nil(t, err)
	p2, err := fb.Object()
	require.Nil(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 3, fb.AdvisorCount())

	proxyType, err := fb.ObjectType()
	require.Nil(t, err)
	assert.Equal(t, InterfaceProxy, proxyType.Strategy)

	_, err = p1.Invoke("Greet", context.Background(), "bob")
	require.Nil(t, err)
	assert.Equal(t, []string{"around b", "around a", "before log Greet"}, rec.list())
	assert.Equal(t, 1, target.Count())
}

func TestFactoryBeanPrototype(t *testing.T) {
	resolver := newMapResolver().
		prototypeOf("greeter", func() any { return newGreeter() }).
		prototypeOf("counter", func() any { return &countingInterceptor{} }).
		singleton("log", &beforeAdvice{rec: &recorder{}, name: "log"})

	fb, err := NewFactoryBean(resolver, newTestConfig(t),
		WithInterceptorNames("log", "counter"),
		WithTargetName("greeter"),
		WithSingleton(false))
	require.Nil(t, err)

	p1, err := fb.Object()
	require.Nil(t, err)
	p2, err := fb.Object()
	require.Nil(t, err)
	assert.NotSame(t, p1, p2)
	assert.NotEqual(t, p1.ID(), p2.ID())
	assert.Equal(t, 2, resolver.created["greeter"])
	assert.Equal(t, 2, resolver.created["counter"])

	// each proxy has its own target
	_, err = p1.Invoke("Greet", context.Background(), "retry")
	assert.Equal(t, errTransient, err)
	_, err = p2.Invoke("Greet", context.Background(), "retry")
	assert.Equal(t, errTransient, err)
	_, err = p1.Invoke("Greet", context.Background(), "retry")
	assert.Nil(t, err)

	a1, ok := p1.Advised()
	require.True(t, ok)
	a2, ok := p2.Advised()
	require.True(t, ok)
	c1 := a1.Advisors()[1].Advice().(*countingInterceptor)
	c2 := a2.Advisors()[1].Advice().(*countingInterceptor)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, 2, c1.count)
	assert.Equal(t, 1, c2.count)

	// the factory keeps the placeholder, not a resolved instance
	assert.Equal(t, 2, fb.AdvisorCount())
	assert.Nil(t, fb.Advisors()[1].Advice())
}

func TestFactoryBeanTargetSource(t *testing.T) {
	resolver := newMapResolver().
		prototypeOf("greeter", func() any { return newGreeter() })
	ts, err := NewPrototypeTargetSource(resolver, "greeter")
	require.Nil(t, err)
	resolver.singleton("greeterSource", ts)

	fb, err := NewFactoryBean(resolver, newTestConfig(t), WithTargetName("greeterSource"))
	require.Nil(t, err)
	p, err := fb.Object()
	require.Nil(t, err)
	for i := 0; i < 2; i++ {
		_, err = p.Invoke("Greet", context.Background(), "retry")
		assert.Equal(t, errTransient, err)
	}
	assert.Equal(t, 2, resolver.created["greeter"])

	_, err = NewPrototypeTargetSource(newMapResolver().singleton("s", newGreeter()), "s")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestFactoryBeanErrors(t *testing.T) {
	_, err := NewFactoryBean(nil, nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	resolver := newMapResolver().
		singleton("greeter", newGreeter()).
		singleton("bad", unsupportedAdvice{})
	fb, err := NewFactoryBean(resolver, nil, WithInterceptorNames("bad"), WithTargetName("greeter"))
	require.Nil(t, err)
	_, err = fb.Object()
	assert.True(t, errors.Is(err, types.ErrUnknownAdviceType))

	fb, err = NewFactoryBean(resolver, nil, WithInterceptorNames("missing"))
	require.Nil(t, err)
	_, err = fb.Object()
	assert.NotNil(t, err)
}
