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

package advisor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/pointcut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderedAdvice struct {
	order int
}

func (a *orderedAdvice) Kind() types.AdviceKind { return types.AdviceAround }

func (a *orderedAdvice) Invoke(inv types.MethodInvocation) (any, error) { return inv.Proceed() }

func (a *orderedAdvice) Order() int { return a.order }

type lockable interface {
	Lock()
	Locked() bool
}

type lockMixin struct {
	locked bool
}

func (m *lockMixin) Lock()        { m.locked = true }
func (m *lockMixin) Locked() bool { return m.locked }
func (m *lockMixin) Self() any    { return m }

type account struct{}

func (a *account) Balance() int { return 10 }

// stubInvocation is a minimal MethodInvocation for exercising interceptors in isolation.
type stubInvocation struct {
	method  *types.Method
	args    []any
	this    any
	proceed int
}

func (s *stubInvocation) Context() context.Context { return context.Background() }
func (s *stubInvocation) Method() *types.Method     { return s.method }
func (s *stubInvocation) Arguments() []any          { return s.args }
func (s *stubInvocation) This() any                 { return s.this }
func (s *stubInvocation) Target() any               { return nil }
func (s *stubInvocation) Proceed() (any, error) {
	s.proceed++
	return "proceeded", nil
}

func TestDefaultPointcutAdvisor(t *testing.T) {
	advice := &orderedAdvice{order: 5}
	a := Always(advice)
	assert.Equal(t, advice, a.Advice())
	assert.Equal(t, pointcut.Always, a.Pointcut())
	assert.Equal(t, 5, a.Order())
	assert.False(t, a.IsPerInstance())
	assert.Equal(t, 1, a.WithOrder(1).Order())

	assert.Equal(t, pointcut.Always, New(nil, advice).Pointcut())
	assert.Equal(t, types.LowestPrecedence, Always(types.InterceptorFunc(nil)).Order())

	named, err := ForNames(advice, "Bal*")
	require.Nil(t, err)
	assert.True(t, pointcut.CanApply(named.Pointcut(), reflect.TypeOf(&account{}), false))

	_, err = ForExpression(advice, "execution(")
	assert.True(t, errors.Is(err, pointcut.ErrExpressionSyntax))
	expr, err := ForExpression(advice, "execution(int Balance())")
	require.Nil(t, err)
	assert.True(t, pointcut.CanApply(expr.Pointcut(), reflect.TypeOf(&account{}), false))
}

func TestSort(t *testing.T) {
	a1 := Always(&orderedAdvice{order: 3})
	a2 := Always(&orderedAdvice{order: 1})
	a3 := Always(types.InterceptorFunc(nil))
	a4 := Always(&orderedAdvice{order: 1})
	advisors := []types.Advisor{a1, a2, a3, a4}
	Sort(advisors)
	assert.Equal(t, []types.Advisor{a2, a4, a1, a3}, advisors)

	objects := []any{a3, "x", a4}
	SortObjects(objects)
	assert.Equal(t, []any{a4, a3, "x"}, objects)
}

func TestIntroductionAdvisor(t *testing.T) {
	lockableType := reflect.TypeOf((*lockable)(nil)).Elem()

	_, err := Introduce(nil, lockableType)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = NewIntroductionAdvisor(nil, lockableType)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = Introduce(&account{}, lockableType)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = Introduce(&lockMixin{}, reflect.TypeOf(account{}))
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = Introduce(&lockMixin{})
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	a, err := Introduce(&lockMixin{}, lockableType)
	require.Nil(t, err)
	assert.Equal(t, []reflect.Type{lockableType}, a.Interfaces())
	assert.True(t, a.IsPerInstance())
	assert.True(t, a.ClassFilter().Matches(reflect.TypeOf(&account{})))
	assert.Equal(t, types.AdviceIntroduction, a.Advice().Kind())

	a.WithClassFilter(pointcut.ForType(reflect.TypeOf(&lockMixin{})))
	assert.False(t, a.ClassFilter().Matches(reflect.TypeOf(&account{})))

	candidates := []types.Advisor{Always(&orderedAdvice{}), a}
	eligible := pointcut.EligibleAdvisors(candidates, reflect.TypeOf(&lockMixin{}))
	assert.Equal(t, []types.Advisor{a, candidates[0]}, eligible)
	eligible = pointcut.EligibleAdvisors(candidates, reflect.TypeOf(&account{}))
	assert.Equal(t, []types.Advisor{candidates[0]}, eligible)
}

func TestDelegatingIntroductionInterceptor(t *testing.T) {
	mixin := &lockMixin{}
	interceptor, err := NewDelegatingIntroductionInterceptor(mixin)
	require.Nil(t, err)
	lockableType := reflect.TypeOf((*lockable)(nil)).Elem()
	assert.True(t, interceptor.ImplementsInterface(lockableType))
	assert.True(t, interceptor.ImplementsInterface((*lockable)(nil)))
	assert.False(t, interceptor.ImplementsInterface(reflect.TypeOf((*interface{ Balance() int })(nil)).Elem()))
	assert.Equal(t, mixin, interceptor.Delegate())

	lock, _ := types.MethodByName(lockableType, "Lock")
	inv := &stubInvocation{method: lock}
	_, err = interceptor.Invoke(inv)
	require.Nil(t, err)
	assert.True(t, mixin.locked)
	assert.Equal(t, 0, inv.proceed)

	locked, _ := types.MethodByName(lockableType, "Locked")
	result, err := interceptor.Invoke(&stubInvocation{method: locked})
	require.Nil(t, err)
	assert.Equal(t, true, result)

	selfType := reflect.TypeOf((*interface{ Self() any })(nil)).Elem()
	self, _ := types.MethodByName(selfType, "Self")
	proxy := &struct{}{}
	result, err = interceptor.Invoke(&stubInvocation{method: self, this: proxy})
	require.Nil(t, err)
	assert.Same(t, proxy, result)

	balance, _ := types.MethodByName(reflect.TypeOf(&account{}), "Balance")
	inv = &stubInvocation{method: balance}
	result, err = interceptor.Invoke(inv)
	require.Nil(t, err)
	assert.Equal(t, "proceeded", result)
	assert.Equal(t, 1, inv.proceed)
}
