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
	"github.com/rulego/aop/advisor"
	"github.com/rulego/aop/api/types"
)

var _ types.AdapterRegistry = (*AdapterRegistry)(nil)

// AdvisorAdapter converts one kind of advice into an Interceptor.
type AdvisorAdapter interface {
	SupportsAdvice(advice types.Advice) bool
	Interceptor(advisor types.Advisor) types.Interceptor
}

// AdapterRegistry converts advice into advisors and interceptors. It is
// immutable after construction and safe for concurrent use.
// AdapterRegistry 增强适配器注册表，创建之后不可修改
type AdapterRegistry struct {
	adapters []AdvisorAdapter
}

// NewAdapterRegistry creates a registry with the built-in adapters for
// Before, AfterReturning, AfterThrowing and After advice, followed by extra.
// The first adapter supporting an advice wins.
func NewAdapterRegistry(extra ...AdvisorAdapter) *AdapterRegistry {
	adapters := []AdvisorAdapter{beforeAdapter{}, afterReturningAdapter{}, throwsAdapter{}, afterAdapter{}}
	return &AdapterRegistry{adapters: append(adapters, extra...)}
}

// DefaultAdapterRegistry is the process-wide registry used when a config names none.
var DefaultAdapterRegistry = NewAdapterRegistry()

// Wrap returns v unchanged if it is an Advisor. An Interceptor or a supported
// advice is wrapped into an always-match advisor, an IntroductionInterceptor
// into an introduction advisor.
func (r *AdapterRegistry) Wrap(v any) (types.Advisor, error) {
	switch a := v.(type) {
	case types.Advisor:
		return a, nil
	case types.IntroductionInterceptor:
		ia, err := advisor.NewIntroductionAdvisor(a)
		if err != nil {
			return nil, err
		}
		return ia, ia.ValidateInterfaces()
	case types.Interceptor:
		return advisor.Always(a), nil
	case types.Advice:
		for _, adapter := range r.adapters {
			if adapter.SupportsAdvice(a) {
				return advisor.Always(a), nil
			}
		}
	}
	return nil, types.UnknownAdviceTypeError(v)
}

// Interceptors returns the advice itself when it is an Interceptor, else the
// interceptor produced by the first adapter supporting it.
func (r *AdapterRegistry) Interceptors(a types.Advisor) ([]types.Interceptor, error) {
	advice := a.Advice()
	if interceptor, ok := advice.(types.Interceptor); ok {
		return []types.Interceptor{interceptor}, nil
	}
	for _, adapter := range r.adapters {
		if adapter.SupportsAdvice(advice) {
			return []types.Interceptor{adapter.Interceptor(a)}, nil
		}
	}
	return nil, types.UnknownAdviceTypeError(advice)
}

type beforeAdapter struct{}

func (beforeAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.MethodBeforeAdvice)
	return ok
}

func (beforeAdapter) Interceptor(a types.Advisor) types.Interceptor {
	return &MethodBeforeAdviceInterceptor{Advice: a.Advice().(types.MethodBeforeAdvice)}
}

type afterReturningAdapter struct{}

func (afterReturningAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.AfterReturningAdvice)
	return ok
}

func (afterReturningAdapter) Interceptor(a types.Advisor) types.Interceptor {
	return &AfterReturningAdviceInterceptor{Advice: a.Advice().(types.AfterReturningAdvice)}
}

type throwsAdapter struct{}

func (throwsAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.ThrowsAdvice)
	return ok
}

func (throwsAdapter) Interceptor(a types.Advisor) types.Interceptor {
	return &ThrowsAdviceInterceptor{Advice: a.Advice().(types.ThrowsAdvice)}
}

type afterAdapter struct{}

func (afterAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.AfterAdvice)
	return ok
}

func (afterAdapter) Interceptor(a types.Advisor) types.Interceptor {
	return &AfterAdviceInterceptor{Advice: a.Advice().(types.AfterAdvice)}
}

// MethodBeforeAdviceInterceptor runs the advice, then proceeds unless it failed.
type MethodBeforeAdviceInterceptor struct {
	Advice types.MethodBeforeAdvice
}

func (i *MethodBeforeAdviceInterceptor) Kind() types.AdviceKind {
	return types.AdviceBefore
}

func (i *MethodBeforeAdviceInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	if err := i.Advice.Before(inv.Context(), inv.Method(), inv.Arguments(), inv.Target()); err != nil {
		return nil, err
	}
	return inv.Proceed()
}

// AfterReturningAdviceInterceptor runs the advice after a successful call.
type AfterReturningAdviceInterceptor struct {
	Advice types.AfterReturningAdvice
}

func (i *AfterReturningAdviceInterceptor) Kind() types.AdviceKind {
	return types.AdviceAfterReturning
}

func (i *AfterReturningAdviceInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	result, err := inv.Proceed()
	if err != nil {
		return result, err
	}
	if err := i.Advice.AfterReturning(inv.Context(), result, inv.Method(), inv.Arguments(), inv.Target()); err != nil {
		return nil, err
	}
	return result, nil
}

// ThrowsAdviceInterceptor runs the advice when the call returned an error.
type ThrowsAdviceInterceptor struct {
	Advice types.ThrowsAdvice
}

func (i *ThrowsAdviceInterceptor) Kind() types.AdviceKind {
	return types.AdviceAfterThrowing
}

func (i *ThrowsAdviceInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	result, err := inv.Proceed()
	if err == nil {
		return result, nil
	}
	if replaced := i.Advice.AfterThrowing(inv.Context(), err, inv.Method(), inv.Arguments(), inv.Target()); replaced != nil {
		return result, replaced
	}
	return result, err
}

// AfterAdviceInterceptor runs the advice on every exit path, panics included.
type AfterAdviceInterceptor struct {
	Advice types.AfterAdvice
}

func (i *AfterAdviceInterceptor) Kind() types.AdviceKind {
	return types.AdviceAfter
}

func (i *AfterAdviceInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	defer i.Advice.After(inv.Context(), inv.Method(), inv.Arguments(), inv.Target())
	return inv.Proceed()
}
