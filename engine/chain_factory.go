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
	"reflect"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/pointcut"
)

// DynamicMatch is a chain entry whose interceptor runs only when the runtime
// matcher accepts the actual arguments.
// DynamicMatch 运行时匹配的拦截器，只有实际参数匹配时才执行
type DynamicMatch struct {
	Interceptor   types.Interceptor
	MethodMatcher types.MethodMatcher
}

// ChainFactory resolves the interceptor chain of a method.
// Entries are types.Interceptor or *DynamicMatch.
type ChainFactory interface {
	Chain(config *AdvisedSupport, method *types.Method, targetClass reflect.Type) ([]any, error)
}

// DefaultChainFactory builds chains in advisor order.
type DefaultChainFactory struct{}

var _ ChainFactory = DefaultChainFactory{}

func (DefaultChainFactory) Chain(config *AdvisedSupport, method *types.Method, targetClass reflect.Type) ([]any, error) {
	actualClass := targetClass
	if actualClass == nil {
		actualClass = method.DeclaringType
	}
	registry := config.AdapterRegistry()
	advisors := config.Advisors()
	preFiltered := config.IsPreFiltered()
	hasIntroductions := hasMatchingIntroductions(advisors, actualClass)

	chain := make([]any, 0, len(advisors))
	for _, a := range advisors {
		switch adv := a.(type) {
		case types.PointcutAdvisor:
			pc := adv.Pointcut()
			if !preFiltered && !pc.ClassFilter().Matches(actualClass) {
				continue
			}
			mm := pc.MethodMatcher()
			if !pointcut.MatchesMethod(mm, method, actualClass, hasIntroductions) {
				continue
			}
			interceptors, err := registry.Interceptors(adv)
			if err != nil {
				return nil, err
			}
			if mm.IsRuntime() {
				for _, interceptor := range interceptors {
					chain = append(chain, &DynamicMatch{Interceptor: interceptor, MethodMatcher: mm})
				}
			} else {
				for _, interceptor := range interceptors {
					chain = append(chain, interceptor)
				}
			}
		case types.IntroductionAdvisor:
			if !preFiltered && !adv.ClassFilter().Matches(actualClass) {
				continue
			}
			interceptors, err := registry.Interceptors(adv)
			if err != nil {
				return nil, err
			}
			for _, interceptor := range interceptors {
				chain = append(chain, interceptor)
			}
		default:
			interceptors, err := registry.Interceptors(a)
			if err != nil {
				return nil, err
			}
			for _, interceptor := range interceptors {
				chain = append(chain, interceptor)
			}
		}
	}
	return chain, nil
}

func hasMatchingIntroductions(advisors []types.Advisor, class reflect.Type) bool {
	for _, a := range advisors {
		if ia, ok := a.(types.IntroductionAdvisor); ok && ia.ClassFilter().Matches(class) {
			return true
		}
	}
	return false
}
