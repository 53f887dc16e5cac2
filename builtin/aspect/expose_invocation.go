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
	"github.com/rulego/aop/advisor"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
)

var _ types.Interceptor = (*ExposeInvocation)(nil)

// ExposeInvocation publishes the current invocation into the call context, so
// that engine.CurrentInvocation works in later interceptors and in the target.
// It must run before any advice that reads the current invocation.
// ExposeInvocation 将当前调用发布到调用上下文
type ExposeInvocation struct{}

// ExposeInvocationAdvisor is the shared advisor of the ExposeInvocation interceptor.
var ExposeInvocationAdvisor types.Advisor = advisor.Always(&ExposeInvocation{}).WithOrder(types.HighestPrecedence + 1)

func (e *ExposeInvocation) Kind() types.AdviceKind {
	return types.AdviceAround
}

func (e *ExposeInvocation) Order() int {
	return types.HighestPrecedence + 1
}

func (e *ExposeInvocation) Invoke(inv types.MethodInvocation) (any, error) {
	if pmi, ok := inv.(types.ProxyMethodInvocation); ok {
		pmi.SetContext(engine.WithCurrentInvocation(inv.Context(), inv))
	}
	return inv.Proceed()
}

func (e *ExposeInvocation) String() string {
	return "ExposeInvocation"
}

// IsExposeInvocationAdvisor reports whether a carries the ExposeInvocation interceptor.
func IsExposeInvocationAdvisor(a types.Advisor) bool {
	_, ok := a.Advice().(*ExposeInvocation)
	return ok
}
