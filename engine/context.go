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

	"github.com/rulego/aop/api/types"
)

type contextKey int

const (
	currentProxyKey contextKey = iota
	currentInvocationKey
)

// WithCurrentProxy returns a context carrying proxy as the current proxy.
// Nested calls derive their own context, so the parent keeps its value.
// WithCurrentProxy 返回携带当前代理的上下文
func WithCurrentProxy(ctx context.Context, proxy any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, currentProxyKey, proxy)
}

// CurrentProxy returns the proxy published by a proxy with ExposeProxy enabled.
// The returned value is the bound facade when there is one, else the *Proxy.
func CurrentProxy(ctx context.Context) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	proxy := ctx.Value(currentProxyKey)
	return proxy, proxy != nil
}

// WithCurrentInvocation returns a context carrying inv as the current invocation.
func WithCurrentInvocation(ctx context.Context, inv types.MethodInvocation) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, currentInvocationKey, inv)
}

// CurrentInvocation returns the invocation published by the ExposeInvocation interceptor.
func CurrentInvocation(ctx context.Context) (types.MethodInvocation, bool) {
	if ctx == nil {
		return nil, false
	}
	inv, ok := ctx.Value(currentInvocationKey).(types.MethodInvocation)
	return inv, ok
}
