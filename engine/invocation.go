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
	"fmt"
	"reflect"

	"github.com/rulego/aop/api/types"
	reflect2 "github.com/rulego/aop/utils/reflect"
)

var _ types.ProxyMethodInvocation = (*Invocation)(nil)

// Invocation is the per-call context walking the interceptor chain.
// Proceed restores the cursor when it returns, so an interceptor may proceed
// more than once and each time runs the rest of the chain again.
// Invocation 方法调用上下文，每次调用创建，不可跨 goroutine 共享
type Invocation struct {
	ctx         context.Context
	proxy       any
	target      any
	method      *types.Method
	args        []any
	targetClass reflect.Type
	chain       []any
	cursor      int
	attributes  map[string]any
}

// NewInvocation creates an invocation positioned before the first chain entry.
func NewInvocation(ctx context.Context, proxy, target any, method *types.Method, args []any, targetClass reflect.Type, chain []any) *Invocation {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Invocation{
		ctx:         ctx,
		proxy:       proxy,
		target:      target,
		method:      method,
		args:        args,
		targetClass: targetClass,
		chain:       chain,
		cursor:      -1,
	}
}

func (i *Invocation) Context() context.Context {
	return i.ctx
}

func (i *Invocation) Method() *types.Method {
	return i.method
}

func (i *Invocation) Arguments() []any {
	return i.args
}

func (i *Invocation) This() any {
	return i.proxy
}

func (i *Invocation) Proxy() any {
	return i.proxy
}

func (i *Invocation) Target() any {
	return i.target
}

// TargetClass returns the class of the target, may be nil.
func (i *Invocation) TargetClass() reflect.Type {
	return i.targetClass
}

func (i *Invocation) SetArguments(args []any) {
	i.args = args
}

func (i *Invocation) SetContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	i.ctx = ctx
	if i.method.AcceptsContext() && len(i.args) > 0 {
		i.args[0] = ctx
	}
}

func (i *Invocation) Attribute(key string) (any, bool) {
	v, ok := i.attributes[key]
	return v, ok
}

func (i *Invocation) SetAttribute(key string, value any) {
	if i.attributes == nil {
		i.attributes = make(map[string]any)
	}
	if value == nil {
		delete(i.attributes, key)
		return
	}
	i.attributes[key] = value
}

// Proceed runs the next chain entry whose matcher accepts the arguments, or
// the target once the chain is exhausted.
func (i *Invocation) Proceed() (any, error) {
	saved := i.cursor
	defer func() {
		i.cursor = saved
	}()
	for {
		i.cursor++
		if i.cursor >= len(i.chain) {
			return invokeTarget(i.target, i.method, i.args)
		}
		switch entry := i.chain[i.cursor].(type) {
		case *DynamicMatch:
			if entry.MethodMatcher.MatchesArgs(i.method, i.targetClass, i.args) {
				return entry.Interceptor.Invoke(i)
			}
		case types.Interceptor:
			return entry.Invoke(i)
		default:
			return nil, fmt.Errorf("unexpected interceptor chain entry %T", entry)
		}
	}
}

func (i *Invocation) String() string {
	return fmt.Sprintf("Invocation: %s; target is of class [%v]", i.method, i.targetClass)
}

// invokeTarget calls method on target reflectively, adapting the arguments.
func invokeTarget(target any, method *types.Method, args []any) (any, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: %s has no target to invoke", types.ErrMethodNotFound, method)
	}
	fn := reflect.ValueOf(target).MethodByName(method.Name)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", types.ErrMethodNotFound, target, method.Name)
	}
	return reflect2.Call(fn, args)
}
