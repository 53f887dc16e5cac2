/*
 * Copyright 2023 The RuleGo Authors.
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

package types

import (
	"context"
	"math"
)

// The interfaces below provide the AOP (Aspect Oriented Programming) model: what behavior (Advice)
// runs on which joinpoints (Pointcut), bound together by an Advisor.
//
//   - It allows adding extra behavior to method calls without modifying the target object.
//   - It allows separating common behaviors (logging, security, transactions, degradation, retry) from business logic.
//
// 以下接口提供 AOP(面向切面编程，Aspect Oriented Programming)模型：增强(Advice)在哪些连接点(Pointcut)执行，由 Advisor 绑定。
//
//   - 它允许在不修改目标对象的情况下，对方法调用添加额外的行为。
//   - 它允许把一些公共的行为（例如：日志、安全、事务、降级、重试）从业务逻辑中分离出来。

// AdviceKind is the closed set of advice variants.
// AdviceKind 增强类型，是一个封闭的集合
type AdviceKind int

const (
	// AdviceAround wraps the joinpoint and decides whether to proceed.
	AdviceAround AdviceKind = iota
	// AdviceBefore runs before the joinpoint.
	AdviceBefore
	// AdviceAfter runs after the joinpoint on every exit path.
	AdviceAfter
	// AdviceAfterReturning runs after the joinpoint returned without error.
	AdviceAfterReturning
	// AdviceAfterThrowing runs after the joinpoint returned an error.
	AdviceAfterThrowing
	// AdviceIntroduction adds an interface implementation to the proxy.
	AdviceIntroduction
)

var adviceKindNames = [...]string{"Around", "Before", "After", "AfterReturning", "AfterThrowing", "Introduction"}

func (k AdviceKind) String() string {
	if k < 0 || int(k) >= len(adviceKindNames) {
		return "Unknown"
	}
	return adviceKindNames[k]
}

// ParseAdviceKind parses the name of an advice kind, case-sensitively.
func ParseAdviceKind(name string) (AdviceKind, bool) {
	for i, n := range adviceKindNames {
		if n == name {
			return AdviceKind(i), true
		}
	}
	return 0, false
}

// Ordered is implemented by advisors, advice and aspects that declare a precedence.
// Order returns the execution order, the smaller the value, the higher the priority.
// Ordered 声明执行顺序，值越小，优先级越高
type Ordered interface {
	Order() int
}

const (
	// HighestPrecedence is the smallest order value.
	HighestPrecedence = math.MinInt32
	// LowestPrecedence is the order used when none is declared.
	LowestPrecedence = math.MaxInt32
)

// OrderOf returns the declared order of v or LowestPrecedence.
func OrderOf(v any) int {
	if o, ok := v.(Ordered); ok {
		return o.Order()
	}
	return LowestPrecedence
}

// Advice is the base interface for advice. Every advice belongs to exactly one AdviceKind.
// Advice 增强点接口的基类
type Advice interface {
	Kind() AdviceKind
}

// Interceptor is the uniform executable form all advice is adapted into.
// Invoke may call inv.Proceed() any number of times, short-circuit by returning
// without proceeding, or return an error.
// Interceptor 所有增强统一转换成的可执行形式
type Interceptor interface {
	Advice
	Invoke(inv MethodInvocation) (any, error)
}

// InterceptorFunc adapts a function to an around Interceptor.
type InterceptorFunc func(inv MethodInvocation) (any, error)

func (f InterceptorFunc) Kind() AdviceKind {
	return AdviceAround
}

func (f InterceptorFunc) Invoke(inv MethodInvocation) (any, error) {
	return f(inv)
}

// MethodBeforeAdvice runs before the joinpoint. Returning an error aborts the call
// with that error.
// MethodBeforeAdvice 方法执行之前的增强点
type MethodBeforeAdvice interface {
	Advice
	Before(ctx context.Context, method *Method, args []any, target any) error
}

// AfterAdvice runs after the joinpoint on every exit path, including errors and panics.
// AfterAdvice 方法执行之后的增强点，无论成功或者失败都会执行
type AfterAdvice interface {
	Advice
	After(ctx context.Context, method *Method, args []any, target any)
}

// AfterReturningAdvice runs after the joinpoint returned without error. It cannot
// change the result but may fail the call by returning an error.
// AfterReturningAdvice 方法成功返回之后的增强点
type AfterReturningAdvice interface {
	Advice
	AfterReturning(ctx context.Context, result any, method *Method, args []any, target any) error
}

// ThrowsAdvice runs when the joinpoint returned an error. Returning nil keeps the
// original error, returning an error replaces it.
// ThrowsAdvice 方法返回错误之后的增强点
type ThrowsAdvice interface {
	Advice
	AfterThrowing(ctx context.Context, err error, method *Method, args []any, target any) error
}

// IntroductionInterceptor is an interceptor that implements additional interfaces
// on behalf of the proxy.
type IntroductionInterceptor interface {
	Interceptor
	ImplementsInterface(iface any) bool
}

// MethodInvocation is the per-call invocation context passed to interceptors.
// MethodInvocation 方法调用上下文，每次调用创建
type MethodInvocation interface {
	// Context returns the call context. When the proxy exposes itself, the
	// context carries the current proxy.
	Context() context.Context
	// Method returns the joinpoint being invoked.
	Method() *Method
	// Arguments returns the live argument slice. Interceptors may modify it in place.
	Arguments() []any
	// This returns the proxy.
	This() any
	// Target returns the target object, may be nil when no target exists.
	Target() any
	// Proceed invokes the next chain entry, or the target when the chain is exhausted.
	// Proceed 执行下一个拦截器，如果拦截器已经执行完成，则执行目标方法
	Proceed() (any, error)
}

// ProxyMethodInvocation extends MethodInvocation with operations available to
// interceptors running inside a proxy.
type ProxyMethodInvocation interface {
	MethodInvocation
	// Proxy returns the proxy the call went through.
	Proxy() any
	// SetArguments replaces the arguments used by subsequent Proceed calls.
	SetArguments(args []any)
	// SetContext replaces the call context. When the method accepts a context as
	// first parameter, the argument is replaced too.
	SetContext(ctx context.Context)
	// Attribute returns a user attribute bound to this invocation.
	Attribute(key string) (any, bool)
	// SetAttribute binds a user attribute to this invocation.
	SetAttribute(key string, value any)
}
