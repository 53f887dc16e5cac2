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

package types

import (
	"context"
	"reflect"
)

// Advisor holds an advice and the filter that decides where it applies.
// Advisor 持有增强以及决定其适用范围的过滤器
type Advisor interface {
	Advice() Advice
	// IsPerInstance reports whether the advice holds per-proxy state.
	IsPerInstance() bool
}

// PointcutAdvisor binds an advice to a pointcut.
type PointcutAdvisor interface {
	Advisor
	Pointcut() Pointcut
}

// IntroductionAdvisor declares interfaces introduced into proxies whose target
// class passes the ClassFilter.
type IntroductionAdvisor interface {
	Advisor
	ClassFilter() ClassFilter
	Interfaces() []reflect.Type
	// ValidateInterfaces fails when the advice cannot implement the introduced interfaces.
	ValidateInterfaces() error
}

// TargetSource produces and releases the invocation target.
// TargetSource 获取和释放调用目标
type TargetSource interface {
	// TargetClass returns the class of targets produced by this source, may be nil.
	TargetClass() reflect.Type
	// IsStatic reports whether GetTarget always returns the same instance. Non-static
	// targets are released after every call.
	IsStatic() bool
	// GetTarget returns a target instance. It may block, for example on an exhausted pool.
	GetTarget(ctx context.Context) (any, error)
	// ReleaseTarget returns a target obtained from GetTarget.
	ReleaseTarget(target any) error
}

// Equaler is implemented by values compared by value rather than identity.
type Equaler interface {
	Equal(other any) bool
}

// Hasher is implemented by values with a value-based hash.
type Hasher interface {
	HashCode() uint64
}

// InterfaceProvider is implemented by targets that declare the interfaces a proxy
// should expose when none are configured explicitly.
type InterfaceProvider interface {
	ProxiedInterfaces() []reflect.Type
}

// Final marks a target class that must not be proxied by class.
type Final interface {
	FinalClass()
}

// AopProxy is the identity marker implemented by every proxy.
type AopProxy interface {
	IsAopProxy() bool
}

// DecoratingProxy exposes the class a proxy decorates.
type DecoratingProxy interface {
	DecoratedClass() reflect.Type
}

// AopInfrastructure marks objects that belong to the AOP machinery and are never proxied.
type AopInfrastructure interface {
	IsAopInfrastructure() bool
}

// Advised is the live introspection and mutation capability offered by every
// non-opaque proxy.
// Advised 代理的运行时内省与修改能力
type Advised interface {
	ID() string
	IsFrozen() bool
	IsProxyTargetClass() bool
	IsPreFiltered() bool
	SetPreFiltered(preFiltered bool)
	IsExposeProxy() bool
	SetExposeProxy(exposeProxy bool)
	TargetClass() reflect.Type
	TargetSource() TargetSource
	SetTargetSource(ts TargetSource)
	ProxiedInterfaces() []reflect.Type
	IsInterfaceProxied(iface reflect.Type) bool
	Advisors() []Advisor
	AdvisorCount() int
	AddAdvisor(advisor Advisor) error
	AddAdvisorAt(pos int, advisor Advisor) error
	RemoveAdvisor(advisor Advisor) (bool, error)
	RemoveAdvisorAt(index int) error
	IndexOf(advisor Advisor) int
	ReplaceAdvisor(a, b Advisor) (bool, error)
	AddAdvice(advice Advice) error
	AddAdviceAt(pos int, advice Advice) error
	RemoveAdvice(advice Advice) (bool, error)
	IndexOfAdvice(advice Advice) int
	ToProxyConfigString() string
}

// ObjectResolver resolves named objects from the object-lifecycle container.
// ObjectResolver 从对象容器中按名称获取对象
type ObjectResolver interface {
	// GetObject returns the named object, creating it when it is prototype scoped.
	GetObject(name string) (any, error)
	// IsSingleton reports whether the named object is shared.
	IsSingleton(name string) bool
	// Type returns the declared type of the named object, nil if unknown.
	Type(name string) reflect.Type
	// NamesForType returns the names of objects assignable to t, in registration order.
	NamesForType(t reflect.Type) []string
}
