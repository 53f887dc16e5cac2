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

// Package aspect turns aspect types into ordered advisors.
//
// An aspect type declares which of its methods are advice through
// Declaration.AdviceBindings, mapping a method name to "@Kind(pointcut)":
//
//	type Audit struct{}
//
//	func (a *Audit) AdviceBindings() map[string]string {
//		return map[string]string{
//			"logCall": "@Before(execution(* Greet(..)))",
//			"timed":   "@Around(within(*Service))",
//		}
//	}
//
//	func (a *Audit) LogCall(jp aspect.JoinPoint) error { ... }
//	func (a *Audit) Timed(pjp aspect.ProceedingJoinPoint) (any, error) { ... }
//
// Package aspect 把切面类型转换成有序的 Advisor 列表
package aspect

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/rulego/aop/api/types"
	reflect2 "github.com/rulego/aop/utils/reflect"
)

// Declaration is implemented by aspect types. Keys are method names, matched
// case-insensitively; values have the form "@Kind(pointcut expression)" where
// Kind is Around, Before, After, AfterReturning or AfterThrowing.
type Declaration interface {
	AdviceBindings() map[string]string
}

// JoinPoint is the view of the intercepted call given to advice methods.
type JoinPoint interface {
	Context() context.Context
	Method() *types.Method
	Args() []any
	// This returns the proxy.
	This() any
	Target() any
}

// ProceedingJoinPoint is given to around advice.
type ProceedingJoinPoint interface {
	JoinPoint
	Proceed() (any, error)
	// ProceedWith proceeds with replaced arguments.
	ProceedWith(args []any) (any, error)
}

var (
	declarationType = reflect.TypeOf((*Declaration)(nil)).Elem()
	joinPointType   = reflect.TypeOf((*JoinPoint)(nil)).Elem()
	proceedingType  = reflect.TypeOf((*ProceedingJoinPoint)(nil)).Elem()
)

// IsAspect reports whether class declares advice bindings.
func IsAspect(class reflect.Type) bool {
	if class == nil || class.Kind() == reflect.Interface {
		return false
	}
	return class.Implements(declarationType) || reflect.PtrTo(reflect2.Indirect(class)).Implements(declarationType)
}

// InstanceFactory provides the aspect instance advice methods are called on.
// InstanceFactory 切面实例工厂
type InstanceFactory interface {
	// AspectType returns the aspect class without instantiating it.
	AspectType() reflect.Type
	AspectInstance() (any, error)
	// Order returns the precedence of all advisors of the aspect.
	Order() int
	IsLazy() bool
	// IsInstantiated reports whether AspectInstance already produced the instance.
	IsInstantiated() bool
}

// SingletonInstanceFactory wraps an existing aspect instance.
type SingletonInstanceFactory struct {
	instance any
	order    int
}

// NewSingletonInstanceFactory wraps instance. The order is taken from
// types.Ordered, LowestPrecedence when not declared.
func NewSingletonInstanceFactory(instance any) *SingletonInstanceFactory {
	return &SingletonInstanceFactory{instance: instance, order: types.OrderOf(instance)}
}

func (f *SingletonInstanceFactory) AspectType() reflect.Type {
	return reflect.TypeOf(f.instance)
}

func (f *SingletonInstanceFactory) AspectInstance() (any, error) {
	return f.instance, nil
}

func (f *SingletonInstanceFactory) Order() int {
	return f.order
}

func (f *SingletonInstanceFactory) IsLazy() bool {
	return false
}

func (f *SingletonInstanceFactory) IsInstantiated() bool {
	return true
}

func (f *SingletonInstanceFactory) String() string {
	return fmt.Sprintf("SingletonInstanceFactory[%T]", f.instance)
}

// LazyInstanceFactory creates the aspect instance on first use.
// LazyInstanceFactory 延迟创建切面实例
type LazyInstanceFactory struct {
	class   reflect.Type
	newFunc func() (any, error)
	order   int

	mu       sync.Mutex
	instance any
}

// NewLazyInstanceFactory creates a factory for class instantiated by newFunc.
// The order is read from a zero instance of class.
func NewLazyInstanceFactory(class reflect.Type, newFunc func() (any, error)) (*LazyInstanceFactory, error) {
	if class == nil || newFunc == nil {
		return nil, types.ConfigurationErrorf("lazy aspect requires a class and a constructor")
	}
	return &LazyInstanceFactory{class: class, newFunc: newFunc, order: orderOfClass(class)}, nil
}

func (f *LazyInstanceFactory) AspectType() reflect.Type {
	return f.class
}

func (f *LazyInstanceFactory) AspectInstance() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.instance != nil {
		return f.instance, nil
	}
	instance, err := f.newFunc()
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, types.ConfigurationErrorf("constructor of aspect %v returned nil", f.class)
	}
	f.instance = instance
	return instance, nil
}

func (f *LazyInstanceFactory) Order() int {
	return f.order
}

func (f *LazyInstanceFactory) IsLazy() bool {
	return true
}

func (f *LazyInstanceFactory) IsInstantiated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instance != nil
}

func (f *LazyInstanceFactory) String() string {
	return fmt.Sprintf("LazyInstanceFactory[%v]", f.class)
}

// zeroOf returns a zero pointer-to-struct instance of class, or nil.
func zeroOf(class reflect.Type) any {
	base := reflect2.Indirect(class)
	if base.Kind() != reflect.Struct {
		if class.Kind() == reflect.Interface {
			return nil
		}
		return reflect.Zero(class).Interface()
	}
	return reflect.New(base).Interface()
}

func orderOfClass(class reflect.Type) int {
	if v := zeroOf(class); v != nil {
		return types.OrderOf(v)
	}
	return types.LowestPrecedence
}

type joinPoint struct {
	inv types.MethodInvocation
}

func (j *joinPoint) Context() context.Context {
	return j.inv.Context()
}

func (j *joinPoint) Method() *types.Method {
	return j.inv.Method()
}

func (j *joinPoint) Args() []any {
	return j.inv.Arguments()
}

func (j *joinPoint) This() any {
	return j.inv.This()
}

func (j *joinPoint) Target() any {
	return j.inv.Target()
}

func (j *joinPoint) Proceed() (any, error) {
	return j.inv.Proceed()
}

func (j *joinPoint) ProceedWith(args []any) (any, error) {
	pmi, ok := j.inv.(types.ProxyMethodInvocation)
	if !ok {
		return nil, fmt.Errorf("cannot replace arguments of %s: not a proxy invocation", j.inv.Method())
	}
	pmi.SetArguments(args)
	return pmi.Proceed()
}

func (j *joinPoint) String() string {
	return "execution(" + j.inv.Method().String() + ")"
}
