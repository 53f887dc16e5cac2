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
	"fmt"
	"reflect"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/pointcut"
	reflect2 "github.com/rulego/aop/utils/reflect"
)

var (
	_ types.IntroductionAdvisor     = (*DefaultIntroductionAdvisor)(nil)
	_ types.IntroductionInterceptor = (*DelegatingIntroductionInterceptor)(nil)
)

// DefaultIntroductionAdvisor introduces interfaces into proxies of classes
// passing its ClassFilter.
// DefaultIntroductionAdvisor 为目标类型引入新的接口实现
type DefaultIntroductionAdvisor struct {
	advice      types.IntroductionInterceptor
	interfaces  []reflect.Type
	classFilter types.ClassFilter
	order       int
}

// NewIntroductionAdvisor creates an introduction of ifaces implemented by
// advice. When no interface is given, every interface advice declares through
// types.InterfaceProvider is introduced. A nil advice is a configuration error.
func NewIntroductionAdvisor(advice types.IntroductionInterceptor, ifaces ...reflect.Type) (*DefaultIntroductionAdvisor, error) {
	if advice == nil {
		return nil, types.ConfigurationErrorf("introduction requires a default implementation")
	}
	if len(ifaces) == 0 {
		if p, ok := advice.(types.InterfaceProvider); ok {
			ifaces = p.ProxiedInterfaces()
		}
	}
	if len(ifaces) == 0 {
		return nil, types.ConfigurationErrorf("introduction of %T declares no interface", advice)
	}
	return &DefaultIntroductionAdvisor{
		advice:      advice,
		interfaces:  ifaces,
		classFilter: pointcut.TrueClassFilter,
		order:       types.OrderOf(advice),
	}, nil
}

// Introduce creates a DelegatingIntroductionInterceptor for delegate and an
// advisor introducing ifaces with it.
func Introduce(delegate any, ifaces ...reflect.Type) (*DefaultIntroductionAdvisor, error) {
	interceptor, err := NewDelegatingIntroductionInterceptor(delegate)
	if err != nil {
		return nil, err
	}
	a, err := NewIntroductionAdvisor(interceptor, ifaces...)
	if err != nil {
		return nil, err
	}
	return a, a.ValidateInterfaces()
}

// WithClassFilter restricts the classes the introduction applies to.
func (a *DefaultIntroductionAdvisor) WithClassFilter(cf types.ClassFilter) *DefaultIntroductionAdvisor {
	if cf != nil {
		a.classFilter = cf
	}
	return a
}

// WithOrder sets the order of the advisor.
func (a *DefaultIntroductionAdvisor) WithOrder(order int) *DefaultIntroductionAdvisor {
	a.order = order
	return a
}

func (a *DefaultIntroductionAdvisor) Advice() types.Advice {
	return a.advice
}

func (a *DefaultIntroductionAdvisor) IsPerInstance() bool {
	return true
}

func (a *DefaultIntroductionAdvisor) ClassFilter() types.ClassFilter {
	return a.classFilter
}

func (a *DefaultIntroductionAdvisor) Interfaces() []reflect.Type {
	return append([]reflect.Type(nil), a.interfaces...)
}

func (a *DefaultIntroductionAdvisor) Order() int {
	return a.order
}

// ValidateInterfaces checks that every introduced type is an interface the advice implements.
func (a *DefaultIntroductionAdvisor) ValidateInterfaces() error {
	for _, iface := range a.interfaces {
		if iface == nil || iface.Kind() != reflect.Interface {
			return types.ConfigurationErrorf("%v is not an interface and cannot be introduced", iface)
		}
		if !a.advice.ImplementsInterface(iface) {
			return types.ConfigurationErrorf("introduction advice %T does not implement %v", a.advice, iface)
		}
	}
	return nil
}

func (a *DefaultIntroductionAdvisor) String() string {
	return fmt.Sprintf("DefaultIntroductionAdvisor: interfaces %v; advice [%T]", a.interfaces, a.advice)
}

// DelegatingIntroductionInterceptor answers calls to introduced interfaces with
// a delegate object and lets every other call proceed.
// DelegatingIntroductionInterceptor 把引入接口的方法调用委托给 delegate
type DelegatingIntroductionInterceptor struct {
	delegate     any
	delegateType reflect.Type
}

// NewDelegatingIntroductionInterceptor creates the interceptor. A nil delegate
// is a configuration error.
func NewDelegatingIntroductionInterceptor(delegate any) (*DelegatingIntroductionInterceptor, error) {
	if delegate == nil {
		return nil, types.ConfigurationErrorf("introduction requires a default implementation")
	}
	return &DelegatingIntroductionInterceptor{delegate: delegate, delegateType: reflect.TypeOf(delegate)}, nil
}

func (i *DelegatingIntroductionInterceptor) Kind() types.AdviceKind {
	return types.AdviceIntroduction
}

// Delegate returns the object implementing the introduced interfaces.
func (i *DelegatingIntroductionInterceptor) Delegate() any {
	return i.delegate
}

// ImplementsInterface accepts a reflect.Type or a pointer to an interface value.
func (i *DelegatingIntroductionInterceptor) ImplementsInterface(iface any) bool {
	var t reflect.Type
	switch v := iface.(type) {
	case reflect.Type:
		t = v
	default:
		t = reflect2.Indirect(reflect.TypeOf(iface))
	}
	return t != nil && t.Kind() == reflect.Interface && i.delegateType.Implements(t)
}

// ProxiedInterfaces returns the interfaces the delegate declares, if any.
func (i *DelegatingIntroductionInterceptor) ProxiedInterfaces() []reflect.Type {
	if p, ok := i.delegate.(types.InterfaceProvider); ok {
		return p.ProxiedInterfaces()
	}
	return nil
}

func (i *DelegatingIntroductionInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	m := inv.Method()
	if m.DeclaringType == nil || !i.ImplementsInterface(m.DeclaringType) {
		return inv.Proceed()
	}
	fn := reflect.ValueOf(i.delegate).MethodByName(m.Name)
	if !fn.IsValid() {
		return inv.Proceed()
	}
	result, err := reflect2.Call(fn, inv.Arguments())
	// a delegate returning itself returns the proxy instead
	if result != nil && isSame(result, i.delegate) {
		return inv.This(), err
	}
	return result, err
}

func isSame(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Ptr || vb.Kind() != reflect.Ptr {
		return false
	}
	return va.Pointer() == vb.Pointer() && va.Type() == vb.Type()
}
