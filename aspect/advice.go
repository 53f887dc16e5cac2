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

package aspect

import (
	"fmt"
	"reflect"

	"github.com/rulego/aop/api/types"
)

var _ types.Interceptor = (*Advice)(nil)

// Advice calls one advice method of an aspect instance.
type Advice struct {
	kind             types.AdviceKind
	methodName       string
	factory          InstanceFactory
	declarationOrder int
}

func (a *Advice) Kind() types.AdviceKind {
	return a.kind
}

// MethodName returns the advice method name.
func (a *Advice) MethodName() string {
	return a.methodName
}

// DeclarationOrder returns the position of the advice within its aspect.
func (a *Advice) DeclarationOrder() int {
	return a.declarationOrder
}

// Factory returns the aspect instance factory.
func (a *Advice) Factory() InstanceFactory {
	return a.factory
}

func (a *Advice) Invoke(inv types.MethodInvocation) (any, error) {
	jp := &joinPoint{inv: inv}
	switch a.kind {
	case types.AdviceAround:
		out, err := a.call(jp)
		if err != nil {
			return nil, err
		}
		return resultOf(out[0]), errorOf(out[1])
	case types.AdviceBefore:
		out, err := a.call(jp)
		if err != nil {
			return nil, err
		}
		if e := errorOf(out[0]); e != nil {
			return nil, e
		}
		return inv.Proceed()
	case types.AdviceAfter:
		defer func() {
			_, _ = a.call(jp)
		}()
		return inv.Proceed()
	case types.AdviceAfterReturning:
		result, err := inv.Proceed()
		if err != nil {
			return result, err
		}
		out, callErr := a.call(jp, resultValue(result))
		if callErr != nil {
			return nil, callErr
		}
		if e := errorOf(out[0]); e != nil {
			return nil, e
		}
		return result, nil
	case types.AdviceAfterThrowing:
		result, err := inv.Proceed()
		if err == nil {
			return result, nil
		}
		out, callErr := a.call(jp, reflect.ValueOf(&err).Elem())
		if callErr != nil {
			return result, callErr
		}
		if replaced := errorOf(out[0]); replaced != nil {
			return result, replaced
		}
		return result, err
	}
	return nil, types.UnknownAdviceTypeError(a)
}

func (a *Advice) call(jp *joinPoint, extra ...reflect.Value) ([]reflect.Value, error) {
	instance, err := a.factory.AspectInstance()
	if err != nil {
		return nil, err
	}
	fn := reflect.ValueOf(instance).MethodByName(a.methodName)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: aspect %T has no method %s", types.ErrMethodNotFound, instance, a.methodName)
	}
	return fn.Call(append([]reflect.Value{reflect.ValueOf(jp)}, extra...)), nil
}

func (a *Advice) String() string {
	return fmt.Sprintf("%s advice %v.%s", a.kind, a.factory.AspectType(), a.methodName)
}

func resultValue(result any) reflect.Value {
	if result == nil {
		return reflect.Zero(anyType)
	}
	return reflect.ValueOf(&result).Elem()
}

func resultOf(v reflect.Value) any {
	if !v.IsValid() || (v.Kind() == reflect.Interface && v.IsNil()) {
		return nil
	}
	return v.Interface()
}

func errorOf(v reflect.Value) error {
	if !v.IsValid() || v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// IsInstantiationAdvisor reports whether a is the synthetic advisor of a lazy aspect.
func IsInstantiationAdvisor(a types.Advisor) bool {
	_, ok := a.Advice().(*instantiationInterceptor)
	return ok
}

// instantiationInterceptor creates a lazy aspect before its first advice runs.
type instantiationInterceptor struct {
	factory InstanceFactory
}

func (i *instantiationInterceptor) Kind() types.AdviceKind {
	return types.AdviceBefore
}

func (i *instantiationInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	if !i.factory.IsInstantiated() {
		if _, err := i.factory.AspectInstance(); err != nil {
			return nil, err
		}
	}
	return inv.Proceed()
}

func (i *instantiationInterceptor) String() string {
	return fmt.Sprintf("instantiation of %v", i.factory.AspectType())
}
