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

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Method describes one joinpoint: a method declared by an interface or by a
// concrete type's method set.
// Method 描述一个连接点：接口或具体类型方法集中声明的方法。
type Method struct {
	// Name is the method name.
	Name string
	// Type is the method signature without receiver.
	Type reflect.Type
	// DeclaringType is the interface or concrete type that declares the method.
	DeclaringType reflect.Type
}

// NewMethod builds a Method from a reflect.Method. For methods obtained from a
// concrete type, the receiver is dropped from the signature.
func NewMethod(m reflect.Method, declaring reflect.Type) *Method {
	t := m.Type
	if declaring != nil && declaring.Kind() != reflect.Interface && t.NumIn() > 0 {
		in := make([]reflect.Type, 0, t.NumIn()-1)
		for i := 1; i < t.NumIn(); i++ {
			in = append(in, t.In(i))
		}
		out := make([]reflect.Type, 0, t.NumOut())
		for i := 0; i < t.NumOut(); i++ {
			out = append(out, t.Out(i))
		}
		t = reflect.FuncOf(in, out, t.IsVariadic())
	}
	return &Method{Name: m.Name, Type: t, DeclaringType: declaring}
}

// MethodsOf returns the exported methods of t in declaration (sorted) order.
func MethodsOf(t reflect.Type) []*Method {
	if t == nil {
		return nil
	}
	methods := make([]*Method, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.PkgPath != "" {
			continue
		}
		methods = append(methods, NewMethod(m, t))
	}
	return methods
}

// MethodByName looks a method up on t.
func MethodByName(t reflect.Type, name string) (*Method, bool) {
	if t == nil {
		return nil, false
	}
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, false
	}
	return NewMethod(m, t), true
}

// NumIn returns the number of declared parameters.
func (m *Method) NumIn() int {
	return m.Type.NumIn()
}

// AcceptsContext reports whether the first parameter is a context.Context.
func (m *Method) AcceptsContext() bool {
	return m.Type.NumIn() > 0 && m.Type.In(0) == contextType
}

// ReturnsError reports whether the last result is an error.
func (m *Method) ReturnsError() bool {
	n := m.Type.NumOut()
	return n > 0 && m.Type.Out(n-1) == errorType
}

// ValueResults returns the non-error result types.
func (m *Method) ValueResults() []reflect.Type {
	n := m.Type.NumOut()
	if m.ReturnsError() {
		n--
	}
	out := make([]reflect.Type, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.Type.Out(i))
	}
	return out
}

// ResultType returns the static result type when the method has exactly one
// non-error result, nil otherwise.
func (m *Method) ResultType() reflect.Type {
	results := m.ValueResults()
	if len(results) != 1 {
		return nil
	}
	return results[0]
}

// IsVoid reports whether the method has no non-error results.
func (m *Method) IsVoid() bool {
	return len(m.ValueResults()) == 0
}

// SameSignature reports whether two methods share name and signature,
// regardless of declaring type.
func (m *Method) SameSignature(other *Method) bool {
	if other == nil {
		return false
	}
	return m.Name == other.Name && m.Type == other.Type
}

// Key identifies a method for caching purposes.
func (m *Method) Key() MethodKey {
	return MethodKey{DeclaringType: m.DeclaringType, Name: m.Name}
}

func (m *Method) String() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.String() + "." + m.Name
}

// MethodKey is a comparable method identity.
type MethodKey struct {
	DeclaringType reflect.Type
	Name          string
}

// IsAnyType reports whether t is the empty interface.
func IsAnyType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// IsNilable reports whether values of t can hold nil.
func IsNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// ContextType is the reflect type of context.Context.
func ContextType() reflect.Type {
	return contextType
}

// ErrorType is the reflect type of error.
func ErrorType() reflect.Type {
	return errorType
}
