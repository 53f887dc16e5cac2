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

// Package reflect provides utility functions for reflection-based method calls.
//
// The proxy engine passes arguments and results around as `any` values; this
// package converts them to and from the reflect.Value slices used by
// reflect.Value.Call and reflect.MakeFunc.
//
// Key features:
// - AdaptArgs: converts []any into call arguments, nil becoming the zero value
// - Call: calls a function value and folds its results into (any, error)
// - ToResults: expands (any, error) back into the results of a function type
// - SetField: sets struct fields using reflection
package reflect

import (
	"errors"
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// AdaptArgs converts args into values acceptable by a function of type fnType.
// Nil becomes the zero value of the parameter type, convertible values are
// converted. For variadic functions the trailing arguments are packed unless
// the last argument already is the variadic slice; spread reports that case.
func AdaptArgs(fnType reflect.Type, args []any) (in []reflect.Value, spread bool, err error) {
	numIn := fnType.NumIn()
	if fnType.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, false, fmt.Errorf("expected at least %d arguments, got %d", numIn-1, len(args))
		}
		sliceType := fnType.In(numIn - 1)
		if len(args) == numIn && args[numIn-1] != nil && reflect.TypeOf(args[numIn-1]).AssignableTo(sliceType) {
			in, err = adapt(fnType, args, numIn)
			return in, true, err
		}
		in, err = adapt(fnType, args[:numIn-1], numIn-1)
		if err != nil {
			return nil, false, err
		}
		for i, arg := range args[numIn-1:] {
			v, err := adaptValue(sliceType.Elem(), arg)
			if err != nil {
				return nil, false, fmt.Errorf("argument %d: %w", numIn-1+i, err)
			}
			in = append(in, v)
		}
		return in, false, nil
	}
	if len(args) != numIn {
		return nil, false, fmt.Errorf("expected %d arguments, got %d", numIn, len(args))
	}
	in, err = adapt(fnType, args, numIn)
	return in, false, err
}

func adapt(fnType reflect.Type, args []any, n int) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := adaptValue(fnType.In(i), args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

func adaptValue(t reflect.Type, arg any) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

// Call invokes fn with args and folds its results: a trailing error result
// becomes the returned error, a single value result is returned as is and
// several value results are returned as []any.
func Call(fn reflect.Value, args []any) (any, error) {
	in, spread, err := AdaptArgs(fn.Type(), args)
	if err != nil {
		return nil, err
	}
	var out []reflect.Value
	if spread {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}
	return FoldResults(fn.Type(), out)
}

// FoldResults folds the results of a call to a function of type fnType.
func FoldResults(fnType reflect.Type, out []reflect.Value) (any, error) {
	var err error
	n := len(out)
	if n > 0 && fnType.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	default:
		values := make([]any, len(out))
		for i, v := range out {
			values[i] = v.Interface()
		}
		return values, err
	}
}

// ToResults expands a folded result into the results of fnType. It reports an
// error when result cannot be represented, and fails the call with errOut
// when fnType has no error result to carry it.
func ToResults(fnType reflect.Type, result any, errOut error) ([]reflect.Value, error) {
	numOut := fnType.NumOut()
	hasErr := numOut > 0 && fnType.Out(numOut-1) == errorType
	numValues := numOut
	if hasErr {
		numValues--
	}
	out := make([]reflect.Value, 0, numOut)
	switch numValues {
	case 0:
	case 1:
		v, err := resultValue(fnType.Out(0), result)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	default:
		values, ok := result.([]any)
		if result != nil && (!ok || len(values) != numValues) {
			return nil, fmt.Errorf("expected %d results, got %T", numValues, result)
		}
		for i := 0; i < numValues; i++ {
			var r any
			if values != nil {
				r = values[i]
			}
			v, err := resultValue(fnType.Out(i), r)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	if hasErr {
		if errOut == nil {
			out = append(out, reflect.Zero(errorType))
		} else {
			out = append(out, reflect.ValueOf(&errOut).Elem())
		}
	}
	return out, nil
}

func resultValue(t reflect.Type, result any) (reflect.Value, error) {
	v, err := adaptValue(t, result)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("result: %w", err)
	}
	return v, nil
}

// Zero returns the zero value of t as an interface, nil for nilable kinds.
func Zero(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// Indirect returns the struct type behind t, t itself when it is not a pointer.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// SetField sets the exported field of the struct pointed to by obj.
// SetField 通过反射设置结构体字段值
func SetField(obj any, name string, value any) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return errors.New("obj must be a pointer to struct")
	}
	field := v.Elem().FieldByName(name)
	if !field.IsValid() {
		return fmt.Errorf("no such field: %s", name)
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", name)
	}
	fv, err := adaptValue(field.Type(), value)
	if err != nil {
		return err
	}
	field.Set(fv)
	return nil
}
