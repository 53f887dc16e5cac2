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
	"sort"
	"strings"

	"github.com/rulego/aop/advisor"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/pointcut"
	reflect2 "github.com/rulego/aop/utils/reflect"
)

var (
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
	errorType = types.ErrorType()
)

// Binding is one parsed advice binding of an aspect.
type Binding struct {
	// Key is the binding key as declared.
	Key string
	// MethodName is the exported method the key resolved to.
	MethodName string
	Kind       types.AdviceKind
	// Expression is the pointcut expression source.
	Expression string
}

// Reflector builds advisors from aspect types.
// Reflector 把切面类型的增强声明解析成 Advisor
type Reflector struct {
	config types.Config
}

// NewReflector creates a reflector.
func NewReflector(opts ...types.Option) *Reflector {
	return &Reflector{config: types.NewConfig(opts...)}
}

// Bindings parses and validates the advice bindings of class, sorted by
// kind precedence (Around, Before, After, AfterReturning, AfterThrowing)
// and then by method name.
func (r *Reflector) Bindings(class reflect.Type) ([]Binding, error) {
	if !IsAspect(class) {
		return nil, types.ConfigurationErrorf("%v is not an aspect: it does not implement aspect.Declaration", class)
	}
	methodSet := class
	if class.Kind() != reflect.Ptr {
		methodSet = reflect.PtrTo(class)
	}
	decl, ok := reflect.New(reflect2.Indirect(class)).Interface().(Declaration)
	if !ok {
		return nil, types.ConfigurationErrorf("%v is not an aspect", class)
	}
	var bindings []Binding
	for key, value := range decl.AdviceBindings() {
		kind, expression, err := parseBinding(value)
		if err != nil {
			return nil, fmt.Errorf("%w: aspect %v key %q", err, class, key)
		}
		m, err := resolveMethod(methodSet, key)
		if err != nil {
			return nil, err
		}
		if err := validateSignature(kind, m); err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{Key: key, MethodName: m.Name, Kind: kind, Expression: expression})
	}
	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Kind != bindings[j].Kind {
			return bindings[i].Kind < bindings[j].Kind
		}
		return bindings[i].MethodName < bindings[j].MethodName
	})
	return bindings, nil
}

// Advisors returns the advisors of the aspect provided by factory, all with
// the aspect order. A lazy aspect with at least one advisor gets a synthetic
// advisor at position zero instantiating the aspect on first call.
// IsInstantiationAdvisor identifies it.
func (r *Reflector) Advisors(factory InstanceFactory) ([]types.Advisor, error) {
	class := factory.AspectType()
	bindings, err := r.Bindings(class)
	if err != nil {
		return nil, err
	}
	order := factory.Order()
	advisors := make([]types.Advisor, 0, len(bindings)+1)
	pointcuts := make([]types.Pointcut, 0, len(bindings))
	for i, b := range bindings {
		expr, err := pointcut.NewExpression(b.Expression)
		if err != nil {
			return nil, fmt.Errorf("aspect %v method %s: %w", class, b.MethodName, err)
		}
		advice := &Advice{
			kind:             b.Kind,
			methodName:       b.MethodName,
			factory:          factory,
			declarationOrder: i,
		}
		advisors = append(advisors, advisor.New(expr, advice).WithOrder(order))
		pointcuts = append(pointcuts, expr)
	}
	if factory.IsLazy() && len(advisors) > 0 {
		// applies wherever one of the aspect's advisors applies
		synthetic := advisor.New(pointcut.Union(pointcuts...), &instantiationInterceptor{factory: factory}).WithOrder(order)
		advisors = append([]types.Advisor{synthetic}, advisors...)
	}
	r.config.Logger.Printf("aspect %v: %d advisors", class, len(advisors))
	return advisors, nil
}

// parseBinding parses "@Kind(expression)".
func parseBinding(value string) (types.AdviceKind, string, error) {
	value = strings.TrimSpace(value)
	open := strings.IndexByte(value, '(')
	if !strings.HasPrefix(value, "@") || open < 0 || !strings.HasSuffix(value, ")") {
		return 0, "", fmt.Errorf("%w: binding %q must have the form @Kind(expression)", types.ErrConfiguration, value)
	}
	name := strings.TrimSpace(value[1:open])
	kind, ok := types.ParseAdviceKind(name)
	if !ok || kind == types.AdviceIntroduction {
		return 0, "", fmt.Errorf("%w: unsupported advice kind %q", types.ErrConfiguration, name)
	}
	return kind, strings.TrimSpace(value[open+1 : len(value)-1]), nil
}

// resolveMethod finds the single exported method whose name equals key, ignoring case.
func resolveMethod(methodSet reflect.Type, key string) (reflect.Method, error) {
	var (
		found reflect.Method
		count int
	)
	for i := 0; i < methodSet.NumMethod(); i++ {
		m := methodSet.Method(i)
		if m.PkgPath == "" && strings.EqualFold(m.Name, key) {
			found = m
			count++
		}
	}
	switch count {
	case 0:
		return found, types.ConfigurationErrorf("aspect %v has no method for advice key %q", methodSet, key)
	case 1:
		return found, nil
	default:
		return found, fmt.Errorf("%w: advice key %q matches %d methods of %v", types.ErrAmbiguousMapping, key, count, methodSet)
	}
}

// validateSignature checks the method type, receiver included, against kind.
func validateSignature(kind types.AdviceKind, m reflect.Method) error {
	t := m.Type
	var in, out []reflect.Type
	switch kind {
	case types.AdviceAround:
		in, out = []reflect.Type{proceedingType}, []reflect.Type{anyType, errorType}
	case types.AdviceBefore:
		in, out = []reflect.Type{joinPointType}, []reflect.Type{errorType}
	case types.AdviceAfter:
		in = []reflect.Type{joinPointType}
	case types.AdviceAfterReturning:
		in, out = []reflect.Type{joinPointType, anyType}, []reflect.Type{errorType}
	case types.AdviceAfterThrowing:
		in, out = []reflect.Type{joinPointType, errorType}, []reflect.Type{errorType}
	}
	valid := t.NumIn() == len(in)+1 && t.NumOut() == len(out) && !t.IsVariadic()
	for i := 0; valid && i < len(in); i++ {
		valid = t.In(i+1) == in[i]
	}
	for i := 0; valid && i < len(out); i++ {
		valid = t.Out(i) == out[i]
	}
	if !valid {
		return types.ConfigurationErrorf("%s advice method %s has signature %v, want func%s", kind, m.Name, t, signature(in, out))
	}
	return nil
}

func signature(in, out []reflect.Type) string {
	names := func(ts []reflect.Type) string {
		s := make([]string, len(ts))
		for i, t := range ts {
			s[i] = t.String()
		}
		return strings.Join(s, ", ")
	}
	switch len(out) {
	case 0:
		return "(" + names(in) + ")"
	case 1:
		return "(" + names(in) + ") " + names(out)
	default:
		return "(" + names(in) + ") (" + names(out) + ")"
	}
}
