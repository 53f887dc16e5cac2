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

// Package pointcut provides ClassFilter, MethodMatcher and Pointcut implementations.
//
// Package pointcut 提供类过滤器、方法匹配器和切入点的实现。
//
// Available pointcuts:
//
//   - Always: matches every method of every class
//   - NameMatch: matches method names against glob patterns
//   - Expression: execution(...)/within(...) expressions combined with &&, || and !
//   - ExprMatcher: runtime matcher evaluating an expr-lang condition against the actual arguments
//   - ScriptMatcher: runtime matcher calling a JavaScript function
//   - Composable: union and intersection of pointcuts
package pointcut

import (
	"reflect"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rulego/aop/api/types"
)

var (
	_ types.ClassFilter   = (*TypeFilter)(nil)
	_ types.ClassFilter   = (*GlobClassFilter)(nil)
	_ types.MethodMatcher = (*NameMatcher)(nil)
)

type trueClassFilter struct{}

func (trueClassFilter) Matches(reflect.Type) bool { return true }

func (trueClassFilter) String() string { return "ClassFilter.TRUE" }

// TrueClassFilter matches every class.
var TrueClassFilter types.ClassFilter = trueClassFilter{}

type trueMethodMatcher struct{}

func (trueMethodMatcher) Matches(*types.Method, reflect.Type) bool { return true }

func (trueMethodMatcher) IsRuntime() bool { return false }

func (trueMethodMatcher) MatchesArgs(*types.Method, reflect.Type, []any) bool { return true }

func (trueMethodMatcher) String() string { return "MethodMatcher.TRUE" }

// TrueMethodMatcher matches every method statically.
var TrueMethodMatcher types.MethodMatcher = trueMethodMatcher{}

// ClassFilterFunc adapts a function to a ClassFilter.
type ClassFilterFunc func(class reflect.Type) bool

func (f ClassFilterFunc) Matches(class reflect.Type) bool {
	return f(class)
}

// TypeFilter matches classes assignable to Type. When Type is an interface, the
// class must implement it.
type TypeFilter struct {
	Type reflect.Type
}

// ForType returns a ClassFilter matching classes assignable to t.
func ForType(t reflect.Type) *TypeFilter {
	return &TypeFilter{Type: t}
}

func (f *TypeFilter) Matches(class reflect.Type) bool {
	if class == nil || f.Type == nil {
		return false
	}
	if class == f.Type || class.AssignableTo(f.Type) {
		return true
	}
	if class.Kind() != reflect.Ptr && f.Type.Kind() == reflect.Interface {
		return reflect.PtrTo(class).Implements(f.Type)
	}
	return false
}

// GlobClassFilter matches the class name (pointer marker stripped) against a glob pattern,
// e.g. "*.OrderService" or "billing.*".
type GlobClassFilter struct {
	Pattern string
	g       glob.Glob
}

// NewGlobClassFilter compiles pattern into a GlobClassFilter.
func NewGlobClassFilter(pattern string) (*GlobClassFilter, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &GlobClassFilter{Pattern: pattern, g: g}, nil
}

func (f *GlobClassFilter) Matches(class reflect.Type) bool {
	if class == nil {
		return false
	}
	return f.g.Match(ClassName(class))
}

// ClassName returns the type name used by patterns: the reflect string without
// the leading pointer marker.
func ClassName(class reflect.Type) string {
	return strings.TrimPrefix(class.String(), "*")
}

// UnionClassFilter matches when any filter matches.
func UnionClassFilter(filters ...types.ClassFilter) types.ClassFilter {
	return ClassFilterFunc(func(class reflect.Type) bool {
		for _, f := range filters {
			if f.Matches(class) {
				return true
			}
		}
		return false
	})
}

// IntersectionClassFilter matches when all filters match.
func IntersectionClassFilter(filters ...types.ClassFilter) types.ClassFilter {
	return ClassFilterFunc(func(class reflect.Type) bool {
		for _, f := range filters {
			if !f.Matches(class) {
				return false
			}
		}
		return true
	})
}

// MethodMatcherFunc adapts a function to a static MethodMatcher.
type MethodMatcherFunc func(method *types.Method, class reflect.Type) bool

func (f MethodMatcherFunc) Matches(method *types.Method, class reflect.Type) bool {
	return f(method, class)
}

func (f MethodMatcherFunc) IsRuntime() bool {
	return false
}

// MatchesArgs is never called on a static matcher.
func (f MethodMatcherFunc) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	return f(method, class)
}

// NameMatcher matches method names against glob patterns such as "Get*" or "*Order".
type NameMatcher struct {
	Patterns []string
	globs    []glob.Glob
}

// NewNameMatcher compiles the given patterns.
func NewNameMatcher(patterns ...string) (*NameMatcher, error) {
	m := &NameMatcher{Patterns: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func (m *NameMatcher) Matches(method *types.Method, class reflect.Type) bool {
	for _, g := range m.globs {
		if g.Match(method.Name) {
			return true
		}
	}
	return false
}

func (m *NameMatcher) IsRuntime() bool {
	return false
}

func (m *NameMatcher) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	return m.Matches(method, class)
}

func (m *NameMatcher) String() string {
	return "NameMatcher" + "[" + strings.Join(m.Patterns, ",") + "]"
}
