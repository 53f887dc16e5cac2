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

import "reflect"

// ClassFilter restricts a pointcut or introduction to a set of target classes.
// ClassFilter 用于判断目标类型是否匹配
type ClassFilter interface {
	Matches(class reflect.Type) bool
}

// MethodMatcher is the method part of a pointcut.
//
// A static matcher (IsRuntime false) is evaluated once per (method, class) and the
// result is cached in the interceptor chain. A runtime matcher is evaluated again
// with the actual arguments on every call, after the static check passed.
// MethodMatcher 用于判断方法是否匹配，IsRuntime 为 true 时每次调用都会根据实际参数再次判断
type MethodMatcher interface {
	Matches(method *Method, class reflect.Type) bool
	IsRuntime() bool
	MatchesArgs(method *Method, class reflect.Type, args []any) bool
}

// IntroductionAwareMethodMatcher is a MethodMatcher that takes introductions into
// account when matching.
type IntroductionAwareMethodMatcher interface {
	MethodMatcher
	MatchesIntroductions(method *Method, class reflect.Type, hasIntroductions bool) bool
}

// Pointcut is a predicate over (class, method).
// PointCut 声明一个切入点，用于判断是否需要执行增强点
type Pointcut interface {
	ClassFilter() ClassFilter
	MethodMatcher() MethodMatcher
}
