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

package pointcut

import (
	"fmt"
	"reflect"

	"github.com/rulego/aop/api/types"
)

// simple pairs a ClassFilter with a MethodMatcher.
type simple struct {
	cf types.ClassFilter
	mm types.MethodMatcher
}

func (p *simple) ClassFilter() types.ClassFilter {
	return p.cf
}

func (p *simple) MethodMatcher() types.MethodMatcher {
	return p.mm
}

func (p *simple) String() string {
	return fmt.Sprintf("Pointcut[%v, %v]", p.cf, p.mm)
}

// New builds a Pointcut. Nil parts match everything.
func New(cf types.ClassFilter, mm types.MethodMatcher) types.Pointcut {
	if cf == nil {
		cf = TrueClassFilter
	}
	if mm == nil {
		mm = TrueMethodMatcher
	}
	return &simple{cf: cf, mm: mm}
}

// Always matches every method of every class.
var Always types.Pointcut = New(TrueClassFilter, TrueMethodMatcher)

// NameMatch returns a pointcut matching method names against glob patterns.
func NameMatch(patterns ...string) (types.Pointcut, error) {
	mm, err := NewNameMatcher(patterns...)
	if err != nil {
		return nil, err
	}
	return New(TrueClassFilter, mm), nil
}

// MustNameMatch is like NameMatch but panics on an invalid pattern.
func MustNameMatch(patterns ...string) types.Pointcut {
	pc, err := NameMatch(patterns...)
	if err != nil {
		panic(err)
	}
	return pc
}

// Union returns a pointcut matching when any of the pointcuts matches.
// The result is runtime when any member is runtime.
func Union(pcs ...types.Pointcut) types.Pointcut {
	cfs := make([]types.ClassFilter, 0, len(pcs))
	for _, pc := range pcs {
		cfs = append(cfs, pc.ClassFilter())
	}
	return New(UnionClassFilter(cfs...), &unionMatcher{pcs: pcs})
}

// Intersection returns a pointcut matching when all pointcuts match.
func Intersection(pcs ...types.Pointcut) types.Pointcut {
	cfs := make([]types.ClassFilter, 0, len(pcs))
	mms := make([]types.MethodMatcher, 0, len(pcs))
	for _, pc := range pcs {
		cfs = append(cfs, pc.ClassFilter())
		mms = append(mms, pc.MethodMatcher())
	}
	return New(IntersectionClassFilter(cfs...), &intersectionMatcher{mms: mms})
}

// unionMatcher keeps each member's class filter so that a member matching
// only other classes does not widen the union.
type unionMatcher struct {
	pcs []types.Pointcut
}

func (m *unionMatcher) Matches(method *types.Method, class reflect.Type) bool {
	for _, pc := range m.pcs {
		if (class == nil || pc.ClassFilter().Matches(class)) && pc.MethodMatcher().Matches(method, class) {
			return true
		}
	}
	return false
}

func (m *unionMatcher) IsRuntime() bool {
	for _, pc := range m.pcs {
		if pc.MethodMatcher().IsRuntime() {
			return true
		}
	}
	return false
}

func (m *unionMatcher) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	for _, pc := range m.pcs {
		mm := pc.MethodMatcher()
		if (class != nil && !pc.ClassFilter().Matches(class)) || !mm.Matches(method, class) {
			continue
		}
		if !mm.IsRuntime() || mm.MatchesArgs(method, class, args) {
			return true
		}
	}
	return false
}

type intersectionMatcher struct {
	mms []types.MethodMatcher
}

func (m *intersectionMatcher) Matches(method *types.Method, class reflect.Type) bool {
	for _, mm := range m.mms {
		if !mm.Matches(method, class) {
			return false
		}
	}
	return true
}

func (m *intersectionMatcher) IsRuntime() bool {
	for _, mm := range m.mms {
		if mm.IsRuntime() {
			return true
		}
	}
	return false
}

func (m *intersectionMatcher) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	for _, mm := range m.mms {
		if mm.IsRuntime() && !mm.MatchesArgs(method, class, args) {
			return false
		}
	}
	return true
}

// MatchesMethod applies mm to (method, class), passing hasIntroductions to
// introduction-aware matchers.
func MatchesMethod(mm types.MethodMatcher, method *types.Method, class reflect.Type, hasIntroductions bool) bool {
	if ia, ok := mm.(types.IntroductionAwareMethodMatcher); ok {
		return ia.MatchesIntroductions(method, class, hasIntroductions)
	}
	return mm.Matches(method, class)
}

// CanApply reports whether pc can apply to at least one method of class.
// CanApply 判断切入点是否可以应用到目标类型的至少一个方法上
func CanApply(pc types.Pointcut, class reflect.Type, hasIntroductions bool) bool {
	if class == nil || !pc.ClassFilter().Matches(class) {
		return false
	}
	mm := pc.MethodMatcher()
	if mm == TrueMethodMatcher {
		return true
	}
	for _, m := range types.MethodsOf(class) {
		if MatchesMethod(mm, m, class, hasIntroductions) {
			return true
		}
	}
	if class.Kind() == reflect.Struct {
		for _, m := range types.MethodsOf(reflect.PtrTo(class)) {
			if MatchesMethod(mm, m, class, hasIntroductions) {
				return true
			}
		}
	}
	return false
}

// CanApplyAdvisor reports whether advisor applies to class. Advisors that are
// neither pointcut nor introduction advisors always apply.
func CanApplyAdvisor(advisor types.Advisor, class reflect.Type, hasIntroductions bool) bool {
	switch a := advisor.(type) {
	case types.IntroductionAdvisor:
		return class != nil && a.ClassFilter().Matches(class)
	case types.PointcutAdvisor:
		return CanApply(a.Pointcut(), class, hasIntroductions)
	default:
		return true
	}
}

// EligibleAdvisors filters candidates down to those applying to class.
// Introductions are evaluated first so that pointcut matchers know whether the
// class gains introduced interfaces.
func EligibleAdvisors(candidates []types.Advisor, class reflect.Type) []types.Advisor {
	var eligible []types.Advisor
	for _, c := range candidates {
		if ia, ok := c.(types.IntroductionAdvisor); ok && CanApplyAdvisor(ia, class, false) {
			eligible = append(eligible, c)
		}
	}
	hasIntroductions := len(eligible) > 0
	for _, c := range candidates {
		if _, ok := c.(types.IntroductionAdvisor); ok {
			continue
		}
		if CanApplyAdvisor(c, class, hasIntroductions) {
			eligible = append(eligible, c)
		}
	}
	return eligible
}
