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

// Package advisor provides the Advisor implementations binding advice to
// pointcuts, and introductions.
//
// Package advisor 提供把增强绑定到切入点的 Advisor 实现，以及引入(Introduction)。
package advisor

import (
	"fmt"
	"sort"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/pointcut"
)

var (
	_ types.PointcutAdvisor = (*DefaultPointcutAdvisor)(nil)
	_ types.Ordered         = (*DefaultPointcutAdvisor)(nil)
)

// DefaultPointcutAdvisor binds an advice to a pointcut. A nil pointcut matches
// every method.
// DefaultPointcutAdvisor 把增强绑定到切入点，切入点为空时匹配所有方法
type DefaultPointcutAdvisor struct {
	advice   types.Advice
	pointcut types.Pointcut
	order    *int
}

// New creates an advisor applying advice wherever pc matches.
func New(pc types.Pointcut, advice types.Advice) *DefaultPointcutAdvisor {
	if pc == nil {
		pc = pointcut.Always
	}
	return &DefaultPointcutAdvisor{advice: advice, pointcut: pc}
}

// Always creates an advisor applying advice to every method.
func Always(advice types.Advice) *DefaultPointcutAdvisor {
	return New(pointcut.Always, advice)
}

// ForNames creates an advisor applying advice to methods whose names match the glob patterns.
func ForNames(advice types.Advice, patterns ...string) (*DefaultPointcutAdvisor, error) {
	pc, err := pointcut.NameMatch(patterns...)
	if err != nil {
		return nil, err
	}
	return New(pc, advice), nil
}

// ForExpression creates an advisor applying advice where the pointcut expression matches.
func ForExpression(advice types.Advice, expression string) (*DefaultPointcutAdvisor, error) {
	pc, err := pointcut.NewExpression(expression)
	if err != nil {
		return nil, err
	}
	return New(pc, advice), nil
}

// WithOrder sets an explicit order, overriding the order declared by the advice.
func (a *DefaultPointcutAdvisor) WithOrder(order int) *DefaultPointcutAdvisor {
	a.order = &order
	return a
}

func (a *DefaultPointcutAdvisor) Advice() types.Advice {
	return a.advice
}

func (a *DefaultPointcutAdvisor) Pointcut() types.Pointcut {
	return a.pointcut
}

func (a *DefaultPointcutAdvisor) IsPerInstance() bool {
	return false
}

// Order returns the explicit order, else the advice's order, else LowestPrecedence.
func (a *DefaultPointcutAdvisor) Order() int {
	if a.order != nil {
		return *a.order
	}
	return types.OrderOf(a.advice)
}

func (a *DefaultPointcutAdvisor) String() string {
	return fmt.Sprintf("DefaultPointcutAdvisor: pointcut [%v]; advice [%T]", a.pointcut, a.advice)
}

// Sort sorts advisors by their declared order. The sort is stable so advisors
// with equal order keep their relative position.
// Sort 按照 Order 排序，值越小越靠前，相同值保持原有顺序
func Sort(advisors []types.Advisor) {
	sort.SliceStable(advisors, func(i, j int) bool {
		return types.OrderOf(advisors[i]) < types.OrderOf(advisors[j])
	})
}

// SortObjects sorts arbitrary objects by their declared order, stably.
func SortObjects(objects []any) {
	sort.SliceStable(objects, func(i, j int) bool {
		return types.OrderOf(objects[i]) < types.OrderOf(objects[j])
	})
}
