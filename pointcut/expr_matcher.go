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

//运行时匹配器示例：
//
//	m, _ := pointcut.NewExprMatcher(`method == "Greet" && args[0] == "retry"`, nil)
//	pc := pointcut.WithRuntimeCondition(pointcut.MustNameMatch("Greet"), m)
//
// 表达式可用变量：
//   - args: 实际参数列表
//   - method: 方法名
//   - class: 目标类型名称(去掉指针标识)
//   - global: 全局配置属性

import (
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/aop/api/types"
)

var _ types.MethodMatcher = (*ExprMatcher)(nil)

// ExprMatcher is a runtime MethodMatcher evaluating an expr-lang condition
// against the actual arguments. Evaluation errors count as no match.
// ExprMatcher 使用expr表达式根据实际参数判断是否匹配
type ExprMatcher struct {
	// Expr the boolean condition
	Expr    string
	program *vm.Program
	static  types.MethodMatcher
	global  map[string]interface{}
}

// NewExprMatcher compiles condition. static restricts the methods the condition
// is evaluated for, nil means every method.
func NewExprMatcher(condition string, static types.MethodMatcher, opts ...types.Option) (*ExprMatcher, error) {
	program, err := expr.Compile(condition, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, err
	}
	if static == nil {
		static = TrueMethodMatcher
	}
	config := types.NewConfig(opts...)
	return &ExprMatcher{Expr: condition, program: program, static: static, global: config.Properties}, nil
}

func (m *ExprMatcher) Matches(method *types.Method, class reflect.Type) bool {
	return m.static.Matches(method, class)
}

func (m *ExprMatcher) IsRuntime() bool {
	return true
}

func (m *ExprMatcher) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	env := map[string]interface{}{
		"args":   args,
		"method": method.Name,
		"global": m.global,
	}
	if class != nil {
		env["class"] = ClassName(class)
	}
	out, err := vm.Run(m.program, env)
	if err != nil {
		return false
	}
	result, ok := out.(bool)
	return ok && result
}

func (m *ExprMatcher) String() string {
	return "ExprMatcher[" + m.Expr + "]"
}

// WithRuntimeCondition narrows pc with a runtime matcher evaluated after the
// static match of pc succeeded.
func WithRuntimeCondition(pc types.Pointcut, condition types.MethodMatcher) types.Pointcut {
	return Intersection(pc, New(TrueClassFilter, condition))
}
