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
	"reflect"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/js"
)

// ScriptFunctionName is the function a matcher script must define.
const ScriptFunctionName = "matches"

var _ types.MethodMatcher = (*ScriptMatcher)(nil)

// ScriptMatcher is a runtime MethodMatcher backed by a JavaScript function:
//
//	function matches(method, args) { return args[0] === "retry"; }
//
// Global properties from the config are visible as `global`. A script error or
// a non-boolean result counts as no match and is logged.
// ScriptMatcher 使用js脚本根据实际参数判断是否匹配
type ScriptMatcher struct {
	Script string
	engine *js.Engine
	static types.MethodMatcher
	config types.Config
}

// NewScriptMatcher compiles script. static restricts the methods the script is
// called for, nil means every method.
func NewScriptMatcher(script string, static types.MethodMatcher, opts ...types.Option) (*ScriptMatcher, error) {
	config := types.NewConfig(opts...)
	engine, err := js.New(config, script, nil, ScriptFunctionName)
	if err != nil {
		return nil, err
	}
	if static == nil {
		static = TrueMethodMatcher
	}
	return &ScriptMatcher{Script: script, engine: engine, static: static, config: config}, nil
}

func (m *ScriptMatcher) Matches(method *types.Method, class reflect.Type) bool {
	return m.static.Matches(method, class)
}

func (m *ScriptMatcher) IsRuntime() bool {
	return true
}

func (m *ScriptMatcher) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	result, err := m.engine.Predicate(ScriptFunctionName, method.Name, args)
	if err != nil {
		m.config.Logger.Printf("script matcher %s error: %s", method, err.Error())
		return false
	}
	return result
}

func (m *ScriptMatcher) String() string {
	return "ScriptMatcher"
}
