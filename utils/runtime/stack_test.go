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

package runtime

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stackViaReflect() string {
	out := reflect.ValueOf(Stack).Call(nil)
	return out[0].String()
}

func TestStack(t *testing.T) {
	stack := Stack()
	assert.True(t, strings.HasPrefix(stack, "github.com/rulego/aop/utils/runtime.TestStack\n"))
	assert.Contains(t, stack, "stack_test.go:")

	// reflective frames are dropped
	stack = stackViaReflect()
	assert.NotContains(t, stack, "reflect.Value.Call")
	assert.True(t, strings.HasPrefix(stack, "github.com/rulego/aop/utils/runtime.stackViaReflect\n"))
}

func TestStackSkip(t *testing.T) {
	stack := func() string { return StackSkip(1) }()
	assert.True(t, strings.HasPrefix(stack, "github.com/rulego/aop/utils/runtime.TestStackSkip\n"))
}

func TestCaller(t *testing.T) {
	caller := Caller(0)
	assert.True(t, strings.HasPrefix(caller, "github.com/rulego/aop/utils/runtime.TestCaller "))
	assert.Contains(t, caller, "stack_test.go:")
}
