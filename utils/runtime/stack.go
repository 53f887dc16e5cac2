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

// Package runtime provides stack helpers for logging intercepted calls.
//
// Frames of the Go runtime and of reflective calls are dropped, so a stack
// logged from an interceptor shows the target and advice code:
//
//	logger.Printf("panic: %v\n%s", e, runtime.Stack())
package runtime

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 32

// internalPrefixes are the function name prefixes dropped from stacks.
var internalPrefixes = []string{"runtime.", "reflect."}

// Stack 获取调用方的堆栈信息
func Stack() string {
	return StackSkip(1)
}

// StackSkip returns the stack of the caller, skipping skip more frames.
// Each frame is written as "function\n\tfile:line\n".
func StackSkip(skip int) string {
	pc := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pc)
	frames := runtime.CallersFrames(pc[:n])
	var build strings.Builder
	for {
		frame, more := frames.Next()
		if !isInternal(frame.Function) {
			build.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return build.String()
}

// Caller returns "function file:line" of the caller, skipping skip more frames.
func Caller(skip int) string {
	pc := make([]uintptr, 1)
	if runtime.Callers(skip+2, pc) == 0 {
		return "unknown"
	}
	frame, _ := runtime.CallersFrames(pc).Next()
	return fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line)
}

func isInternal(function string) bool {
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}
