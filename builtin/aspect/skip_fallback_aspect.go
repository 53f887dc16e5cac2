/*
 * Copyright 2024 The RuleGo Authors.
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
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rulego/aop/api/types"
)

var _ types.Interceptor = (*SkipFallbackAspect)(nil)

// SkipFallbackAspect implements a circuit breaker for proxied methods.
// It skips a method once its error count reaches the threshold, and lets it
// run again after LimitDuration.
//
// SkipFallbackAspect 实现代理方法的熔断器模式。
// 当方法错误计数达到阈值时跳过调用，LimitDuration 之后恢复。
//
// Circuit Breaker Logic:
// 熔断器逻辑：
//  1. Track error count per target class and method  按目标类型和方法跟踪错误计数
//  2. Skip execution when error count >= ErrorCountLimit  错误计数 >= ErrorCountLimit 时跳过执行
//  3. Automatically recover after LimitDuration expires  LimitDuration 过期后自动恢复
//  4. Reset error count on a successful call  调用成功时重置错误计数
//
// Usage:
// 使用方法：
//
//	fallback := &SkipFallbackAspect{
//		ErrorCountLimit: 5,
//		LimitDuration:   time.Minute * 2,
//	}
//	_ = factory.AddAdvice(fallback)
type SkipFallbackAspect struct {
	// ErrorCountLimit is the number of errors that opens the breaker, 3 when zero.
	// ErrorCountLimit 触发熔断的错误次数，为 0 时使用 3
	ErrorCountLimit int64
	// LimitDuration is how long the breaker stays open, 10 seconds when zero.
	// LimitDuration 熔断持续时间，为 0 时使用 10 秒
	LimitDuration time.Duration
	// Fallback, if set, produces the result of skipped calls instead of ErrFallback.
	Fallback func(inv types.MethodInvocation) (any, error)

	// methodErrors key: fallbackKey, value: *MethodError
	methodErrors sync.Map
}

// MethodError tracks the failures of one method.
type MethodError struct {
	errorCount    int64
	lastErrorTime int64
}

type fallbackKey struct {
	class  reflect.Type
	method types.MethodKey
}

func (aspect *SkipFallbackAspect) Order() int {
	return 10
}

func (aspect *SkipFallbackAspect) Kind() types.AdviceKind {
	return types.AdviceAround
}

func (aspect *SkipFallbackAspect) limits() (int64, time.Duration) {
	limit, duration := aspect.ErrorCountLimit, aspect.LimitDuration
	if limit == 0 {
		limit = 3
	}
	if duration == 0 {
		duration = time.Second * 10
	}
	return limit, duration
}

func (aspect *SkipFallbackAspect) Invoke(inv types.MethodInvocation) (any, error) {
	key := fallbackKey{class: reflect.TypeOf(inv.Target()), method: inv.Method().Key()}
	limit, duration := aspect.limits()
	if v, ok := aspect.methodErrors.Load(key); ok {
		methodError := v.(*MethodError)
		if atomic.LoadInt64(&methodError.errorCount) >= limit {
			if atomic.LoadInt64(&methodError.lastErrorTime)+duration.Milliseconds() < time.Now().UnixMilli() {
				//超过时间，清除错误记录
				aspect.methodErrors.Delete(key)
			} else {
				//出错次数达到阈值，执行降级
				if aspect.Fallback != nil {
					return aspect.Fallback(inv)
				}
				return nil, types.ErrFallback
			}
		}
	}
	result, err := inv.Proceed()
	if err != nil {
		aspect.recordError(key)
	} else {
		aspect.methodErrors.Delete(key)
	}
	return result, err
}

// recordError 记录错误次数
func (aspect *SkipFallbackAspect) recordError(key fallbackKey) {
	now := time.Now().UnixMilli()
	if v, ok := aspect.methodErrors.Load(key); ok {
		methodError := v.(*MethodError)
		atomic.AddInt64(&methodError.errorCount, 1)
		atomic.StoreInt64(&methodError.lastErrorTime, now)
		return
	}
	v, loaded := aspect.methodErrors.LoadOrStore(key, &MethodError{errorCount: 1, lastErrorTime: now})
	if loaded {
		methodError := v.(*MethodError)
		atomic.AddInt64(&methodError.errorCount, 1)
		atomic.StoreInt64(&methodError.lastErrorTime, now)
	}
}

// ErrorCount returns the recorded error count of method on targets of class.
func (aspect *SkipFallbackAspect) ErrorCount(class reflect.Type, method *types.Method) int64 {
	if v, ok := aspect.methodErrors.Load(fallbackKey{class: class, method: method.Key()}); ok {
		return atomic.LoadInt64(&v.(*MethodError).errorCount)
	}
	return 0
}
