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
	"sync/atomic"

	"github.com/rulego/aop/api/types"
)

var _ types.Interceptor = (*ConcurrencyLimiterAspect)(nil)

// ConcurrencyLimiterAspect limits the number of calls running at the same
// time through the proxies it advises.
//
// ConcurrencyLimiterAspect 限制经过其增强的代理同时运行的调用数量。
//
// Features:
// 功能特性：
//   - Compare-and-swap (CAS) for consistent state  比较并交换（CAS）确保状态一致性
//   - Slot released on every exit, including panics  任何退出路径都会释放名额，包括 panic
//   - Returns ErrConcurrencyLimitReached when limit exceeded  超过限制时返回 ErrConcurrencyLimitReached
//
// Usage:
// 使用方法：
//
//	limiter := NewConcurrencyLimiterAspect(100)
//	_ = factory.AddAdvice(limiter)
type ConcurrencyLimiterAspect struct {
	Max          int64 // Maximum number of concurrent calls  最大并发调用数量
	currentCount int64 // Current number of concurrent calls  当前并发调用数量
}

// NewConcurrencyLimiterAspect creates a limiter allowing max concurrent calls.
//
// NewConcurrencyLimiterAspect 创建允许 max 个并发调用的限制器。
func NewConcurrencyLimiterAspect(max int) *ConcurrencyLimiterAspect {
	return &ConcurrencyLimiterAspect{
		Max: int64(max),
	}
}

// Order returns the execution priority of this aspect. Lower values execute earlier.
//
// Order 返回此切面的执行优先级。值越低，执行越早。
func (a *ConcurrencyLimiterAspect) Order() int {
	return 10
}

func (a *ConcurrencyLimiterAspect) Kind() types.AdviceKind {
	return types.AdviceAround
}

// Invoke takes a slot, proceeds and releases the slot.
//
// Algorithm:
// 算法：
//  1. Load current count atomically  原子加载当前计数
//  2. Check if limit would be exceeded  检查是否会超过限制
//  3. Use CAS to increment if within limit  如果在限制内则使用 CAS 增加
//  4. Retry if CAS fails due to concurrent modification  如果由于并发修改导致 CAS 失败则重试
func (a *ConcurrencyLimiterAspect) Invoke(inv types.MethodInvocation) (any, error) {
	for {
		current := atomic.LoadInt64(&a.currentCount)
		if current >= a.Max {
			return nil, types.ErrConcurrencyLimitReached
		}
		// 尝试原子地增加计数器，如果成功则退出循环
		if atomic.CompareAndSwapInt64(&a.currentCount, current, current+1) {
			break
		}
	}
	defer atomic.AddInt64(&a.currentCount, -1)
	return inv.Proceed()
}

// Current returns the number of calls in progress.
func (a *ConcurrencyLimiterAspect) Current() int64 {
	return atomic.LoadInt64(&a.currentCount)
}
