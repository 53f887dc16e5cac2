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

// Package aspect provides built-in interceptors for proxies.
// Each one is an around interceptor that can be added to a proxy configuration
// directly, wrapped into an advisor with a pointcut, or named as a common
// interceptor of an auto-proxy creator.
//
// Package aspect 提供代理的内置拦截器。
// 每个拦截器都是环绕拦截器，可以直接加入代理配置、结合切入点包装为 Advisor，
// 或作为自动代理创建器的公共拦截器。
//
// Available Built-in Interceptors:
// 可用的内置拦截器：
//
//   - ExposeInvocation: Publishes the current invocation into the call context
//     ExposeInvocation：将当前调用发布到调用上下文
//
//   - ConcurrencyLimiterAspect: Limits concurrent calls
//     ConcurrencyLimiterAspect：限制并发调用
//
//   - SkipFallbackAspect: Skips methods that failed too often, circuit breaker style
//     SkipFallbackAspect：熔断失败次数过多的方法
//
//   - MetricsAspect: Counts calls and exports them to prometheus
//     MetricsAspect：统计调用并导出到 prometheus
//
//   - Debug: Logs entering and exiting calls
//     Debug：记录调用的进入和退出
//
// Execution Order:
// 执行顺序：
//
// Interceptors are sorted by their Order() method:
// 拦截器根据其 Order() 方法排序：
//  1. ExposeInvocation (order: HighestPrecedence+1)
//  2. ConcurrencyLimiterAspect (order: 10)
//  3. SkipFallbackAspect (order: 10)
//  4. MetricsAspect (order: 20)
//  5. Debug (order: 900)
//
// Usage Examples:
// 使用示例：
//
//	factory, _ := engine.NewProxyFactoryFor(target)
//	_ = factory.AddAdvice(aspect.NewConcurrencyLimiterAspect(100))
//	_ = factory.AddAdvice(&aspect.Debug{})
//	proxy, _ := factory.Proxy()
package aspect
