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

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a proxy configuration cannot produce a working proxy:
	// no advisors and no target, an introduction without implementation, or a class that
	// cannot be proxied.
	// ErrConfiguration 代理配置错误
	ErrConfiguration = errors.New("aop configuration error")
	// ErrUnknownAdviceType is returned when an object is neither an Advisor nor a supported Advice.
	ErrUnknownAdviceType = errors.New("unknown advice type")
	// ErrInvocationInconsistency is returned when the chain produced nil for a method whose
	// static result type cannot hold nil. It signals an advice bug, not a target failure.
	ErrInvocationInconsistency = errors.New("aop invocation inconsistency")
	// ErrAmbiguousMapping is returned when an aspect binding resolves to more than one method.
	ErrAmbiguousMapping = errors.New("ambiguous advice mapping")
	// ErrConcurrencyLimitReached is the error returned when the concurrency limit has been reached
	ErrConcurrencyLimitReached = errors.New("concurrency limit reached")
	// ErrFallback is returned when a call is skipped because its method failed too often.
	// ErrFallback 熔断降级时返回
	ErrFallback = errors.New("skip fallback error")
	// ErrMethodNotFound is returned when a proxy is invoked with a method it does not expose.
	ErrMethodNotFound = errors.New("method not found")
)

// ConfigurationErrorf returns an error wrapping ErrConfiguration.
func ConfigurationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// UnknownAdviceTypeError returns an error wrapping ErrUnknownAdviceType for v.
func UnknownAdviceTypeError(v any) error {
	return fmt.Errorf("%w: %T is neither an Advisor nor a supported Advice", ErrUnknownAdviceType, v)
}
