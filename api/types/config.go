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

package types

import (
	"time"
)

// AdapterRegistry converts heterogeneous advice into Advisors and Interceptors.
// AdapterRegistry 把不同类型的增强转换成 Advisor 和 Interceptor
type AdapterRegistry interface {
	// Wrap returns v unchanged if it is an Advisor, otherwise wraps a supported
	// Advice into an always-match advisor.
	Wrap(v any) (Advisor, error)
	// Interceptors returns the uniform executable form of the advisor's advice.
	Interceptors(advisor Advisor) ([]Interceptor, error)
}

// Config proxy engine configuration
// Config 代理引擎配置
type Config struct {
	// Logger is used by the engine to report configuration anomalies and decisions.
	Logger Logger
	// AdapterRegistry converts advice into interceptors. Nil selects the process-wide default.
	AdapterRegistry AdapterRegistry
	// ExposeProxy publishes the current proxy into the call context.
	ExposeProxy bool
	// Frozen forbids advisor changes once the proxy has been created.
	Frozen bool
	// Opaque hides the Advised capability from proxies.
	Opaque bool
	// ProxyTargetClass forces class proxies even when interfaces are available.
	ProxyTargetClass bool
	// PreFiltered declares that advisors were already filtered for the target class.
	PreFiltered bool
	// Properties are global values visible to script and expression matchers.
	Properties map[string]interface{}
	// ScriptMaxExecutionTime bounds the execution of script matchers.
	ScriptMaxExecutionTime time.Duration
}

// NewConfig creates a Config with defaults applied, then the given options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Logger:                 DefaultLogger(),
		Properties:             make(map[string]interface{}),
	}
	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}

// Apply applies opts on a copy of c.
func (c Config) Apply(opts ...Option) (Config, error) {
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}
