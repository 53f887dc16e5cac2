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

package types

import (
	"errors"
	"time"
)

// Option is a function type that modifies the Config.
type Option func(*Config) error

// WithLogger is an option that sets the logger of the Config.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithAdapterRegistry is an option that sets the advice adapter registry of the Config.
func WithAdapterRegistry(registry AdapterRegistry) Option {
	return func(c *Config) error {
		if registry == nil {
			return errors.New("adapter registry must not be nil")
		}
		c.AdapterRegistry = registry
		return nil
	}
}

// WithExposeProxy is an option that publishes the proxy into the call context.
func WithExposeProxy(exposeProxy bool) Option {
	return func(c *Config) error {
		c.ExposeProxy = exposeProxy
		return nil
	}
}

// WithFrozen is an option that freezes the advisor list of created proxies.
func WithFrozen(frozen bool) Option {
	return func(c *Config) error {
		c.Frozen = frozen
		return nil
	}
}

// WithOpaque is an option that hides the Advised capability from created proxies.
func WithOpaque(opaque bool) Option {
	return func(c *Config) error {
		c.Opaque = opaque
		return nil
	}
}

// WithProxyTargetClass is an option that forces class proxies.
func WithProxyTargetClass(proxyTargetClass bool) Option {
	return func(c *Config) error {
		c.ProxyTargetClass = proxyTargetClass
		return nil
	}
}

// WithPreFiltered is an option that skips per-call class filter checks.
func WithPreFiltered(preFiltered bool) Option {
	return func(c *Config) error {
		c.PreFiltered = preFiltered
		return nil
	}
}

// WithProperties is an option that sets the global properties of the Config.
func WithProperties(properties map[string]interface{}) Option {
	return func(c *Config) error {
		c.Properties = properties
		return nil
	}
}

// WithScriptMaxExecutionTime is an option that sets the script matcher max execution time of the Config.
func WithScriptMaxExecutionTime(scriptMaxExecutionTime time.Duration) Option {
	return func(c *Config) error {
		c.ScriptMaxExecutionTime = scriptMaxExecutionTime
		return nil
	}
}
