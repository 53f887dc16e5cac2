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

package autoproxy

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
	"github.com/rulego/aop/utils/json"
	"github.com/rulego/aop/utils/maps"
	"gopkg.in/yaml.v3"
)

// Settings formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// Settings is the file form of a Creator configuration.
// Settings 自动代理创建器的配置文件形式
//
// Example (yaml):
//
//	interceptorNames: [tx, "global.*"]
//	exclusions: ["*Repository"]
//	exposeProxy: true
//	pooling:
//	  pattern: "worker.*"
//	  maxSize: 8
//	  maxIdleTime: 1m
type Settings struct {
	// InterceptorNames are the common interceptors applied to every proxy.
	InterceptorNames []string `mapstructure:"interceptorNames"`
	// ApplyCommonInterceptorsFirst places common interceptors before object specific ones.
	ApplyCommonInterceptorsFirst bool `mapstructure:"applyCommonInterceptorsFirst"`
	// Exclusions are glob patterns of identifiers never proxied.
	Exclusions []string `mapstructure:"exclusions"`
	// Includes, when not empty, are glob patterns of the only identifiers proxied.
	Includes []string `mapstructure:"includes"`
	// AdvisorPrefix limits resolver-discovered advisors to names with this prefix.
	AdvisorPrefix string `mapstructure:"advisorPrefix"`
	// DiscoverAdvisors enables advisor and aspect discovery through the resolver.
	DiscoverAdvisors bool `mapstructure:"discoverAdvisors"`

	ExposeProxy      bool `mapstructure:"exposeProxy"`
	ProxyTargetClass bool `mapstructure:"proxyTargetClass"`
	Frozen           bool `mapstructure:"frozen"`
	Opaque           bool `mapstructure:"opaque"`

	// Prototype configures the prototype target source creator.
	Prototype *PrototypeSettings `mapstructure:"prototype"`
	// Pooling configures the pooling target source creator.
	Pooling *PoolingSettings `mapstructure:"pooling"`
}

type PrototypeSettings struct {
	Pattern string `mapstructure:"pattern"`
}

type PoolingSettings struct {
	Pattern      string        `mapstructure:"pattern"`
	MaxSize      int           `mapstructure:"maxSize"`
	MaxIdleTime  time.Duration `mapstructure:"maxIdleTime"`
	EvictionSpec string        `mapstructure:"evictionSpec"`
}

// PoolingConfig converts the settings into an engine pooling configuration.
func (s *PoolingSettings) PoolingConfig() engine.PoolingConfig {
	return engine.PoolingConfig{MaxSize: s.MaxSize, MaxIdleTime: s.MaxIdleTime, EvictionSpec: s.EvictionSpec}
}

// DefaultSettings returns the settings used when a file omits a value.
func DefaultSettings() Settings {
	return Settings{ApplyCommonInterceptorsFirst: true, DiscoverAdvisors: true}
}

// EngineOptions returns the proxy configuration options of s.
func (s Settings) EngineOptions() []types.Option {
	return []types.Option{
		types.WithExposeProxy(s.ExposeProxy),
		types.WithProxyTargetClass(s.ProxyTargetClass),
		types.WithFrozen(s.Frozen),
		types.WithOpaque(s.Opaque),
	}
}

// ParseSettings parses data in the given format over DefaultSettings.
func ParseSettings(data []byte, format string) (Settings, error) {
	return ParseSettingsSection(data, format, "")
}

// ParseSettingsSection parses the settings found at the dot separated path of
// a larger document, such as "aop.autoproxy". An empty path is the whole document.
func ParseSettingsSection(data []byte, format string, path string) (Settings, error) {
	raw := make(map[string]interface{})
	var err error
	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	default:
		return Settings{}, types.ConfigurationErrorf("unsupported settings format %q", format)
	}
	if err != nil {
		return Settings{}, types.ConfigurationErrorf("parse %s settings: %v", format, err)
	}
	var section interface{} = raw
	if path != "" {
		if section = maps.Get(raw, path); section == nil {
			return Settings{}, types.ConfigurationErrorf("no settings at %q", path)
		}
	}
	settings := DefaultSettings()
	if err := maps.Map2Struct(section, &settings); err != nil {
		return Settings{}, types.ConfigurationErrorf("decode settings: %v", err)
	}
	return settings, nil
}

// LoadSettings reads a settings file, choosing the format from its extension.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return ParseSettings(data, strings.TrimPrefix(filepath.Ext(path), "."))
}
