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
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSettings = `
interceptorNames: [common]
applyCommonInterceptorsFirst: false
exclusions: ["*Repo"]
exposeProxy: true
pooling:
  pattern: "worker*"
  maxSize: 4
  maxIdleTime: 1m
`

const tomlSettings = `
interceptorNames = ["common"]
applyCommonInterceptorsFirst = false
exclusions = ["*Repo"]
exposeProxy = true

[pooling]
pattern = "worker*"
maxSize = 4
maxIdleTime = "1m"
`

const jsonSettings = `{
  "interceptorNames": ["common"],
  "applyCommonInterceptorsFirst": false,
  "exclusions": ["*Repo"],
  "exposeProxy": true,
  "pooling": {"pattern": "worker*", "maxSize": 4, "maxIdleTime": "1m"}
}`

func TestParseSettings(t *testing.T) {
	for format, data := range map[string]string{FormatYAML: yamlSettings, FormatTOML: tomlSettings, FormatJSON: jsonSettings} {
		t.Run(format, func(t *testing.T) {
			s, err := ParseSettings([]byte(data), format)
			require.Nil(t, err)
			assert.Equal(t, []string{"common"}, s.InterceptorNames)
			assert.False(t, s.ApplyCommonInterceptorsFirst)
			assert.Equal(t, []string{"*Repo"}, s.Exclusions)
			assert.True(t, s.ExposeProxy)
			// defaults survive
			assert.True(t, s.DiscoverAdvisors)
			assert.Nil(t, s.Prototype)
			require.NotNil(t, s.Pooling)
			assert.Equal(t, engine.PoolingConfig{MaxSize: 4, MaxIdleTime: time.Minute}, s.Pooling.PoolingConfig())
		})
	}

	s, err := ParseSettings(nil, FormatYAML)
	require.Nil(t, err)
	assert.Equal(t, DefaultSettings(), s)

	_, err = ParseSettings([]byte("a = 1"), "ini")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	_, err = ParseSettings([]byte("{"), FormatJSON)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	_, err = ParseSettings([]byte("exposeProxy: {a: 1}"), FormatYAML)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestParseSettingsSection(t *testing.T) {
	doc := `
server:
  addr: ":9090"
aop:
  autoproxy:
    exclusions: ["*Repo"]
    pooling:
      maxSize: 2
`
	settings, err := ParseSettingsSection([]byte(doc), FormatYAML, "aop.autoproxy")
	require.Nil(t, err)
	assert.Equal(t, []string{"*Repo"}, settings.Exclusions)
	require.NotNil(t, settings.Pooling)
	assert.Equal(t, 2, settings.Pooling.MaxSize)
	assert.True(t, settings.ApplyCommonInterceptorsFirst)

	_, err = ParseSettingsSection([]byte(doc), FormatYAML, "aop.missing")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoproxy.yml")
	require.Nil(t, os.WriteFile(path, []byte(yamlSettings), 0o644))
	s, err := LoadSettings(path)
	require.Nil(t, err)
	assert.True(t, s.ExposeProxy)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	assert.NotNil(t, err)
}

func TestCreatorWithSettings(t *testing.T) {
	rec := &recorder{}
	resolver := newMapResolver().
		singleton("common", &namedInterceptor{rec: rec, name: "common"}).
		singleton("aop.greet", greetAdvisor(rec, "specific")).
		prototypeOf("worker", func() any { return &greeter{} })
	s, err := ParseSettings([]byte(yamlSettings), FormatYAML)
	require.Nil(t, err)
	s.AdvisorPrefix = "aop."

	c := newCreator(t, WithResolver(resolver), WithSettings(s))

	obj, err := c.AfterInitialization(&repository{}, "itemRepo")
	require.Nil(t, err)
	_, ok := obj.(*engine.Proxy)
	assert.False(t, ok)

	obj, err = c.AfterInitialization(&greeter{}, "greeter")
	require.Nil(t, err)
	p, ok := obj.(*engine.Proxy)
	require.True(t, ok)
	advised, _ := p.Advised()
	assert.True(t, advised.IsExposeProxy())
	_, err = p.Invoke("Greet", context.Background(), "bob")
	require.Nil(t, err)
	assert.Equal(t, []string{"specific Greet", "common Greet"}, rec.list())

	obj, err = c.BeforeInstantiation(reflect.TypeOf(&greeter{}), "worker")
	require.Nil(t, err)
	p, ok = obj.(*engine.Proxy)
	require.True(t, ok)
	advised, _ = p.Advised()
	pool, ok := advised.TargetSource().(*engine.PoolingTargetSource)
	require.True(t, ok)
	assert.Equal(t, 4, pool.MaxSize())
	assert.Nil(t, pool.Close())
}
