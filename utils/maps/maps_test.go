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

package maps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolSettings struct {
	Pattern     string
	MaxSize     int
	MaxIdleTime time.Duration
}

type creatorSettings struct {
	InterceptorNames []string
	ExposeProxy      bool
	Pooling          *poolSettings
}

func TestMap2Struct(t *testing.T) {
	input := map[string]interface{}{
		"interceptorNames": []interface{}{"debug", "metrics"},
		"exposeProxy":      "true",
		"pooling": map[string]interface{}{
			"pattern":     "worker*",
			"maxSize":     float64(4),
			"maxIdleTime": "90s",
		},
	}
	settings := creatorSettings{InterceptorNames: []string{"default"}}
	require.Nil(t, Map2Struct(input, &settings))
	assert.Equal(t, []string{"debug", "metrics"}, settings.InterceptorNames)
	assert.True(t, settings.ExposeProxy)
	require.NotNil(t, settings.Pooling)
	assert.Equal(t, "worker*", settings.Pooling.Pattern)
	assert.Equal(t, 4, settings.Pooling.MaxSize)
	assert.Equal(t, 90*time.Second, settings.Pooling.MaxIdleTime)

	// absent keys keep their value
	settings = creatorSettings{ExposeProxy: true}
	require.Nil(t, Map2Struct(map[string]interface{}{}, &settings))
	assert.True(t, settings.ExposeProxy)

	tests := []struct {
		name   string
		input  interface{}
		output interface{}
	}{
		{"badDuration", map[string]interface{}{"maxIdleTime": "5parsecs"}, &poolSettings{}},
		{"notPointer", input, creatorSettings{}},
		{"notMap", "pooling", &creatorSettings{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, Map2Struct(tt.input, tt.output))
		})
	}
	assert.Nil(t, Map2Struct(nil, &creatorSettings{}))
}

func TestDecodeTagName(t *testing.T) {
	type settings struct {
		MaxSize int `yaml:"max_size"`
	}
	var s settings
	require.Nil(t, Decode(map[string]interface{}{"max_size": "3"}, &s, "yaml"))
	assert.Equal(t, 3, s.MaxSize)
}

func TestGet(t *testing.T) {
	doc := map[string]interface{}{
		"aop": map[string]interface{}{
			"autoproxy": map[string]interface{}{
				"exclusions": []string{"*Repo"},
				"pooling":    nil,
			},
			"labels": map[string]string{"env": "test"},
		},
	}
	tests := []struct {
		path string
		want interface{}
	}{
		{"aop.autoproxy.exclusions", []string{"*Repo"}},
		{"aop.autoproxy.pooling", nil},
		{"aop.autoproxy.pooling.maxSize", nil},
		{"aop.labels.env", "test"},
		{"aop.labels.missing", nil},
		{"aop.missing", nil},
		{"", nil},
		{"..", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Get(doc, tt.path), tt.path)
	}
	assert.NotNil(t, Get(doc, "aop.autoproxy"))
	assert.Nil(t, Get("aop", "aop"))
}
