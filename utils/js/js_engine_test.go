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

package js

import (
	"errors"
	"testing"
	"time"

	"github.com/rulego/aop/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matcherScript = `
function matches(method, args) { return method === "Greet" && args[0] === global.name; }
function count(args) { return args.length; }
function spin() { while (true) {} }
`

func TestEngine(t *testing.T) {
	config := types.NewConfig(types.WithProperties(map[string]interface{}{"name": "bob"}))
	e, err := New(config, matcherScript, nil, "matches")
	require.Nil(t, err)

	ok, err := e.Predicate("matches", "Greet", []any{"bob"})
	assert.Nil(t, err)
	assert.True(t, ok)
	ok, err = e.Predicate("matches", "Greet", []any{"ann"})
	assert.Nil(t, err)
	assert.False(t, ok)

	out, err := e.Execute("count", []any{1, 2, 3})
	assert.Nil(t, err)
	assert.Equal(t, int64(3), out)

	_, err = e.Predicate("count", []any{1})
	assert.NotNil(t, err)
	_, err = e.Execute("missing")
	assert.EqualError(t, err, "missing is not a function")
}

func TestEngineVars(t *testing.T) {
	e, err := New(types.NewConfig(), "function limit() { return max; }", map[string]any{"max": 3})
	require.Nil(t, err)
	out, err := e.Execute("limit")
	assert.Nil(t, err)
	assert.Equal(t, int64(3), out)
}

func TestEngineTimeout(t *testing.T) {
	config := types.NewConfig(types.WithScriptMaxExecutionTime(50 * time.Millisecond))
	e, err := New(config, matcherScript, nil)
	require.Nil(t, err)
	_, err = e.Execute("spin")
	assert.NotNil(t, err)

	// the interrupted runtime is reusable
	ok, err := e.Predicate("matches", "Other", []any{})
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestEngineConfiguration(t *testing.T) {
	_, err := New(types.NewConfig(), "function (", nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	_, err = New(types.NewConfig(), "var x = 1;", nil, "matches")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	_, err = New(types.NewConfig(), "throw new Error('bad')", nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}
