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

package reflect

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type myInt int

func TestCall(t *testing.T) {
	join := func(sep string, parts ...string) (string, error) {
		if len(parts) == 0 {
			return "", errors.New("empty")
		}
		out := parts[0]
		for _, p := range parts[1:] {
			out += sep + p
		}
		return out, nil
	}
	fn := reflect.ValueOf(join)

	result, err := Call(fn, []any{",", "a", "b"})
	require.Nil(t, err)
	assert.Equal(t, "a,b", result)

	result, err = Call(fn, []any{"-", []string{"x", "y"}})
	require.Nil(t, err)
	assert.Equal(t, "x-y", result)

	_, err = Call(fn, []any{","})
	assert.EqualError(t, err, "empty")

	_, err = Call(fn, []any{})
	assert.Error(t, err)

	double := reflect.ValueOf(func(v int, p *int) int {
		if p != nil {
			return *p * 2
		}
		return v * 2
	})
	result, err = Call(double, []any{myInt(3), nil})
	require.Nil(t, err)
	assert.Equal(t, 6, result)

	_, err = Call(double, []any{"3", nil})
	assert.Error(t, err)

	pair := reflect.ValueOf(func() (int, string) { return 1, "a" })
	result, err = Call(pair, nil)
	require.Nil(t, err)
	assert.Equal(t, []any{1, "a"}, result)

	void := reflect.ValueOf(func() {})
	result, err = Call(void, nil)
	assert.Nil(t, err)
	assert.Nil(t, result)
}

func TestToResults(t *testing.T) {
	fnType := reflect.TypeOf(func() (int, error) { return 0, nil })
	out, err := ToResults(fnType, 7, nil)
	require.Nil(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 7, out[0].Interface())
	assert.True(t, out[1].IsNil())

	boom := errors.New("boom")
	out, err = ToResults(fnType, nil, boom)
	require.Nil(t, err)
	assert.Equal(t, 0, out[0].Interface())
	assert.Equal(t, boom, out[1].Interface())

	_, err = ToResults(fnType, "x", nil)
	assert.Error(t, err)

	pairType := reflect.TypeOf(func() (int, string) { return 0, "" })
	out, err = ToResults(pairType, []any{1, "a"}, nil)
	require.Nil(t, err)
	assert.Equal(t, "a", out[1].Interface())

	_, err = ToResults(pairType, []any{1}, nil)
	assert.Error(t, err)
}

func TestSetField(t *testing.T) {
	type target struct {
		Name  string
		Count int
		inner int
	}
	var v target
	require.Nil(t, SetField(&v, "Name", "a"))
	require.Nil(t, SetField(&v, "Count", myInt(2)))
	assert.Equal(t, target{Name: "a", Count: 2}, v)

	assert.Error(t, SetField(&v, "inner", 1))
	assert.Error(t, SetField(&v, "Missing", 1))
	assert.Error(t, SetField(v, "Name", "a"))
}

func TestZeroAndIndirect(t *testing.T) {
	assert.Equal(t, 0, Zero(reflect.TypeOf(0)))
	assert.Nil(t, Zero(nil))
	type s struct{}
	assert.Equal(t, reflect.TypeOf(s{}), Indirect(reflect.TypeOf(&s{})))
}
