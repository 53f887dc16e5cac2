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

// Package maps decodes generic maps into structs and reads nested map values.
package maps

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Map2Struct Decode takes an input structure and uses reflection to translate it to
// the output structure. output must be a pointer to a map or struct.
// Strings are decoded into time.Duration fields with time.ParseDuration.
func Map2Struct(input interface{}, output interface{}) error {
	return Decode(input, output, "")
}

// Decode is Map2Struct with the struct tag name used for field names,
// "mapstructure" when tagName is empty.
func Decode(input interface{}, output interface{}, tagName string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		TagName:          tagName,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Get returns the value at the dot separated path of a nested map, nil if absent.
func Get(input interface{}, fieldName string) interface{} {
	if fieldName == "" {
		return nil
	}
	var current interface{} = input
	for _, key := range strings.Split(fieldName, ".") {
		switch m := current.(type) {
		case map[string]interface{}:
			current = m[key]
		case map[string]string:
			v, ok := m[key]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}
	return current
}
