// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package leakstore

import (
	"reflect"
	"strconv"

	"github.com/fatih/structs"
	"github.com/stoewer/go-strcase"
)

// flatten returns a map one level deep, nested keys are joined with dots.
func flatten(nested map[string]interface{}) map[string]interface{} {
	flatmap := map[string]interface{}{}
	flattenInto(flatmap, "", nested)
	return flatmap
}

func flattenInto(flatmap map[string]interface{}, prefix string, nested interface{}) {
	join := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}

	switch value := nested.(type) {
	case nil:
	case map[string]interface{}:
		for k, v := range value {
			flattenInto(flatmap, join(k), v)
		}
	case []interface{}:
		for i, v := range value {
			flattenInto(flatmap, join(strconv.Itoa(i)), v)
		}
	default:
		flatmap[prefix] = nested
	}
}

// structMap converts a struct into a map with snake case keys, empty values
// are dropped.
func structMap(element interface{}) map[string]interface{} {
	return lower(structs.Map(element), false).(map[string]interface{})
}

// recordMap is structMap for leak records, empty strings are values there
// and are kept.
func recordMap(element interface{}) map[string]interface{} {
	return lower(structs.Map(element), true).(map[string]interface{})
}

// hashes are kept verbatim as keys.
var hashes = map[string]bool{
	"MD5":     true,
	"SHA-1":   true,
	"SHA-256": true,
	"SHA-512": true,
}

func lower(f interface{}, keepEmpty bool) interface{} {
	switch f := f.(type) {
	case []interface{}:
		for i := range f {
			if !isEmptyValue(reflect.ValueOf(f[i])) {
				f[i] = lower(f[i], keepEmpty)
			}
		}
		return f
	case map[string]interface{}:
		lf := make(map[string]interface{}, len(f))
		for k, v := range f {
			value := reflect.ValueOf(v)
			if isEmptyValue(value) && !(keepEmpty && value.Kind() == reflect.String) {
				continue
			}
			if hashes[k] {
				lf[k] = lower(v, keepEmpty)
			} else {
				lf[strcase.SnakeCase(k)] = lower(v, keepEmpty)
			}
		}
		return lf
	default:
		return f
	}
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Invalid:
		return true
	}
	return false
}
