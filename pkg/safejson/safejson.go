// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package safejson encodes with goccy/go-json and falls back to
// encoding/json if goccy panics on an unusual type.
package safejson

import (
	jsonstd "encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/goccy/go-json"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
)

func Marshal(v any) (encoded []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.For(logger.ComponentCore).Warnf("goccy failed to encode %T, using stdlib: %v", v, r)

			encoded, err = jsonstd.Marshal(v)
		}
	}()

	return json.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) (encoded []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.For(logger.ComponentCore).Warnf("goccy failed to encode %T, using stdlib: %v", v, r)

			encoded, err = jsonstd.MarshalIndent(v, prefix, indent)
		}
	}()

	return json.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes into the non-nil pointer v. If goccy panics, v is reset
// and decoded again with the standard library.
func Unmarshal(data []byte, v any) (err error) {
	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return errors.New("decoded must be a non-nil pointer")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.For(logger.ComponentCore).Warnf("goccy failed to decode into %T, using stdlib: %v", v, r)

			target.Elem().Set(reflect.Zero(target.Elem().Type()))
			err = jsonstd.Unmarshal(data, v)
		}
	}()

	return json.Unmarshal(data, v)
}

// WriteIndented writes v as indented JSON followed by a newline.
func WriteIndented(w io.Writer, v any) error {
	encoded, err := MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(append(encoded, '\n'))

	return err
}
