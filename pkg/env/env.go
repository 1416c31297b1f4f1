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

package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of key, whether it was set, and an error if
// it was required but missing.
func lookup(key string, required bool) (string, bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		if required {
			return "", false, fmt.Errorf("required environment variable %s is not set", key)
		}

		return "", false, nil
	}

	return value, true, nil
}

// parse converts the value of key with convert. Unset optional variables
// yield defaultValue. Unparsable values yield defaultValue together with an
// error, so callers can tell a typo from an unset variable.
func parse[T any](key string, required bool, defaultValue T, kind string, convert func(string) (T, error)) (T, error) {
	value, ok, err := lookup(key, required)
	if err != nil || !ok {
		return defaultValue, err
	}

	parsed, err := convert(value)
	if err != nil {
		return defaultValue, fmt.Errorf("environment variable %s must be %s: %w", key, kind, err)
	}

	return parsed, nil
}

func GetAsString(key string, required bool, defaultValue string) (string, error) {
	return parse(key, required, defaultValue, "a string", func(s string) (string, error) { return s, nil })
}

func GetAsInt(key string, required bool, defaultValue int) (int, error) {
	return parse(key, required, defaultValue, "an integer", strconv.Atoi)
}

func GetAsFloat(key string, required bool, defaultValue float64) (float64, error) {
	return parse(key, required, defaultValue, "a number", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetAsDuration accepts Go duration strings ("2s", "500ms").
func GetAsDuration(key string, required bool, defaultValue time.Duration) (time.Duration, error) {
	return parse(key, required, defaultValue, "a duration", time.ParseDuration)
}

func GetAsBool(key string, required bool, defaultValue bool) (bool, error) {
	return parse(key, required, defaultValue, "a boolean value", func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean %q", s)
		}
	})
}

// GetAsStringSlice splits a comma separated list and drops empty items.
func GetAsStringSlice(key string, required bool, defaultValue []string) ([]string, error) {
	return parse(key, required, defaultValue, "a comma separated list", func(s string) ([]string, error) {
		var items []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("empty list")
		}

		return items, nil
	})
}
