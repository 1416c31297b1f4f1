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

package models

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies the failure a caller asks us to recover from.
type ErrorKind int

const (
	// Unknown is an unclassified error. No recovery is attempted for it.
	Unknown ErrorKind = iota
	// Memory indicates memory exhaustion.
	Memory
	// FileAccess indicates a file that could not be opened.
	FileAccess
	// Device indicates a failed device node.
	Device
	// DeviceBusy indicates a contended device.
	DeviceBusy
	// TextBusy indicates ETXTBSY on a file that is being executed.
	TextBusy
	// NullPointer indicates a nil dereference that was caught by the caller.
	NullPointer
)

var errorKindNames = map[ErrorKind]string{
	Unknown:     "unknown",
	Memory:      "memory",
	FileAccess:  "file_access",
	Device:      "device",
	DeviceBusy:  "device_busy",
	TextBusy:    "text_busy",
	NullPointer: "null_pointer",
}

// aliases accepted by ParseErrorKind besides the canonical names.
var errorKindAliases = map[string]ErrorKind{
	"memory_error":      Memory,
	"file_access_error": FileAccess,
	"device_error":      Device,
	"txt_busy":          TextBusy,
	"null_error":        NullPointer,
	"unknown_error":     Unknown,
}

// String returns the canonical snake_case name of the kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// IsClassified reports whether k is one of the kinds we know how to recover from.
func (k ErrorKind) IsClassified() bool {
	_, ok := errorKindNames[k]

	return ok && k != Unknown
}

// AllErrorKinds returns every classified kind, in declaration order.
func AllErrorKinds() []ErrorKind {
	return []ErrorKind{Memory, FileAccess, Device, DeviceBusy, TextBusy, NullPointer}
}

// ParseErrorKind maps a name to an ErrorKind. Matching is case-insensitive and
// accepts both the canonical names and the legacy upper-case C names
// (MEMORY_ERROR, TXT_BUSY, ...). Anything else is Unknown.
func ParseErrorKind(name string) ErrorKind {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")

	for kind, kindName := range errorKindNames {
		if kindName == normalized {
			return kind
		}
	}

	if kind, ok := errorKindAliases[normalized]; ok {
		return kind
	}

	return Unknown
}

// Outcome is the tri-state result of a single recovery run.
type Outcome int

const (
	// Failed means neither the primary path nor any alternative recovered.
	Failed Outcome = iota
	// Partial means recovery only succeeded by using a degraded resource
	// (backup file, non-primary device).
	Partial
	// Success means the primary resource is usable again.
	Success
)

// String returns the wording used in recovery reports.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "successful"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText lets the outcome appear as a string in JSON and YAML.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the strings produced by MarshalText.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "successful":
		*o = Success
	case "partial":
		*o = Partial
	case "failed":
		*o = Failed
	default:
		return fmt.Errorf("unknown recovery outcome %q", string(text))
	}

	return nil
}

// MarshalText lets the kind appear as its name in JSON and YAML.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name. Unrecognized names become Unknown.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	*k = ParseErrorKind(string(text))

	return nil
}

// ProbeResult is the answer of a single resource probe.
type ProbeResult struct {
	// Detail is an optional diagnostic, e.g. the measured memory ratio or the
	// device path that answered.
	Detail string
	OK     bool
}

// RecoveryReport describes one finished dispatcher run.
type RecoveryReport struct {
	StartedAt time.Time     `json:"startedAt"`
	ID        string        `json:"id"`
	Kind      ErrorKind     `json:"kind"`
	Outcome   Outcome       `json:"outcome"`
	Duration  time.Duration `json:"duration"`
}
