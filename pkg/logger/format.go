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

package logger

import (
	"fmt"
	"sort"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// PrettyConsoleEncoder renders "[LEVEL] [caller] [component] message - k=v, ..."
// lines. Fields attached through With are kept in the embedded map encoder and
// printed before the per-entry fields.
type PrettyConsoleEncoder struct {
	*zapcore.MapObjectEncoder
	cfg  zapcore.EncoderConfig
	pool buffer.Pool
}

func NewPrettyConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &PrettyConsoleEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		cfg:              cfg,
		pool:             buffer.NewPool(),
	}
}

func (e *PrettyConsoleEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}

	return &PrettyConsoleEncoder{
		MapObjectEncoder: clone,
		cfg:              e.cfg,
		pool:             e.pool,
	}
}

func (e *PrettyConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := e.pool.Get()

	if !entry.Time.IsZero() {
		line.AppendString(entry.Time.Format("2006-01-02 15:04:05 MST"))
		line.AppendByte(' ')
	}

	line.AppendByte('[')
	line.AppendString(entry.Level.CapitalString())
	line.AppendString("]\t")

	if entry.Caller.Defined {
		line.AppendByte('[')
		line.AppendString(entry.Caller.TrimmedPath())
		line.AppendString("]\t")
	}

	if entry.LoggerName != "" {
		line.AppendByte('[')
		line.AppendString(entry.LoggerName)
		line.AppendString("]\t")
	}

	line.AppendString(entry.Message)

	if len(e.Fields) > 0 || len(fields) > 0 {
		line.AppendString(" - ")
		appendFields(line, e.Fields, fields)
	}

	line.AppendString(e.cfg.LineEnding)

	return line, nil
}

func appendFields(line *buffer.Buffer, context map[string]interface{}, fields []zapcore.Field) {
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	written := 0
	for _, k := range keys {
		if written > 0 {
			line.AppendString(", ")
		}
		line.AppendString(k)
		line.AppendByte('=')
		line.AppendString(fmt.Sprintf("%v", context[k]))
		written++
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
		if written > 0 {
			line.AppendString(", ")
		}
		line.AppendString(field.Key)
		line.AppendByte('=')
		line.AppendString(fmt.Sprintf("%v", enc.Fields[field.Key]))
		written++
	}
}
