// Copyright 2026 The IPEngine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serrors provides errors carrying structured key/value context,
// so that call sites can attach the data a drop or a fatal configuration
// fault needs without building ad-hoc fmt.Sprintf strings. Errors
// constructed here log with their context via zapcore.ObjectMarshaler.
package serrors

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap/zapcore"
)

type ctxPair struct {
	key   string
	value any
}

type basicError struct {
	msg   string
	cause error
	ctx   []ctxPair
}

// New creates an error with the given message and key/value context.
// errCtx must be an even-length list of alternating keys (string) and
// values.
func New(msg string, errCtx ...any) error {
	return &basicError{msg: msg, ctx: pairs(errCtx)}
}

// Wrap creates an error with the given message that wraps cause. Use
// errors.Is/errors.As as usual; Is(Wrap(m, cause), cause) is always true.
func Wrap(msg string, cause error, errCtx ...any) error {
	return &basicError{msg: msg, cause: cause, ctx: pairs(errCtx)}
}

// WithCtx returns a copy of err with additional key/value context
// attached, without changing its message or cause.
func WithCtx(err error, errCtx ...any) error {
	var be *basicError
	if errors.As(err, &be) {
		cp := *be
		cp.ctx = append(append([]ctxPair{}, be.ctx...), pairs(errCtx)...)
		return &cp
	}
	return &basicError{msg: err.Error(), ctx: pairs(errCtx)}
}

func pairs(kv []any) []ctxPair {
	if len(kv) == 0 {
		return nil
	}
	out := make([]ctxPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, ctxPair{key: key, value: kv[i+1]})
	}
	return out
}

func (e *basicError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.msg)
	if len(e.ctx) != 0 {
		buf.WriteString(" {")
		for i, p := range e.ctx {
			if i > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(&buf, "%s=%v", p.key, p.value)
		}
		buf.WriteString("}")
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e *basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler so errors constructed
// here render with structured context when logged through go.uber.org/zap.
func (e *basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	for _, p := range e.ctx {
		zapAny(enc, p.key, p.value)
	}
	if e.cause != nil {
		enc.AddString("cause", e.cause.Error())
	}
	return nil
}

func zapAny(enc zapcore.ObjectEncoder, key string, v any) {
	switch t := v.(type) {
	case string:
		enc.AddString(key, t)
	case int:
		enc.AddInt(key, t)
	case error:
		enc.AddString(key, t.Error())
	default:
		enc.AddString(key, fmt.Sprint(t))
	}
}

// List aggregates several errors, e.g. from Config.Validate. A nil/empty
// List's ToError returns nil.
type List []error

func (l List) Error() string {
	var buf bytes.Buffer
	for i, e := range l {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(e.Error())
	}
	return buf.String()
}

// ToError returns nil if the list is empty, the sole error if it has one
// element, or itself otherwise.
func (l List) ToError() error {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	default:
		sort.Slice(l, func(i, j int) bool { return l[i].Error() < l[j].Error() })
		return l
	}
}
