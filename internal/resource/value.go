// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resource implements the Resource/Manager model (spec.md 4.F):
// the Value tagged union that replaces a dynamic property bag, the
// name->URI cache (grounded on internal/cache/lru.go), filter match
// semantics, and the Resource/ResourceManager types themselves.
package resource

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindList
	KindMap
)

// Value is a tagged union (string | int64 | float64 | bool | []Value |
// map[string]Value) that replaces the dynamic property bag a straight
// port from the reference implementation would use (SPEC_FULL.md 9): a
// Resource's properties are always one of these alternatives, checkable
// and convertible without reflection over `any`.
type Value struct {
	kind Kind
	str  string
	i64  int64
	f64  float64
	b    bool
	list []Value
	m    map[string]Value
}

func String(s string) Value            { return Value{kind: KindString, str: s} }
func Int64(i int64) Value              { return Value{kind: KindInt64, i64: i} }
func Float64(f float64) Value          { return Value{kind: KindFloat64, f64: f} }
func Bool(b bool) Value                { return Value{kind: KindBool, b: b} }
func List(vs []Value) Value            { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value     { return Value{kind: KindMap, m: m} }
func Null() Value                      { return Value{kind: KindNull} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "null"
	}
}

func (v Value) AsString() (string, bool)   { return v.str, v.kind == KindString }
func (v Value) AsInt64() (int64, bool)     { return v.i64, v.kind == KindInt64 }
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }
func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsList() ([]Value, bool)    { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// FromAny converts a generic decoded-JSON value (as produced by
// encoding/json or goccy/go-json into map[string]any) into a Value tree.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Float64(t)
	case int:
		return Int64(int64(t))
	case int64:
		return Int64(t)
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = FromAny(e)
		}
		return List(list)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value back to a generic any tree, for JSON
// re-encoding (e.g. update_properties request bodies).
func (v Value) ToAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return v.i64
	case KindFloat64:
		return v.f64
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// MatchFilter reports whether v matches a filter argument's match value,
// per spec.md 4.F's filter match semantics:
//   - string property vs string match value: the match value is a regexp.
//   - enum/numeric/boolean property vs a differently-typed match value:
//     the match value is coerced to the property's type; a list match
//     value matches if any element matches.
func (v Value) MatchFilter(match Value) (bool, error) {
	if list, ok := match.AsList(); ok {
		for _, m := range list {
			ok, err := v.MatchFilter(m)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	switch v.kind {
	case KindString:
		matchStr, ok := match.AsString()
		if !ok {
			matchStr = fmt.Sprintf("%v", match.ToAny())
		}
		re, err := regexp.Compile(matchStr)
		if err != nil {
			return false, err
		}
		return re.MatchString(v.str), nil
	case KindBool:
		coerced, err := coerceBool(match)
		if err != nil {
			return false, err
		}
		return v.b == coerced, nil
	case KindInt64:
		coerced, err := coerceInt64(match)
		if err != nil {
			return false, err
		}
		return v.i64 == coerced, nil
	case KindFloat64:
		coerced, err := coerceFloat64(match)
		if err != nil {
			return false, err
		}
		return v.f64 == coerced, nil
	default:
		return false, nil
	}
}

func coerceBool(v Value) (bool, error) {
	if b, ok := v.AsBool(); ok {
		return b, nil
	}
	if s, ok := v.AsString(); ok {
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot convert %v to bool", v.ToAny())
}

func coerceInt64(v Value) (int64, error) {
	if i, ok := v.AsInt64(); ok {
		return i, nil
	}
	if f, ok := v.AsFloat64(); ok {
		return int64(f), nil
	}
	if s, ok := v.AsString(); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("cannot convert %v to int64", v.ToAny())
}

func coerceFloat64(v Value) (float64, error) {
	if f, ok := v.AsFloat64(); ok {
		return f, nil
	}
	if i, ok := v.AsInt64(); ok {
		return float64(i), nil
	}
	if s, ok := v.AsString(); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("cannot convert %v to float64", v.ToAny())
}
