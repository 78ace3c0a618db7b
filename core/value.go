package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ValueKind string

const (
	ValueKindNull   ValueKind = "null"
	ValueKindBool   ValueKind = "bool"
	ValueKindNumber ValueKind = "number"
	ValueKindString ValueKind = "string"
	ValueKindArray  ValueKind = "array"
	ValueKindObject ValueKind = "object"
)

// Value is an opaque JSON tree used for application-defined payload fields
// such as BTCPay posData and LNbits extra. Numbers keep their original
// literal so integer amounts never pass through float64.
type Value struct {
	raw any
}

func NewValue(raw any) Value {
	return Value{raw: normalizeValue(raw)}
}

func ParseValue(data []byte) (Value, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return Value{}, err
	}
	if decoder.More() {
		return Value{}, fmt.Errorf("core: trailing data after json value")
	}
	return Value{raw: raw}, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func (v Value) Raw() any {
	return v.raw
}

func (v Value) Kind() ValueKind {
	switch v.raw.(type) {
	case nil:
		return ValueKindNull
	case bool:
		return ValueKindBool
	case json.Number:
		return ValueKindNumber
	case string:
		return ValueKindString
	case []any:
		return ValueKindArray
	case map[string]any:
		return ValueKindObject
	default:
		return ValueKindNull
	}
}

func (v Value) IsNull() bool {
	return v.raw == nil
}

func (v Value) AsString() (string, bool) {
	typed, ok := v.raw.(string)
	return typed, ok
}

func (v Value) AsBool() (bool, bool) {
	typed, ok := v.raw.(bool)
	return typed, ok
}

func (v Value) AsInt64() (int64, bool) {
	typed, ok := v.raw.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseInt(typed.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func (v Value) AsObject() (map[string]Value, bool) {
	typed, ok := v.raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(typed))
	for key, value := range typed {
		out[key] = Value{raw: value}
	}
	return out, true
}

func (v Value) AsArray() ([]Value, bool) {
	typed, ok := v.raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(typed))
	for i, value := range typed {
		out[i] = Value{raw: value}
	}
	return out, true
}

// Get looks key up in an object value. A string holding a JSON object is
// parsed first, since processors frequently forward merchant data as an
// encoded string.
func (v Value) Get(key string) (Value, bool) {
	source := v.Unwrapped()
	object, ok := source.raw.(map[string]any)
	if !ok {
		return Value{}, false
	}
	value, ok := object[key]
	if !ok {
		return Value{}, false
	}
	return Value{raw: value}, true
}

// GetString returns the string under key. Non-string scalars are rendered
// with their JSON literal form.
func (v Value) GetString(key string) (string, bool) {
	value, ok := v.Get(key)
	if !ok {
		return "", false
	}
	switch typed := value.raw.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		return trimmed, trimmed != ""
	case json.Number:
		return typed.String(), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

// Unwrapped returns the decoded form of a string value that holds a JSON
// object or array, and v unchanged otherwise.
func (v Value) Unwrapped() Value {
	text, ok := v.raw.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return v
	}
	parsed, err := ParseValue([]byte(trimmed))
	if err != nil {
		return v
	}
	return parsed
}

func normalizeValue(raw any) any {
	switch typed := raw.(type) {
	case nil, bool, string, json.Number:
		return typed
	case int:
		return json.Number(strconv.FormatInt(int64(typed), 10))
	case int64:
		return json.Number(strconv.FormatInt(typed, 10))
	case uint64:
		return json.Number(strconv.FormatUint(typed, 10))
	case float64:
		return json.Number(strconv.FormatFloat(typed, 'f', -1, 64))
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = normalizeValue(value)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = value
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = normalizeValue(value)
		}
		return out
	case Value:
		return typed.raw
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil
		}
		parsed, err := ParseValue(encoded)
		if err != nil {
			return nil
		}
		return parsed.raw
	}
}
