package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMissingField is returned when a payload lacks a required key.
	ErrMissingField = errors.New("missing field")
	// ErrFieldType is returned when a payload value has the wrong type.
	ErrFieldType = errors.New("unexpected field type")
)

// Payload is a decoded message body.
type Payload map[string]any

// DecodePayload decodes raw as a JSON object. Anything else, including
// invalid JSON and bare scalars, is wrapped as {<last topic segment>: raw}.
func DecodePayload(topic string, raw []byte) Payload {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err == nil && obj != nil && !dec.More() {
		return obj
	}

	key := topic
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		key = topic[i+1:]
	}
	return Payload{key: string(raw)}
}

// Value returns the raw value for key.
func (p Payload) Value(key string) (any, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return v, nil
}

// String returns key as a string.
func (p Payload) String(key string) (string, error) {
	v, err := p.Value(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrFieldType, key, v)
	}
	return s, nil
}

// Float returns key as a number. Numeric strings are accepted.
func (p Payload) Float(key string) (float64, error) {
	v, err := p.Value(key)
	if err != nil {
		return 0, err
	}

	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrFieldType, key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrFieldType, key, v)
	}
}
