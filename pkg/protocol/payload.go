package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// MalformedMessageError is returned by the payload accessors when a field a
// consumer relies on is missing or has the wrong shape.
type MalformedMessageError struct {
	Kind   Kind
	Key    string
	Reason string
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed %s message: field %q %s", e.Kind, e.Key, e.Reason)
}

func (m Message) malformed(key, reason string) error {
	return &MalformedMessageError{Kind: m.Kind, Key: key, Reason: reason}
}

func (m Message) lookup(key string) (any, error) {
	v, ok := m.Payload[key]
	if !ok {
		return nil, m.malformed(key, "is missing")
	}
	return v, nil
}

func (m Message) Int(key string) (int, error) {
	v, err := m.lookup(key)
	if err != nil {
		return 0, err
	}
	i, ok := toInt(v)
	if !ok {
		return 0, m.malformed(key, fmt.Sprintf("is not an integer (%T)", v))
	}
	return i, nil
}

func (m Message) Float(key string) (float64, error) {
	v, err := m.lookup(key)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, m.malformed(key, fmt.Sprintf("is not a number (%T)", v))
	}
	return f, nil
}

func (m Message) Bool(key string) (bool, error) {
	v, err := m.lookup(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, m.malformed(key, fmt.Sprintf("is not a bool (%T)", v))
	}
	return b, nil
}

func (m Message) Text(key string) (string, error) {
	v, err := m.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", m.malformed(key, fmt.Sprintf("is not a string (%T)", v))
	}
	return s, nil
}

// StringOr returns the string at key, or def when it is absent or not a string.
func (m Message) StringOr(key, def string) string {
	if s, ok := m.Payload[key].(string); ok {
		return s
	}
	return def
}

// Ints reads a label or prediction vector.
func (m Message) Ints(key string) ([]int, error) {
	v, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []int:
		return t, nil
	case []any:
		out := make([]int, len(t))
		for i, e := range t {
			n, ok := toInt(e)
			if !ok {
				return nil, m.malformed(key, fmt.Sprintf("element %d is not an integer (%T)", i, e))
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, m.malformed(key, fmt.Sprintf("is not an integer list (%T)", v))
}

// Floats reads a flat numeric vector.
func (m Message) Floats(key string) ([]float64, error) {
	v, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	out, ok := toFloats(v)
	if !ok {
		return nil, m.malformed(key, fmt.Sprintf("is not a number list (%T)", v))
	}
	return out, nil
}

// Matrix reads a feature matrix (one row per sample).
func (m Message) Matrix(key string) ([][]float64, error) {
	v, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case [][]float64:
		return t, nil
	case []any:
		out := make([][]float64, len(t))
		for i, row := range t {
			r, ok := toFloats(row)
			if !ok {
				return nil, m.malformed(key, fmt.Sprintf("row %d is not a number list (%T)", i, row))
			}
			out[i] = r
		}
		return out, nil
	}
	return nil, m.malformed(key, fmt.Sprintf("is not a matrix (%T)", v))
}

// Metrics returns every numeric payload entry except the epoch/batch
// counters. Non-numeric entries are ignored.
func (m Message) Metrics() map[string]float64 {
	out := map[string]float64{}
	for k, v := range m.Payload {
		if k == KeyEpoch || k == KeyBatch {
			continue
		}
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint8:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case float32:
		if float64(t) != math.Trunc(float64(t)) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		// recordings spell out non-finite values
		switch t {
		case "NaN":
			return math.NaN(), true
		case "+Inf", "Inf":
			return math.Inf(1), true
		case "-Inf":
			return math.Inf(-1), true
		}
	}
	return 0, false
}

func toFloats(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, true
	case []float32:
		out := make([]float64, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out, true
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
