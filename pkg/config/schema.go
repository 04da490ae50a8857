package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type OptionType int

const (
	TypeString OptionType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeStringList
)

func (t OptionType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeStringList:
		return "string list"
	}
	return "unknown"
}

// Option declares one panel option. Required options have no default.
type Option struct {
	Key      string
	Type     OptionType
	Required bool
	Default  any
	Help     string
}

type Schema []Option

// Options holds resolved, type-checked option values.
type Options struct {
	values map[string]any
}

// Resolve checks raw against the schema, applies defaults and rejects
// unknown keys.
func (s Schema) Resolve(raw map[string]any) (Options, error) {
	known := map[string]Option{}
	for _, o := range s {
		known[o.Key] = o
	}

	var unknown []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, errors.Errorf("unknown options: %s", strings.Join(unknown, ", "))
	}

	values := map[string]any{}
	for _, o := range s {
		v, ok := raw[o.Key]
		if !ok || v == nil {
			if o.Required {
				return Options{}, errors.Errorf("missing required option %q (%s)", o.Key, o.Type)
			}
			if o.Default != nil {
				values[o.Key] = o.Default
			}
			continue
		}
		cv, err := coerce(o.Type, v)
		if err != nil {
			return Options{}, errors.Wrapf(err, "option %q", o.Key)
		}
		values[o.Key] = cv
	}
	return Options{values: values}, nil
}

func coerce(t OptionType, v any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n == math.Trunc(n) {
				return int(n), nil
			}
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeStringList:
		switch l := v.(type) {
		case []string:
			return append([]string{}, l...), nil
		case []any:
			out := make([]string, 0, len(l))
			for i, e := range l {
				s, ok := e.(string)
				if !ok {
					return nil, errors.Errorf("element %d must be a string, got %T", i, e)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return []string{l}, nil
		}
	}
	return nil, errors.Errorf("expected %s, got %T (%v)", t, v, v)
}

func (o Options) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o Options) String(key string) string {
	s, _ := o.values[key].(string)
	return s
}

func (o Options) Int(key string) int {
	n, _ := o.values[key].(int)
	return n
}

func (o Options) Float(key string) float64 {
	f, _ := o.values[key].(float64)
	return f
}

func (o Options) Bool(key string) bool {
	b, _ := o.values[key].(bool)
	return b
}

func (o Options) Strings(key string) []string {
	l, _ := o.values[key].([]string)
	return append([]string{}, l...)
}

func (o Options) Map() map[string]any {
	out := make(map[string]any, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// Describe renders the schema as one line per option.
func (s Schema) Describe() []string {
	out := make([]string, 0, len(s))
	for _, o := range s {
		line := fmt.Sprintf("%s (%s)", o.Key, o.Type)
		if o.Required {
			line += " required"
		} else if o.Default != nil {
			line += fmt.Sprintf(" default=%v", o.Default)
		}
		if o.Help != "" {
			line += ": " + o.Help
		}
		out = append(out, line)
	}
	return out
}
