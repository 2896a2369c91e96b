package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Auto marks a hyperparameter value that is left for the algorithm to choose
const Auto = "<Auto>"

// ParamKind identifies the value domain of a sweepable hyperparameter
type ParamKind string

const (
	ParamKindDiscrete ParamKind = "discrete" // Finite set of values
	ParamKindFloat    ParamKind = "float"    // Continuous range
	ParamKindLong     ParamKind = "long"     // Integer range
)

// SweepableParam declares one tunable hyperparameter and its value domain
type SweepableParam struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     ParamKind `json:"kind" yaml:"kind"`
	Values   []any     `json:"values,omitempty" yaml:"values,omitempty"` // Discrete only
	Min      float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max      float64   `json:"max,omitempty" yaml:"max,omitempty"`
	LogScale bool      `json:"log_scale,omitempty" yaml:"log_scale,omitempty"`
	Steps    int       `json:"steps,omitempty" yaml:"steps,omitempty"`         // Float grid points, 0 = continuous
	StepSize float64   `json:"step_size,omitempty" yaml:"step_size,omitempty"` // Long increment (multiplier on log scale)
	Default  any       `json:"default" yaml:"default"`
}

// Validate checks if the SweepableParam declaration is well formed
func (p SweepableParam) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("sweepable param name is required")
	}
	switch p.Kind {
	case ParamKindDiscrete:
		if len(p.Values) == 0 {
			return fmt.Errorf("sweepable param %s: discrete domain needs values", p.Name)
		}
	case ParamKindFloat, ParamKindLong:
		if p.Min > p.Max {
			return fmt.Errorf("sweepable param %s: min %v exceeds max %v", p.Name, p.Min, p.Max)
		}
		if p.LogScale && p.Min <= 0 {
			return fmt.Errorf("sweepable param %s: log scale needs a positive min", p.Name)
		}
	default:
		return fmt.Errorf("sweepable param %s: unknown kind %q", p.Name, p.Kind)
	}
	return nil
}

// Clone returns a deep copy of the declaration
func (p SweepableParam) Clone() SweepableParam {
	if p.Values != nil {
		p.Values = append([]any(nil), p.Values...)
	}
	return p
}

// Assignment maps hyperparameter names to concrete values. Values are kept in
// canonical form: int, float64, bool or string.
type Assignment map[string]any

// Clone returns a copy of the assignment; the copy is never nil
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Names returns the assigned parameter names in sorted order
func (a Assignment) Names() []string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both assignments hold the same names with identical
// values and value types
func (a Assignment) Equal(other Assignment) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		w, ok := other[k]
		if !ok || !reflect.DeepEqual(v, w) {
			return false
		}
	}
	return true
}

// Canonical converts a scalar to the canonical assignment value types
func Canonical(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case bool:
		return x, nil
	case string:
		return x, nil
	case json.Number:
		return numberValue(x.String())
	default:
		return nil, fmt.Errorf("unsupported hyperparameter value type %T", v)
	}
}

// numberValue keeps integers and floats apart based on their textual form
func numberValue(s string) (any, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// formatFloat always renders a decimal point or exponent so the value decodes
// back as a float
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite hyperparameter value %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// MarshalJSON encodes the assignment with sorted keys and type-preserving numbers
func (a Assignment) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range a.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v, err := Canonical(a[name])
		if err != nil {
			return nil, fmt.Errorf("hyperparameter %s: %w", name, err)
		}
		switch x := v.(type) {
		case float64:
			s, err := formatFloat(x)
			if err != nil {
				return nil, fmt.Errorf("hyperparameter %s: %w", name, err)
			}
			buf.WriteString(s)
		case int:
			buf.WriteString(strconv.Itoa(x))
		default:
			raw, err := json.Marshal(x)
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes numbers without a decimal point or exponent as int
func (a *Assignment) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	out := make(Assignment, len(raw))
	for k, v := range raw {
		cv, err := Canonical(v)
		if err != nil {
			return fmt.Errorf("hyperparameter %s: %w", k, err)
		}
		out[k] = cv
	}
	*a = out
	return nil
}

// MarshalYAML encodes the assignment as a mapping with explicitly typed scalars
func (a Assignment) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range a.Names() {
		v, err := Canonical(a[name])
		if err != nil {
			return nil, fmt.Errorf("hyperparameter %s: %w", name, err)
		}

		value := &yaml.Node{Kind: yaml.ScalarNode}
		switch x := v.(type) {
		case float64:
			s, err := formatFloat(x)
			if err != nil {
				return nil, fmt.Errorf("hyperparameter %s: %w", name, err)
			}
			value.Tag, value.Value = "!!float", s
		case int:
			value.Tag, value.Value = "!!int", strconv.Itoa(x)
		case bool:
			value.Tag, value.Value = "!!bool", strconv.FormatBool(x)
		case string:
			value.Tag, value.Value, value.Style = "!!str", x, yaml.DoubleQuotedStyle
		}

		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			value,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes scalars according to their resolved YAML tag
func (a *Assignment) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null" {
		*a = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("hyperparameters must be a mapping, got %s", value.ShortTag())
	}

	out := make(Assignment, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		v := value.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("hyperparameter %s: expected a scalar value", name)
		}

		switch v.ShortTag() {
		case "!!int":
			var x int
			if err := v.Decode(&x); err != nil {
				return fmt.Errorf("hyperparameter %s: %w", name, err)
			}
			out[name] = x
		case "!!float":
			var x float64
			if err := v.Decode(&x); err != nil {
				return fmt.Errorf("hyperparameter %s: %w", name, err)
			}
			out[name] = x
		case "!!bool":
			var x bool
			if err := v.Decode(&x); err != nil {
				return fmt.Errorf("hyperparameter %s: %w", name, err)
			}
			out[name] = x
		case "!!str":
			out[name] = v.Value
		default:
			return fmt.Errorf("hyperparameter %s: unsupported value tag %s", name, v.ShortTag())
		}
	}
	*a = out
	return nil
}
