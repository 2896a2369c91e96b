package hyperparam

import (
	"fmt"
	"math"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// Values is a fully resolved assignment: every declared parameter is present,
// either as given or as its default, and typed according to its domain.
type Values struct {
	values map[string]any
}

// Resolve validates an assignment against the declared ranges and fills in
// defaults for missing parameters
func Resolve(ranges []models.SweepableParam, a models.Assignment) (Values, error) {
	declared := make(map[string]models.SweepableParam, len(ranges))
	for _, p := range ranges {
		declared[p.Name] = p
	}
	for _, name := range a.Names() {
		if _, ok := declared[name]; !ok {
			return Values{}, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
	}

	out := Values{values: make(map[string]any, len(ranges))}
	for _, p := range ranges {
		raw, ok := a[p.Name]
		if !ok {
			if p.Default == nil {
				return Values{}, fmt.Errorf("%w: %s has no default", ErrMissingParameter, p.Name)
			}
			raw = p.Default
		}

		v, err := coerceValue(p, raw)
		if err != nil {
			return Values{}, err
		}
		out.values[p.Name] = v
	}
	return out, nil
}

// Validate reports whether the assignment resolves against the ranges
func Validate(ranges []models.SweepableParam, a models.Assignment) error {
	_, err := Resolve(ranges, a)
	return err
}

// Coerce converts decoded values (json.Number, int64, float32, integral floats
// for long parameters, ints for float parameters) to the canonical type of
// their declared domain. Defaults are not filled in.
func Coerce(ranges []models.SweepableParam, raw map[string]any) (models.Assignment, error) {
	declared := make(map[string]models.SweepableParam, len(ranges))
	for _, p := range ranges {
		declared[p.Name] = p
	}

	out := make(models.Assignment, len(raw))
	for name, value := range raw {
		p, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
		v, err := coerceValue(p, value)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func coerceValue(p models.SweepableParam, raw any) (any, error) {
	v, err := models.Canonical(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, p.Name, err)
	}
	if v == models.Auto {
		return v, nil
	}

	switch p.Kind {
	case models.ParamKindFloat:
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a float, got %T", ErrInvalidValue, p.Name, v)
		}
		if f < p.Min || f > p.Max {
			return nil, fmt.Errorf("%w: %s = %v outside [%v, %v]", ErrInvalidValue, p.Name, f, p.Min, p.Max)
		}
		return f, nil

	case models.ParamKindLong:
		i, ok := asInt(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidValue, p.Name, v)
		}
		if float64(i) < p.Min || float64(i) > p.Max {
			return nil, fmt.Errorf("%w: %s = %d outside [%v, %v]", ErrInvalidValue, p.Name, i, p.Min, p.Max)
		}
		return i, nil

	case models.ParamKindDiscrete:
		return coerceDiscrete(p, v)
	}
	return nil, fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidValue, p.Name, p.Kind)
}

// coerceDiscrete only checks the value type against the declared values.
// Membership is not enforced so callers can pin values outside the sweep grid.
func coerceDiscrete(p models.SweepableParam, v any) (any, error) {
	var sample any
	for _, candidate := range p.Values {
		if c, err := models.Canonical(candidate); err == nil && c != models.Auto {
			sample = c
			break
		}
	}
	if sample == nil {
		return nil, fmt.Errorf("%w: %s only accepts %q", ErrInvalidValue, p.Name, models.Auto)
	}

	switch sample.(type) {
	case float64:
		if f, ok := asFloat(v); ok {
			return f, nil
		}
	case int:
		if i, ok := asInt(v); ok {
			return i, nil
		}
	case bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case string:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s expects %T, got %T", ErrInvalidValue, p.Name, sample, v)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < math.MaxInt32 {
			return int(x), true
		}
	}
	return 0, false
}

// IsAuto reports whether the parameter is left to the algorithm
func (v Values) IsAuto(name string) bool {
	return v.values[name] == models.Auto
}

// Float returns a float parameter, or 0 when it is unset or Auto
func (v Values) Float(name string) float64 {
	f, _ := v.values[name].(float64)
	return f
}

// FloatOr returns a float parameter, or fallback when it is Auto
func (v Values) FloatOr(name string, fallback float64) float64 {
	if v.IsAuto(name) {
		return fallback
	}
	return v.Float(name)
}

// Int returns an integer parameter, or 0 when it is unset or Auto
func (v Values) Int(name string) int {
	i, _ := v.values[name].(int)
	return i
}

// IntOr returns an integer parameter, or fallback when it is Auto
func (v Values) IntOr(name string, fallback int) int {
	if v.IsAuto(name) {
		return fallback
	}
	return v.Int(name)
}

// Bool returns a boolean parameter, or false when it is unset or Auto
func (v Values) Bool(name string) bool {
	b, _ := v.values[name].(bool)
	return b
}

// BoolOr returns a boolean parameter, or fallback when it is Auto
func (v Values) BoolOr(name string, fallback bool) bool {
	if v.IsAuto(name) {
		return fallback
	}
	return v.Bool(name)
}

// Assignment returns the resolved values as an assignment
func (v Values) Assignment() models.Assignment {
	return models.Assignment(v.values).Clone()
}
