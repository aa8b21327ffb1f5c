package flow

import "fmt"

// lookupParam applies the resolution priority shared by all runnables:
// runtime override first, then the state's auxiliary field.
func lookupParam(name string, overrides Params, state State) (any, bool) {
	if overrides != nil {
		if v, ok := overrides[name]; ok {
			return v, true
		}
	}
	return state.Field(name)
}

// ResolveFloat resolves a float parameter by priority: runtime override,
// state field, constructor default (nil means no default). Integer
// values are widened; anything else fails. An unresolved parameter
// yields a MissingParameterError.
func ResolveFloat(name string, overrides Params, state State, def *float64) (float64, error) {
	if v, ok := lookupParam(name, overrides, state); ok {
		f, err := asFloat(v)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", name, err)
		}
		return f, nil
	}
	if def != nil {
		return *def, nil
	}
	return 0, &MissingParameterError{Name: name}
}

// ResolveInt resolves an integer parameter with the same priority order
// as ResolveFloat. Float values with no fractional part are narrowed;
// this tolerates states that round-tripped through JSON persistence.
func ResolveInt(name string, overrides Params, state State, def *int) (int, error) {
	if v, ok := lookupParam(name, overrides, state); ok {
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n == float64(int(n)) {
				return int(n), nil
			}
			return 0, fmt.Errorf("parameter %s: value %v is not an integer", name, n)
		default:
			return 0, fmt.Errorf("parameter %s: value %v (%T) is not an integer", name, v, v)
		}
	}
	if def != nil {
		return *def, nil
	}
	return 0, &MissingParameterError{Name: name}
}

// ResolveFloats resolves an ordered numeric sequence parameter, such as
// "beta_schedule". A nil def means no default.
func ResolveFloats(name string, overrides Params, state State, def []float64) ([]float64, error) {
	if v, ok := lookupParam(name, overrides, state); ok {
		switch seq := v.(type) {
		case []float64:
			return seq, nil
		case []any:
			out := make([]float64, len(seq))
			for i, e := range seq {
				f, err := asFloat(e)
				if err != nil {
					return nil, fmt.Errorf("parameter %s[%d]: %w", name, i, err)
				}
				out[i] = f
			}
			return out, nil
		default:
			return nil, fmt.Errorf("parameter %s: value %v (%T) is not a numeric sequence", name, v, v)
		}
	}
	if def != nil {
		return def, nil
	}
	return nil, &MissingParameterError{Name: name}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", v, v)
	}
}
