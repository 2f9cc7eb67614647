package deploy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// =============================================================================
// Opaque Payloads
// =============================================================================

// OpaquePayload carries caller-defined initializer arguments in whatever
// serialization the caller chose. The generic codec never inspects Data; the
// payload travels on its own versioned channel.
type OpaquePayload struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

func (p *OpaquePayload) clone() *OpaquePayload {
	if p == nil {
		return nil
	}
	cp := OpaquePayload{Format: p.Format, Data: append([]byte(nil), p.Data...)}
	return &cp
}

// =============================================================================
// Options Capture
// =============================================================================

// Options is the captured result of a single definition or override call:
// which options the caller explicitly supplied, and their normalized values.
// Map absence is the omission marker; a key present with a nil value is an
// explicit null, which counts as supplied. An equality check against defaults
// can never recover this distinction, so it is recorded here and preserved
// through layering and the wire codec.
type Options struct {
	values    map[string]any
	overrides map[string]bool
	opaque    *OpaquePayload
}

// ParseOptions captures a raw option map. Unknown names, explicit nulls on
// non-nullable options, and malformed values are rejected; nothing is dropped
// silently. Captured values are normalized to canonical JSON-compatible form
// so they never alias caller memory and survive wire round trips exactly.
func ParseOptions(raw map[string]any) (Options, error) {
	opts := Options{
		values:    make(map[string]any, len(raw)),
		overrides: make(map[string]bool, len(raw)),
	}

	// Deterministic capture order so the first reported error is stable.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc, known := Lookup(name)
		if !known {
			return Options{}, NewOptionError(name, "not a recognized deployment option", ErrUnknownOption)
		}

		v := raw[name]
		if desc.Kind == KindOpaque {
			if v == nil {
				return Options{}, NewOptionError(name, "explicit null is not allowed", ErrNullOption)
			}
			p, err := parseOpaqueValue(name, v)
			if err != nil {
				return Options{}, err
			}
			opts.opaque = p
			opts.overrides[name] = true
			continue
		}

		norm, err := normalizeOptionValue(desc, v)
		if err != nil {
			return Options{}, err
		}
		if norm == nil && !desc.Nullable {
			return Options{}, NewOptionError(name, "explicit null is not allowed", ErrNullOption)
		}
		opts.values[name] = norm
		opts.overrides[name] = true
	}

	return opts, nil
}

// Overrides returns the explicitly supplied option names, sorted.
func (o Options) Overrides() []string {
	names := make([]string, 0, len(o.overrides))
	for name := range o.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the caller explicitly supplied the option, even as null.
func (o Options) Has(name string) bool {
	return o.overrides[name]
}

// Value returns the captured value for an explicitly supplied option. For
// init_kwargs the value is a *OpaquePayload.
func (o Options) Value(name string) (any, bool) {
	if !o.overrides[name] {
		return nil, false
	}
	if name == OptInitKwargs {
		return o.opaque.clone(), true
	}
	return deepCopyValue(o.values[name]), true
}

// Len returns the number of explicitly supplied options.
func (o Options) Len() int {
	return len(o.overrides)
}

// =============================================================================
// Value Normalization
// =============================================================================

// placementStrategies enumerates the legal placement_group_strategy values.
var placementStrategies = map[string]bool{
	"PACK":          true,
	"SPREAD":        true,
	"STRICT_PACK":   true,
	"STRICT_SPREAD": true,
}

// normalizeOptionValue coerces a supplied value into its canonical in-memory
// form for the option's kind, applying per-option range checks. A nil result
// with a nil error is an explicit null; the caller enforces nullability.
func normalizeOptionValue(desc OptionDescriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch desc.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, NewOptionError(desc.Name, "must be a string", ErrOptionValue)
		}
		if desc.Name == OptPlacementGroupStrategy && !placementStrategies[s] {
			return nil, NewOptionError(desc.Name, "must be one of PACK, SPREAD, STRICT_PACK, STRICT_SPREAD", ErrOptionValue)
		}
		return s, nil

	case KindInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, NewOptionError(desc.Name, "must be an integer", ErrOptionValue)
		}
		switch desc.Name {
		case OptNumReplicas:
			if n < 1 {
				return nil, NewOptionError(desc.Name, "must be at least 1", ErrOptionValue)
			}
		case OptMaxOngoingRequests:
			if n < 1 {
				return nil, NewOptionError(desc.Name, "must be at least 1", ErrOptionValue)
			}
		}
		return n, nil

	case KindFloat:
		f, ok := toFloat64(v)
		if !ok {
			return nil, NewOptionError(desc.Name, "must be a number", ErrOptionValue)
		}
		switch desc.Name {
		case OptGracefulShutdownWait, OptGracefulShutdownTimeout:
			if f < 0 {
				return nil, NewOptionError(desc.Name, "cannot be negative", ErrOptionValue)
			}
		case OptHealthCheckPeriod, OptHealthCheckTimeout:
			if f <= 0 {
				return nil, NewOptionError(desc.Name, "must be positive", ErrOptionValue)
			}
		}
		return f, nil

	case KindObject:
		norm, err := normalizeJSONValue(v)
		if err != nil {
			return nil, NewOptionError(desc.Name, "is not JSON-representable", ErrOptionValue)
		}
		if norm == nil {
			return nil, nil
		}
		m, ok := norm.(map[string]any)
		if !ok {
			return nil, NewOptionError(desc.Name, "must be an object", ErrOptionValue)
		}
		return m, nil

	case KindJSON:
		norm, err := normalizeJSONValue(v)
		if err != nil {
			return nil, NewOptionError(desc.Name, "is not JSON-representable", ErrOptionValue)
		}
		return norm, nil

	case KindAutoscaling:
		cfg, err := parseAutoscalingValue(v)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, nil
		}
		return cfg.canonicalMap()

	case KindBundles:
		return normalizeBundles(desc.Name, v)

	default:
		return nil, NewOptionError(desc.Name, "unsupported option kind", ErrOptionValue)
	}
}

// normalizeBundles converts any list-of-resource-maps shape into
// []ResourceBundle, rejecting negative quantities. Positivity of at least one
// quantity per bundle is a cross-field rule checked at config build time.
func normalizeBundles(name string, v any) (any, error) {
	norm, err := normalizeJSONValue(v)
	if err != nil {
		return nil, NewOptionError(name, "is not JSON-representable", ErrOptionValue)
	}
	if norm == nil {
		return nil, nil
	}
	list, ok := norm.([]any)
	if !ok {
		return nil, NewOptionError(name, "must be a list of resource maps", ErrOptionValue)
	}

	out := make([]ResourceBundle, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, NewOptionError(name, fmt.Sprintf("bundle %d must be a resource map", i), ErrOptionValue)
		}
		b := make(ResourceBundle, len(m))
		for res, q := range m {
			f, ok := q.(float64)
			if !ok {
				return nil, NewOptionError(name, fmt.Sprintf("bundle %d resource %q must be a number", i, res), ErrOptionValue)
			}
			if f < 0 {
				return nil, NewOptionError(name, fmt.Sprintf("bundle %d resource %q cannot be negative", i, res), ErrOptionValue)
			}
			b[res] = f
		}
		out[i] = b
	}
	return out, nil
}

// parseOpaqueValue normalizes the init_kwargs payload. Accepts OpaquePayload,
// *OpaquePayload, or a {"format": ..., "data": ...} object with base64 data.
func parseOpaqueValue(name string, v any) (*OpaquePayload, error) {
	switch t := v.(type) {
	case OpaquePayload:
		p := t
		return validateOpaque(name, p.clone())
	case *OpaquePayload:
		if t == nil {
			return nil, NewOptionError(name, "explicit null is not allowed", ErrNullOption)
		}
		return validateOpaque(name, t.clone())
	}

	norm, err := normalizeJSONValue(v)
	if err != nil {
		return nil, NewOptionError(name, "is not JSON-representable", ErrOptionValue)
	}
	m, ok := norm.(map[string]any)
	if !ok {
		return nil, NewOptionError(name, "must be a payload object with format and data", ErrOptionValue)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, NewOptionError(name, "is not JSON-representable", ErrOptionValue)
	}
	var p OpaquePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, NewOptionError(name, "must carry base64 data", ErrOptionValue)
	}
	return validateOpaque(name, &p)
}

func validateOpaque(name string, p *OpaquePayload) (*OpaquePayload, error) {
	if p.Format == "" {
		return nil, NewOptionError(name, "payload format cannot be empty", ErrOptionValue)
	}
	return p, nil
}

// =============================================================================
// Scalar Coercion
// =============================================================================

// toInt64 coerces common integer representations, including integral floats
// from JSON decoding, into int64.
func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return toInt64(float64(t))
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// toFloat64 coerces numeric representations into float64.
func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// normalizeJSONValue canonicalizes a value through a JSON round trip, so
// captured composites are plain JSON trees regardless of the caller's concrete
// types and never alias caller memory.
func normalizeJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
