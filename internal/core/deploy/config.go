package deploy

import "sort"

// =============================================================================
// Deployment Config
// =============================================================================

// Config is the immutable, authoritative resolved configuration for a
// deployment definition: a value for every recognized option plus the set of
// names the caller explicitly supplied. Instances are produced only after
// validation passes and are never mutated afterward, so concurrent readers
// need no synchronization and a base config can be layered from many
// goroutines at once.
//
// The init_kwargs payload is not part of the resolved values; it rides on the
// Definition and its own wire channel. Only the fact that it was supplied is
// tracked here, through the override-set.
type Config struct {
	values    map[string]any
	overrides map[string]bool
}

// BuildConfig resolves captured options into a validated Config.
//
// With a nil base, the registry defaults are overwritten by the captured
// values. With a base, the base's resolved values are overwritten instead,
// and the override-set is the union of the base's and the capture's: an
// option explicitly pinned on the base stays explicitly pinned on every
// derivative. The base is never mutated; on validation failure no Config is
// produced and the base remains valid.
func BuildConfig(base *Config, opts Options) (*Config, error) {
	var values map[string]any
	overrides := make(map[string]bool, len(opts.overrides))

	if base == nil {
		values = Defaults()
	} else {
		values = base.valuesCopy()
		for name := range base.overrides {
			overrides[name] = true
		}
	}

	for name := range opts.overrides {
		overrides[name] = true
	}
	for name, v := range opts.values {
		values[name] = deepCopyValue(v)
	}

	if err := validateConfig(values, overrides); err != nil {
		return nil, err
	}

	return &Config{values: values, overrides: overrides}, nil
}

// RestoreConfig rebuilds a Config from already-resolved values, as produced
// by a decoder or read back from a store. Names absent from values resolve to
// registry defaults. Unknown names are rejected, never dropped, and both the
// per-value checks and the cross-field rules rerun, so tampered input cannot
// materialize an invalid Config.
func RestoreConfig(values map[string]any, overrides []string) (*Config, error) {
	resolved := Defaults()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc, known := Lookup(name)
		if !known {
			return nil, NewOptionError(name, "not a recognized deployment option", ErrUnknownOption)
		}
		v := values[name]
		if desc.Kind == KindOpaque {
			if v != nil {
				return nil, NewOptionError(name, "travels on the opaque side channel", ErrOptionValue)
			}
			continue
		}
		if v == nil {
			// Null is a legal resolved value only when the option is nullable
			// or defaults to null.
			if !desc.Nullable && desc.Default != nil {
				return nil, NewOptionError(name, "null is not a legal resolved value", ErrNullOption)
			}
			resolved[name] = nil
			continue
		}
		norm, err := normalizeOptionValue(desc, v)
		if err != nil {
			return nil, err
		}
		resolved[name] = norm
	}

	ov := make(map[string]bool, len(overrides))
	for _, name := range overrides {
		if _, known := Lookup(name); !known {
			return nil, NewOptionError(name, "not a recognized deployment option", ErrUnknownOption)
		}
		ov[name] = true
	}

	if err := validateConfig(resolved, ov); err != nil {
		return nil, err
	}
	return &Config{values: resolved, overrides: ov}, nil
}

// =============================================================================
// Accessors
// =============================================================================

// Values returns a fresh copy of the resolved value for every recognized
// option. Callers may mutate the result freely.
func (c *Config) Values() map[string]any {
	return c.valuesCopy()
}

// Overrides returns the explicitly supplied option names, sorted.
func (c *Config) Overrides() []string {
	names := make([]string, 0, len(c.overrides))
	for name := range c.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOverridden reports whether the option was explicitly supplied by a
// caller, on this config or any base it was layered from.
func (c *Config) IsOverridden(name string) bool {
	return c.overrides[name]
}

// Value returns a copy of the resolved value for a recognized option name.
func (c *Config) Value(name string) (any, bool) {
	v, ok := c.values[name]
	if !ok {
		return nil, false
	}
	return deepCopyValue(v), true
}

// Name returns the deployment name, or "" when unset.
func (c *Config) Name() string {
	s, _ := c.values[OptName].(string)
	return s
}

// Version returns the deployment version, or "" when unset.
func (c *Config) Version() string {
	s, _ := c.values[OptVersion].(string)
	return s
}

// NumReplicas returns the fixed replica count. ok is false when num_replicas
// resolved to null, meaning replica provisioning is driven by the autoscaling
// policy instead.
func (c *Config) NumReplicas() (int64, bool) {
	n, ok := c.values[OptNumReplicas].(int64)
	return n, ok
}

// MaxOngoingRequests returns the per-replica in-flight request cap.
func (c *Config) MaxOngoingRequests() int64 {
	n, _ := c.values[OptMaxOngoingRequests].(int64)
	return n
}

// AutoscalingPolicy returns the resolved autoscaling policy, or nil when
// autoscaling_config resolved to null.
func (c *Config) AutoscalingPolicy() *AutoscalingConfig {
	m, ok := c.values[OptAutoscalingConfig].(map[string]any)
	if !ok {
		return nil
	}
	cfg, err := parseAutoscalingMap(m)
	if err != nil {
		return nil
	}
	return cfg
}

// PlacementGroupBundles returns a copy of the resolved placement bundles.
func (c *Config) PlacementGroupBundles() []ResourceBundle {
	b, ok := c.values[OptPlacementGroupBundles].([]ResourceBundle)
	if !ok {
		return nil
	}
	cp, _ := deepCopyValue(b).([]ResourceBundle)
	return cp
}

// PlacementGroupStrategy returns the placement strategy. ok is false when the
// strategy resolved to null.
func (c *Config) PlacementGroupStrategy() (string, bool) {
	s, ok := c.values[OptPlacementGroupStrategy].(string)
	return s, ok
}

func (c *Config) valuesCopy() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = deepCopyValue(v)
	}
	return out
}
