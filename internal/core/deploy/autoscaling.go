package deploy

import "strconv"

// =============================================================================
// Autoscaling Defaults
// =============================================================================

const (
	// DefaultAutoscalingMinReplicas is the lower replica bound when the policy
	// omits min_replicas.
	DefaultAutoscalingMinReplicas = 1
	// DefaultAutoscalingMaxReplicas is the upper replica bound when the policy
	// omits max_replicas.
	DefaultAutoscalingMaxReplicas = 1
	// DefaultTargetOngoingRequests is the per-replica load the autoscaler aims
	// to maintain.
	DefaultTargetOngoingRequests = 2.0
	// DefaultMetricsIntervalS is how often replicas report load metrics.
	DefaultMetricsIntervalS = 10.0
	// DefaultLookBackPeriodS is the window over which load is averaged.
	DefaultLookBackPeriodS = 30.0
	// DefaultUpscaleDelayS is the delay before acting on an upscale decision.
	DefaultUpscaleDelayS = 30.0
	// DefaultDownscaleDelayS is the delay before acting on a downscale decision.
	DefaultDownscaleDelayS = 600.0
)

// =============================================================================
// Autoscaling Policy
// =============================================================================

// AutoscalingConfig is the structured policy carried by the autoscaling_config
// option. servekit validates and transports the policy; it never executes it.
type AutoscalingConfig struct {
	MinReplicas           int64   `json:"min_replicas"`
	InitialReplicas       *int64  `json:"initial_replicas,omitempty"`
	MaxReplicas           int64   `json:"max_replicas"`
	TargetOngoingRequests float64 `json:"target_ongoing_requests"`
	MetricsIntervalS      float64 `json:"metrics_interval_s"`
	LookBackPeriodS       float64 `json:"look_back_period_s"`
	UpscaleDelayS         float64 `json:"upscale_delay_s"`
	DownscaleDelayS       float64 `json:"downscale_delay_s"`
}

// NewAutoscalingConfig returns a policy populated with every default. Callers
// adjust fields from there before passing it to WithAutoscaling.
func NewAutoscalingConfig() AutoscalingConfig {
	return AutoscalingConfig{
		MinReplicas:           DefaultAutoscalingMinReplicas,
		MaxReplicas:           DefaultAutoscalingMaxReplicas,
		TargetOngoingRequests: DefaultTargetOngoingRequests,
		MetricsIntervalS:      DefaultMetricsIntervalS,
		LookBackPeriodS:       DefaultLookBackPeriodS,
		UpscaleDelayS:         DefaultUpscaleDelayS,
		DownscaleDelayS:       DefaultDownscaleDelayS,
	}
}

// withDefaults fills zero-valued fields that have no legal zero meaning. A
// struct literal cannot distinguish "absent" from "zero"; callers that need a
// literal zero delay should supply the policy as a map, where absence is
// explicit.
func (c AutoscalingConfig) withDefaults() AutoscalingConfig {
	if c.MaxReplicas == 0 {
		c.MaxReplicas = DefaultAutoscalingMaxReplicas
	}
	if c.TargetOngoingRequests == 0 {
		c.TargetOngoingRequests = DefaultTargetOngoingRequests
	}
	if c.MetricsIntervalS == 0 {
		c.MetricsIntervalS = DefaultMetricsIntervalS
	}
	if c.LookBackPeriodS == 0 {
		c.LookBackPeriodS = DefaultLookBackPeriodS
	}
	if c.UpscaleDelayS == 0 {
		c.UpscaleDelayS = DefaultUpscaleDelayS
	}
	if c.DownscaleDelayS == 0 {
		c.DownscaleDelayS = DefaultDownscaleDelayS
	}
	return c
}

// validate checks the policy's internal bounds.
func (c *AutoscalingConfig) validate() error {
	if c.MinReplicas < 0 {
		return NewOptionError(OptAutoscalingConfig, "min_replicas cannot be negative", ErrOptionValue)
	}
	if c.MaxReplicas <= 0 {
		return NewOptionError(OptAutoscalingConfig, "max_replicas must be positive", ErrOptionValue)
	}
	if c.MaxReplicas < c.MinReplicas {
		return NewOptionError(OptAutoscalingConfig, "max_replicas cannot be less than min_replicas", ErrOptionValue)
	}
	if c.InitialReplicas != nil {
		if *c.InitialReplicas < c.MinReplicas || *c.InitialReplicas > c.MaxReplicas {
			return NewOptionError(OptAutoscalingConfig, "initial_replicas must lie between min_replicas and max_replicas", ErrOptionValue)
		}
	}
	if c.TargetOngoingRequests <= 0 {
		return NewOptionError(OptAutoscalingConfig, "target_ongoing_requests must be positive", ErrOptionValue)
	}
	if c.MetricsIntervalS <= 0 {
		return NewOptionError(OptAutoscalingConfig, "metrics_interval_s must be positive", ErrOptionValue)
	}
	if c.LookBackPeriodS <= 0 {
		return NewOptionError(OptAutoscalingConfig, "look_back_period_s must be positive", ErrOptionValue)
	}
	if c.UpscaleDelayS < 0 {
		return NewOptionError(OptAutoscalingConfig, "upscale_delay_s cannot be negative", ErrOptionValue)
	}
	if c.DownscaleDelayS < 0 {
		return NewOptionError(OptAutoscalingConfig, "downscale_delay_s cannot be negative", ErrOptionValue)
	}
	return nil
}

// =============================================================================
// Policy Parsing
// =============================================================================

// autoscalingFields enumerates the recognized policy keys for map input.
var autoscalingFields = map[string]bool{
	"min_replicas":            true,
	"initial_replicas":        true,
	"max_replicas":            true,
	"target_ongoing_requests": true,
	"metrics_interval_s":      true,
	"look_back_period_s":      true,
	"upscale_delay_s":         true,
	"downscale_delay_s":       true,
}

// parseAutoscalingValue normalizes the autoscaling_config option value into a
// validated policy. Accepts AutoscalingConfig, *AutoscalingConfig, or a JSON
// object; absent map keys receive defaults.
func parseAutoscalingValue(v any) (*AutoscalingConfig, error) {
	switch t := v.(type) {
	case AutoscalingConfig:
		cfg := t.withDefaults()
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	case *AutoscalingConfig:
		if t == nil {
			return nil, nil
		}
		cfg := t.withDefaults()
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	norm, err := normalizeJSONValue(v)
	if err != nil {
		return nil, NewOptionError(OptAutoscalingConfig, "policy is not JSON-representable", ErrOptionValue)
	}
	m, ok := norm.(map[string]any)
	if !ok {
		return nil, NewOptionError(OptAutoscalingConfig, "policy must be an object", ErrOptionValue)
	}
	return parseAutoscalingMap(m)
}

// parseAutoscalingMap builds a policy from a JSON object, rejecting unknown
// keys and non-integral replica counts.
func parseAutoscalingMap(m map[string]any) (*AutoscalingConfig, error) {
	for k := range m {
		if !autoscalingFields[k] {
			return nil, NewOptionError(OptAutoscalingConfig, "unknown policy field "+strconv.Quote(k), ErrOptionValue)
		}
	}

	cfg := NewAutoscalingConfig()

	readInt := func(key string, dst *int64) error {
		raw, present := m[key]
		if !present {
			return nil
		}
		n, ok := toInt64(raw)
		if !ok {
			return NewOptionError(OptAutoscalingConfig, key+" must be an integer", ErrOptionValue)
		}
		*dst = n
		return nil
	}
	readFloat := func(key string, dst *float64) error {
		raw, present := m[key]
		if !present {
			return nil
		}
		f, ok := toFloat64(raw)
		if !ok {
			return NewOptionError(OptAutoscalingConfig, key+" must be a number", ErrOptionValue)
		}
		*dst = f
		return nil
	}

	if err := readInt("min_replicas", &cfg.MinReplicas); err != nil {
		return nil, err
	}
	if err := readInt("max_replicas", &cfg.MaxReplicas); err != nil {
		return nil, err
	}
	if raw, present := m["initial_replicas"]; present && raw != nil {
		n, ok := toInt64(raw)
		if !ok {
			return nil, NewOptionError(OptAutoscalingConfig, "initial_replicas must be an integer", ErrOptionValue)
		}
		cfg.InitialReplicas = &n
	}
	if err := readFloat("target_ongoing_requests", &cfg.TargetOngoingRequests); err != nil {
		return nil, err
	}
	if err := readFloat("metrics_interval_s", &cfg.MetricsIntervalS); err != nil {
		return nil, err
	}
	if err := readFloat("look_back_period_s", &cfg.LookBackPeriodS); err != nil {
		return nil, err
	}
	if err := readFloat("upscale_delay_s", &cfg.UpscaleDelayS); err != nil {
		return nil, err
	}
	if err := readFloat("downscale_delay_s", &cfg.DownscaleDelayS); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// canonicalMap renders the policy as the canonical JSON tree stored in config
// values, so wire round trips compare equal byte for byte.
func (c *AutoscalingConfig) canonicalMap() (map[string]any, error) {
	norm, err := normalizeJSONValue(c)
	if err != nil {
		return nil, err
	}
	m, ok := norm.(map[string]any)
	if !ok {
		return nil, NewOptionError(OptAutoscalingConfig, "policy did not normalize to an object", ErrOptionValue)
	}
	return m, nil
}
