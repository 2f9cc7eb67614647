package deploy

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Option Setters
// =============================================================================

// Option contributes one entry to the raw option map captured by Define and
// Definition.Options. Setters with a Null suffix supply an explicit null,
// which is recorded as an override exactly like a concrete value.
type Option func(map[string]any)

// WithOptions merges a raw option map wholesale. Keys present with nil values
// are explicit nulls; absent keys stay omitted.
func WithOptions(raw map[string]any) Option {
	return func(m map[string]any) {
		for k, v := range raw {
			m[k] = v
		}
	}
}

// WithOption supplies a single option by name.
func WithOption(name string, value any) Option {
	return func(m map[string]any) { m[name] = value }
}

func WithName(name string) Option {
	return func(m map[string]any) { m[OptName] = name }
}

func WithVersion(version string) Option {
	return func(m map[string]any) { m[OptVersion] = version }
}

func WithNumReplicas(n int) Option {
	return func(m map[string]any) { m[OptNumReplicas] = n }
}

// WithNumReplicasNull unsets the fixed replica count; an autoscaling policy
// must then drive provisioning.
func WithNumReplicasNull() Option {
	return func(m map[string]any) { m[OptNumReplicas] = nil }
}

func WithRayActorOptions(opts map[string]any) Option {
	return func(m map[string]any) { m[OptRayActorOptions] = opts }
}

func WithUserConfig(v any) Option {
	return func(m map[string]any) { m[OptUserConfig] = v }
}

func WithUserConfigNull() Option {
	return func(m map[string]any) { m[OptUserConfig] = nil }
}

func WithMaxOngoingRequests(n int) Option {
	return func(m map[string]any) { m[OptMaxOngoingRequests] = n }
}

func WithAutoscaling(cfg AutoscalingConfig) Option {
	return func(m map[string]any) { m[OptAutoscalingConfig] = cfg }
}

func WithAutoscalingNull() Option {
	return func(m map[string]any) { m[OptAutoscalingConfig] = nil }
}

func WithGracefulShutdownWaitLoopS(seconds float64) Option {
	return func(m map[string]any) { m[OptGracefulShutdownWait] = seconds }
}

func WithGracefulShutdownTimeoutS(seconds float64) Option {
	return func(m map[string]any) { m[OptGracefulShutdownTimeout] = seconds }
}

func WithHealthCheckPeriodS(seconds float64) Option {
	return func(m map[string]any) { m[OptHealthCheckPeriod] = seconds }
}

func WithHealthCheckTimeoutS(seconds float64) Option {
	return func(m map[string]any) { m[OptHealthCheckTimeout] = seconds }
}

func WithPlacementGroupBundles(bundles []ResourceBundle) Option {
	return func(m map[string]any) { m[OptPlacementGroupBundles] = bundles }
}

func WithPlacementGroupStrategy(strategy string) Option {
	return func(m map[string]any) { m[OptPlacementGroupStrategy] = strategy }
}

func WithPlacementGroupStrategyNull() Option {
	return func(m map[string]any) { m[OptPlacementGroupStrategy] = nil }
}

// WithInitPayload attaches caller-serialized initializer arguments. The
// payload is excluded from the generic codec and travels on the opaque
// channel.
func WithInitPayload(format string, data []byte) Option {
	return func(m map[string]any) {
		m[OptInitKwargs] = &OpaquePayload{Format: format, Data: data}
	}
}

func collectOptions(opts []Option) map[string]any {
	raw := make(map[string]any, len(opts))
	for _, opt := range opts {
		opt(raw)
	}
	return raw
}

// =============================================================================
// Deployment Definition
// =============================================================================

// Definition is a named, versionable deployment definition: an identity plus
// its resolved Config and, when supplied, the opaque initializer payload.
type Definition struct {
	ID        string
	BaseID    string // definition this one was layered from, "" for roots
	CreatedAt time.Time
	Config    *Config

	initPayload *OpaquePayload
}

// Define captures the supplied options, validates the resulting
// configuration, and returns a new root definition. Errors surface here,
// synchronously, never at deploy time.
func Define(opts ...Option) (*Definition, error) {
	captured, err := ParseOptions(collectOptions(opts))
	if err != nil {
		return nil, err
	}
	cfg, err := BuildConfig(nil, captured)
	if err != nil {
		return nil, err
	}
	return &Definition{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Config:      cfg,
		initPayload: captured.opaque.clone(),
	}, nil
}

// Options layers further overrides onto this definition's configuration and
// returns a new derived definition with a fresh identity. The receiver is
// never mutated and stays valid even when the layering fails.
func (d *Definition) Options(opts ...Option) (*Definition, error) {
	captured, err := ParseOptions(collectOptions(opts))
	if err != nil {
		return nil, err
	}
	cfg, err := BuildConfig(d.Config, captured)
	if err != nil {
		return nil, err
	}
	payload := d.initPayload
	if captured.Has(OptInitKwargs) {
		payload = captured.opaque
	}
	return &Definition{
		ID:          uuid.New().String(),
		BaseID:      d.ID,
		CreatedAt:   time.Now().UTC(),
		Config:      cfg,
		initPayload: payload.clone(),
	}, nil
}

// InitPayload returns a copy of the opaque initializer payload, or nil when
// none was supplied.
func (d *Definition) InitPayload() *OpaquePayload {
	return d.initPayload.clone()
}

// RestoreDefinition reassembles a definition from stored parts. Used by the
// persistence layer; it does not mint a new identity.
func RestoreDefinition(id, baseID string, createdAt time.Time, cfg *Config, payload *OpaquePayload) *Definition {
	return &Definition{
		ID:          id,
		BaseID:      baseID,
		CreatedAt:   createdAt,
		Config:      cfg,
		initPayload: payload.clone(),
	}
}
