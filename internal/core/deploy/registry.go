package deploy

// =============================================================================
// Option Names
// =============================================================================

const (
	OptName                    = "name"
	OptVersion                 = "version"
	OptNumReplicas             = "num_replicas"
	OptRayActorOptions         = "ray_actor_options"
	OptUserConfig              = "user_config"
	OptMaxOngoingRequests      = "max_ongoing_requests"
	OptAutoscalingConfig       = "autoscaling_config"
	OptGracefulShutdownWait    = "graceful_shutdown_wait_loop_s"
	OptGracefulShutdownTimeout = "graceful_shutdown_timeout_s"
	OptHealthCheckPeriod       = "health_check_period_s"
	OptHealthCheckTimeout      = "health_check_timeout_s"
	OptPlacementGroupBundles   = "placement_group_bundles"
	OptPlacementGroupStrategy  = "placement_group_strategy"
	OptInitKwargs              = "init_kwargs"
)

// =============================================================================
// Option Defaults
// =============================================================================

const (
	// DefaultNumReplicas is the replica count when neither num_replicas nor
	// an autoscaling policy is supplied.
	DefaultNumReplicas = 1
	// DefaultMaxOngoingRequests caps in-flight requests per replica.
	DefaultMaxOngoingRequests = 100
	// DefaultGracefulShutdownWaitLoopS is how long a draining replica sleeps
	// between checks for remaining in-flight requests.
	DefaultGracefulShutdownWaitLoopS = 2.0
	// DefaultGracefulShutdownTimeoutS bounds the total graceful-shutdown wait.
	DefaultGracefulShutdownTimeoutS = 20.0
	// DefaultHealthCheckPeriodS is the interval between replica health checks.
	DefaultHealthCheckPeriodS = 10.0
	// DefaultHealthCheckTimeoutS bounds a single health-check call.
	DefaultHealthCheckTimeoutS = 30.0
)

// =============================================================================
// Option Kinds
// =============================================================================

// OptionKind classifies an option's value shape. It drives type checking at
// capture time and tag selection on the wire.
type OptionKind int

const (
	KindString OptionKind = iota
	KindInt
	KindFloat
	KindObject      // JSON object
	KindJSON        // arbitrary JSON value
	KindAutoscaling // structured autoscaling policy
	KindBundles     // list of resource-quantity maps
	KindOpaque      // caller-defined payload, independently serialized
)

func (k OptionKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindObject:
		return "object"
	case KindJSON:
		return "json"
	case KindAutoscaling:
		return "autoscaling"
	case KindBundles:
		return "bundles"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// =============================================================================
// Option Registry
// =============================================================================

// OptionDescriptor describes a single recognized deployment option.
type OptionDescriptor struct {
	Name string
	Kind OptionKind
	// Default is the resolved value when the caller omits the option. A nil
	// default means the resolved value is null.
	Default any
	// Nullable reports whether a caller may explicitly supply null. This is
	// independent of the default: an option may default to null while still
	// rejecting explicit nulls.
	Nullable bool
	// IndependentSerialization marks options excluded from the generic wire
	// codec; their payloads travel on the separately versioned opaque channel.
	IndependentSerialization bool
}

// registry is the authoritative table of recognized options, defined once and
// read-only for the lifetime of the process. Slice order is the stable wire
// order.
var registry = []OptionDescriptor{
	{Name: OptName, Kind: KindString, Default: nil},
	{Name: OptVersion, Kind: KindString, Default: nil},
	{Name: OptNumReplicas, Kind: KindInt, Default: int64(DefaultNumReplicas), Nullable: true},
	{Name: OptRayActorOptions, Kind: KindObject, Default: map[string]any{}},
	{Name: OptUserConfig, Kind: KindJSON, Default: nil, Nullable: true},
	{Name: OptMaxOngoingRequests, Kind: KindInt, Default: int64(DefaultMaxOngoingRequests)},
	{Name: OptAutoscalingConfig, Kind: KindAutoscaling, Default: nil, Nullable: true},
	{Name: OptGracefulShutdownWait, Kind: KindFloat, Default: float64(DefaultGracefulShutdownWaitLoopS)},
	{Name: OptGracefulShutdownTimeout, Kind: KindFloat, Default: float64(DefaultGracefulShutdownTimeoutS)},
	{Name: OptHealthCheckPeriod, Kind: KindFloat, Default: float64(DefaultHealthCheckPeriodS)},
	{Name: OptHealthCheckTimeout, Kind: KindFloat, Default: float64(DefaultHealthCheckTimeoutS)},
	{Name: OptPlacementGroupBundles, Kind: KindBundles, Default: []ResourceBundle{}},
	{Name: OptPlacementGroupStrategy, Kind: KindString, Default: nil, Nullable: true},
	{Name: OptInitKwargs, Kind: KindOpaque, Default: nil, IndependentSerialization: true},
}

var registryIndex = func() map[string]int {
	idx := make(map[string]int, len(registry))
	for i, d := range registry {
		idx[d.Name] = i
	}
	return idx
}()

// Lookup returns the descriptor for an option name.
func Lookup(name string) (OptionDescriptor, bool) {
	i, ok := registryIndex[name]
	if !ok {
		return OptionDescriptor{}, false
	}
	return registry[i], true
}

// Descriptors returns every recognized option descriptor in registry order.
func Descriptors() []OptionDescriptor {
	out := make([]OptionDescriptor, len(registry))
	copy(out, registry)
	return out
}

// OptionNames returns every recognized option name in registry order.
func OptionNames() []string {
	names := make([]string, len(registry))
	for i, d := range registry {
		names[i] = d.Name
	}
	return names
}

// Defaults returns a fresh copy of the resolved default value for every
// recognized option. Callers may mutate the result freely.
func Defaults() map[string]any {
	out := make(map[string]any, len(registry))
	for _, d := range registry {
		out[d.Name] = deepCopyValue(d.Default)
	}
	return out
}

// =============================================================================
// Value Copying
// =============================================================================

// ResourceBundle maps a resource name (e.g. "CPU", "GPU") to a requested
// quantity. Bundles are jointly satisfiable placement requirements.
type ResourceBundle map[string]float64

// deepCopyValue copies a canonical option value so callers can never alias
// internal state. Canonical values are JSON trees (nil, bool, string, float64,
// int64, map[string]any, []any) plus []ResourceBundle.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []ResourceBundle:
		out := make([]ResourceBundle, len(t))
		for i, b := range t {
			nb := make(ResourceBundle, len(b))
			for k, q := range b {
				nb[k] = q
			}
			out[i] = nb
		}
		return out
	default:
		// Scalars (string, int64, float64, bool) are immutable.
		return v
	}
}
