package deploy

import (
	"encoding/base64"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Capture Tests
// =============================================================================

func TestParseOptions_Empty(t *testing.T) {
	opts, err := ParseOptions(nil)
	require.NoError(t, err)

	assert.Empty(t, opts.Overrides())
	assert.Equal(t, 0, opts.Len())
}

func TestParseOptions_OverridesMatchSuppliedNames(t *testing.T) {
	sample := sampleOptionValues()

	opts, err := ParseOptions(sample)
	require.NoError(t, err)

	assert.ElementsMatch(t, mapKeys(sample), opts.Overrides())
}

func TestParseOptions_EverySubsetKeepsItsOverrideSet(t *testing.T) {
	for _, subset := range randomOptionSubsets(sampleOptionValues(), 200, 7) {
		opts, err := ParseOptions(subset)
		require.NoError(t, err)
		assert.ElementsMatch(t, mapKeys(subset), opts.Overrides())
	}
}

func TestParseOptions_ExplicitNullCountsAsSupplied(t *testing.T) {
	opts, err := ParseOptions(map[string]any{OptAutoscalingConfig: nil})
	require.NoError(t, err)

	assert.True(t, opts.Has(OptAutoscalingConfig))
	v, ok := opts.Value(OptAutoscalingConfig)
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestParseOptions_OmittedIsNotSupplied(t *testing.T) {
	opts, err := ParseOptions(map[string]any{OptName: "echo"})
	require.NoError(t, err)

	assert.False(t, opts.Has(OptNumReplicas))
	_, ok := opts.Value(OptNumReplicas)
	assert.False(t, ok)
}

func TestParseOptions_UnknownOption(t *testing.T) {
	_, err := ParseOptions(map[string]any{"replica_count": 3})
	assert.ErrorIs(t, err, ErrUnknownOption)

	var optErr *OptionError
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, "replica_count", optErr.Option)
}

func TestParseOptions_NullForNonNullable(t *testing.T) {
	nonNullable := []string{
		OptName,
		OptVersion,
		OptRayActorOptions,
		OptMaxOngoingRequests,
		OptGracefulShutdownWait,
		OptPlacementGroupBundles,
		OptInitKwargs,
	}
	for _, name := range nonNullable {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOptions(map[string]any{name: nil})
			assert.ErrorIs(t, err, ErrNullOption)
		})
	}
}

// =============================================================================
// Value Normalization Tests
// =============================================================================

func TestParseOptions_NormalizesIntegers(t *testing.T) {
	opts, err := ParseOptions(map[string]any{OptNumReplicas: 3})
	require.NoError(t, err)

	v, ok := opts.Value(OptNumReplicas)
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
}

func TestParseOptions_IntegralFloatAccepted(t *testing.T) {
	// JSON decoding delivers numbers as float64.
	opts, err := ParseOptions(map[string]any{OptNumReplicas: float64(3)})
	require.NoError(t, err)

	v, _ := opts.Value(OptNumReplicas)
	assert.Equal(t, int64(3), v)
}

func TestParseOptions_FractionalReplicasRejected(t *testing.T) {
	_, err := ParseOptions(map[string]any{OptNumReplicas: 1.5})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_ZeroReplicasRejected(t *testing.T) {
	_, err := ParseOptions(map[string]any{OptNumReplicas: 0})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_NegativeShutdownWaitRejected(t *testing.T) {
	_, err := ParseOptions(map[string]any{OptGracefulShutdownWait: -1.0})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_ZeroHealthCheckPeriodRejected(t *testing.T) {
	_, err := ParseOptions(map[string]any{OptHealthCheckPeriod: 0})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_UnknownStrategyRejected(t *testing.T) {
	_, err := ParseOptions(map[string]any{OptPlacementGroupStrategy: "CLUSTERED"})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_UserConfigNormalized(t *testing.T) {
	opts, err := ParseOptions(map[string]any{OptUserConfig: map[string]int{"threshold": 5}})
	require.NoError(t, err)

	v, _ := opts.Value(OptUserConfig)
	assert.Equal(t, map[string]any{"threshold": float64(5)}, v)
}

func TestParseOptions_RayActorOptionsMustBeObject(t *testing.T) {
	_, err := ParseOptions(map[string]any{OptRayActorOptions: []string{"no"}})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_BundlesNormalized(t *testing.T) {
	opts, err := ParseOptions(map[string]any{
		OptPlacementGroupBundles: []map[string]int{{"CPU": 10}},
	})
	require.NoError(t, err)

	v, _ := opts.Value(OptPlacementGroupBundles)
	assert.Equal(t, []ResourceBundle{{"CPU": 10}}, v)
}

func TestParseOptions_NegativeBundleQuantityRejected(t *testing.T) {
	_, err := ParseOptions(map[string]any{
		OptPlacementGroupBundles: []ResourceBundle{{"CPU": -1}},
	})
	assert.ErrorIs(t, err, ErrOptionValue)
}

func TestParseOptions_ValuesDoNotAliasCallerMaps(t *testing.T) {
	actorOpts := map[string]any{"num_cpus": 2}
	opts, err := ParseOptions(map[string]any{OptRayActorOptions: actorOpts})
	require.NoError(t, err)

	actorOpts["num_cpus"] = 64

	v, _ := opts.Value(OptRayActorOptions)
	assert.Equal(t, map[string]any{"num_cpus": float64(2)}, v)
}

// =============================================================================
// Opaque Payload Capture Tests
// =============================================================================

func TestParseOptions_InitPayloadCapture(t *testing.T) {
	opts, err := ParseOptions(map[string]any{
		OptInitKwargs: &OpaquePayload{Format: "msgpack", Data: []byte{0x81, 0xa1}},
	})
	require.NoError(t, err)

	assert.True(t, opts.Has(OptInitKwargs))
	v, ok := opts.Value(OptInitKwargs)
	require.True(t, ok)
	payload, ok := v.(*OpaquePayload)
	require.True(t, ok)
	assert.Equal(t, "msgpack", payload.Format)
	assert.Equal(t, []byte{0x81, 0xa1}, payload.Data)
}

func TestParseOptions_InitPayloadFromObject(t *testing.T) {
	raw := map[string]any{
		"format": "json",
		"data":   base64.StdEncoding.EncodeToString([]byte(`{"seed":42}`)),
	}

	opts, err := ParseOptions(map[string]any{OptInitKwargs: raw})
	require.NoError(t, err)

	v, _ := opts.Value(OptInitKwargs)
	payload := v.(*OpaquePayload)
	assert.Equal(t, "json", payload.Format)
	assert.JSONEq(t, `{"seed":42}`, string(payload.Data))
}

func TestParseOptions_InitPayloadRequiresFormat(t *testing.T) {
	_, err := ParseOptions(map[string]any{
		OptInitKwargs: &OpaquePayload{Data: []byte{0x01}},
	})
	assert.ErrorIs(t, err, ErrOptionValue)
}

// =============================================================================
// Subset Sampling Tests
// =============================================================================

func TestRandomOptionSubsets_EmptySource(t *testing.T) {
	combos := randomOptionSubsets(map[string]any{}, 10, 1)

	assert.Len(t, combos, 10)
	for _, c := range combos {
		assert.Empty(t, c)
	}
}

func TestRandomOptionSubsets_SubsetsOfSource(t *testing.T) {
	src := sampleOptionValues()
	for _, combo := range randomOptionSubsets(src, 50, 3) {
		for k, v := range combo {
			expected, present := src[k]
			require.True(t, present)
			assert.Equal(t, expected, v)
		}
	}
}

func TestRandomOptionSubsets_Count(t *testing.T) {
	assert.Len(t, randomOptionSubsets(sampleOptionValues(), 1000, 5), 1000)
}

func TestRandomOptionSubsets_DistinctAcrossDraws(t *testing.T) {
	// Independent samples of the same size from an 11-option space should
	// essentially never coincide set-for-set.
	a := subsetKeySets(randomOptionSubsets(sampleOptionValues(), 20, 1))
	b := subsetKeySets(randomOptionSubsets(sampleOptionValues(), 20, 2))

	assert.NotEqual(t, a, b)
}

// =============================================================================
// Test Helpers
// =============================================================================

// sampleOptionValues covers every option that needs no cross-field companion,
// shaped like a typical fully-specified definition call.
func sampleOptionValues() map[string]any {
	return map[string]any{
		OptName:                    "test",
		OptVersion:                 "abcd",
		OptNumReplicas:             1,
		OptRayActorOptions:         map[string]any{},
		OptUserConfig:              map[string]any{},
		OptMaxOngoingRequests:      10,
		OptAutoscalingConfig:       nil,
		OptGracefulShutdownWait:    10,
		OptGracefulShutdownTimeout: 10,
		OptHealthCheckPeriod:       10,
		OptHealthCheckTimeout:      10,
	}
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// randomOptionSubsets draws n random key-subsets of src, deterministically
// per seed so failures reproduce.
func randomOptionSubsets(src map[string]any, n int, seed int64) []map[string]any {
	rng := rand.New(rand.NewSource(seed))

	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := make([]map[string]any, n)
	for i := range combos {
		combo := make(map[string]any)
		for _, k := range keys {
			if rng.Intn(2) == 1 {
				combo[k] = src[k]
			}
		}
		combos[i] = combo
	}
	return combos
}

func subsetKeySets(combos []map[string]any) [][]string {
	out := make([][]string, len(combos))
	for i, c := range combos {
		keys := mapKeys(c)
		sort.Strings(keys)
		out[i] = keys
	}
	return out
}
