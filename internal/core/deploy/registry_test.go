package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Registry Tests
// =============================================================================

func TestLookup_KnownOption(t *testing.T) {
	desc, ok := Lookup(OptNumReplicas)
	require.True(t, ok)

	assert.Equal(t, OptNumReplicas, desc.Name)
	assert.Equal(t, KindInt, desc.Kind)
	assert.Equal(t, int64(1), desc.Default)
	assert.True(t, desc.Nullable)
	assert.False(t, desc.IndependentSerialization)
}

func TestLookup_UnknownOption(t *testing.T) {
	_, ok := Lookup("replica_count")
	assert.False(t, ok)
}

func TestOptionNames_CoversRegistry(t *testing.T) {
	names := OptionNames()

	assert.Len(t, names, 14)
	assert.Contains(t, names, OptName)
	assert.Contains(t, names, OptInitKwargs)
}

func TestDescriptors_NullableSet(t *testing.T) {
	nullable := make([]string, 0)
	for _, d := range Descriptors() {
		if d.Nullable {
			nullable = append(nullable, d.Name)
		}
	}

	assert.ElementsMatch(t, []string{
		OptNumReplicas,
		OptUserConfig,
		OptAutoscalingConfig,
		OptPlacementGroupStrategy,
	}, nullable)
}

func TestDescriptors_OnlyInitKwargsIsIndependentlySerialized(t *testing.T) {
	for _, d := range Descriptors() {
		if d.Name == OptInitKwargs {
			assert.True(t, d.IndependentSerialization)
			assert.Equal(t, KindOpaque, d.Kind)
			continue
		}
		assert.False(t, d.IndependentSerialization, d.Name)
	}
}

// =============================================================================
// Defaults Tests
// =============================================================================

func TestDefaults_FreshCopyPerCall(t *testing.T) {
	first := Defaults()
	first[OptRayActorOptions].(map[string]any)["num_cpus"] = 4
	first[OptNumReplicas] = int64(99)

	second := Defaults()
	assert.Equal(t, map[string]any{}, second[OptRayActorOptions])
	assert.Equal(t, int64(1), second[OptNumReplicas])
}

func TestDefaults_CoversEveryOption(t *testing.T) {
	defaults := Defaults()

	assert.Len(t, defaults, len(OptionNames()))
	for _, name := range OptionNames() {
		_, present := defaults[name]
		assert.True(t, present, name)
	}
}
