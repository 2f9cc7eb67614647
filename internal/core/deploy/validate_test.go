package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Replica Provisioning Rule Tests
// =============================================================================

func TestDefine_NullReplicasWithoutAutoscalingRejected(t *testing.T) {
	_, err := Define(WithNumReplicasNull())
	assert.ErrorIs(t, err, ErrMutualExclusion)
}

func TestDefine_NullReplicasWithAutoscalingAccepted(t *testing.T) {
	def, err := Define(
		WithNumReplicasNull(),
		WithOption(OptAutoscalingConfig, map[string]any{
			"min_replicas":            1,
			"max_replicas":            5,
			"target_ongoing_requests": 5,
		}),
	)
	require.NoError(t, err)

	_, ok := def.Config.NumReplicas()
	assert.False(t, ok)
	assert.NotNil(t, def.Config.AutoscalingPolicy())
}

func TestDefine_BothReplicaSourcesConcreteAccepted(t *testing.T) {
	// The rule only forbids both being null.
	_, err := Define(WithNumReplicas(2), WithAutoscaling(NewAutoscalingConfig()))
	assert.NoError(t, err)
}

func TestDefine_ExplicitNullAutoscalingAloneAccepted(t *testing.T) {
	// num_replicas still resolves to its default of 1.
	_, err := Define(WithAutoscalingNull())
	assert.NoError(t, err)
}

// =============================================================================
// Placement Group Bundle Rule Tests
// =============================================================================

func TestDefine_AllZeroBundleRejected(t *testing.T) {
	_, err := Define(WithPlacementGroupBundles([]ResourceBundle{{"CPU": 0, "GPU": 0}}))
	assert.ErrorIs(t, err, ErrBundleResources)
}

func TestDefine_EmptyBundleRejected(t *testing.T) {
	_, err := Define(WithPlacementGroupBundles([]ResourceBundle{{}}))
	assert.ErrorIs(t, err, ErrBundleResources)
}

func TestDefine_AnyBadBundleRejected(t *testing.T) {
	_, err := Define(WithPlacementGroupBundles([]ResourceBundle{
		{"CPU": 1},
		{"GPU": 0},
	}))
	assert.ErrorIs(t, err, ErrBundleResources)
}

func TestDefine_BundlesWithoutStrategyAccepted(t *testing.T) {
	_, err := Define(WithPlacementGroupBundles([]ResourceBundle{{"CPU": 1}}))
	assert.NoError(t, err)
}

// =============================================================================
// Placement Group Strategy Rule Tests
// =============================================================================

func TestDefine_StrategyWithoutBundlesRejected(t *testing.T) {
	_, err := Define(WithPlacementGroupStrategy("PACK"))
	assert.ErrorIs(t, err, ErrStrategyWithoutBundles)
}

func TestDefine_StrategyWithEmptyBundleListRejected(t *testing.T) {
	_, err := Define(
		WithPlacementGroupStrategy("PACK"),
		WithPlacementGroupBundles([]ResourceBundle{}),
	)
	assert.ErrorIs(t, err, ErrStrategyWithoutBundles)
}

func TestDefine_StrategyWithBundlesAccepted(t *testing.T) {
	def, err := Define(
		WithPlacementGroupStrategy("PACK"),
		WithPlacementGroupBundles([]ResourceBundle{{"CPU": 10}}),
	)
	require.NoError(t, err)

	strategy, ok := def.Config.PlacementGroupStrategy()
	require.True(t, ok)
	assert.Equal(t, "PACK", strategy)
}

// =============================================================================
// Eagerness Tests
// =============================================================================

func TestValidation_RunsOnEveryLayer(t *testing.T) {
	base, err := Define(WithName("echo"))
	require.NoError(t, err)

	// The invalid combination must be rejected at override time, not at some
	// later deploy step.
	_, err = base.Options(WithPlacementGroupStrategy("PACK"))
	assert.ErrorIs(t, err, ErrStrategyWithoutBundles)
}

func TestValidation_LayerCanRepairBase(t *testing.T) {
	base, err := Define(WithPlacementGroupBundles([]ResourceBundle{{"CPU": 1}}))
	require.NoError(t, err)

	derived, err := base.Options(WithPlacementGroupStrategy("STRICT_PACK"))
	require.NoError(t, err)

	strategy, _ := derived.Config.PlacementGroupStrategy()
	assert.Equal(t, "STRICT_PACK", strategy)
}
