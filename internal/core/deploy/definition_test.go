package deploy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Definition Creation Tests
// =============================================================================

func TestDefine_AssignsIdentity(t *testing.T) {
	def, err := Define(WithName("echo"))
	require.NoError(t, err)

	_, parseErr := uuid.Parse(def.ID)
	assert.NoError(t, parseErr)
	assert.Empty(t, def.BaseID)
	assert.NotZero(t, def.CreatedAt)
	require.NotNil(t, def.Config)
	assert.Equal(t, "echo", def.Config.Name())
}

func TestDefine_NoOptions(t *testing.T) {
	def, err := Define()
	require.NoError(t, err)

	assert.Empty(t, def.Config.Overrides())
	assert.Nil(t, def.InitPayload())
}

func TestDefine_TypedSetters(t *testing.T) {
	def, err := Define(
		WithName("scorer"),
		WithVersion("v1"),
		WithNumReplicas(3),
		WithMaxOngoingRequests(50),
		WithGracefulShutdownWaitLoopS(1),
		WithGracefulShutdownTimeoutS(15),
		WithHealthCheckPeriodS(5),
		WithHealthCheckTimeoutS(20),
		WithRayActorOptions(map[string]any{"num_gpus": 1}),
		WithUserConfig(map[string]any{"threshold": 0.5}),
	)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		OptName,
		OptVersion,
		OptNumReplicas,
		OptMaxOngoingRequests,
		OptGracefulShutdownWait,
		OptGracefulShutdownTimeout,
		OptHealthCheckPeriod,
		OptHealthCheckTimeout,
		OptRayActorOptions,
		OptUserConfig,
	}, def.Config.Overrides())

	n, _ := def.Config.NumReplicas()
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(50), def.Config.MaxOngoingRequests())
}

// =============================================================================
// Layered Override Tests
// =============================================================================

func TestDefinition_OptionsYieldsSuppliedOverrideSet(t *testing.T) {
	// Layering any valid subset onto a definition created with no options
	// yields an override-set equal to exactly the supplied names.
	base, err := Define()
	require.NoError(t, err)

	for _, subset := range randomOptionSubsets(sampleOptionValues(), 100, 11) {
		derived, err := base.Options(WithOptions(subset))
		require.NoError(t, err)
		assert.ElementsMatch(t, mapKeys(subset), derived.Config.Overrides())
	}
}

func TestDefinition_OptionsCreatesNewIdentity(t *testing.T) {
	base, err := Define(WithName("echo"))
	require.NoError(t, err)

	derived, err := base.Options(WithNumReplicas(2))
	require.NoError(t, err)

	assert.NotEqual(t, base.ID, derived.ID)
	assert.Equal(t, base.ID, derived.BaseID)
}

func TestDefinition_OptionsDoesNotMutateReceiver(t *testing.T) {
	base, err := Define(WithName("echo"), WithNumReplicas(2))
	require.NoError(t, err)
	beforeValues := base.Config.Values()
	beforeOverrides := base.Config.Overrides()

	_, err = base.Options(WithNumReplicas(9), WithVersion("v2"))
	require.NoError(t, err)

	assert.Equal(t, beforeValues, base.Config.Values())
	assert.Equal(t, beforeOverrides, base.Config.Overrides())
}

// =============================================================================
// Init Payload Tests
// =============================================================================

func TestDefinition_InitPayloadInherited(t *testing.T) {
	base, err := Define(WithInitPayload("msgpack", []byte{0x01, 0x02}))
	require.NoError(t, err)

	derived, err := base.Options(WithNumReplicas(2))
	require.NoError(t, err)

	payload := derived.InitPayload()
	require.NotNil(t, payload)
	assert.Equal(t, "msgpack", payload.Format)
	assert.Equal(t, []byte{0x01, 0x02}, payload.Data)

	// Inherited by copy, not by reference.
	payload.Data[0] = 0xFF
	assert.Equal(t, []byte{0x01, 0x02}, base.InitPayload().Data)
}

func TestDefinition_InitPayloadReplaced(t *testing.T) {
	base, err := Define(WithInitPayload("msgpack", []byte{0x01}))
	require.NoError(t, err)

	derived, err := base.Options(WithInitPayload("json", []byte(`{}`)))
	require.NoError(t, err)

	assert.Equal(t, "json", derived.InitPayload().Format)
	assert.Equal(t, "msgpack", base.InitPayload().Format)
	assert.True(t, derived.Config.IsOverridden(OptInitKwargs))
}

// =============================================================================
// Restore Tests
// =============================================================================

func TestRestoreDefinition(t *testing.T) {
	cfg, err := RestoreConfig(map[string]any{OptName: "echo"}, []string{OptName})
	require.NoError(t, err)

	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	payload := &OpaquePayload{Format: "json", Data: []byte(`{}`)}

	def := RestoreDefinition("id-1", "id-0", created, cfg, payload)

	assert.Equal(t, "id-1", def.ID)
	assert.Equal(t, "id-0", def.BaseID)
	assert.Equal(t, created, def.CreatedAt)
	assert.Equal(t, "echo", def.Config.Name())
	assert.Equal(t, "json", def.InitPayload().Format)
}
