package openapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testModel struct {
	ID        string            `json:"id"`
	Count     int               `json:"count"`
	Enabled   bool              `json:"enabled"`
	Payload   []byte            `json:"payload_b64"`
	Labels    map[string]string `json:"labels"`
	Parent    *string           `json:"parent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Secret    string            `json:"-"`
}

type testCreateRequest struct {
	Name string `json:"name"`
}

type testActionRequest struct {
	Options map[string]any `json:"options"`
}

func newTestGenerator() *Generator {
	g := NewGenerator()
	g.RegisterResource(ResourceInfo{
		Name:           "deployments",
		Model:          testModel{},
		CreateModel:    testCreateRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsDelete: true,
		Actions: []ActionInfo{
			{Name: "options", Method: http.MethodPost, Summary: "Layer overrides", Request: testActionRequest{}, Response: testModel{}},
			{Name: "payload", Method: http.MethodGet, Summary: "Fetch payloads"},
		},
	})
	return g
}

// =============================================================================
// Tests
// =============================================================================

func TestGenerator_ResourcePaths(t *testing.T) {
	spec := newTestGenerator().Generate()

	collection := spec.Paths.Find("/api/v1/deployments")
	require.NotNil(t, collection)
	assert.NotNil(t, collection.Get)
	assert.NotNil(t, collection.Post)
	require.NotNil(t, collection.Post.RequestBody)

	item := spec.Paths.Find("/api/v1/deployments/{id}")
	require.NotNil(t, item)
	assert.NotNil(t, item.Get)
	assert.NotNil(t, item.Delete)
	assert.Nil(t, item.Patch)
}

func TestGenerator_ActionPaths(t *testing.T) {
	spec := newTestGenerator().Generate()

	options := spec.Paths.Find("/api/v1/deployments/{id}/options")
	require.NotNil(t, options)
	require.NotNil(t, options.Post)
	assert.Nil(t, options.Get)
	assert.NotNil(t, options.Post.RequestBody)
	assert.Equal(t, "optionsDeployment", options.Post.OperationID)

	payload := spec.Paths.Find("/api/v1/deployments/{id}/payload")
	require.NotNil(t, payload)
	require.NotNil(t, payload.Get)
	assert.Nil(t, payload.Post)
}

func TestGenerator_SchemaExtraction(t *testing.T) {
	spec := newTestGenerator().Generate()

	schema := spec.Components.Schemas["Deployment"]
	require.NotNil(t, schema)
	props := schema.Value.Properties

	assert.True(t, props["id"].Value.Type.Is("string"))
	assert.Equal(t, "int32", props["count"].Value.Format)
	assert.True(t, props["enabled"].Value.Type.Is("boolean"))
	assert.True(t, props["labels"].Value.Type.Is("object"))
	assert.Equal(t, "date-time", props["created_at"].Value.Format)
	assert.True(t, props["parent"].Value.Nullable)

	// []byte fields marshal as base64 strings, not integer arrays
	assert.True(t, props["payload_b64"].Value.Type.Is("string"))
	assert.Equal(t, "byte", props["payload_b64"].Value.Format)

	// json:"-" fields stay out of the schema
	assert.NotContains(t, props, "Secret")
	assert.NotContains(t, props, "-")

	assert.Contains(t, spec.Components.Schemas, "DeploymentCreateRequest")
	assert.Contains(t, spec.Components.Schemas, "DeploymentOptionsRequest")
	assert.Contains(t, spec.Components.Schemas, "DeploymentListResponse")
	assert.Contains(t, spec.Components.Schemas, "Error")
}

func TestGenerator_CachesUntilRegistration(t *testing.T) {
	g := newTestGenerator()

	first := g.Generate()
	second := g.Generate()
	assert.Same(t, first, second)

	g.RegisterResource(ResourceInfo{Name: "manifests", Model: testModel{}, SupportsFind: true})
	third := g.Generate()
	assert.NotSame(t, first, third)
	require.NotNil(t, third.Paths.Find("/api/v1/manifests"))
}

func TestGenerator_Options(t *testing.T) {
	g := NewGenerator(
		WithTitle("Custom API"),
		WithVersion("2.0.0"),
		WithDescription("custom description"),
		WithServer("https://api.example.com"),
	)

	spec := g.Generate()
	assert.Equal(t, "Custom API", spec.Info.Title)
	assert.Equal(t, "2.0.0", spec.Info.Version)
	assert.Equal(t, "custom description", spec.Info.Description)
	require.Len(t, spec.Servers, 2)
	assert.Equal(t, "https://api.example.com", spec.Servers[1].URL)
}
