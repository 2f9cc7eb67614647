package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// CreateDeploymentRequest is the request body for defining a deployment.
// Option values map to the deployment option registry; keys present with a
// null value are explicit nulls, absent keys fall back to defaults.
type CreateDeploymentRequest struct {
	Name        string              `json:"name"`
	Options     map[string]any      `json:"options,omitempty"`
	InitPayload *InitPayloadRequest `json:"init_payload,omitempty"`
}

// UpdateOptionsRequest is the request body for layering overrides onto an
// existing deployment, producing a derived definition.
type UpdateOptionsRequest struct {
	Options     map[string]any      `json:"options,omitempty"`
	InitPayload *InitPayloadRequest `json:"init_payload,omitempty"`
}

// InitPayloadRequest carries caller-serialized initializer arguments.
// Data is base64 in transit.
type InitPayloadRequest struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

// =============================================================================
// Response Types
// =============================================================================

// DeploymentResponse is the response for deployment definition operations.
// Values holds the fully resolved option values; Overrides names the options
// that were explicitly supplied rather than defaulted.
type DeploymentResponse struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	BaseID            string         `json:"base_id,omitempty"`
	Status            string         `json:"status"`
	Values            map[string]any `json:"values"`
	Overrides         []string       `json:"overrides"`
	HasInitPayload    bool           `json:"has_init_payload"`
	InitPayloadSealed bool           `json:"init_payload_sealed,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// ListDeploymentsResponse is the response for listing deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// PayloadResponse carries the encoded config payload and, when present, the
// opaque initializer channel. Both are base64 in transit; the opaque bytes are
// served exactly as stored, sealed or not.
type PayloadResponse struct {
	ID           string `json:"id"`
	Payload      []byte `json:"payload_b64"`
	Opaque       []byte `json:"opaque_b64,omitempty"`
	OpaqueSealed bool   `json:"opaque_sealed"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
