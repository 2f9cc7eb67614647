// Package worker defines the protocol for communication between the servekit
// control plane and the servekit-worker binary that runs beside replicas.
//
// Workers are invoked as one-shot commands with JSON input and emit exactly
// one Response envelope as JSON on stdout. Every response carries the
// protocol version so mixed-version fleets detect skew.
//
// This package contains pure types with no I/O.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/servekit/internal/core/crypto"
	"github.com/artpar/servekit/internal/core/deploy"
	"github.com/artpar/servekit/internal/core/wire"
)

// =============================================================================
// Version Info
// =============================================================================

// ProtocolVersion is the current worker protocol version.
// Bump MAJOR for breaking changes, MINOR for new commands, PATCH for fixes.
const ProtocolVersion = "1.0.0"

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the standard envelope for all worker command responses.
// All commands return this structure as JSON to stdout.
type Response struct {
	Protocol string          `json:"protocol"`
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains error details when Success is false.
type ErrorInfo struct {
	Command string `json:"command"`        // Command that failed
	Code    string `json:"code,omitempty"` // Error code (e.g., "decode_failed")
	Message string `json:"message"`        // Human-readable error message
}

// NewSuccessResponse creates a successful response with data.
func NewSuccessResponse(data any) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		rawData = bytes
	}
	return &Response{
		Protocol: ProtocolVersion,
		Success:  true,
		Data:     rawData,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(command, code, message string) *Response {
	return &Response{
		Protocol: ProtocolVersion,
		Success:  false,
		Error: &ErrorInfo{
			Command: command,
			Code:    code,
			Message: message,
		},
	}
}

// ParseResponse parses a JSON response from a worker.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// UnmarshalData unmarshals the response data into the target type.
func (r *Response) UnmarshalData(target any) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, target)
}

// =============================================================================
// Error Codes
// =============================================================================

// Standard error codes for worker responses.
const (
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeDecodeFailed = "decode_failed"
	ErrCodeValidation   = "validation"
	ErrCodeUnsealFailed = "unseal_failed"
	ErrCodeInternal     = "internal"
)

// ClassifyError maps an error to its protocol error code. Config sentinel
// identities win over wire framing identities: a payload that decoded but
// named an unknown option or violated a cross-field rule reports as
// validation, which is the actionable part.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, deploy.ErrUnknownOption),
		errors.Is(err, deploy.ErrNullOption),
		errors.Is(err, deploy.ErrOptionValue),
		errors.Is(err, deploy.ErrMutualExclusion),
		errors.Is(err, deploy.ErrBundleResources),
		errors.Is(err, deploy.ErrStrategyWithoutBundles):
		return ErrCodeValidation
	case errors.Is(err, wire.ErrMalformedPayload),
		errors.Is(err, wire.ErrPayloadVersion):
		return ErrCodeDecodeFailed
	case errors.Is(err, crypto.ErrDecryptFailed),
		errors.Is(err, crypto.ErrInvalidCiphertext),
		errors.Is(err, crypto.ErrKeyLength),
		errors.Is(err, crypto.ErrSaltLength):
		return ErrCodeUnsealFailed
	default:
		return ErrCodeInternal
	}
}

// =============================================================================
// Command Request Types
// =============================================================================

// PayloadRequest is the input for the "inspect-payload" and
// "validate-payload" commands.
type PayloadRequest struct {
	PayloadB64 string `json:"payload_b64"`
}

// UnsealRequest is the input for the "unseal-opaque" command.
type UnsealRequest struct {
	OpaqueB64  string `json:"opaque_b64"`
	Passphrase string `json:"passphrase"`
	SaltB64    string `json:"salt_b64"`
}

// =============================================================================
// Command Result Types
// =============================================================================

// VersionInfo is returned by the "version" command.
type VersionInfo struct {
	Version   string `json:"version"`
	Protocol  string `json:"protocol"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// PingInfo is returned by the "ping" command.
type PingInfo struct {
	Protocol string `json:"protocol"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
}

// OptionReport describes one resolved option: its value, whether that value
// is null, and whether a caller explicitly supplied it rather than the
// registry default filling it in.
type OptionReport struct {
	Value    any  `json:"value"`
	Null     bool `json:"null"`
	Explicit bool `json:"explicit"`
}

// InspectResult is returned by the "inspect-payload" command.
type InspectResult struct {
	Name      string                  `json:"name,omitempty"`
	Overrides []string                `json:"overrides"`
	Options   map[string]OptionReport `json:"options"`
}

// NewInspectResult builds the inspection report for a decoded config.
func NewInspectResult(cfg *deploy.Config) InspectResult {
	values := cfg.Values()
	options := make(map[string]OptionReport, len(values))
	for name, v := range values {
		options[name] = OptionReport{
			Value:    v,
			Null:     v == nil,
			Explicit: cfg.IsOverridden(name),
		}
	}
	return InspectResult{
		Name:      cfg.Name(),
		Overrides: cfg.Overrides(),
		Options:   options,
	}
}

// ValidateResult is returned by the "validate-payload" command. An invalid
// payload is a finding, not a command failure: the envelope stays successful
// and the taxonomy lands here.
type ValidateResult struct {
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewValidateResult classifies a decode outcome.
func NewValidateResult(err error) ValidateResult {
	if err == nil {
		return ValidateResult{Valid: true}
	}
	return ValidateResult{
		Valid:   false,
		Code:    ClassifyError(err),
		Message: err.Error(),
	}
}

// UnsealResult is returned by the "unseal-opaque" command. Data serializes
// as base64.
type UnsealResult struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}
