package manifest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/servekit/internal/core/deploy"
)

// =============================================================================
// Manifest Types
// =============================================================================

// Manifest is a declarative batch of deployment definitions.
type Manifest struct {
	Deployments []Deployment `yaml:"deployments"`
}

// Deployment is one manifest entry. The entry-level name is authoritative;
// Options may repeat it but never contradict it. Option values decode into
// plain YAML trees, so an explicit null stays distinguishable from an omitted
// key.
type Deployment struct {
	Name        string         `yaml:"name"`
	Options     map[string]any `yaml:"options"`
	InitPayload *PayloadRef    `yaml:"init_payload"`
}

// PayloadRef declares an opaque initializer payload inline: a format label
// plus base64 body.
type PayloadRef struct {
	Format string `yaml:"format"`
	Data   string `yaml:"data"`
}

// =============================================================================
// Parser Functions
// =============================================================================

// Parse reads and validates a deployment manifest.
// Input: YAML stream
// Output: Manifest struct or error
func Parse(r io.Reader) (*Manifest, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			// Comments-only input decodes to nothing.
			return nil, ErrEmptyInput
		}
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseFile reads and validates the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// =============================================================================
// Validation
// =============================================================================

// validate runs the per-entry checks, including a full option capture per
// entry, so a manifest that parses cleanly is guaranteed to materialize.
func (m *Manifest) validate() error {
	if len(m.Deployments) == 0 {
		return ErrNoDeployments
	}

	seen := make(map[string]bool, len(m.Deployments))
	for i, d := range m.Deployments {
		field := fmt.Sprintf("deployments[%d]", i)

		if strings.TrimSpace(d.Name) == "" {
			return NewParseError(field+".name", "deployment name is required", ErrDeploymentNoName)
		}
		if seen[d.Name] {
			return NewParseError(field+".name", fmt.Sprintf("duplicate deployment name %q", d.Name), ErrDuplicateDeployment)
		}
		seen[d.Name] = true

		raw, err := entryOptions(field, d)
		if err != nil {
			return err
		}
		opts, err := deploy.ParseOptions(raw)
		if err != nil {
			return NewParseError(field+".options", err.Error(), err)
		}
		if _, err := deploy.BuildConfig(nil, opts); err != nil {
			return NewParseError(field+".options", err.Error(), err)
		}
	}
	return nil
}

// entryOptions assembles the raw option map for one entry: declared options
// plus the authoritative entry name plus the decoded init payload.
func entryOptions(field string, d Deployment) (map[string]any, error) {
	raw := make(map[string]any, len(d.Options)+2)
	for k, v := range d.Options {
		raw[k] = v
	}

	if v, declared := raw[deploy.OptName]; declared {
		s, ok := v.(string)
		if !ok || s != d.Name {
			return nil, NewParseError(field+".options.name", "conflicts with the entry name", ErrNameMismatch)
		}
	}
	raw[deploy.OptName] = d.Name

	if d.InitPayload != nil {
		if d.InitPayload.Format == "" {
			return nil, NewParseError(field+".init_payload.format", "format is required", ErrPayloadNoFormat)
		}
		data, err := base64.StdEncoding.DecodeString(d.InitPayload.Data)
		if err != nil {
			return nil, NewParseError(field+".init_payload.data", "data is not valid base64", ErrPayloadEncoding)
		}
		raw[deploy.OptInitKwargs] = deploy.OpaquePayload{
			Format: d.InitPayload.Format,
			Data:   data,
		}
	}

	return raw, nil
}

// =============================================================================
// Materialization
// =============================================================================

// Definitions materializes one definition per entry, in declaration order.
// The manifest is revalidated first, so a hand-assembled Manifest gets the
// same guarantees as a parsed one.
func (m *Manifest) Definitions() ([]*deploy.Definition, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	defs := make([]*deploy.Definition, 0, len(m.Deployments))
	for i, d := range m.Deployments {
		field := fmt.Sprintf("deployments[%d]", i)
		raw, err := entryOptions(field, d)
		if err != nil {
			return nil, err
		}
		def, err := deploy.Define(deploy.WithOptions(raw))
		if err != nil {
			return nil, NewParseError(field+".options", err.Error(), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
