package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"

	"github.com/artpar/servekit/internal/core/crypto"
	"github.com/artpar/servekit/internal/core/wire"
	"github.com/artpar/servekit/internal/core/worker"
)

// readInput returns the raw JSON document for a command: the first argument
// when present, otherwise everything on stdin.
func readInput(args []string) ([]byte, error) {
	if len(args) > 0 {
		return []byte(args[0]), nil
	}
	return io.ReadAll(os.Stdin)
}

// decodeRequest reads and unmarshals the command input. A false return means
// the error envelope is already written; the accompanying error is non-nil
// only for I/O-level failures.
func decodeRequest(cmd string, args []string, target any) (bool, error) {
	raw, err := readInput(args)
	if err != nil {
		outputError(cmd, worker.ErrCodeInternal, "read input: "+err.Error())
		return false, err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		outputError(cmd, worker.ErrCodeInvalidInput, "invalid JSON input: "+err.Error())
		return false, nil
	}
	return true, nil
}

// inspectPayloadCmd handles the "inspect-payload" command.
// It decodes a wire payload and reports every option's resolved value,
// nullness, and whether the value was explicitly supplied.
func inspectPayloadCmd(args []string) error {
	var req worker.PayloadRequest
	ok, err := decodeRequest("inspect-payload", args, &req)
	if !ok {
		return err
	}

	payload, err := base64.StdEncoding.DecodeString(req.PayloadB64)
	if err != nil {
		outputError("inspect-payload", worker.ErrCodeInvalidInput, "payload_b64 is not valid base64: "+err.Error())
		return nil
	}

	cfg, err := wire.Decode(payload)
	if err != nil {
		outputError("inspect-payload", worker.ClassifyError(err), err.Error())
		return nil
	}

	outputSuccess(worker.NewInspectResult(cfg))
	return nil
}

// validatePayloadCmd handles the "validate-payload" command.
// An undecodable or invalid payload is reported as a finding inside a
// successful envelope, not as a command failure.
func validatePayloadCmd(args []string) error {
	var req worker.PayloadRequest
	ok, err := decodeRequest("validate-payload", args, &req)
	if !ok {
		return err
	}

	payload, err := base64.StdEncoding.DecodeString(req.PayloadB64)
	if err != nil {
		outputError("validate-payload", worker.ErrCodeInvalidInput, "payload_b64 is not valid base64: "+err.Error())
		return nil
	}

	_, err = wire.Decode(payload)
	outputSuccess(worker.NewValidateResult(err))
	return nil
}

// unsealOpaqueCmd handles the "unseal-opaque" command.
// It derives the sealing key from the supplied passphrase and salt, opens the
// sealed opaque bytes, and returns the decoded format and data.
func unsealOpaqueCmd(args []string) error {
	var req worker.UnsealRequest
	ok, err := decodeRequest("unseal-opaque", args, &req)
	if !ok {
		return err
	}

	if req.Passphrase == "" {
		outputError("unseal-opaque", worker.ErrCodeInvalidInput, "passphrase is required")
		return nil
	}
	opaque, err := base64.StdEncoding.DecodeString(req.OpaqueB64)
	if err != nil {
		outputError("unseal-opaque", worker.ErrCodeInvalidInput, "opaque_b64 is not valid base64: "+err.Error())
		return nil
	}
	salt, err := base64.StdEncoding.DecodeString(req.SaltB64)
	if err != nil {
		outputError("unseal-opaque", worker.ErrCodeInvalidInput, "salt_b64 is not valid base64: "+err.Error())
		return nil
	}

	sealer, err := crypto.NewSealer(req.Passphrase, salt)
	if err != nil {
		outputError("unseal-opaque", worker.ClassifyError(err), err.Error())
		return nil
	}
	plaintext, err := sealer.Open(opaque)
	if err != nil {
		outputError("unseal-opaque", worker.ClassifyError(err), err.Error())
		return nil
	}
	payload, err := wire.DecodeOpaque(plaintext)
	if err != nil {
		outputError("unseal-opaque", worker.ClassifyError(err), err.Error())
		return nil
	}

	outputSuccess(worker.UnsealResult{
		Format: payload.Format,
		Data:   payload.Data,
	})
	return nil
}
