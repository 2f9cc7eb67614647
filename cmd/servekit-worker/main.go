// Package main provides the servekit-worker binary that runs beside replicas.
//
// The worker gives replica hosts a local command surface for deployment
// payloads. The control plane invokes it as a one-shot command, exchanging
// JSON input/output.
//
// Usage:
//
//	servekit-worker <command> [args...]
//
// Commands:
//
//	version           - Show worker and protocol version
//	ping              - Liveness echo
//	inspect-payload   - Decode a config payload and report values with provenance
//	validate-payload  - Validate a config payload without emitting values
//	unseal-opaque     - Unseal an opaque payload with a shared passphrase
//
// inspect-payload and validate-payload read {"payload_b64": ...} from stdin or
// the first argument. unseal-opaque reads {"opaque_b64", "passphrase",
// "salt_b64"} the same way.
//
// Command-level failures (bad input, undecodable payload, wrong passphrase)
// exit 0 with a success:false envelope; a nonzero exit means the invocation
// itself failed.
package main

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/artpar/servekit/internal/core/worker"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		outputError("usage", worker.ErrCodeInvalidInput, "usage: servekit-worker <command> [args...]")
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if err := dispatch(cmd, args); err != nil {
		// Error already written to stdout by command handler
		os.Exit(1)
	}
}

// outputSuccess writes a success response to stdout.
func outputSuccess(data interface{}) {
	resp, err := worker.NewSuccessResponse(data)
	if err != nil {
		outputError("internal", worker.ErrCodeInternal, err.Error())
		return
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// outputError writes an error response to stdout.
func outputError(command, code, message string) {
	resp := worker.NewErrorResponse(command, code, message)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// versionCmd handles the "version" command.
func versionCmd() error {
	info := worker.VersionInfo{
		Version:   Version,
		Protocol:  worker.ProtocolVersion,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	outputSuccess(info)
	return nil
}

// pingCmd handles the "ping" command.
func pingCmd() error {
	info := worker.PingInfo{
		Protocol: worker.ProtocolVersion,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
	outputSuccess(info)
	return nil
}
