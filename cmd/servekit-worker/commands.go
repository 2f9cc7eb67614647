package main

import (
	"github.com/artpar/servekit/internal/core/worker"
)

// dispatch routes the command to the appropriate handler.
func dispatch(cmd string, args []string) error {
	switch cmd {
	// Health commands
	case "version":
		return versionCmd()
	case "ping":
		return pingCmd()

	// Payload commands
	case "inspect-payload":
		return inspectPayloadCmd(args)
	case "validate-payload":
		return validatePayloadCmd(args)
	case "unseal-opaque":
		return unsealOpaqueCmd(args)

	default:
		outputError(cmd, worker.ErrCodeInvalidInput, "unknown command: "+cmd)
		return errUnknownCommand
	}
}

// errUnknownCommand is returned for unknown commands.
var errUnknownCommand = &commandError{msg: "unknown command"}

// commandError represents a command error.
type commandError struct {
	msg string
}

func (e *commandError) Error() string {
	return e.msg
}
