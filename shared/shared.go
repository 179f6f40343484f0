package shared

import "log/slog"

// Verbose flag
var Verbose bool = false

// Version of the node simulator
const Version = "0.3.0"

func DebugPrint(msg string) {
	if Verbose {
		slog.Debug(msg)
	}
}
