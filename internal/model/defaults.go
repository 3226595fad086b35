package model

import "time"

// Shared defaults used by the engine, the UI and the CLI.
const (
	DefaultWorkers         = 4
	DefaultRefreshInterval = 100 * time.Millisecond
	DefaultRefreshRate     = 20
	DefaultEOFMarker       = "[EOF]"
	DefaultMaxLineSize     = 1 << 20
	DefaultTCPAddr         = "127.0.0.1:4000"
	DefaultAPIAddr         = "127.0.0.1:3000"
)
