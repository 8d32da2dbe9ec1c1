package chronicle

import "sync/atomic"

// The process-wide recording flag. It defaults to enabled and is the only
// intentionally global piece of recording state; per-type overrides and the
// acting identity live on the operation context (see context.go).
var recordingDisabled atomic.Bool

// Enabled reports the process-wide recording flag.
func Enabled() bool {
	return !recordingDisabled.Load()
}

// SetEnabled toggles the process-wide recording flag. The toggle is
// idempotent and affects all operations until set again.
func SetEnabled(on bool) {
	recordingDisabled.Store(!on)
}
