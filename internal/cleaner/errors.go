package cleaner

import "errors"

// ErrSourceQuarantined names the case of a source segment whose read or
// iterator construction fails during S2 extraction. No code path in
// this package returns it: extractLiveEntries quarantines such a source
// via segmentmgr, logs it, and continues the pass with the remaining
// sources.
var ErrSourceQuarantined = errors.New("cleaner: source segment quarantined during extraction")

// errPassAborted is an internal sentinel used to unwind a pass on
// survivor pool exhaustion after a bounded wait, without mutating
// segment manager state. Replication failures are returned as their own
// wrapped errors, not wrapped in errPassAborted.
var errPassAborted = errors.New("cleaner: pass aborted")
