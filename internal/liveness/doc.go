// Package liveness infers core availability from heartbeat messages.
//
// A Watchdog ticks on a fixed period and compares the age of the last
// heartbeat with a stale threshold. When the core goes quiet it shows the
// unavailable indicator and arms a RecoveryTrigger; when heartbeats resume the
// indicator is hidden and the trigger fires once. Explicit going-down and
// reconnected notifications from the core override the heartbeat logic and
// never cause a recovery.
//
// Watchdog state is owned by the event loop. Tick and the Mark methods must be
// called from the loop goroutine.
package liveness
