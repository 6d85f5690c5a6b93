// Package eventloop implements the bridge's single cooperative event loop.
//
// The Event Loop:
//   - Runs every posted function to completion on one goroutine
//   - Never blocks posters (unbounded FIFO queue)
//   - Schedules one-shot and repeating work from an injected clock
//   - Lets other goroutines read loop-owned state through Do
package eventloop
