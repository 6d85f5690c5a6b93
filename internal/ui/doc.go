// Package ui mirrors the interface's user-visible state to browsers.
//
// View holds the state the core's messages drive: the unavailable banner,
// the NLU training line, skill instructions, the core config update alert and
// the resource usage line. Every change is published as an Update on a
// watermill Bus; the Hub fans updates out to WebSocket clients and replays
// View.Snapshot to each new client.
package ui
