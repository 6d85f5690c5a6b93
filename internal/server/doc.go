// Package server exposes the bridge over HTTP: health and status endpoints
// for operators and the WebSocket endpoint browsers attach to.
package server
