// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single broker connection and its state machine
//   - Fetches fresh broker parameters before every attempt
//   - Regenerates the client id on every attempt
//   - Retries forever: 5s after a failed fetch or failed open, immediately after a lost connection
//   - Subscribes the interface topic set and fans events out through a fanout.Registry
package connection
