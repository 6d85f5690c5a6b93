// Package model defines shared data types used across the interface bridge.
//
// Conventions:
//   - Topics: full MQTT topic strings as published by the assistant core
//   - Timestamps: time.Time taken from the bridge's clock at receive time
//   - Connection parameters are transport-facing and never persisted
package model
