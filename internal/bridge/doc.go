// Package bridge assembles the interface bridge.
//
// A single event loop owns the connection manager, subscriber registry,
// message router and liveness watchdog. Broker and timer callbacks are posted
// to it, so none of that state needs locking. The browser view sits beside
// the loop and forwards its updates through an in-memory bus to the WebSocket
// hub. When enabled, availability transitions are journaled to PostgreSQL.
package bridge
